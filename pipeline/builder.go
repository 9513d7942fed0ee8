package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"diabetesrisk/ml"
)

// BuilderConfig 构建预测器所需的配置
type BuilderConfig struct {
	ModelType string
	ModelPath string
	CacheSize int
}

// NewBuilder 返回一个构建函数：读取参考数据、清洗、计算默认值表并加载模型
func NewBuilder(source Source, config BuilderConfig, logger *zap.Logger) ml.BuildFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (*ml.Predictor, error) {
		dataset, err := source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load reference data from %s: %w", source.Path(), err)
		}

		cleaner := NewDataCleaner()
		cleaned, issues := cleaner.Clean(dataset)
		if len(issues) > 0 {
			stats := cleaner.GetStats()
			logger.Warn("reference data quality issues",
				zap.Int("issues", len(issues)),
				zap.Int64("rejected_rows", stats.Rejected),
				zap.Int64("corrected_rows", stats.Corrected),
			)
		}

		defaults, err := ml.BuildDefaultTable(cleaned)
		if err != nil {
			return nil, fmt.Errorf("compute defaults: %w", err)
		}

		model, err := ml.LoadModel(config.ModelType, config.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load %s model from %s: %w", config.ModelType, config.ModelPath, err)
		}

		predictor, err := ml.NewPredictor(model, defaults, ml.WithCache(config.CacheSize))
		if err != nil {
			return nil, err
		}
		logger.Info("predictor built",
			zap.String("model_type", config.ModelType),
			zap.Int("reference_rows", len(cleaned)),
		)
		return predictor, nil
	}
}
