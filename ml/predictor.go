package ml

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DecisionThreshold 分类阈值，等于阈值时为 0 类
const DecisionThreshold = 0.5

type Prediction struct {
	Probability float64 `json:"predicted_probability"`
	Class       int     `json:"predicted_class"`
}

func Classify(probability float64) int {
	if probability > DecisionThreshold {
		return 1
	}
	return 0
}

// Predictor 模型与默认值表的组合，可并发使用
type Predictor struct {
	model    Model
	defaults *DefaultTable
	cache    *lru.Cache[FeatureVector, Prediction]
}

type Option func(*Predictor) error

// WithCache 按特征向量缓存预测结果，size <= 0 时不缓存
func WithCache(size int) Option {
	return func(p *Predictor) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New[FeatureVector, Prediction](size)
		if err != nil {
			return fmt.Errorf("create prediction cache: %w", err)
		}
		p.cache = cache
		return nil
	}
}

func NewPredictor(model Model, defaults *DefaultTable, opts ...Option) (*Predictor, error) {
	if model == nil {
		return nil, errors.New("model is nil")
	}
	if defaults == nil {
		return nil, errors.New("default table is nil")
	}
	p := &Predictor{model: model, defaults: defaults}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Predictor) Defaults() *DefaultTable {
	return p.defaults
}

func (p *Predictor) Predict(overrides Overrides) (Prediction, error) {
	vector, err := Resolve(overrides, p.defaults)
	if err != nil {
		return Prediction{}, err
	}
	return p.PredictVector(vector)
}

func (p *Predictor) PredictVector(vector FeatureVector) (Prediction, error) {
	if p.cache != nil {
		if cached, ok := p.cache.Get(vector); ok {
			return cached, nil
		}
	}
	probability, err := score(p.model, vector)
	if err != nil {
		return Prediction{}, err
	}
	result := Prediction{Probability: probability, Class: Classify(probability)}
	if p.cache != nil {
		p.cache.Add(vector, result)
	}
	return result, nil
}
