package pipeline

import (
	"fmt"
	"math"
	"sync"
	"time"

	"diabetesrisk/ml"
)

// CleaningRule 清洗规则
//
// Apply 返回清洗后的行；返回错误表示该行被拒绝。
type CleaningRule interface {
	Apply(row ml.Row) (ml.Row, error)
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"` // low, high
	Message   string    `json:"message"`
	Row       int       `json:"row"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器
//
// 默认规则只移除无法参与统计的单元格，均值与众数因此保持不变。
type DataCleaner struct {
	rules []CleaningRule

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器
func NewDataCleaner() *DataCleaner {
	cleaner := &DataCleaner{
		stats: CleaningStats{Issues: make(map[string]int64)},
	}
	cleaner.AddRule(NewFiniteValueRule())
	cleaner.AddRule(NewCategoricalDomainRule())
	cleaner.AddRule(NewEmptyRowRule())
	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
}

// Clean 清洗数据集，输入不会被修改
func (dc *DataCleaner) Clean(dataset ml.Dataset) (ml.Dataset, []QualityIssue) {
	cleaned := make(ml.Dataset, 0, len(dataset))
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for i, original := range dataset {
		dc.stats.TotalProcessed++
		row := copyRow(original)

		var rejected bool
		for _, rule := range dc.rules {
			before := len(row)
			next, err := rule.Apply(row)
			if err != nil {
				issues = append(issues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Row:       i + 1,
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
				rejected = true
				break
			}
			if len(next) != before {
				issues = append(issues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "low",
					Message:   fmt.Sprintf("%d cell(s) dropped", before-len(next)),
					Row:       i + 1,
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
			}
			row = next
		}

		if rejected {
			dc.stats.Rejected++
			continue
		}
		if len(row) != len(original) {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned = append(cleaned, row)
	}
	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

func copyRow(row ml.Row) ml.Row {
	out := make(ml.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// FiniteValueRule 移除 NaN 与 ±Inf
type FiniteValueRule struct{}

func NewFiniteValueRule() *FiniteValueRule {
	return &FiniteValueRule{}
}

func (r *FiniteValueRule) Name() string {
	return "finite_value"
}

func (r *FiniteValueRule) Apply(row ml.Row) (ml.Row, error) {
	for name, value := range row {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			delete(row, name)
		}
	}
	return row, nil
}

// CategoricalDomainRule 移除取值不在 {0, 1} 内的分类单元格
type CategoricalDomainRule struct{}

func NewCategoricalDomainRule() *CategoricalDomainRule {
	return &CategoricalDomainRule{}
}

func (r *CategoricalDomainRule) Name() string {
	return "categorical_domain"
}

func (r *CategoricalDomainRule) Apply(row ml.Row) (ml.Row, error) {
	for name, value := range row {
		f, ok := ml.LookupFeature(name)
		if !ok || f.Kind != ml.Categorical {
			continue
		}
		if value != 0 && value != 1 {
			delete(row, name)
		}
	}
	return row, nil
}

// EmptyRowRule 拒绝没有任何观测值的行
type EmptyRowRule struct{}

func NewEmptyRowRule() *EmptyRowRule {
	return &EmptyRowRule{}
}

func (r *EmptyRowRule) Name() string {
	return "empty_row"
}

func (r *EmptyRowRule) Apply(row ml.Row) (ml.Row, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("row has no observations")
	}
	return row, nil
}
