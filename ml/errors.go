package ml

import "fmt"

// InsufficientDataError 参考数据中某特征没有可用观测值
type InsufficientDataError struct {
	Feature string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("no usable observations for feature %s", e.Feature)
}

// InvalidFeatureValueError 请求参数无法转换为特征类型
type InvalidFeatureValueError struct {
	Feature string
	Value   string
	Reason  string
}

func (e *InvalidFeatureValueError) Error() string {
	return fmt.Sprintf("invalid value %q for feature %s: %s", e.Value, e.Feature, e.Reason)
}

// ScoringError 模型打分失败
type ScoringError struct {
	Err error
}

func (e *ScoringError) Error() string {
	return "scoring failed: " + e.Err.Error()
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}
