package ml

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

type Overrides map[string]string

// OverridesFromQuery 每个已知特征取第一个值，其余参数忽略
func OverridesFromQuery(query url.Values) Overrides {
	overrides := make(Overrides)
	for _, f := range catalog {
		values, ok := query[f.Name]
		if !ok || len(values) == 0 {
			continue
		}
		overrides[f.Name] = values[0]
	}
	return overrides
}

// FeatureVector 按特征顺序排列的完整模型输入，可作为 map 键
type FeatureVector struct {
	values [featureCount]float64
}

func NewFeatureVector(values map[string]float64) (FeatureVector, error) {
	var vector FeatureVector
	for i, f := range catalog {
		value, ok := values[f.Name]
		if !ok {
			return FeatureVector{}, &InsufficientDataError{Feature: f.Name}
		}
		vector.values[i] = value
	}
	return vector, nil
}

func (v FeatureVector) Value(name string) (float64, bool) {
	idx, ok := featureIndex[name]
	if !ok {
		return 0, false
	}
	return v.values[idx], true
}

func (v FeatureVector) Values() []float64 {
	values := make([]float64, len(v.values))
	copy(values, v.values[:])
	return values
}

func (v FeatureVector) Map() map[string]float64 {
	values := make(map[string]float64, len(catalog))
	for i, f := range catalog {
		values[f.Name] = v.values[i]
	}
	return values
}

// Resolve 优先使用请求值，缺失时取默认值；请求值转换失败直接报错，不回退默认值
func Resolve(overrides Overrides, defaults *DefaultTable) (FeatureVector, error) {
	if defaults == nil {
		return FeatureVector{}, errors.New("default table is nil")
	}
	var vector FeatureVector
	for i, f := range catalog {
		raw, supplied := overrides[f.Name]
		if !supplied {
			value, ok := defaults.Value(f.Name)
			if !ok {
				return FeatureVector{}, &InsufficientDataError{Feature: f.Name}
			}
			vector.values[i] = value
			continue
		}
		value, err := coerce(f, raw)
		if err != nil {
			return FeatureVector{}, err
		}
		vector.values[i] = value
	}
	return vector, nil
}

func coerce(f Feature, raw string) (float64, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, &InvalidFeatureValueError{Feature: f.Name, Value: raw, Reason: "empty value"}
	}
	if isHexLiteral(text) {
		return 0, &InvalidFeatureValueError{Feature: f.Name, Value: raw, Reason: "not a decimal number"}
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &InvalidFeatureValueError{Feature: f.Name, Value: raw, Reason: "not a number"}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &InvalidFeatureValueError{Feature: f.Name, Value: raw, Reason: "not a finite number"}
	}
	if f.Kind == Categorical {
		label, ok := categoricalLabel(value)
		if !ok {
			return 0, &InvalidFeatureValueError{Feature: f.Name, Value: raw, Reason: "must be 0 or 1"}
		}
		return float64(label), nil
	}
	return value, nil
}

// isHexLiteral 检测 ParseFloat 也能接受的十六进制写法，如 0x1p0
func isHexLiteral(text string) bool {
	text = strings.TrimLeft(text, "+-")
	return len(text) >= 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X')
}
