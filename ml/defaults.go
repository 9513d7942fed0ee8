package ml

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/stat"
)

type Row map[string]float64

type Dataset []Row

// DefaultTable 每个特征一个默认值，构建后只读
type DefaultTable struct {
	values map[string]float64
}

// BuildDefaultTable 连续特征取均值，分类特征取众数；众数并列时取数据中先出现的值
func BuildDefaultTable(dataset Dataset) (*DefaultTable, error) {
	values := make(map[string]float64, len(catalog))
	var errs error
	for _, f := range catalog {
		var (
			value float64
			ok    bool
		)
		switch f.Kind {
		case Continuous:
			value, ok = columnMean(dataset, f.Name)
		case Categorical:
			value, ok = columnMode(dataset, f.Name)
		}
		if !ok {
			errs = multierr.Append(errs, &InsufficientDataError{Feature: f.Name})
			continue
		}
		values[f.Name] = value
	}
	if errs != nil {
		return nil, errs
	}
	return &DefaultTable{values: values}, nil
}

func NewDefaultTable(values map[string]float64) (*DefaultTable, error) {
	table := make(map[string]float64, len(catalog))
	for _, f := range catalog {
		value, ok := values[f.Name]
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, &InsufficientDataError{Feature: f.Name}
		}
		if f.Kind == Categorical {
			if _, ok := categoricalLabel(value); !ok {
				return nil, fmt.Errorf("default for %s must be 0 or 1, got %v", f.Name, value)
			}
		}
		table[f.Name] = value
	}
	for name := range values {
		if _, ok := featureIndex[name]; !ok {
			return nil, fmt.Errorf("unknown feature %s", name)
		}
	}
	return &DefaultTable{values: table}, nil
}

func (t *DefaultTable) Value(name string) (float64, bool) {
	value, ok := t.values[name]
	return value, ok
}

func (t *DefaultTable) Values() map[string]float64 {
	values := make(map[string]float64, len(t.values))
	for name, value := range t.values {
		values[name] = value
	}
	return values
}

func (t *DefaultTable) Len() int {
	return len(t.values)
}

func columnMean(dataset Dataset, name string) (float64, bool) {
	observed := make([]float64, 0, len(dataset))
	for _, row := range dataset {
		if value, ok := observation(row, name); ok {
			observed = append(observed, value)
		}
	}
	if len(observed) == 0 {
		return 0, false
	}
	return stat.Mean(observed, nil), true
}

func columnMode(dataset Dataset, name string) (float64, bool) {
	var counts [2]int
	first := -1
	for _, row := range dataset {
		value, ok := observation(row, name)
		if !ok {
			continue
		}
		label, ok := categoricalLabel(value)
		if !ok {
			continue
		}
		if first < 0 {
			first = label
		}
		counts[label]++
	}
	if first < 0 {
		return 0, false
	}
	other := 1 - first
	if counts[other] > counts[first] {
		return float64(other), true
	}
	return float64(first), true
}

func observation(row Row, name string) (float64, bool) {
	value, ok := row[name]
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func categoricalLabel(value float64) (int, bool) {
	switch value {
	case 0:
		return 0, true
	case 1:
		return 1, true
	default:
		return 0, false
	}
}
