package ml

import (
	"fmt"
	"math"
)

// Model 已训练的二分类模型，Score 返回正类概率
type Model interface {
	Score(vector FeatureVector) (float64, error)
}

type ModelFunc func(vector FeatureVector) (float64, error)

func (f ModelFunc) Score(vector FeatureVector) (float64, error) {
	return f(vector)
}

func score(model Model, vector FeatureVector) (probability float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			probability = 0
			err = &ScoringError{Err: fmt.Errorf("model panicked: %v", r)}
		}
	}()

	probability, err = model.Score(vector)
	if err != nil {
		return 0, &ScoringError{Err: err}
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return 0, &ScoringError{Err: fmt.Errorf("probability %v outside [0, 1]", probability)}
	}
	return probability, nil
}
