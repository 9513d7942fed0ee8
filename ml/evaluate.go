package ml

import (
	"errors"
	"fmt"
	"strconv"
)

type Evaluation struct {
	Count     int     `json:"count"`
	Skipped   int     `json:"skipped"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Evaluate 按请求同样的解析路径逐行打分，被拒绝的行计入 Skipped
func Evaluate(p *Predictor, dataset Dataset, labels []int) (Evaluation, error) {
	if len(dataset) != len(labels) {
		return Evaluation{}, fmt.Errorf("%d rows but %d labels", len(dataset), len(labels))
	}

	var (
		result            Evaluation
		correct           int
		truePositive      int
		predictedPositive int
		actualPositive    int
	)
	for i, row := range dataset {
		overrides := make(Overrides, len(row))
		for name, value := range row {
			overrides[name] = strconv.FormatFloat(value, 'g', -1, 64)
		}
		prediction, err := p.Predict(overrides)
		if err != nil {
			var invalid *InvalidFeatureValueError
			if errors.As(err, &invalid) {
				result.Skipped++
				continue
			}
			return Evaluation{}, fmt.Errorf("row %d: %w", i+1, err)
		}

		result.Count++
		if prediction.Class == labels[i] {
			correct++
		}
		if prediction.Class == 1 {
			predictedPositive++
		}
		if labels[i] == 1 {
			actualPositive++
			if prediction.Class == 1 {
				truePositive++
			}
		}
	}

	if result.Count > 0 {
		result.Accuracy = float64(correct) / float64(result.Count)
	}
	if predictedPositive > 0 {
		result.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		result.Recall = float64(truePositive) / float64(actualPositive)
	}
	return result, nil
}
