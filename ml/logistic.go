package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

type LogisticRegression struct {
	intercept float64
	weights   [featureCount]float64
	trained   bool
}

type logisticArtifact struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

func NewLogisticRegression(intercept float64, coefficients map[string]float64) (*LogisticRegression, error) {
	model := &LogisticRegression{}
	if err := model.set(logisticArtifact{Intercept: intercept, Coefficients: coefficients}); err != nil {
		return nil, err
	}
	return model, nil
}

func (m *LogisticRegression) Score(vector FeatureVector) (float64, error) {
	if !m.trained {
		return 0, errors.New("model not loaded")
	}
	z := m.intercept + floats.Dot(m.weights[:], vector.values[:])
	return sigmoid(z), nil
}

func (m *LogisticRegression) Save(path string) error {
	if !m.trained {
		return errors.New("model not loaded")
	}
	artifact := logisticArtifact{
		Intercept:    m.intercept,
		Coefficients: make(map[string]float64, len(catalog)),
	}
	for i, f := range catalog {
		artifact.Coefficients[f.Name] = m.weights[i]
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (m *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var artifact logisticArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return fmt.Errorf("decode logistic regression: %w", err)
	}
	return m.set(artifact)
}

func (m *LogisticRegression) set(artifact logisticArtifact) error {
	if math.IsNaN(artifact.Intercept) || math.IsInf(artifact.Intercept, 0) {
		return errors.New("intercept must be finite")
	}
	var weights [featureCount]float64
	for i, f := range catalog {
		w, ok := artifact.Coefficients[f.Name]
		if !ok {
			return fmt.Errorf("missing coefficient for %s", f.Name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("coefficient for %s must be finite", f.Name)
		}
		weights[i] = w
	}
	for name := range artifact.Coefficients {
		if _, ok := featureIndex[name]; !ok {
			return fmt.Errorf("coefficient for unknown feature %s", name)
		}
	}
	m.intercept = artifact.Intercept
	m.weights = weights
	m.trained = true
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
