package ml

import "fmt"

type FeatureKind int

const (
	Continuous FeatureKind = iota
	Categorical
)

func (k FeatureKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("FeatureKind(%d)", int(k))
	}
}

func (k FeatureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Feature struct {
	Name string      `json:"name"`
	Kind FeatureKind `json:"kind"`
}

const featureCount = 19

// 顺序即模型输入顺序
var catalog = [featureCount]Feature{
	{Name: "HighBP", Kind: Categorical},
	{Name: "HighChol", Kind: Categorical},
	{Name: "CholCheck", Kind: Categorical},
	{Name: "BMI", Kind: Continuous},
	{Name: "Smoker", Kind: Categorical},
	{Name: "Stroke", Kind: Categorical},
	{Name: "HeartDiseaseorAttack", Kind: Categorical},
	{Name: "PhysActivity", Kind: Categorical},
	{Name: "Fruits", Kind: Categorical},
	{Name: "Veggies", Kind: Categorical},
	{Name: "HvyAlcoholConsump", Kind: Categorical},
	{Name: "AnyHealthcare", Kind: Categorical},
	{Name: "NoDocbcCost", Kind: Categorical},
	{Name: "GenHlth", Kind: Continuous},
	{Name: "MentHlth", Kind: Continuous},
	{Name: "DiffWalk", Kind: Categorical},
	{Name: "Sex", Kind: Categorical},
	{Name: "Age", Kind: Continuous},
	{Name: "Income", Kind: Continuous},
}

var featureIndex = func() map[string]int {
	index := make(map[string]int, len(catalog))
	for i, f := range catalog {
		index[f.Name] = i
	}
	return index
}()

func Features() []Feature {
	features := make([]Feature, len(catalog))
	copy(features, catalog[:])
	return features
}

func FeatureNames() []string {
	names := make([]string, len(catalog))
	for i, f := range catalog {
		names[i] = f.Name
	}
	return names
}

func LookupFeature(name string) (Feature, bool) {
	idx, ok := featureIndex[name]
	if !ok {
		return Feature{}, false
	}
	return catalog[idx], true
}
