package ml

// referenceRow returns a complete respondent; overrides replace single cells.
func referenceRow(overrides map[string]float64) Row {
	row := Row{
		"HighBP":               1,
		"HighChol":             0,
		"CholCheck":            1,
		"BMI":                  28,
		"Smoker":               0,
		"Stroke":               0,
		"HeartDiseaseorAttack": 0,
		"PhysActivity":         1,
		"Fruits":               1,
		"Veggies":              1,
		"HvyAlcoholConsump":    0,
		"AnyHealthcare":        1,
		"NoDocbcCost":          0,
		"GenHlth":              3,
		"MentHlth":             2,
		"DiffWalk":             0,
		"Sex":                  1,
		"Age":                  9,
		"Income":               6,
	}
	for name, value := range overrides {
		row[name] = value
	}
	return row
}

func sampleDefaults(t interface{ Fatalf(string, ...any) }) *DefaultTable {
	table, err := BuildDefaultTable(Dataset{
		referenceRow(nil),
		referenceRow(map[string]float64{"BMI": 32, "Smoker": 1, "Age": 11}),
		referenceRow(map[string]float64{"BMI": 24, "HighBP": 0, "Age": 7}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return table
}

type countingModel struct {
	probability float64
	calls       int
	last        FeatureVector
}

func (m *countingModel) Score(vector FeatureVector) (float64, error) {
	m.calls++
	m.last = vector
	return m.probability, nil
}
