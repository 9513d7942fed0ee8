package pipeline

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"diabetesrisk/ml"
)

func TestReadCSVFile(t *testing.T) {
	dataset, err := ReadCSVFile(filepath.Join("testdata", "reference.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dataset) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(dataset))
	}

	row := dataset[0]
	if row["BMI"] != 40 || row["Age"] != 9 || row["HighBP"] != 1 {
		t.Fatalf("unexpected first row: %v", row)
	}
	if _, ok := row["PhysHlth"]; ok {
		t.Fatal("unknown columns must be ignored")
	}
	if _, ok := row["Diabetes_binary"]; ok {
		t.Fatal("label column must be ignored")
	}
	if len(row) != 19 {
		t.Fatalf("expected 19 features, got %d", len(row))
	}
}

func TestReadCSVMissingCells(t *testing.T) {
	input := "BMI,Smoker,Age\n30,,NA\n NaN ,1,5\n"
	dataset, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dataset) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(dataset))
	}
	if _, ok := dataset[0]["Smoker"]; ok {
		t.Fatal("empty cell must be missing")
	}
	if _, ok := dataset[0]["Age"]; ok {
		t.Fatal("NA must be missing")
	}
	if _, ok := dataset[1]["BMI"]; ok {
		t.Fatal("NaN must be missing")
	}
	if dataset[1]["Age"] != 5 {
		t.Fatalf("expected Age 5, got %v", dataset[1]["Age"])
	}
}

func TestReadCSVStripsBOM(t *testing.T) {
	input := "\xef\xbb\xbfHighBP,BMI\n1,22.5\n"
	dataset, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset[0]["HighBP"] != 1 {
		t.Fatalf("expected HighBP column to be recognised, got %v", dataset[0])
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty"},
		{"no known columns", "foo,bar\n1,2\n", "no known feature columns"},
		{"bad cell", "BMI,Age\n30,5\nheavy,6\n", "line 3, column BMI"},
		{"duplicate column", "BMI,BMI\n1,2\n", "duplicate column"},
		{"ragged row", "BMI,Age\n30\n", "read reference data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	_, err := ReadCSV(strings.NewReader("Education\n4\n"))
	if !errors.Is(err, ErrNoFeatureColumns) {
		t.Fatalf("expected ErrNoFeatureColumns, got %v", err)
	}
}

func TestReadCSVFeedsDefaults(t *testing.T) {
	dataset, err := ReadCSVFile(filepath.Join("testdata", "reference.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table, err := ml.BuildDefaultTable(dataset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := table.Value("BMI"); math.Abs(got-28.8) > 1e-9 {
		t.Fatalf("expected BMI mean 28.8, got %v", got)
	}
	if got, _ := table.Value("Smoker"); got != 0 {
		t.Fatalf("expected Smoker mode 0, got %v", got)
	}
	if got, _ := table.Value("HighBP"); got != 1 {
		t.Fatalf("expected HighBP mode 1, got %v", got)
	}
}

func TestReadLabeledCSV(t *testing.T) {
	input := "Diabetes_binary,BMI,Smoker\n1,35,1\n0.0,22,\n"
	dataset, labels, err := ReadLabeledCSV(strings.NewReader(input), "Diabetes_binary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dataset) != 2 || len(labels) != 2 {
		t.Fatalf("expected 2 rows and labels, got %d and %d", len(dataset), len(labels))
	}
	if labels[0] != 1 || labels[1] != 0 {
		t.Fatalf("unexpected labels: %v", labels)
	}
	if _, ok := dataset[0]["Diabetes_binary"]; ok {
		t.Fatal("label must not appear as a feature")
	}
	if dataset[0]["BMI"] != 35 {
		t.Fatalf("unexpected row: %v", dataset[0])
	}
}

func TestReadLabeledCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		label string
		want  string
	}{
		{"no label name", "BMI\n30\n", "", "label column is required"},
		{"missing label column", "BMI\n30\n", "Diabetes_binary", "not found"},
		{"bad label", "Diabetes_binary,BMI\n2,30\n", "Diabetes_binary", "label must be 0 or 1"},
		{"empty label", "Diabetes_binary,BMI\n,30\n", "Diabetes_binary", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadLabeledCSV(strings.NewReader(tt.input), tt.label)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
