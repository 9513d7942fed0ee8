package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"diabetesrisk/ml"
)

// ErrNoFeatureColumns 表头中没有任何已知特征列
var ErrNoFeatureColumns = errors.New("reference data has no known feature columns")

// ReadCSV 读取参考数据集
//
// 表头按名称匹配特征目录，未知列被忽略。空单元格、NA 与 NaN 视为缺失。
// 文件开头的 UTF-8 BOM 会被剥离。
func ReadCSV(r io.Reader) (ml.Dataset, error) {
	dataset, _, err := readCSV(r, "")
	return dataset, err
}

// ReadLabeledCSV 读取带标签列的数据集，标签必须为 0 或 1
func ReadLabeledCSV(r io.Reader, labelColumn string) (ml.Dataset, []int, error) {
	if labelColumn == "" {
		return nil, nil, errors.New("label column is required")
	}
	return readCSV(r, labelColumn)
}

func readCSV(r io.Reader, labelColumn string) (ml.Dataset, []int, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("reference data is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[int]string)
	seen := make(map[string]bool)
	labelIdx := -1
	for i, name := range header {
		name = strings.TrimSpace(name)
		if labelColumn != "" && name == labelColumn {
			labelIdx = i
			continue
		}
		if _, ok := ml.LookupFeature(name); !ok {
			continue
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("duplicate column %s", name)
		}
		seen[name] = true
		columns[i] = name
	}
	if len(columns) == 0 {
		return nil, nil, ErrNoFeatureColumns
	}
	if labelColumn != "" && labelIdx < 0 {
		return nil, nil, fmt.Errorf("label column %s not found", labelColumn)
	}

	var (
		dataset ml.Dataset
		labels  []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read reference data: %w", err)
		}
		line, _ := reader.FieldPos(0)

		row := make(ml.Row, len(columns))
		for i, name := range columns {
			cell := strings.TrimSpace(record[i])
			if isMissing(cell) {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d, column %s: invalid value %q", line, name, cell)
			}
			row[name] = value
		}
		if labelIdx >= 0 {
			label, err := strconv.ParseFloat(strings.TrimSpace(record[labelIdx]), 64)
			if err != nil || (label != 0 && label != 1) {
				return nil, nil, fmt.Errorf("line %d, column %s: label must be 0 or 1", line, labelColumn)
			}
			labels = append(labels, int(label))
		}
		dataset = append(dataset, row)
	}
	return dataset, labels, nil
}

// ReadCSVFile 读取指定路径的参考数据集
func ReadCSVFile(path string) (ml.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func isMissing(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}
