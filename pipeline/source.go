package pipeline

import (
	"context"
	"fmt"
	"os"

	"diabetesrisk/ml"
)

const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Source 参考数据来源
type Source interface {
	Load(ctx context.Context) (ml.Dataset, error)
	// Path 返回需要监听变更的文件
	Path() string
}

// NewSource 按类型创建数据来源
func NewSource(kind, path string) (Source, error) {
	switch kind {
	case SourceCSV, "":
		return &CSVSource{path: path}, nil
	case SourceSQLite:
		return &SQLiteSource{config: StorageConfig{DBPath: path}}, nil
	default:
		return nil, fmt.Errorf("unsupported reference source %q", kind)
	}
}

// CSVSource 从 CSV 文件读取
type CSVSource struct {
	path string
}

func (s *CSVSource) Load(ctx context.Context) (ml.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadCSVFile(s.path)
}

func (s *CSVSource) Path() string {
	return s.path
}

// SQLiteSource 从参考数据库读取
type SQLiteSource struct {
	config StorageConfig
}

func (s *SQLiteSource) Load(ctx context.Context) (ml.Dataset, error) {
	if _, err := os.Stat(s.config.DBPath); err != nil {
		return nil, err
	}
	store, err := OpenReferenceStore(s.config)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LoadRows(ctx)
}

func (s *SQLiteSource) Path() string {
	return s.config.DBPath
}
