package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"diabetesrisk/ml"
)

const referenceTable = "reference_rows"

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath    string `yaml:"db_path"`
	EnableWAL bool   `yaml:"enable_wal"`
}

// ReferenceStore 参考数据集的 SQLite 存储
//
// 每个特征占一列，缺失值存为 NULL。
type ReferenceStore struct {
	config  StorageConfig
	db      *sql.DB
	columns []string
}

// OpenReferenceStore 打开（必要时创建）参考数据库
func OpenReferenceStore(config StorageConfig) (*ReferenceStore, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if err := ensureDir(filepath.Dir(config.DBPath)); err != nil {
		return nil, err
	}

	dsn := config.DBPath
	if config.EnableWAL {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	} else {
		dsn += "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &ReferenceStore{
		config:  config,
		db:      db,
		columns: ml.FeatureNames(),
	}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return store, nil
}

func (s *ReferenceStore) createTable() error {
	defs := make([]string, 0, len(s.columns)+1)
	defs = append(defs, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, name := range s.columns {
		defs = append(defs, quoteIdent(name)+" REAL")
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", referenceTable, strings.Join(defs, ",\n    "))
	_, err := s.db.Exec(query)
	return err
}

// SaveRows 批量写入参考数据，返回写入行数
func (s *ReferenceStore) SaveRows(ctx context.Context, dataset ml.Dataset) (int, error) {
	if len(dataset) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(s.columns))
	for i, name := range s.columns {
		quoted[i] = quoteIdent(name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", referenceTable, strings.Join(quoted, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))
	for _, row := range dataset {
		for i, name := range s.columns {
			value, ok := row[name]
			args[i] = sql.NullFloat64{
				Float64: value,
				Valid:   ok && !math.IsNaN(value) && !math.IsInf(value, 0),
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert reference row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit failed: %w", err)
	}
	return len(dataset), nil
}

// LoadRows 按写入顺序读取全部参考数据
func (s *ReferenceStore) LoadRows(ctx context.Context) (ml.Dataset, error) {
	quoted := make([]string, len(s.columns))
	for i, name := range s.columns {
		quoted[i] = quoteIdent(name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(quoted, ", "), referenceTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := make([]sql.NullFloat64, len(s.columns))
	dest := make([]any, len(s.columns))
	for i := range cells {
		dest[i] = &cells[i]
	}

	var dataset ml.Dataset
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(ml.Row, len(s.columns))
		for i, name := range s.columns {
			if cells[i].Valid {
				row[name] = cells[i].Float64
			}
		}
		dataset = append(dataset, row)
	}
	return dataset, rows.Err()
}

// Count 返回已存储的行数
func (s *ReferenceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+referenceTable).Scan(&n)
	return n, err
}

// Clear 删除全部参考数据
func (s *ReferenceStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+referenceTable)
	return err
}

// Close 关闭数据库
func (s *ReferenceStore) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ensureDir 确保目录存在
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
