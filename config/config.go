package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"diabetesrisk/logging"
	"diabetesrisk/ml"
	"diabetesrisk/pipeline"
)

// DefaultPath 未设置 CONFIG_FILE 时读取的配置文件
const DefaultPath = "config.yaml"

// Config 服务配置
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       logging.Config  `yaml:"log"`
	Model     ModelConfig     `yaml:"model"`
	Reference ReferenceConfig `yaml:"reference"`
	Cache     CacheConfig     `yaml:"cache"`
	Reload    ReloadConfig    `yaml:"reload"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type ModelConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

type ReferenceConfig struct {
	Source string `yaml:"source"` // csv, sqlite
	Path   string `yaml:"path"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type ReloadConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// MonitorConfig 实时监控推送（/ws/monitor）配置
type MonitorConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: logging.Config{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Model: ModelConfig{
			Type: ml.ModelLogisticRegression,
			Path: "models/logistic_regression.json",
		},
		Reference: ReferenceConfig{
			Source: pipeline.SourceCSV,
			Path:   "data/reference_sample.csv",
		},
		Cache:   CacheConfig{Size: 1024},
		Reload:  ReloadConfig{Debounce: 500 * time.Millisecond},
		Monitor: MonitorConfig{Enabled: true, Heartbeat: 30 * time.Second},
	}
}

// Load 在默认配置之上读取 YAML 文件并应用环境变量覆盖。
// 只有默认路径的文件可以不存在。
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path 返回 CONFIG_FILE 或 DefaultPath
func Path() string {
	return getEnv("CONFIG_FILE", DefaultPath)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Model.Type = getEnv("MODEL_TYPE", c.Model.Type)
	c.Model.Path = getEnv("MODEL_PATH", c.Model.Path)
	c.Reference.Source = getEnv("REFERENCE_SOURCE", c.Reference.Source)
	c.Reference.Path = getEnv("REFERENCE_PATH", c.Reference.Path)
	return nil
}

// Validate 一次性报告全部配置问题
func (c *Config) Validate() error {
	var errs error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if !knownModelType(c.Model.Type) {
		errs = multierr.Append(errs, fmt.Errorf("model.type %q is not one of %v", c.Model.Type, ml.ModelTypes()))
	}
	if c.Model.Path == "" {
		errs = multierr.Append(errs, errors.New("model.path is required"))
	}
	if c.Reference.Source != pipeline.SourceCSV && c.Reference.Source != pipeline.SourceSQLite {
		errs = multierr.Append(errs, fmt.Errorf("reference.source %q must be csv or sqlite", c.Reference.Source))
	}
	if c.Reference.Path == "" {
		errs = multierr.Append(errs, errors.New("reference.path is required"))
	}
	if c.Cache.Size < 0 {
		errs = multierr.Append(errs, errors.New("cache.size must not be negative"))
	}
	if c.Monitor.Heartbeat < 0 {
		errs = multierr.Append(errs, errors.New("monitor.heartbeat must not be negative"))
	}
	return errs
}

func knownModelType(t string) bool {
	for _, known := range ml.ModelTypes() {
		if t == known {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
