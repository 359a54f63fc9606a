// Package config loads promptlib settings from a YAML file, an optional .env
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendDuckDB     = "duckdb"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
)

// Defaults.
const (
	DefaultAddr       = ":8080"
	DefaultDuckDBPath = "./promptlib.db"
	DefaultSQLitePath = "./promptlib.sqlite"
	DefaultStaticDir  = "./static"
	DefaultLogLevel   = "info"
	DefaultConfigPath = "promptlib.yaml"
)

// Config holds every runtime setting.
type Config struct {
	Addr        string           `yaml:"addr"`
	Backend     string           `yaml:"backend"`
	DuckDBPath  string           `yaml:"duckdb_path"`
	SQLitePath  string           `yaml:"sqlite_path"`
	StaticDir   string           `yaml:"static_dir"`
	WatchImport string           `yaml:"watch_import"`
	LogLevel    string           `yaml:"log_level"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig is the connection to a ClickHouse server.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Secure   bool   `yaml:"secure"`
}

// UseTLS reports whether the connection needs TLS: either requested
// explicitly or implied by the secure native port 9440.
func (c ClickHouseConfig) UseTLS() bool {
	return c.Secure || strings.Contains(c.Host, ":9440")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:       DefaultAddr,
		Backend:    BackendDuckDB,
		DuckDBPath: DefaultDuckDBPath,
		SQLitePath: DefaultSQLitePath,
		StaticDir:  DefaultStaticDir,
		LogLevel:   DefaultLogLevel,
		ClickHouse: ClickHouseConfig{
			Host:     "localhost:9000",
			User:     "default",
			Database: "default",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. A missing file is not an error. Variables from a .env
// file in the working directory are loaded first but never override
// variables already set.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file, skipping it when absent.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "PROMPTLIB_ADDR")
	setString(&c.Backend, "PROMPTLIB_BACKEND")
	setString(&c.DuckDBPath, "DUCKDB_PATH")
	setString(&c.SQLitePath, "SQLITE_PATH")
	setString(&c.StaticDir, "PROMPTLIB_STATIC_DIR")
	setString(&c.WatchImport, "PROMPTLIB_WATCH_IMPORT")
	setString(&c.LogLevel, "PROMPTLIB_LOG_LEVEL")
	setString(&c.ClickHouse.Host, "CLICKHOUSE_HOST")
	setString(&c.ClickHouse.User, "CLICKHOUSE_USER")
	setString(&c.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	setString(&c.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	if v := os.Getenv("CLICKHOUSE_SECURE"); v != "" {
		c.ClickHouse.Secure = v == "true" || v == "1"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the configuration can be used to start promptlib.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	switch c.Backend {
	case BackendDuckDB:
		if c.DuckDBPath == "" {
			return errors.New("duckdb_path is required for the duckdb backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required for the sqlite backend")
		}
	case BackendClickHouse:
		if c.ClickHouse.Host == "" {
			return errors.New("clickhouse.host is required for the clickhouse backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// Level returns the zerolog level for LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
