// Package config reads the YAML configuration of the filterctl server and CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/filter"
)

type Config struct {
	Logger   LoggerConfig   `yaml:"logger"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	Filter   FilterConfig   `yaml:"filter"`
	Server   ServerConfig   `yaml:"server"`
	RBAC     RBACConfig     `yaml:"rbac"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type FilterConfig struct {
	// Level is "node", "value" or "all".
	Level  string `yaml:"level"`
	Locale string `yaml:"locale"`
	Header string `yaml:"header"`
	Param  string `yaml:"param"`
	// Roles are granted to every request when no role header is sent.
	Roles      []string `yaml:"roles"`
	RoleHeader string   `yaml:"role_header"`
	PerPage    int      `yaml:"per_page"`
	MaxPerPage int      `yaml:"max_per_page"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		Logger:   LoggerConfig{Level: "info", Type: "colored-text", Output: "stderr"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		Filter: FilterConfig{
			Level:      "all",
			Header:     filterable.DefaultFilterHeader,
			Param:      filterable.DefaultFilterParam,
			RoleHeader: "x-roles",
			PerPage:    20,
			MaxPerPage: 100,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		RBAC: RBACConfig{UserHeader: "x-user"},
	}
}

// Load reads a configuration file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document over the defaults and validates it.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	var errs []error
	if _, err := parseLevel(cfg.Logger.Level); err != nil {
		errs = append(errs, err)
	}
	switch cfg.Logger.Type {
	case "json", "text", "colored-text":
	default:
		errs = append(errs, fmt.Errorf("invalid log type: %s", cfg.Logger.Type))
	}
	if _, err := cfg.Dialect(); err != nil {
		errs = append(errs, err)
	}
	if _, err := filter.ParseLevel(cfg.Filter.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Filter.PerPage <= 0 || cfg.Filter.MaxPerPage < cfg.Filter.PerPage {
		errs = append(errs, fmt.Errorf("invalid page sizes: per_page %d, max_per_page %d", cfg.Filter.PerPage, cfg.Filter.MaxPerPage))
	}
	if cfg.Filter.Header == "" && cfg.Filter.Param == "" {
		errs = append(errs, fmt.Errorf("filter header and param cannot both be empty"))
	}
	if cfg.RBAC.Enabled() {
		if _, err := cfg.RBAC.Build(); err != nil {
			errs = append(errs, fmt.Errorf("invalid rbac: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Dialect returns the rendering dialect of the configured driver.
func (cfg Config) Dialect() (filter.DialectName, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return filter.DialectSQLite, nil
	case "postgres":
		return filter.DialectPostgres, nil
	default:
		return "", fmt.Errorf("invalid database driver: %s", cfg.Database.Driver)
	}
}

// Level returns the configured validation level.
func (cfg Config) Level() filter.Level {
	level, err := filter.ParseLevel(cfg.Filter.Level)
	if err != nil {
		return filter.LevelAll
	}
	return level
}

// Transport returns where requests carry their filter.
func (cfg Config) Transport() filterable.Transport {
	return filterable.Transport{Header: cfg.Filter.Header, Param: cfg.Filter.Param}
}

// NewLogger builds the configured logger. A nil w writes to the configured output.
func (cfg LoggerConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if w == nil {
		switch cfg.Output {
		case "", "stderr":
			w = os.Stderr
		case "stdout":
			w = os.Stdout
		default:
			return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
		}
	}

	var handler slog.Handler
	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}
