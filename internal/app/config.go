package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-pathopt/internal/data/db"
	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/pathopt"
	"github.com/yungbote/neurobridge-pathopt/internal/observability"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/envutil"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/redisdb"
)

type SourceConfig struct {
	Kind SourceKind `yaml:"kind"`
	// Corpus file for kind file, database file for kind sqlite.
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Prometheus textfile written on Close.
	Textfile string `yaml:"textfile"`
}

type Config struct {
	LogMode   string                   `yaml:"log_mode"`
	Source    SourceConfig             `yaml:"source"`
	Database  db.Config                `yaml:"database"`
	Neo4j     neo4jdb.Config           `yaml:"neo4j"`
	Redis     redisdb.Config           `yaml:"redis"`
	Optimizer pathopt.Config           `yaml:"optimizer"`
	Otel      observability.OtelConfig `yaml:"otel"`
	Metrics   MetricsConfig            `yaml:"metrics"`
}

// LoadConfig reads path (when non-empty and present) and then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	path = strings.TrimSpace(path)
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if cfg, err = ParseConfig(raw); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	return cfg.WithEnv(), nil
}

// ParseConfig decodes YAML, rejecting unknown keys.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// WithEnv overlays environment variables and fills defaults.
func (c Config) WithEnv() Config {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	if c.LogMode == "" {
		c.LogMode = "development"
	}
	c.Source.Kind = SourceKind(strings.ToLower(envutil.String("PATHOPT_SOURCE", string(c.Source.Kind))))
	c.Source.Path = envutil.String("PATHOPT_SOURCE_PATH", c.Source.Path)
	if c.Source.Kind == "" {
		c.Source.Kind = SourceFile
	}
	c.Database = db.ConfigFromEnv(c.Database)
	c.Neo4j = neo4jdb.ConfigFromEnv(c.Neo4j)
	c.Redis = redisdb.ConfigFromEnv(c.Redis)
	c.Optimizer = pathopt.ConfigFromEnv(c.Optimizer)
	c.Otel = observability.OtelConfigFromEnv(c.Otel)
	c.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Textfile = envutil.String("METRICS_TEXTFILE", c.Metrics.Textfile)
	if c.Metrics.Textfile != "" {
		c.Metrics.Enabled = true
	}
	return c
}
