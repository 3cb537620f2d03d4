package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperterse/querygate/core/domain"
)

// DefaultConfigFile is looked up when no --file flag is given
const DefaultConfigFile = "querygate.yaml"

// Config is the root of the YAML configuration file
type Config struct {
	Name        string                      `yaml:"name"`
	Server      ServerConfig                `yaml:"server"`
	Translator  TranslatorConfig            `yaml:"translator"`
	Telemetry   TelemetryConfig             `yaml:"telemetry"`
	DataSources map[string]DataSourceConfig `yaml:"data_sources"`
}

// ServerConfig holds the HTTP server and gateway settings
type ServerConfig struct {
	Port           string          `yaml:"port"`
	LogLevel       int             `yaml:"log_level"`
	ConnectTimeout time.Duration   `yaml:"connect_timeout"`
	ExecuteTimeout time.Duration   `yaml:"execute_timeout"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	CORS           CORSConfig      `yaml:"cors"`
}

// RateLimitConfig enables the Redis-backed request limiter
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	RedisURL          string `yaml:"redis_url"`
}

// CORSConfig lists the origins allowed to call the HTTP API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TranslatorConfig points at the text-generation service used by ask
type TranslatorConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TelemetryConfig controls OTLP export of traces and metrics. Empty fields
// keep the built-in defaults; QUERYGATE_OTEL_* variables override all of it.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Secure      bool   `yaml:"secure"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	// nil means sample everything
	SamplingRatio *float64 `yaml:"sampling_ratio"`
}

// DataSourceConfig is one entry of data_sources. Port is a string so it can
// carry an {{ env.X }} placeholder.
type DataSourceConfig struct {
	Type             string            `yaml:"type"`
	ConnectionMode   string            `yaml:"connection_mode"`
	Host             string            `yaml:"host"`
	Port             string            `yaml:"port"`
	Username         string            `yaml:"username"`
	Password         string            `yaml:"password"`
	Database         string            `yaml:"database"`
	ConnectionString string            `yaml:"connection_string"`
	Options          map[string]string `yaml:"options"`
}

// ParseYAML decodes configuration content. Unknown keys are rejected so
// typos surface instead of silently falling back to defaults.
func ParseYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if cfg.DataSources == nil {
		cfg.DataSources = map[string]DataSourceConfig{}
	}
	return cfg, nil
}

// LoadConfig reads, parses, substitutes and validates the file at path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	if err := SubstituteEnvVarsInConfig(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Descriptor converts the entry registered under name into a domain descriptor
func (c DataSourceConfig) Descriptor(name string) (domain.DataSourceDescriptor, error) {
	d := domain.DataSourceDescriptor{
		Name:     name,
		Engine:   domain.ParseEngineType(c.Type),
		Mode:     domain.ConnectionMode(strings.ToLower(strings.TrimSpace(c.ConnectionMode))),
		Host:     c.Host,
		Username: c.Username,
		Password: c.Password,
		Database: c.Database,
		URL:      c.ConnectionString,
		Options:  c.Options,
	}
	if port := strings.TrimSpace(c.Port); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return d, fmt.Errorf("port '%s' is not a number", c.Port)
		}
		d.Port = n
	}
	return d, nil
}

// Descriptors converts every data source, sorted by name
func (c *Config) Descriptors() ([]domain.DataSourceDescriptor, error) {
	names := slices.Sorted(maps.Keys(c.DataSources))
	out := make([]domain.DataSourceDescriptor, 0, len(names))
	for _, name := range names {
		d, err := c.DataSources[name].Descriptor(name)
		if err != nil {
			return nil, fmt.Errorf("data source '%s': %w", name, err)
		}
		out = append(out, d)
	}
	return out, nil
}
