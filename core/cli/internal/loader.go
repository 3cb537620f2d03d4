package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hyperterse/querygate/core/logger"
	"github.com/hyperterse/querygate/core/parser"
)

// LoadConfig loads, substitutes and validates the configuration file. When
// optional is set a missing file yields an empty configuration.
func LoadConfig(filePath string, optional bool) (*parser.Config, error) {
	if _, err := os.Stat(filePath); optional && errors.Is(err, fs.ErrNotExist) {
		return &parser.Config{DataSources: map[string]parser.DataSourceConfig{}}, nil
	}
	cfg, err := parser.LoadConfig(filePath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromString parses and validates configuration given inline
func LoadConfigFromString(yamlContent string) (*parser.Config, error) {
	cfg, err := parser.ParseYAML([]byte(yamlContent))
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := parser.SubstituteEnvVarsInConfig(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := parser.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePort resolves the port from CLI flag, config file, env var, or default
func ResolvePort(cliPort string, cfg *parser.Config) string {
	if cliPort != "" {
		return cliPort
	}
	if cfg != nil && cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

// ResolveLogLevel resolves the log level from verbose flag, CLI flag, config file, or default
func ResolveLogLevel(verbose bool, cliLogLevel int, cfg *parser.Config) int {
	if verbose {
		return logger.LogLevelDebug
	}
	if cliLogLevel > 0 {
		return cliLogLevel
	}
	if cfg != nil && cfg.Server.LogLevel > 0 {
		return cfg.Server.LogLevel
	}
	return logger.LogLevelInfo
}
