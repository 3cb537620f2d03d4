package parser

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/logger"
)

var (
	// log is the logger instance for the parser package
	log = logger.New("parser")

	// Data source names must start with a letter
	namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors struct {
	Errors []string
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ""
	}
	if len(ve.Errors) == 1 {
		return ve.Errors[0]
	}
	return fmt.Sprintf("validation failed with %d error(s)", len(ve.Errors))
}

// Validate checks server settings and every data source. Engines without an
// adapter (Oracle) are accepted here; the gateway rejects them per call.
func Validate(cfg *Config) error {
	log.Debugf("Validating configuration")
	var errors []string

	if cfg.Server.LogLevel < 0 || cfg.Server.LogLevel > 4 {
		errors = append(errors, fmt.Sprintf("server.log_level %d is invalid. Must be between 1 (ERROR) and 4 (DEBUG)", cfg.Server.LogLevel))
	}
	if cfg.Server.ConnectTimeout < 0 || cfg.Server.ExecuteTimeout < 0 {
		errors = append(errors, "server timeouts must not be negative")
	}
	if cfg.Server.ConnectTimeout > 0 && cfg.Server.ExecuteTimeout > 0 && cfg.Server.ExecuteTimeout < cfg.Server.ConnectTimeout {
		errors = append(errors, "server.execute_timeout must not be shorter than server.connect_timeout")
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		if rl.RequestsPerMinute <= 0 {
			errors = append(errors, "server.rate_limit.requests_per_minute must be positive when rate limiting is enabled")
		}
		if rl.RedisURL == "" {
			errors = append(errors, "server.rate_limit.redis_url is required when rate limiting is enabled")
		}
	}
	if r := cfg.Telemetry.SamplingRatio; r != nil && (*r < 0 || *r > 1) {
		errors = append(errors, fmt.Sprintf("telemetry.sampling_ratio %g is invalid. Must be between 0 and 1", *r))
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.DataSources)) {
		ds := cfg.DataSources[name]
		if !namePattern.MatchString(name) {
			errors = append(errors, fmt.Sprintf("Data source '%s' - name is invalid. Must start with a letter and can contain letters, numbers, hyphens, and underscores", name))
		}
		if ds.Type == "" {
			errors = append(errors, fmt.Sprintf("Data source '%s' - type is required", name))
			continue
		}
		if domain.ParseEngineType(ds.Type).Family() == domain.FamilyUnknown {
			errors = append(errors, fmt.Sprintf("Data source '%s' - type '%s' is not a known engine", name, ds.Type))
			continue
		}
		d, err := ds.Descriptor(name)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Data source '%s' - %v", name, err))
			continue
		}
		if err := d.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("Data source '%s' - %v", name, err))
		}
	}

	if len(errors) > 0 {
		return &ValidationErrors{Errors: errors}
	}
	log.Debugf("Configuration is valid (%d data sources)", len(cfg.DataSources))
	return nil
}
