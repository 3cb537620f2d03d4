package observability

import (
	"fmt"
	"os"
	"strconv"
)

// EnvPrefix prefixes the environment variables that override the telemetry
// section of the configuration file
const EnvPrefix = "QUERYGATE_OTEL_"

// Config controls OTLP export. Providers are installed even when Enabled is
// false so instruments and spans stay valid no-ops.
type Config struct {
	Enabled        bool
	Traces         bool
	Metrics        bool
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	SamplingRatio  float64
}

// DefaultConfig is used for every field the configuration file leaves empty
func DefaultConfig() Config {
	return Config{
		Traces:         true,
		Metrics:        true,
		Insecure:       true,
		ServiceName:    "querygate",
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4317",
		SamplingRatio:  1.0,
	}
}

// ResolveConfig applies QUERYGATE_OTEL_* overrides on top of base. A set but
// malformed variable is an error rather than being ignored.
func ResolveConfig(base Config) (Config, error) {
	return resolve(base, os.LookupEnv)
}

func resolve(base Config, lookup func(string) (string, bool)) (Config, error) {
	cfg := base
	overrides := []struct {
		key string
		set func(string) error
	}{
		{"ENABLED", setBool(&cfg.Enabled)},
		{"TRACES_ENABLED", setBool(&cfg.Traces)},
		{"METRICS_ENABLED", setBool(&cfg.Metrics)},
		{"INSECURE", setBool(&cfg.Insecure)},
		{"SERVICE_NAME", setString(&cfg.ServiceName)},
		{"SERVICE_VERSION", setString(&cfg.ServiceVersion)},
		{"ENVIRONMENT", setString(&cfg.Environment)},
		{"ENDPOINT", setString(&cfg.Endpoint)},
		{"TRACE_SAMPLING_RATIO", setFloat(&cfg.SamplingRatio)},
	}
	for _, o := range overrides {
		value, ok := lookup(EnvPrefix + o.key)
		if !ok || value == "" {
			continue
		}
		if err := o.set(value); err != nil {
			return Config{}, fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, o.key, value, err)
		}
	}

	cfg.SamplingRatio = min(max(cfg.SamplingRatio, 0), 1)
	if cfg.Enabled && cfg.Endpoint == "" {
		return Config{}, fmt.Errorf("telemetry is enabled but no OTLP endpoint is set")
	}
	return cfg, nil
}

func setString(target *string) func(string) error {
	return func(v string) error {
		*target = v
		return nil
	}
}

func setBool(target *bool) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*target = parsed
		return nil
	}
}

func setFloat(target *float64) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*target = parsed
		return nil
	}
}
