package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// Environment variable pattern: {{ env.VARIABLE_NAME }}
	envVarPattern = regexp.MustCompile(`\{\{\s*env\.(\w+)\s*\}\}`)
)

// substituteEnvVars replaces {{ env.VARIABLE_NAME }} placeholders with environment variable values
func substituteEnvVars(value string) (string, error) {
	result := value
	matches := envVarPattern.FindAllStringSubmatch(value, -1)
	seen := make(map[string]bool)

	for _, match := range matches {
		envVarName := match[1]
		placeholder := match[0]

		if seen[placeholder] {
			continue
		}
		seen[placeholder] = true

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			return "", fmt.Errorf("environment variable '%s' not found", envVarName)
		}
		result = strings.ReplaceAll(result, placeholder, envValue)
	}

	return result, nil
}

// SubstituteEnvVarsInConfig resolves placeholders in every string field that
// may carry a secret or a deployment-specific value.
func SubstituteEnvVarsInConfig(cfg *Config) error {
	serverFields := map[string]*string{
		"server.port":                 &cfg.Server.Port,
		"server.rate_limit.redis_url": &cfg.Server.RateLimit.RedisURL,
		"translator.endpoint":         &cfg.Translator.Endpoint,
		"translator.api_key":          &cfg.Translator.APIKey,
		"telemetry.endpoint":          &cfg.Telemetry.Endpoint,
		"telemetry.service_name":      &cfg.Telemetry.ServiceName,
		"telemetry.environment":       &cfg.Telemetry.Environment,
	}
	for field, target := range serverFields {
		substituted, err := substituteEnvVars(*target)
		if err != nil {
			return fmt.Errorf("configuration error: failed to substitute environment variables in %s: %w", field, err)
		}
		*target = substituted
	}

	for name, ds := range cfg.DataSources {
		fields := map[string]*string{
			"type":              &ds.Type,
			"host":              &ds.Host,
			"port":              &ds.Port,
			"username":          &ds.Username,
			"password":          &ds.Password,
			"database":          &ds.Database,
			"connection_string": &ds.ConnectionString,
		}
		for field, target := range fields {
			substituted, err := substituteEnvVars(*target)
			if err != nil {
				return fmt.Errorf("configuration error: failed to substitute environment variables in %s for data source '%s': %w", field, name, err)
			}
			*target = substituted
		}

		if len(ds.Options) > 0 {
			options := make(map[string]string, len(ds.Options))
			for key, value := range ds.Options {
				substituted, err := substituteEnvVars(value)
				if err != nil {
					return fmt.Errorf("configuration error: failed to substitute environment variables in option '%s' for data source '%s': %w", key, name, err)
				}
				options[key] = substituted
			}
			ds.Options = options
		}
		cfg.DataSources[name] = ds
	}

	return nil
}
