package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/querygate/core/domain"
)

const sampleConfig = `name: analytics
server:
  port: "{{ env.QG_TEST_PORT }}"
  log_level: 4
  connect_timeout: 2s
  execute_timeout: 20s
translator:
  endpoint: http://localhost:9000/translate
  api_key: "{{ env.QG_TEST_API_KEY }}"
telemetry:
  enabled: true
  endpoint: "{{ env.QG_TEST_OTLP }}"
  sampling_ratio: 0.5
data_sources:
  orders:
    type: postgres
    host: pg.internal
    port: 6432
    username: app
    password: "{{ env.QG_TEST_PG_PASSWORD }}"
    database: shop
    options:
      sslmode: disable
  events:
    type: MongoDB
    connection_string: mongodb://reader:pw@mongo.internal:27017/telemetry
  legacy:
    type: Oracle
    host: ora.internal
    database: ORCL
`

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "analytics", cfg.Name)
	assert.Equal(t, 4, cfg.Server.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Server.ConnectTimeout)
	assert.Equal(t, 20*time.Second, cfg.Server.ExecuteTimeout)
	require.Len(t, cfg.DataSources, 3)
	assert.Equal(t, "6432", cfg.DataSources["orders"].Port)
	assert.Equal(t, "disable", cfg.DataSources["orders"].Options["sslmode"])
	assert.True(t, cfg.Telemetry.Enabled)
	require.NotNil(t, cfg.Telemetry.SamplingRatio)
	assert.Equal(t, 0.5, *cfg.Telemetry.SamplingRatio)
}

func TestParseYAML_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("data_sources:\n  orders:\n    typ: postgres\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "typ")
}

func TestParseYAML_Empty(t *testing.T) {
	cfg, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.NotNil(t, cfg.DataSources)
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	t.Setenv("QG_TEST_PORT", "9090")
	t.Setenv("QG_TEST_API_KEY", "k-1")
	t.Setenv("QG_TEST_PG_PASSWORD", "hunter2")
	t.Setenv("QG_TEST_OTLP", "collector:4317")

	cfg, err := ParseYAML([]byte(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, SubstituteEnvVarsInConfig(cfg))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "k-1", cfg.Translator.APIKey)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "hunter2", cfg.DataSources["orders"].Password)
}

func TestSubstituteEnvVarsInConfig_MissingVariable(t *testing.T) {
	cfg, err := ParseYAML([]byte("data_sources:\n  orders:\n    type: postgres\n    password: \"{{ env.QG_TEST_DEFINITELY_UNSET }}\"\n"))
	require.NoError(t, err)

	err = SubstituteEnvVarsInConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QG_TEST_DEFINITELY_UNSET")
	assert.Contains(t, err.Error(), "orders")
}

func TestDescriptors(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleConfig))
	require.NoError(t, err)

	descriptors, err := cfg.Descriptors()
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	assert.Equal(t, "events", descriptors[0].Name)
	assert.Equal(t, domain.EngineMongoDB, descriptors[0].Engine)
	assert.Equal(t, domain.ModeConnectionURL, descriptors[0].ResolvedMode())

	assert.Equal(t, "legacy", descriptors[1].Name)
	assert.Equal(t, domain.EngineOracle, descriptors[1].Engine)

	assert.Equal(t, "orders", descriptors[2].Name)
	assert.Equal(t, domain.EnginePostgreSQL, descriptors[2].Engine)
	assert.Equal(t, 6432, descriptors[2].Port)
}

func TestDescriptors_BadPort(t *testing.T) {
	cfg := &Config{DataSources: map[string]DataSourceConfig{
		"orders": {Type: "postgres", Host: "h", Database: "d", Port: "fifty"},
	}}
	_, err := cfg.Descriptors()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "valid",
			cfg: Config{DataSources: map[string]DataSourceConfig{
				"orders": {Type: "postgres", Host: "h", Database: "d"},
				"events": {Type: "mongo", ConnectionString: "mongodb://h/db"},
			}},
		},
		{
			name: "unknown engine and missing type",
			cfg: Config{DataSources: map[string]DataSourceConfig{
				"a": {Type: "cassandra", Host: "h", Database: "d"},
				"b": {Host: "h", Database: "d"},
			}},
			wantErr: []string{"'cassandra' is not a known engine", "Data source 'b' - type is required"},
		},
		{
			name: "invalid name and descriptor",
			cfg: Config{DataSources: map[string]DataSourceConfig{
				"1orders": {Type: "mysql", Host: "h"},
			}},
			wantErr: []string{"name is invalid", "database is required"},
		},
		{
			name: "server settings",
			cfg: Config{Server: ServerConfig{
				LogLevel:       7,
				ConnectTimeout: 10 * time.Second,
				ExecuteTimeout: time.Second,
				RateLimit:      RateLimitConfig{Enabled: true},
			}},
			wantErr: []string{"log_level", "execute_timeout", "requests_per_minute", "redis_url"},
		},
		{
			name:    "sampling ratio out of range",
			cfg:     Config{Telemetry: TelemetryConfig{SamplingRatio: ptr(1.5)}},
			wantErr: []string{"telemetry.sampling_ratio"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationErrors
			require.ErrorAs(t, err, &verr)
			joined := ""
			for _, e := range verr.Errors {
				joined += e + "\n"
			}
			for _, want := range tt.wantErr {
				assert.Contains(t, joined, want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("QG_TEST_PORT", "9090")
	t.Setenv("QG_TEST_API_KEY", "k-1")
	t.Setenv("QG_TEST_PG_PASSWORD", "hunter2")
	t.Setenv("QG_TEST_OTLP", "collector:4317")

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.DataSources["orders"].Password)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
