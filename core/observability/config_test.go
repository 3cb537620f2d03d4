package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig_EnvOverridesBase(t *testing.T) {
	t.Setenv(EnvPrefix+"ENABLED", "true")
	t.Setenv(EnvPrefix+"ENDPOINT", "collector:4317")
	t.Setenv(EnvPrefix+"TRACES_ENABLED", "false")

	base := DefaultConfig()
	base.ServiceName = "gateway-eu"
	cfg, err := ResolveConfig(base)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Traces)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, "gateway-eu", cfg.ServiceName)
}

func TestResolveConfig_ClampsSamplingRatio(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"-0.5", 0},
		{"0.3", 0.3},
		{"4", 1},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(EnvPrefix+"TRACE_SAMPLING_RATIO", tt.value)
			cfg, err := ResolveConfig(DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.SamplingRatio)
		})
	}
}

func TestResolveConfig_Errors(t *testing.T) {
	t.Run("malformed bool", func(t *testing.T) {
		t.Setenv(EnvPrefix+"ENABLED", "sometimes")
		_, err := ResolveConfig(DefaultConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvPrefix+"ENABLED")
	})

	t.Run("enabled without endpoint", func(t *testing.T) {
		base := DefaultConfig()
		base.Enabled = true
		base.Endpoint = ""
		_, err := ResolveConfig(base)
		require.Error(t, err)
	})
}

func TestSetup_DisabledInstallsNoopProviders(t *testing.T) {
	providers, err := Setup(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, providers.Shutdown(context.Background())) }()

	assert.False(t, providers.Config.Enabled)

	_, span := StartSpan(context.Background(), "test.span")
	EndSpan(span, nil)
}

func TestShutdown_NilProviders(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}
