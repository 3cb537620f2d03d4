package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/querygate/core/logger"
	"github.com/hyperterse/querygate/core/parser"
)

func TestLoadConfig_OptionalMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "querygate.yaml"), true)
	require.NoError(t, err)
	assert.Empty(t, cfg.DataSources)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "querygate.yaml"), false)
	assert.Error(t, err)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "querygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_sources:
  orders:
    type: postgres
    host: localhost
    database: shop
`), 0o600))

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Contains(t, cfg.DataSources, "orders")
}

func TestLoadConfigFromString_Invalid(t *testing.T) {
	_, err := LoadConfigFromString("data_sources:\n  orders:\n    type: postgres\n")
	assert.Error(t, err)
}

func TestResolvePort(t *testing.T) {
	t.Setenv("PORT", "9999")
	cfg := &parser.Config{Server: parser.ServerConfig{Port: "7000"}}

	assert.Equal(t, "6000", ResolvePort("6000", cfg))
	assert.Equal(t, "7000", ResolvePort("", cfg))
	assert.Equal(t, "9999", ResolvePort("", &parser.Config{}))
}

func TestResolveLogLevel(t *testing.T) {
	cfg := &parser.Config{Server: parser.ServerConfig{LogLevel: logger.LogLevelWarn}}

	assert.Equal(t, logger.LogLevelDebug, ResolveLogLevel(true, 1, cfg))
	assert.Equal(t, logger.LogLevelError, ResolveLogLevel(false, 1, cfg))
	assert.Equal(t, logger.LogLevelWarn, ResolveLogLevel(false, 0, cfg))
	assert.Equal(t, logger.LogLevelInfo, ResolveLogLevel(false, 0, nil))
}
