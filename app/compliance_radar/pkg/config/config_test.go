package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderFake, cfg.Provider)
	assert.Equal(t, 100, cfg.AlertCount)
	assert.Equal(t, 30, cfg.DaysBack)
	assert.Equal(t, "compliance_alerts", cfg.Output.BaseName)
	assert.Equal(t, "compliance_monitor.log", cfg.Log.File)
	assert.Equal(t, 10, cfg.HTTP.Timeout)
	assert.Equal(t, "active", cfg.HTTP.Status)
	assert.Empty(t, cfg.DB.Driver)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, `
provider: http
alert_count: 25
http:
  internal_base_url: https://internal.example/alerts
  public_base_url: https://public.example/alerts
  api_key: secret
  timeout: 3
output:
  base_dir: /tmp/out
  labels:
    status: Situação
db:
  driver: postgres
  host: localhost
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderHTTP, cfg.Provider)
	assert.Equal(t, 25, cfg.AlertCount)
	assert.Equal(t, 3, cfg.HTTP.Timeout)
	assert.Equal(t, "/tmp/out", cfg.Output.BaseDir)
	assert.Equal(t, "Situação", cfg.Output.Labels["status"])
	assert.Equal(t, 5432, cfg.DB.Port)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
provider: http
http:
  internal_base_url: https://internal.example/alerts
  public_base_url: https://public.example/alerts
  api_key: from-file
`)
	t.Setenv("COMPLIANCE_API_KEY", "from-env")
	t.Setenv("COMPLIANCE_ALERT_COUNT", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.HTTP.APIKey)
	assert.Equal(t, 7, cfg.AlertCount)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", "provider: carrier-pigeon\n"},
		{"http without key", "provider: http\nhttp:\n  internal_base_url: a\n  public_base_url: b\n"},
		{"http without urls", "provider: http\nhttp:\n  api_key: k\n"},
		{"negative count", "alert_count: -1\n"},
		{"negative days back", "days_back: -5\n"},
		{"unknown driver", "db:\n  driver: oracle\n"},
		{"bad yaml", "provider: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DaysBack(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"absent uses default", "provider: fake\n", DefaultDaysBack},
		{"explicit zero disables window", "days_back: 0\n", 0},
		{"explicit value", "days_back: 7\n", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DaysBack)
		})
	}
}
