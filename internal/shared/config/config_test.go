package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodesieve/internal/shared/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Ini(t *testing.T) {
	path := writeFile(t, "nodesieve.ini", `
[log]
level = debug

[quality_filter]
max_workers = 8
connect_timeout = 2.5
max_latency = 300
min_guarantee = 0
preferred_protocols = vless,trojan
smart_sampling = false

[ip_risk_check]
enabled = true
provider = ipapi
check_top_nodes = 10

[region_limit]
allowed_countries = US,JP
blocked_countries =
policy = filter
`)
	t.Setenv("ABUSEIPDB_API_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogConf.Level)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.InDelta(t, 2.5, cfg.ConnectTimeout, 1e-9)
	assert.InDelta(t, 300.0, cfg.MaxLatency, 1e-9)
	assert.Equal(t, 0, cfg.MinGuarantee)
	assert.Equal(t, []string{"vless", "trojan"}, cfg.PreferredProtocols)
	assert.False(t, cfg.SmartSampling)
	assert.True(t, cfg.IPRiskConf.Enabled)
	assert.Equal(t, "ipapi", cfg.Provider)
	assert.Equal(t, 10, cfg.CheckTopNodes)
	assert.Equal(t, []string{"US", "JP"}, cfg.AllowedCountries)
	assert.Equal(t, "filter", cfg.Policy)

	// 未出现的键保持默认值
	assert.Equal(t, 200, cfg.MaxOutputNodes)
	assert.Equal(t, "high_quality_nodes.txt", cfg.NodesFile)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
quality_filter:
  max_workers: 64
  max_output_nodes: 50
  preferred_protocols: [hysteria2, vless]
ip_risk_check:
  enabled: true
  api_key: from-file
region_limit:
  enabled: false
`)
	t.Setenv("ABUSEIPDB_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxWorkers)
	assert.Equal(t, 50, cfg.MaxOutputNodes)
	assert.Equal(t, []string{"hysteria2", "vless"}, cfg.PreferredProtocols)
	assert.Equal(t, "from-file", cfg.APIKey, "config key wins over env")
	assert.False(t, cfg.RegionLimitConf.Enabled)
	assert.Equal(t, 5000, cfg.MaxTestNodes)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
	require.NotNil(t, cfg)

	def := types.DefaultConfig()
	assert.Equal(t, def.MaxWorkers, cfg.MaxWorkers)
	assert.Equal(t, def.MinGuarantee, cfg.MinGuarantee)
	assert.Equal(t, def.BlockedCountries, cfg.BlockedCountries)
}

func TestLoad_BrokenYAMLFallsBackToDefaults(t *testing.T) {
	path := writeFile(t, "config.yml", "quality_filter: [this is: not a map")
	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, types.DefaultConfig().MaxOutputNodes, cfg.MaxOutputNodes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ABUSEIPDB_API_KEY", " env-key ")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MAX_WORKERS", "12")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, _ := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "warn", cfg.LogConf.Level)
	assert.Equal(t, 12, cfg.MaxWorkers)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
}

func TestLoad_InvalidIntEnvIgnored(t *testing.T) {
	t.Setenv("MAX_WORKERS", "lots")
	cfg, _ := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Equal(t, types.DefaultConfig().MaxWorkers, cfg.MaxWorkers)
}
