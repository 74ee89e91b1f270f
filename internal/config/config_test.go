package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
upstream:
  base_url: https://api.example.com/web3/
  api_key: ${TIERPROXY_TEST_KEY}
defaults:
  timeout: 5s
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("TIERPROXY_TEST_KEY", "secret")

	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/web3", cfg.Upstream.BaseURL)
	assert.Equal(t, "secret", cfg.Upstream.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Defaults.Timeout)
	assert.Equal(t, 1, cfg.Defaults.HealthSamples)

	assert.Equal(t, DefaultAddress, cfg.Server.Address)
	assert.Equal(t, DefaultChainID, cfg.Server.DefaultChainID)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DefaultMaxBodyBytes, cfg.Server.MaxBodyBytes)
	assert.Equal(t, DefaultMetricsPath, cfg.Server.MetricsPath)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)

	assert.Nil(t, cfg.Routing.ArchiveThreshold)
	assert.Empty(t, cfg.Chains)
}

func TestParseFull(t *testing.T) {
	data := `
server:
  address: 127.0.0.1:9000
  default_chain_id: 137
  request_timeout: 15s
upstream:
  base_url: https://api.example.com/web3
  api_key: k
routing:
  archive_threshold: 256
  sentinel_head: 999999999
  historical_methods:
    eth_getBalance: {block_param: 1}
    eth_call: {block_param: 1, call_object: true}
  normalize:
    eth_blockNumber: decimal
chains:
  - id: 1
    name: ethereum
  - id: 137
    name: polygon
    archive_threshold: 64
    full_url: https://polygon-full.example.com
    archive_url: https://polygon-archive.example.com
defaults:
  timeout: 10s
  max_retries: 2
  backoff_initial: 50ms
  health_samples: 5
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, uint64(137), cfg.Server.DefaultChainID)
	require.NotNil(t, cfg.Routing.ArchiveThreshold)
	assert.Equal(t, uint64(256), *cfg.Routing.ArchiveThreshold)
	assert.Equal(t, uint64(999999999), cfg.Routing.SentinelHead)
	assert.Equal(t, MethodRule{BlockParam: 1, CallObject: true}, cfg.Routing.HistoricalMethods["eth_call"])
	assert.Equal(t, 50*time.Millisecond, cfg.Defaults.BackoffInitial)

	polygon, ok := cfg.Chain(137)
	require.True(t, ok)
	require.NotNil(t, polygon.ArchiveThreshold)
	assert.Equal(t, uint64(64), *polygon.ArchiveThreshold)
	assert.Equal(t, "https://polygon-archive.example.com", polygon.ArchiveURL)

	_, ok = cfg.Chain(10)
	assert.False(t, ok)
	assert.Equal(t, []uint64{1, 137}, cfg.ChainIDs())
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "missing timeout",
			data: "upstream: {base_url: https://a.example.com}",
			want: "defaults.timeout is required",
		},
		{
			name: "no upstream and no chains",
			data: "defaults: {timeout: 1s}",
			want: "upstream.base_url or at least one chain is required",
		},
		{
			name: "bad scheme",
			data: "upstream: {base_url: ftp://a.example.com}\ndefaults: {timeout: 1s}",
			want: "invalid url scheme",
		},
		{
			name: "chain without urls",
			data: "chains: [{id: 1}]\ndefaults: {timeout: 1s}",
			want: "full_url and archive_url are required",
		},
		{
			name: "duplicate chain",
			data: "upstream: {base_url: https://a.example.com}\nchains: [{id: 1}, {id: 1}]\ndefaults: {timeout: 1s}",
			want: "configured twice",
		},
		{
			name: "zero chain id",
			data: "upstream: {base_url: https://a.example.com}\nchains: [{name: x}]\ndefaults: {timeout: 1s}",
			want: "id is required",
		},
		{
			name: "negative block param",
			data: "upstream: {base_url: https://a.example.com}\nrouting: {historical_methods: {eth_x: {block_param: -1}}}\ndefaults: {timeout: 1s}",
			want: "block_param must be >= 0",
		},
		{
			name: "unknown normalize kind",
			data: "upstream: {base_url: https://a.example.com}\nrouting: {normalize: {eth_x: wei}}\ndefaults: {timeout: 1s}",
			want: "unknown kind",
		},
		{
			name: "bad log format",
			data: "upstream: {base_url: https://a.example.com}\nlog: {format: xml}\ndefaults: {timeout: 1s}",
			want: "log.format",
		},
		{
			name: "bad log level",
			data: "upstream: {base_url: https://a.example.com}\nlog: {level: debgu}\ndefaults: {timeout: 1s}",
			want: "log.level",
		},
		{
			name: "negative retries",
			data: "upstream: {base_url: https://a.example.com}\ndefaults: {timeout: 1s, max_retries: -1}",
			want: "max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/web3", cfg.Upstream.BaseURL)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TIERPROXY_ENV_A=from-file\nTIERPROXY_ENV_B=\"quoted\"\n"), 0o600))

	t.Setenv("TIERPROXY_ENV_A", "from-env")
	t.Setenv("TIERPROXY_ENV_B", "")
	require.NoError(t, os.Unsetenv("TIERPROXY_ENV_B"))

	require.NoError(t, LoadEnv(envFile))
	assert.Equal(t, "from-env", os.Getenv("TIERPROXY_ENV_A"))
	assert.Equal(t, "quoted", os.Getenv("TIERPROXY_ENV_B"))

	assert.NoError(t, LoadEnv(filepath.Join(dir, "absent.env")))
}

func TestExampleConfig(t *testing.T) {
	t.Setenv("ONEINCH_API_KEY", "example")

	cfg, err := Load(filepath.Join("..", "..", "config", "router.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "example", cfg.Upstream.APIKey)
	assert.Len(t, cfg.Chains, 7)
	assert.Len(t, cfg.Routing.HistoricalMethods, 4)
	assert.Equal(t, "balance", cfg.Routing.Normalize["eth_getBalance"])
}
