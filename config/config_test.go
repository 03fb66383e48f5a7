package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrippyLeaf/solana-pay/types"
)

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkDevnet, cfg.Client.Network)
	assert.Equal(t, types.NetworkDevnet.RPCEndpoint(), cfg.Client.RPCUrl)
	assert.Equal(t, "confirmed", cfg.Client.Commitment)
	assert.Equal(t, uint64(types.DefaultLamportsPerSignature), cfg.Builder.LamportsPerSignature)
	assert.Equal(t, 2*time.Second, cfg.Settlement.PollInterval)
	assert.Equal(t, 30, cfg.Settlement.MaxAttempts)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.EnableMetrics)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "solanapay.yaml", `
client:
  network: solana-mainnet
  rpc_url: https://rpc.example.com
  commitment: finalized
settlement:
  poll_interval: 500ms
  max_attempts: 4
server:
  label: Coffee Shop
default_timeout: 10s
log_level: debug
enable_metrics: true
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkMainnet, cfg.Client.Network)
	assert.Equal(t, "https://rpc.example.com", cfg.Client.RPCUrl)
	assert.Equal(t, "finalized", cfg.Client.Commitment)
	assert.Equal(t, 500*time.Millisecond, cfg.Settlement.PollInterval)
	assert.Equal(t, 4, cfg.Settlement.MaxAttempts)
	assert.Equal(t, "Coffee Shop", cfg.Server.Label)
	assert.Equal(t, 10*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "solanapay.yaml", "client:\n  network: solana-testnet\nlog_level: debug\n")
	t.Setenv("SOLANAPAY_LOG_LEVEL", "warn")
	t.Setenv("SOLANAPAY_CLIENT_RPC_URL", "https://env.example.com")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkTestnet, cfg.Client.Network)
	assert.Equal(t, "https://env.example.com", cfg.Client.RPCUrl)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SOLANAPAY_CLIENT_NETWORK", "solana-testnet")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("network", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--network", "solana-localnet"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkLocalnet, cfg.Client.Network)
	// Unset flags fall through to defaults.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown network", "client:\n  network: ethereum\n"},
		{"bad log level", "log_level: verbose\n"},
		{"bad commitment", "client:\n  commitment: eventually\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "solanapay.yaml", tt.body), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.ErrorIs(t, err, types.ErrConfig)
}
