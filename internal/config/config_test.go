package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// validConfig returns defaults patched to pass validation in full mode.
func validConfig() Config {
	cfg := Defaults()
	cfg.Chains[0].EscrowAddress = "0x1111111111111111111111111111111111111111"
	cfg.Relayer.PrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	return cfg
}

func TestDefaultsValidateInServerMode(t *testing.T) {
	cfg := Defaults()
	cfg.Chains[0].EscrowAddress = "0x1111111111111111111111111111111111111111"
	cfg.Mode = "server"
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresRelayerKeyForReconcile(t *testing.T) {
	for _, mode := range []string{"reconcile", "full"} {
		cfg := Defaults()
		cfg.Chains[0].EscrowAddress = "0x1111111111111111111111111111111111111111"
		cfg.Mode = mode
		err := cfg.Validate()
		require.Error(t, err, "mode %s", mode)
		require.Contains(t, err.Error(), "relayer")
	}
}

func TestValidateKeyfileNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Relayer.PrivateKey = ""
	cfg.Relayer.KeyfilePath = "/secrets/relayer.json"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "keyfile_password")
}

func TestValidateRejectsDuplicateChains(t *testing.T) {
	cfg := validConfig()
	cfg.Chains = append(cfg.Chains, cfg.Chains[0])
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate chain_id")
}

func TestValidateRequiresChains(t *testing.T) {
	cfg := validConfig()
	cfg.Chains = nil
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "standalone"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "unknown log_level")
	require.Contains(t, err.Error(), "server: port")
}

func TestValidatePoolBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Database.PoolMinConns = 20
	cfg.Database.PoolMaxConns = 10
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool_min_conns")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"
log_level = "debug"

[server]
port = 9999

[reconciler]
tick_interval = "45s"

[[chains]]
name = "Base"
chain_id = 8453
rpc_url = "https://mainnet.base.org"
escrow_address = "0x1111111111111111111111111111111111111111"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "server", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 45*time.Second, cfg.Reconciler.TickInterval.Duration)

	// File-declared chains replace the default list.
	require.Len(t, cfg.Chains, 1)
	require.Equal(t, uint64(8453), cfg.Chains[0].ChainID)

	// Untouched sections keep their defaults.
	require.Equal(t, "localhost", cfg.Database.Host)
	require.True(t, cfg.Database.RunMigrations)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "server"`), 0o600))

	t.Setenv("RELAY_DATABASE_PASSWORD", "s3cret")
	t.Setenv("RELAY_SERVER_PORT", "8888")
	t.Setenv("RELAY_REDIS_ENABLED", "true")
	t.Setenv("RELAY_RECONCILER_TICK_INTERVAL", "2m")
	t.Setenv("RELAY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "s3cret", cfg.Database.Password)
	require.Equal(t, 8888, cfg.Server.Port)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, 2*time.Minute, cfg.Reconciler.TickInterval.Duration)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadCompatibilityAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "server"`), 0o600))

	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/relay")
	t.Setenv("PORT", "3000")
	t.Setenv("JWT_SECRET", "alias-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "postgres://u:p@db:5432/relay", cfg.Database.DSN)
	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, "alias-secret", cfg.Server.JWTSecret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "server"`), 0o600))

	t.Setenv("RELAY_SERVER_PORT", "not-a-number")
	t.Setenv("RELAY_REDIS_ENABLED", "maybe")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.False(t, cfg.Redis.Enabled)
}
