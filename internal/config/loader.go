package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RELAY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RELAY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "RELAY_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "RELAY_DATABASE_HOST")
	setInt(&cfg.Database.Port, "RELAY_DATABASE_PORT")
	setStr(&cfg.Database.Database, "RELAY_DATABASE_NAME")
	setStr(&cfg.Database.User, "RELAY_DATABASE_USER")
	setStr(&cfg.Database.Password, "RELAY_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "RELAY_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "RELAY_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "RELAY_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "RELAY_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "RELAY_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RELAY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RELAY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RELAY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RELAY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RELAY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RELAY_REDIS_TLS_ENABLED")

	// ── Relayer ──
	setStr(&cfg.Relayer.PrivateKey, "RELAY_RELAYER_PRIVATE_KEY")
	setStr(&cfg.Relayer.PrivateKey, "RELAYER_PRIVATE_KEY") // compatibility alias
	setStr(&cfg.Relayer.KeyfilePath, "RELAY_RELAYER_KEYFILE_PATH")
	setStr(&cfg.Relayer.KeyfilePassword, "RELAY_RELAYER_KEYFILE_PASSWORD")

	// ── Reconciler ──
	setBool(&cfg.Reconciler.Enabled, "RELAY_RECONCILER_ENABLED")
	setDuration(&cfg.Reconciler.TickInterval, "RELAY_RECONCILER_TICK_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RELAY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RELAY_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-provided alias
	setStringSlice(&cfg.Server.CORSOrigins, "RELAY_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.JWTSecret, "RELAY_SERVER_JWT_SECRET")
	setStr(&cfg.Server.JWTSecret, "JWT_SECRET") // compatibility alias

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RELAY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RELAY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RELAY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RELAY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RELAY_MODE")
	setStr(&cfg.LogLevel, "RELAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
