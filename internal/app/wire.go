package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peerlane/relay/internal/auth"
	"github.com/peerlane/relay/internal/cache/redis"
	"github.com/peerlane/relay/internal/chain"
	"github.com/peerlane/relay/internal/config"
	"github.com/peerlane/relay/internal/crypto"
	"github.com/peerlane/relay/internal/domain"
	"github.com/peerlane/relay/internal/notify"
	"github.com/peerlane/relay/internal/service"
	"github.com/peerlane/relay/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PG          *postgres.Client
	Orders      domain.OrderStore
	Trades      domain.TradeStore
	Withdrawals domain.WithdrawalStore
	GasCosts    domain.GasCostStore

	// Chain access
	Registry *chain.Registry

	// Services
	Configs  *service.ConfigCache
	Proofs   *service.ProofGuard
	TradeSvc *service.TradeService
	Payments *service.PaymentVerifier
	Gas      *service.GasLedger

	// Multi-instance coordination, nil when Redis is disabled.
	Lease service.Lease

	// Auth
	Nonces *auth.NonceStore
	Tokens *auth.TokenService

	// Notifications
	Notifier *notify.Notifier
}

// needsRelayerKey reports whether the mode submits relay-paid transactions.
func needsRelayerKey(mode string) bool {
	return mode == "reconcile" || mode == "full"
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.PG = pgClient
	deps.Orders = postgres.NewOrderStore(pgClient)
	deps.Trades = postgres.NewTradeStore(pgClient)
	deps.Withdrawals = postgres.NewWithdrawalStore(pgClient)
	deps.GasCosts = postgres.NewGasCostStore(pgClient)

	// --- Relayer key (only for modes that send transactions) ---
	var relayerKey *ecdsa.PrivateKey
	if needsRelayerKey(strings.ToLower(cfg.Mode)) {
		relayerKey, err = crypto.LoadRelayerKey(crypto.RelayerKeySource{
			RawHex:          cfg.Relayer.PrivateKey,
			KeyfilePath:     cfg.Relayer.KeyfilePath,
			KeyfilePassword: cfg.Relayer.KeyfilePassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: relayer key: %w", err)
		}
	}

	// --- Chain clients ---
	clients := make([]domain.ChainClient, 0, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		client, err := chain.NewEthereumClient(ctx, ch.RPCURL, ch.ChainID, ch.EscrowAddress, relayerKey)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain %s: %w", ch.Name, err)
		}
		closers = append(closers, client.Close)
		clients = append(clients, client)

		logger.Info("chain client connected",
			slog.String("chain", ch.Name),
			slog.Uint64("chain_id", ch.ChainID))
	}
	deps.Registry = chain.NewRegistry(clients...)

	// --- Redis leader lease (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Lease = redis.NewLeaderLock(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Configs = service.NewConfigCache(deps.Registry, service.DefaultConfigTTL)
	deps.Proofs = service.NewProofGuard()
	deps.TradeSvc = service.NewTradeService(deps.Trades, deps.Orders, deps.Withdrawals, deps.Configs, deps.Proofs, logger)
	deps.Payments = service.NewPaymentVerifier(deps.Orders, deps.Registry, logger)
	deps.Gas = service.NewGasLedger(deps.GasCosts, logger)

	// --- Auth ---
	deps.Nonces = auth.NewNonceStore()
	deps.Tokens = auth.NewTokenService(cfg.Server.JWTSecret, logger)

	return deps, cleanup, nil
}
