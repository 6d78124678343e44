package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/peerlane/relay/internal/server"
	"github.com/peerlane/relay/internal/server/handler"
	"github.com/peerlane/relay/internal/service"
)

// ServerMode runs the HTTP API without the background reconciler.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	return a.runComponents(ctx, deps, true, false)
}

// ReconcileMode runs only the expiry reconciler, no HTTP surface.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	return a.runComponents(ctx, deps, false, true)
}

// FullMode runs the HTTP API and the reconciler in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	return a.runComponents(ctx, deps, true, a.cfg.Reconciler.Enabled)
}

// runComponents starts the selected components under one errgroup and blocks
// until the context is cancelled or a component fails.
func (a *App) runComponents(ctx context.Context, deps *Dependencies, withServer, withReconciler bool) error {
	g, gctx := errgroup.WithContext(ctx)

	var reconciler *service.Reconciler
	if withReconciler {
		var err error
		reconciler, err = service.NewReconciler(
			deps.Trades,
			deps.Registry,
			deps.Gas,
			deps.Lease,
			deps.Notifier,
			a.cfg.Reconciler.TickInterval.Duration,
			a.logger,
		)
		if err != nil {
			return fmt.Errorf("app: reconciler: %w", err)
		}

		g.Go(func() error {
			err := reconciler.Run(gctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	if withServer {
		handlers := server.Handlers{
			Health: handler.NewHealthHandler(deps.PG),
			Auth:   handler.NewAuthHandler(deps.Nonces, deps.Tokens, a.logger),
			Orders: handler.NewOrderHandler(deps.Orders, deps.TradeSvc, deps.Payments, deps.Notifier, a.logger),
			Trades: handler.NewTradeHandler(deps.Trades, deps.TradeSvc, a.logger),
			Config: handler.NewChainConfigHandler(deps.Configs),
			Gas:    handler.NewGasHandler(deps.Gas, statsProvider(reconciler)),
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		}, handlers, deps.Tokens, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		// Best effort: the process is going down, but operators should hear
		// about it on the configured channels.
		notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		deps.Notifier.Error(notifyCtx, err.Error())
		cancel()
		return err
	}
	return nil
}

// statsProvider avoids storing a typed nil in the handler's interface field.
func statsProvider(r *service.Reconciler) handler.StatsProvider {
	if r == nil {
		return nil
	}
	return r
}
