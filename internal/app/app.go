// Package app provides the top-level application lifecycle for orderwatch. It
// wires together the stores, the per-role diff engines and their controllers,
// the dispatch layer, the API server and the cold-storage archiver, and runs
// them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tablr/orderwatch/internal/archive"
	"github.com/tablr/orderwatch/internal/config"
	"github.com/tablr/orderwatch/internal/domain"
	"github.com/tablr/orderwatch/internal/engine"
	"github.com/tablr/orderwatch/internal/lifecycle"
	"github.com/tablr/orderwatch/internal/server"
	"github.com/tablr/orderwatch/internal/server/handler"
	"github.com/tablr/orderwatch/internal/server/ws"
)

// lifecycleEventBuffer bounds queued host lifecycle transitions per role.
const lifecycleEventBuffer = 8

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the per-role
// controllers, the API server, the badge hub and the archiver, and blocks
// until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("admin", a.cfg.Engine.Admin.Enabled),
		slog.Bool("courier", a.cfg.Engine.Courier.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.run(ctx, deps)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// buildEngines constructs one engine per enabled role.
func (a *App) buildEngines(deps *Dependencies) map[domain.Role]*engine.Engine {
	engines := make(map[domain.Role]*engine.Engine)

	if a.cfg.Engine.Admin.Enabled {
		engines[domain.RoleAdmin] = engine.New(engine.Deps{
			Rules: engine.AdminRules(
				a.cfg.Engine.Admin.PollInterval.Duration,
				a.cfg.Engine.LedgerCap,
				a.cfg.Engine.FeedCap,
			),
			Fetcher:    deps.OrderAPI,
			Store:      deps.Store,
			Dispatcher: deps.Dispatchers[domain.RoleAdmin],
			Archive:    deps.Archive,
			Bus:        deps.Bus,
			Logger:     a.logger,
		})
	}

	if a.cfg.Engine.Courier.Enabled {
		engines[domain.RoleCourier] = engine.New(engine.Deps{
			Rules: engine.CourierRules(
				a.cfg.Engine.Courier.PollInterval.Duration,
				a.cfg.Engine.Courier.HeartbeatInterval.Duration,
				a.cfg.Engine.LedgerCap,
				a.cfg.Engine.FeedCap,
			),
			Fetcher:    deps.OrderAPI,
			Store:      deps.Store,
			Dispatcher: deps.Dispatchers[domain.RoleCourier],
			Archive:    deps.Archive,
			Bus:        deps.Bus,
			Logger:     a.logger,
		})
	}

	return engines
}

// run starts every component and blocks until the context is cancelled or a
// component fails.
func (a *App) run(ctx context.Context, deps *Dependencies) error {
	engines := a.buildEngines(deps)

	controllers := make(map[domain.Role]*lifecycle.Controller, len(engines))
	events := make(map[domain.Role]chan<- lifecycle.Event, len(engines))
	roles := make([]domain.Role, 0, len(engines))

	for role, eng := range engines {
		ch := make(chan lifecycle.Event, lifecycleEventBuffer)
		events[role] = ch

		var hb lifecycle.Heartbeater
		if role == domain.RoleCourier {
			hb = deps.OrderAPI
		}
		controllers[role] = lifecycle.New(eng, hb, ch, a.logger)
		roles = append(roles, role)
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, ctl := range controllers {
		ctl.Start(ctx)
	}
	defer func() {
		for _, ctl := range controllers {
			ctl.Stop()
		}
	}()

	// Badge hub and API server.
	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.Bus, roles, a.logger)
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && err != context.Canceled {
				return fmt.Errorf("app: ws hub: %w", err)
			}
			return nil
		})

		srv := server.NewServer(
			server.Config{
				Port:        a.cfg.Server.Port,
				CORSOrigins: a.cfg.Server.CORSOrigins,
				APIKey:      a.cfg.Server.APIKey,
			},
			server.Handlers{
				Health:  handler.NewHealthHandler(a.logger),
				Feed:    handler.NewFeedHandler(engines, a.logger),
				Session: handler.NewSessionHandler(ctx, engines, controllers, events, a.logger),
			},
			hub,
			a.logger,
		)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Cold-storage archiver.
	if a.cfg.Archive.Enabled && deps.Archive != nil && deps.BlobWriter != nil {
		arch := archive.NewArchiver(deps.Archive, deps.BlobWriter, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			if err := arch.RunCron(ctx, a.cfg.Archive.Cron); err != nil && err != context.Canceled {
				return fmt.Errorf("app: archiver: %w", err)
			}
			return nil
		})
	}

	// Block until cancellation or the first component failure.
	<-ctx.Done()
	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	return ctx.Err()
}
