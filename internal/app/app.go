// Package app assembles the chat server from configuration: storage lane,
// command dispatcher, TCP front end and the optional admin endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-tcp/internal/command"
	"github.com/tbourn/go-chat-tcp/internal/config"
	httpapi "github.com/tbourn/go-chat-tcp/internal/http"
	"github.com/tbourn/go-chat-tcp/internal/http/handlers"
	"github.com/tbourn/go-chat-tcp/internal/observability"
	"github.com/tbourn/go-chat-tcp/internal/server"
	"github.com/tbourn/go-chat-tcp/internal/session"
	"github.com/tbourn/go-chat-tcp/internal/store"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	cfg config.Config
	log zerolog.Logger

	engine *store.Engine
	server *server.Server

	admin   *http.Server
	adminLn net.Listener

	otelShutdown observability.ShutdownFunc
}

// New opens storage, creates the schema and binds both listeners. Nothing
// is served until Run. On error every resource acquired so far is released.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, version string) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.release(context.Background())
		}
	}()

	a.otelShutdown, err = observability.SetupOTel(ctx, cfg.OTEL, version, log)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	db, err := store.OpenSQLite(cfg.DBPath, store.OpenOptions{
		Logger:        log,
		SlowThreshold: cfg.SlowQueryThreshold,
		Tracing:       cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	a.engine = store.New(db, store.Options{QueueCapacity: cfg.QueueCapacity, Logger: log})
	if err = a.engine.Setup(ctx); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	a.server, err = server.New(command.NewDispatcher(a.engine), server.Options{
		Addr:           cfg.Addr(),
		MaxConnections: cfg.MaxConnections,
		Session: session.Options{
			IdleTimeout:  cfg.IdleTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxLineBytes: cfg.MaxLineBytes,
			RateRPS:      cfg.RateRPS,
			RateBurst:    cfg.RateBurst,
			Logger:       log,
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	if err = a.server.Listen(); err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}

	if cfg.Admin.Enabled {
		h := handlers.New(handlers.Deps{
			Store:    a.engine,
			Lane:     a.engine,
			Sessions: a.server,
			Started:  time.Now(),
		})
		a.admin = &http.Server{
			Handler:           httpapi.NewRouter(h, cfg.Admin, cfg.OTEL.ServiceName, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		if a.adminLn, err = net.Listen("tcp", cfg.AdminAddr()); err != nil {
			return nil, fmt.Errorf("admin listen %s: %w", cfg.AdminAddr(), err)
		}
	}
	return a, nil
}

// Addr is the bound TCP chat address.
func (a *App) Addr() net.Addr { return a.server.Addr() }

// AdminAddr is the bound admin address, or nil when the endpoint is disabled.
func (a *App) AdminAddr() net.Addr {
	if a.adminLn == nil {
		return nil
	}
	return a.adminLn.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts down
// within cfg.ShutdownTimeout: sessions first, then the admin endpoint, then
// the storage lane (draining admitted operations), then tracing.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.Addr().String()).Msg("chat server listening")
		if err := a.server.Serve(gctx); !errors.Is(err, server.ErrServerClosed) {
			return fmt.Errorf("chat server: %w", err)
		}
		return nil
	})
	if a.admin != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.AdminAddr().String()).Msg("admin endpoint listening")
			if err := a.admin.Serve(a.adminLn); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.release(sctx)
	})

	err := g.Wait()
	a.log.Info().Msg("shutdown complete")
	return err
}

// release stops whatever New managed to start.
func (a *App) release(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("chat server shutdown: %w", err))
		}
	}
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	} else if a.adminLn != nil {
		_ = a.adminLn.Close()
	}
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
