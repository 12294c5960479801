package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/nexlate/tracker/backend"
	"github.com/nexlate/tracker/config"
	"github.com/nexlate/tracker/dashboard"
	"github.com/nexlate/tracker/lates"
	"github.com/nexlate/tracker/metrics"
	"github.com/nexlate/tracker/middleware"
	"github.com/nexlate/tracker/proxy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// dashboardServer wires the page, the /api proxy and /metrics onto one router.
func dashboardServer(c *config.Config, logger *zap.Logger) (*http.Server, *dashboard.Dashboard) {
	collector := metrics.NewCollector()
	client := lates.NewClient(c.BackendURL, c.BackendTimeout,
		lates.WithLogger(logger),
		lates.WithObserver(collector))
	dash := dashboard.New(client, logger, c.LoadWait)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(collector.Middleware)

	r.Mount("/api", proxy.New(client, logger).Routes(c.AllowedOrigins))
	r.Handle("/metrics", collector.Handler())
	r.Mount("/", dash.Routes())

	return &http.Server{Addr: c.Addr(), Handler: r}, dash
}

// backendServer opens the configured store and serves the lates API on it.
// The returned func closes the store.
func backendServer(c *config.Config, logger *zap.Logger) (*http.Server, func() error, error) {
	driver, dsn, err := c.DataSource()
	if err != nil {
		return nil, nil, err
	}

	var (
		store      backend.Store
		closeStore = func() error { return nil }
	)
	if driver == config.MemoryDriver {
		logger.Warn("using the in-memory store, entries are lost on exit")
		store = backend.NewMemoryStore()
	} else {
		s, err := backend.Open(driver, dsn, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store opened", zap.String("driver", driver))
		store, closeStore = s, s.Close
	}

	h := backend.NewHandler(store, logger)
	return &http.Server{Addr: c.BackendAddr(), Handler: h.Routes()}, closeStore, nil
}

// runServers serves until ctx is done or one server fails, then shuts all of
// them down.
func runServers(ctx context.Context, logger *zap.Logger, servers ...*http.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		return nil
	})

	return g.Wait()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	srv, dash := dashboardServer(cfg, logger)
	defer dash.Close()

	logger.Info("dashboard ready",
		zap.String("url", "http://localhost"+cfg.Addr()+"/"),
		zap.String("backend", cfg.BackendURL))
	return runServers(ctx, logger, srv)
}

func runBackend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	srv, closeStore, err := backendServer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return runServers(ctx, logger, srv)
}

// runDev points the dashboard at a backend started in the same process.
func runDev(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	backendSrv, closeStore, err := backendServer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg.BackendURL = "http://" + cfg.BackendAddr()
	dashSrv, dash := dashboardServer(cfg, logger)
	defer dash.Close()

	logger.Info("dashboard ready", zap.String("url", "http://localhost"+cfg.Addr()+"/"))
	return runServers(ctx, logger, backendSrv, dashSrv)
}
