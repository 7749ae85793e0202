package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/guard"
	httpapi "github.com/aussiebroadwan/storefront/internal/storefront/http"
	"github.com/aussiebroadwan/storefront/internal/storefront/orders"
	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/internal/storefront/store/drivers/postgres"
	"github.com/aussiebroadwan/storefront/internal/storefront/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the storefront server with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	identity *authsdk.SDKClient
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	sessions *session.Resolver
	orders   *orders.Service

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "storefront",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		identity: authsdk.NewSDKClient(cfg.IdentityURL),
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = telemetry.NewMetrics(app.registry)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("storefront starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"identity_url", app.cfg.IdentityURL,
		"database_driver", app.cfg.DatabaseDriver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down storefront...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("storefront stopped")
	return nil
}

func (app *Application) initDatabase() error {
	var (
		db  interface {
			store.Store
			ApplyMigrations() error
		}
		err error
	)

	switch app.cfg.DatabaseDriver {
	case "sqlite":
		dsn := fmt.Sprintf(
			"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
			app.cfg.DatabaseURL,
		)
		if app.cfg.DatabaseURL == ":memory:" {
			dsn = ":memory:"
		}
		db, err = sqlite.NewStore(dsn)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		return fmt.Errorf("unknown database driver %q", app.cfg.DatabaseDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initServices() {
	cookies := session.CookieStore{Secure: app.cfg.SecureCookies}

	app.sessions = &session.Resolver{
		Identity: app.identity,
		Coordinator: session.NewCoordinator(app.identity, session.CoordinatorOptions{
			Wait:        app.cfg.RefreshWait,
			CallTimeout: app.cfg.RefreshCallTimeout,
			Grace:       app.cfg.RefreshGrace,
			Metrics:     app.metrics,
			Logger:      app.logger,
		}),
		Cookies: cookies,
		Metrics: app.metrics,
	}

	app.orders = &orders.Service{Store: app.db}
}

func (app *Application) initHTTP() {
	direct := orders.Path{
		Name:   orders.PathDirect,
		Placer: &orders.DirectPlacer{Orders: app.db.Orders()},
	}

	guardCfg := guard.DefaultConfig()
	guardCfg.Metrics = app.metrics

	router := httpapi.NewRouter(BuildVersion, app.db, app.registry, app.metrics, app.logger)
	router.Identity = app.identity
	router.Sessions = app.sessions
	router.Cookies = app.sessions.Cookies
	router.Guard = guard.New(guardCfg)
	router.Orders = app.orders
	router.OrderGate = &orders.Gate{
		Sessions: app.sessions,
		Command: &orders.PlaceOrderCommand{
			Primary:  orders.Path{Name: orders.PathService, Placer: app.orders},
			Fallback: direct,
			Metrics:  app.metrics,
		},
	}
	router.CheckoutGate = &orders.Gate{
		Sessions: app.sessions,
		Command: &orders.PlaceOrderCommand{
			Primary: orders.Path{
				Name:   orders.PathAPI,
				Placer: &orders.APIPlacer{BaseURL: app.cfg.InternalAPIURL},
			},
			Fallback: direct,
			Metrics:  app.metrics,
		},
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
