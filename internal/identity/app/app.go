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

	httpapi "github.com/aussiebroadwan/storefront/internal/identity/http"
	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/internal/identity/store"
	"github.com/aussiebroadwan/storefront/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the identity service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager

	tokenService        *service.TokenService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		NumKeys:  cfg.NumKeys,
	})
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager
	app.logger.Info("ephemeral signing keys generated", "count", keyManager.NumSigners())

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		app.cfg.DatabaseFile,
	)
	if app.cfg.DatabaseFile == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		KeyManager:               app.keyManager,
		Store:                    app.db,
		Issuer:                   app.cfg.Issuer,
		Audience:                 app.cfg.Audience,
		AccessTTL:                app.cfg.AccessTTL,
		RefreshTTL:               app.cfg.RefreshTTL,
		RequireEmailConfirmation: app.cfg.RequireEmailConfirmation,
	}

	app.userService = &service.UserService{
		Store:                    app.db,
		Issuer:                   app.cfg.Issuer,
		Mailer:                   service.LogMailer{Logger: app.logger},
		RequireEmailConfirmation: app.cfg.RequireEmailConfirmation,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
