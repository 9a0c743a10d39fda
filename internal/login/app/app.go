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

	"github.com/civicwatch/reportline/internal/login/domain"
	httpapi "github.com/civicwatch/reportline/internal/login/http"
	"github.com/civicwatch/reportline/internal/login/service"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/internal/login/store/drivers/sqlite"
	"github.com/civicwatch/reportline/pkg/cryptox"
	"github.com/civicwatch/reportline/pkg/sessiontoken"
	"github.com/civicwatch/reportline/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the login service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	credentialService   *service.CredentialService
	otpService          *service.OTPService
	trustService        *service.TrustService
	activityService     *service.ActivityService
	userPortal          *service.Orchestrator
	adminPortal         *service.Orchestrator
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "login-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.SessionSecret == "" {
		return nil, errors.New("LOGIN_SESSION_SECRET is required")
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("login service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down login service...")

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

	app.logger.Info("login service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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
	signer := &sessiontoken.Signer{
		Secret: []byte(app.cfg.SessionSecret),
		Issuer: app.cfg.Issuer,
		TTL:    app.cfg.SessionTTL,
	}

	app.credentialService = &service.CredentialService{Store: app.db, Signer: signer}
	app.otpService = &service.OTPService{
		Store:  app.db,
		Mailer: &service.LogMailer{Logger: app.logger},
	}
	app.trustService = &service.TrustService{Store: app.db}
	app.activityService = &service.ActivityService{Store: app.db}

	app.userPortal = app.newPortal("user", nil)
	app.adminPortal = app.newPortal("admin", func(r domain.Role) bool {
		return r == domain.RoleAdmin
	})

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) newPortal(name string, allowRole func(domain.Role) bool) *service.Orchestrator {
	return &service.Orchestrator{
		Credentials:    app.credentialService,
		Trust:          app.trustService,
		OTP:            app.otpService,
		Activity:       app.activityService,
		Store:          app.db,
		Portal:         name,
		Purpose:        domain.OTPPurposeNewDevice,
		AllowRole:      allowRole,
		ResendCooldown: app.cfg.ResendCooldown,
		CallTimeout:    app.cfg.CallTimeout,
	}
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(BuildVersion, app.db, app.logger)
	app.router.UserPortal = app.userPortal
	app.router.AdminPortal = app.adminPortal
	app.router.Credentials = app.credentialService
	app.router.Activity = app.activityService
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}
