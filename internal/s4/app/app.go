package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/s4hq/s4/internal/s4/blob"
	httpapi "github.com/s4hq/s4/internal/s4/http"
	"github.com/s4hq/s4/internal/s4/mail"
	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/internal/s4/store/drivers/sqlite"
	"github.com/s4hq/s4/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the storage service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	blobs  blob.Store
	mailer mail.Mailer

	sessionService      *service.SessionService
	registrationService *service.RegistrationService
	treeService         *service.TreeService
	fileService         *service.FileService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "s4",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initBlobStore(); err != nil {
		return nil, err
	}
	app.initMailer()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	if app.cfg.DevBypassAuth {
		app.logger.Warn("SESSION VALIDATION IS BYPASSED - development mode only, never run this in production")
	}

	app.logger.Info("s4 service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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
	app.logger.Info("shutting down s4 service...")

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

	app.logger.Info("s4 service stopped")
	return nil
}

// initDatabase opens the SQLite store and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
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

// initBlobStore connects to the object store, or falls back to the in-memory
// store when no bucket is configured.
func (app *Application) initBlobStore() error {
	if app.cfg.AWSBucket == "" {
		app.logger.Warn("no object store bucket configured, file payloads are held in memory")
		app.blobs = blob.NewMemoryStore()
		return nil
	}

	s3Store, err := blob.NewS3Store(context.Background(), blob.S3Config{
		Region:    app.cfg.AWSRegion,
		AccessKey: app.cfg.AWSAccessKey,
		SecretKey: app.cfg.AWSSecretKey,
		Bucket:    app.cfg.AWSBucket,
		Endpoint:  app.cfg.S3Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	app.blobs = s3Store

	app.logger.Info("object store initialized", "bucket", app.cfg.AWSBucket)
	return nil
}

// initMailer wires SMTP delivery, or log-only delivery when unconfigured.
func (app *Application) initMailer() {
	if app.cfg.SMTPAddr == "" {
		app.logger.Warn("no SMTP relay configured, verification codes are logged instead of mailed")
		app.mailer = &mail.LogMailer{Logger: app.logger}
		return
	}

	app.mailer = mail.NewSMTPMailer(mail.SMTPConfig{
		Addr:     app.cfg.SMTPAddr,
		Username: app.cfg.SMTPUser,
		Password: app.cfg.SMTPPassword,
	})
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Store:        app.db,
		TwoFactorTTL: app.cfg.TwoFactorTTL,
		SessionTTL:   app.cfg.SessionTTL,
	}
	app.registrationService = &service.RegistrationService{
		Store:  app.db,
		Mailer: app.mailer,
		Issuer: app.cfg.Issuer,
	}
	app.treeService = &service.TreeService{Store: app.db}
	app.fileService = &service.FileService{
		Store: app.db,
		Blobs: app.blobs,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.SessionTTL,
		24*time.Hour,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger, BuildVersion)
	router.DevBypassAuth = app.cfg.DevBypassAuth

	router.Sessions = app.sessionService
	router.Registration = app.registrationService
	router.Tree = app.treeService
	router.Files = app.fileService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
