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

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/events"
	httpapi "github.com/aussiebroadwan/zerohunger/internal/zerohunger/http"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	redisstore "github.com/aussiebroadwan/zerohunger/internal/zerohunger/store/drivers/redis"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store/drivers/sqlite"
	"github.com/aussiebroadwan/zerohunger/pkg/cryptox"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
	goredis "github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application holds the service and all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	redis     *goredis.Client // nil unless REDIS_URL is set
	sessions  store.Sessions
	locations store.Locations
	publisher events.Publisher
	signer    *jwtx.EdDSASigner
	keys      *jwtx.KeySet
	verifier  jwtx.Verifier

	// Services
	authService         *service.AuthService
	mfaService          *service.MFAService
	userService         *service.UserService
	donationService     *service.DonationService
	feedbackService     *service.FeedbackService
	locationService     *service.LocationService
	dashboardService    *service.DashboardService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "zerohunger",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.initCache(ctx); err != nil {
		app.closeBackends()
		return nil, err
	}

	if err := app.initEvents(); err != nil {
		app.closeBackends()
		return nil, err
	}

	signer, keys, verifier, err := InitSessionKeys(cfg.SessionKeyFile, app.logger)
	if err != nil {
		app.closeBackends()
		return nil, err
	}
	app.signer, app.keys, app.verifier = signer, keys, verifier

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("zerohunger starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeBackends()
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

// Shutdown drains requests, forgets agent positions and closes backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down zerohunger...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	// Positions are live data only; a restart starts with an empty map.
	if err := app.locationService.Clear(ctx); err != nil {
		app.logger.Error("failed to clear agent locations", "error", err)
	}

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("zerohunger stopped")
	return nil
}

// closeBackends releases the publisher, Redis and the database. It returns
// the database close error, which is the one that can lose data.
func (app *Application) closeBackends() error {
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("error closing event publisher", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			return err
		}
	}
	return nil
}

// initDatabase opens SQLite and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initCache puts sessions and locations in Redis when configured, and in
// SQLite otherwise.
func (app *Application) initCache(ctx context.Context) error {
	if app.cfg.RedisURL == "" {
		app.sessions = app.db.Sessions()
		app.locations = app.db.Locations()
		app.logger.Info("sessions and locations stored in sqlite")
		return nil
	}

	client, err := redisstore.Connect(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.sessions = redisstore.NewSessionStore(client)
	app.locations = redisstore.NewLocationStore(client)
	app.logger.Info("sessions and locations stored in redis")
	return nil
}

func (app *Application) initEvents() error {
	if len(app.cfg.KafkaBrokers) == 0 {
		app.publisher = events.LogPublisher{Logger: app.logger}
		app.logger.Info("lifecycle events logged only, KAFKA_BROKERS not set")
		return nil
	}

	pub, err := events.NewKafkaPublisher(app.cfg.KafkaBrokers, app.cfg.KafkaTopic)
	if err != nil {
		return fmt.Errorf("failed to initialize kafka publisher: %w", err)
	}
	app.publisher = pub
	app.logger.Info("lifecycle events published to kafka",
		"brokers", app.cfg.KafkaBrokers,
		"topic", app.cfg.KafkaTopic,
	)
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:    app.db,
		Sessions: app.sessions,
		Signer:   app.signer,
		Verifier: app.verifier,
		Issuer:   sessionIssuer,
		TTL:      app.cfg.SessionTTL,
	}
	app.mfaService = &service.MFAService{
		Store:    app.db,
		Sessions: app.sessions,
		Issuer:   app.cfg.MFAIssuer,
	}
	app.userService = &service.UserService{Store: app.db}
	app.donationService = &service.DonationService{
		Store:  app.db,
		Events: app.publisher,
	}
	app.feedbackService = &service.FeedbackService{Store: app.db}
	app.locationService = &service.LocationService{Locations: app.locations}
	app.dashboardService = &service.DashboardService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		httpapi.Options{
			BuildVersion:         BuildVersion,
			CookieSecure:         app.cfg.SessionCookieSecure,
			SessionTTL:           app.cfg.SessionTTL,
			AllowedOrigins:       app.cfg.CORSAllowedOrigins,
			LocationPushInterval: app.cfg.LocationPushInterval,
		},
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.UserService = app.userService
	router.DonationService = app.donationService
	router.FeedbackService = app.feedbackService
	router.LocationService = app.locationService
	router.DashboardService = app.dashboardService
	if app.redis != nil {
		ping := func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
		router.SessionsHealth = ping
		router.LocationsHealth = ping
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
