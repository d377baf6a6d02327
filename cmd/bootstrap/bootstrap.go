package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-queue/config"
	deliveryHttp "clinic-queue/internal/delivery/http"
	"clinic-queue/internal/delivery/http/handler"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/infrastructure/cache"
	"clinic-queue/internal/infrastructure/database"
	"clinic-queue/internal/infrastructure/telemetry"
	"clinic-queue/internal/realtime"
	"clinic-queue/internal/repository"
	"clinic-queue/internal/service"
	"clinic-queue/internal/usecase"
	"clinic-queue/pkg/jwt"
	"clinic-queue/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server

	locker    service.DoctorLocker
	sweeper   *service.Sweeper
	stopBus   context.CancelFunc
	busDone   chan struct{}
	telemetry func(context.Context) error
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	log := setupLogger(cfg.App.LogLevel)
	app.Log = log
	log.Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	app.telemetry = telemetry.Setup(ctx, cfg.App.Name, cfg.Telemetry, log)

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(cfg.DB, log); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient

	if err := app.initialize(ctx); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// initialize wires every layer, seeds reference data and builds the HTTP server
func (app *App) initialize(ctx context.Context) error {
	cfg, db, redisClient, log := app.Config, app.DB, app.RedisClient, app.Log

	location, err := time.LoadLocation(cfg.DB.TimeZone)
	if err != nil {
		log.Warnf("Unknown time zone %q, reports use UTC", cfg.DB.TimeZone)
		location = time.UTC
	}

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator(cfg.Queue.Motives...)

	// Initialize repositories
	userRepo := repository.NewUserRepository()
	doctorRepo := repository.NewDoctorRepository()
	ticketRepo := repository.NewTicketRepository()
	turnRepo := repository.NewTurnRepository()
	screenRepo := repository.NewScreenRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	// Initialize services
	audit := service.NewAuditService(log, auditLogRepo)
	sessions := service.NewSessionStore(redisClient, log)
	codes := service.NewCodeGenerator(db, redisClient, log, turnRepo, cfg.Queue)
	locker := service.NewDoctorLocker(redisClient, log, cfg.Queue)
	bus := service.NewRedisEventBus(redisClient, cfg.Realtime.Channel, log)
	mailer := service.NewMailer(cfg.Mail, log)
	app.locker = locker

	// Initialize usecases
	authUsecase := usecase.NewAuthUsecase(db, log, userRepo, audit, jwtService, sessions, mailer, cfg.App.BaseURL, cfg.Mail.ResetTTL)
	userUsecase := usecase.NewUserUsecase(db, log, userRepo, audit, sessions)
	doctorUsecase := usecase.NewDoctorUsecase(db, log, doctorRepo, ticketRepo, audit, codes)
	ticketUsecase := usecase.NewTicketUsecase(db, log, ticketRepo, turnRepo, doctorRepo, codes, locker, audit, bus, cfg.Queue, cfg.App.Name)
	trashUsecase := usecase.NewTrashUsecase(db, log, ticketRepo, ticketUsecase, audit, bus)
	screenUsecase := usecase.NewScreenUsecase(db, log, screenRepo, userRepo, ticketUsecase, audit, cfg.Screen)
	auditLogUsecase := usecase.NewAuditLogUsecase(db, log, auditLogRepo)
	reportUsecase := usecase.NewReportUsecase(db, log, ticketRepo, turnRepo, location)

	// Seed reference data
	if err := userUsecase.EnsureDefaultUsers(ctx, usecase.DefaultUsers); err != nil {
		return fmt.Errorf("failed to seed default users: %w", err)
	}
	if err := screenUsecase.SeedScreens(ctx); err != nil {
		return fmt.Errorf("failed to seed screens: %w", err)
	}
	if err := codes.SyncOnStartup(ctx); err != nil {
		return fmt.Errorf("failed to sync turn sequences: %w", err)
	}

	// Realtime fan-out: every instance relays the shared channel into its own hub
	hub := realtime.NewHub(log)
	busCtx, stopBus := context.WithCancel(context.Background())
	app.stopBus = stopBus
	app.busDone = make(chan struct{})
	go func() {
		defer close(app.busDone)
		if err := bus.Run(busCtx, hub.Broadcast); err != nil {
			log.Errorf("Realtime event bus stopped: %+v", err)
		}
	}()

	// Background sweepers
	app.sweeper = service.NewSweeper(log,
		service.SweepJob{Name: "purge_tombstones", Interval: cfg.Queue.SweepInterval, Run: ticketUsecase.PurgeExpiredTombstones},
		service.SweepJob{Name: "release_stale_screens", Interval: cfg.Screen.SweepInterval, Run: screenUsecase.ReleaseStalePending},
	)
	app.sweeper.Start()

	// Health probes
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	pingRedis := func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, redisClient)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.HTTP.AllowedOrigins)

	// Initialize handlers
	handlers := deliveryHttp.Handlers{
		Auth:      handler.NewAuthHandler(authUsecase, customValidator),
		User:      handler.NewUserHandler(userUsecase, customValidator),
		Doctor:    handler.NewDoctorHandler(doctorUsecase, customValidator),
		Ticket:    handler.NewTicketHandler(ticketUsecase, customValidator),
		Trash:     handler.NewTrashHandler(trashUsecase),
		Screen:    handler.NewScreenHandler(screenUsecase, customValidator),
		AuditLog:  handler.NewAuditLogHandler(auditLogUsecase),
		Report:    handler.NewReportHandler(reportUsecase),
		Health:    handler.NewHealthHandler(log, sqlDB.PingContext, pingRedis, 2*time.Second),
		WebSocket: realtime.NewWebSocketHandler(hub, authMiddleware, cfg.Realtime, cfg.HTTP.AllowedOrigins, log),
		SockJS:    realtime.NewSockJSHandler(deliveryHttp.RealtimePrefix, hub, authMiddleware, cfg.Realtime, log),
	}

	// Initialize router
	router := deliveryHttp.NewRouter(handlers, authMiddleware, corsMiddleware, log, cfg.HTTP.RequestTimeout)
	httpRouter := otelhttp.NewHandler(router.Setup(), cfg.App.Name)

	// Create server. Upgraded realtime connections reset their own deadlines.
	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           httpRouter,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       2 * cfg.HTTP.ReadTimeout,
	}

	return nil
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		app.Log.Infof("Server starting on port %s", app.Config.App.Port)
		app.Log.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		app.Log.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	if app.telemetry != nil {
		if err := app.telemetry(ctx); err != nil {
			app.Log.Warnf("Failed to flush traces: %+v", err)
		}
	}

	app.Log.Info("Server shutdown complete")
}

// Close stops background workers, then closes all connections (database, redis, etc.)
func (app *App) Close() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.stopBus != nil {
		app.stopBus()
		<-app.busDone
	}
	if app.locker != nil {
		app.locker.Stop()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
