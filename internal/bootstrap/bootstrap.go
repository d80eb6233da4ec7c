package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/slotbook/internal/app/controllers"
	appMigrations "github.com/yigit/slotbook/internal/app/migrations"
	appRepos "github.com/yigit/slotbook/internal/app/repositories"
	appRoutes "github.com/yigit/slotbook/internal/app/routes"
	appServices "github.com/yigit/slotbook/internal/app/services"
	"github.com/yigit/slotbook/internal/config"
	"github.com/yigit/slotbook/internal/db"
	appMiddleware "github.com/yigit/slotbook/internal/middleware"
	pkgAuth "github.com/yigit/slotbook/internal/pkg/auth"
	"github.com/yigit/slotbook/internal/pkg/helpers"
	"github.com/yigit/slotbook/internal/pkg/logger"
	"github.com/yigit/slotbook/internal/pkg/metrics"
	"github.com/yigit/slotbook/internal/pkg/validation"
	"github.com/yigit/slotbook/internal/pkg/websocket"
	"github.com/yigit/slotbook/internal/seed"
	"github.com/yigit/slotbook/migrations"
)

const (
	sessionIssuer       = "slotbook"
	limiterCleanupEvery = 5 * time.Minute
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Store    *appRepos.PostgresStore
	Services *appServices.Services
	Hub      *websocket.Hub
	Registry *prometheus.Registry

	AuthController    *appControllers.AuthController
	BookingController *appControllers.BookingController
	StudentController *appControllers.StudentController
	SlotController    *appControllers.SlotController
	SlotFeed          *websocket.Handler

	AuthMiddleware *appMiddleware.AuthMiddleware
	BookingLimiter *appMiddleware.RateLimiter
	LoginLimiter   *appMiddleware.RateLimiter

	JWTService *pkgAuth.JWTService
	Logger     zerolog.Logger
}

// Close stops the background workers owned by the dependencies
func (d *Dependencies) Close() {
	d.BookingLimiter.Stop()
	d.LoginLimiter.Stop()
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: strings.EqualFold(cfg.Logging.Format, "text"),
	})

	lgr.Info().
		Str("logLevel", logger.ParseLevel(cfg.Logging.Level).String()).
		Str("logFormat", cfg.Logging.Format).
		Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection, applies migrations and
// seeds the slot catalog when it is empty.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool
	lgr.Info().Msg("Database connection successfully established.")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	lgr.Info().Msg("Running database migrations...")
	migrator, err := appMigrations.NewMigrator(dbPool, migrations.FS, lgr)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to prepare migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(ctx); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	store := appRepos.NewPostgresStore(dbPool)
	if _, err := seed.SeedSlots(ctx, store, cfg.Slots.Days, cfg.Slots.Hours, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to seed slot catalog")
		database.Close()
		return nil, fmt.Errorf("failed to seed slots: %w", err)
	}

	return dbPool, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	secret := cfg.Admin.SessionSecret
	if secret == "" {
		generated, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		secret = generated
		lgr.Warn().Msg("SESSION_SECRET is not set; sessions will not survive a restart")
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   secret,
		SessionTTL:  helpers.ParseDuration(cfg.Admin.SessionTTL, 168*time.Hour),
		TokenIssuer: sessionIssuer,
	})

	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps.Store = appRepos.NewPostgresStore(dbPool)
	deps.Hub = websocket.NewHub(lgr)

	deps.Services = appServices.NewServices(appServices.Dependencies{
		Store:    deps.Store,
		Notifier: deps.Hub,
		Metrics:  metrics.NewCollector(deps.Registry),
		JWT:      deps.JWTService,
		Admin: appServices.AdminCredentials{
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
		},
		Logger: lgr,
	})

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.Services.AuthService)
	deps.BookingLimiter = appMiddleware.NewRateLimiter("bookings", appMiddleware.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimit.BookingsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		CleanupInterval:   limiterCleanupEvery,
	}, lgr)
	deps.LoginLimiter = appMiddleware.NewRateLimiter("login", appMiddleware.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimit.LoginsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		CleanupInterval:   limiterCleanupEvery,
	}, lgr)

	deps.AuthController = appControllers.NewAuthController(
		deps.Services.AuthService,
		appControllers.CookieConfig{Secure: cfg.Admin.CookieSecure, Path: "/"},
		lgr,
	)
	deps.BookingController = appControllers.NewBookingController(deps.Services.BookingService)
	deps.StudentController = appControllers.NewStudentController(deps.Services.StudentService)
	deps.SlotController = appControllers.NewSlotController(deps.Services.SlotService)
	deps.SlotFeed = websocket.NewHandler(deps.Hub, deps.Services.SlotService.Snapshot, cfg.Server.AllowedOrigin, lgr)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	if err := validation.RegisterGinValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	router := gin.New()
	router.Use(appMiddleware.RequestLogger(lgr), appMiddleware.Recovery(lgr))

	appRoutes.SetupSwagger(router)
	appRoutes.SetupRouter(router, appRoutes.Handlers{
		Auth:           deps.AuthController,
		Bookings:       deps.BookingController,
		Students:       deps.StudentController,
		Slots:          deps.SlotController,
		SlotFeed:       deps.SlotFeed,
		AuthMiddleware: deps.AuthMiddleware,
		BookingLimiter: deps.BookingLimiter,
		LoginLimiter:   deps.LoginLimiter,
		Metrics:        metrics.Handler(deps.Registry),
		Health:         dbPool.Ping,
	})

	return router, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
