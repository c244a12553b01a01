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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"healsync-portal/internal/appointments"
	"healsync-portal/internal/backend"
	"healsync-portal/internal/chat"
	"healsync-portal/internal/config"
	"healsync-portal/internal/directory"
	"healsync-portal/internal/handlers"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/middleware"
	"healsync-portal/internal/models"
	"healsync-portal/internal/routes"
	"healsync-portal/internal/schedule"
	"healsync-portal/internal/session"
	"healsync-portal/internal/store"
	"healsync-portal/internal/treatment"
	"healsync-portal/internal/views"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "healsync-portal: %v\n", err)
		os.Exit(1)
	}
}

// run wires the portal and serves until a signal or a listener failure.
// Deferred cleanup always runs before main exits.
func run() error {
	// A missing .env is fine; the environment may already be populated.
	envErr := godotenv.Load()

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}
	if cfg.SessionSecret == "default_session_secret" && cfg.IsProduction() {
		return errors.New("SESSION_SECRET must be set in production")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	portalMetrics := metrics.NewPortalMetrics(registry)

	api := backend.NewClient(backend.Options{
		BaseURL:      cfg.Backend.BaseURL,
		ReadTimeout:  cfg.Backend.ReadTimeout,
		WriteTimeout: cfg.Backend.WriteTimeout,
		Logger:       logger,
		Metrics:      portalMetrics,
	})

	// Key/value state: Redis when configured, otherwise in memory.
	var (
		kv    store.Store
		ready func(ctx context.Context) error
	)
	if cfg.Redis.Addr != "" {
		redisStore := store.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), "")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(ctx); err != nil {
			cancel()
			return fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		cancel()
		kv, ready = redisStore, redisStore.Ping
		logger.Info("using redis store", "addr", cfg.Redis.Addr)
	} else {
		memory := store.NewMemoryStore()
		sweeper, err := memory.StartSweeper(cfg.SweepInterval, logger)
		if err != nil {
			return fmt.Errorf("starting store sweeper: %w", err)
		}
		defer sweeper.Stop()
		kv = memory
		logger.Info("using in-memory store")
	}

	// Doctor schedules live in MySQL when a DSN is configured.
	var schedules schedule.Repository = schedule.NewKVRepository(kv)
	if cfg.Database.DSN != "" {
		db, err := models.InitDB(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		schedules = schedule.NewGormRepository(db)
		logger.Info("using mysql schedule repository")
	}

	sessions := session.NewManager(kv, cfg.SessionSecret, cfg.SessionTTL, logger)
	appointmentService := appointments.NewService(api, kv, logger, portalMetrics).WithFallback(cfg.FallbackEnabled)
	chatService := chat.NewService(api, kv, logger, portalMetrics).
		WithFallback(cfg.FallbackEnabled).
		WithPollIntervals(cfg.Chat.PollInterval, cfg.Chat.MaxPollInterval)
	doctorDirectory := directory.New(api, logger, portalMetrics).WithFallback(cfg.FallbackEnabled)
	scheduleService := schedule.NewService(schedules, logger)
	treatmentService := treatment.NewService(api, logger)

	templates, err := views.Load()
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	router.SetHTMLTemplate(templates)

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	// Chat streams must flush per event, so they bypass compression.
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/chat/", "/metrics"})))

	routes.SetupRoutes(router, routes.Handlers{
		Auth:         handlers.NewAuthHandler(api, sessions, cfg.IsProduction(), logger),
		Appointments: handlers.NewAppointmentHandler(appointmentService, treatmentService, api, doctorDirectory, logger),
		Booking:      handlers.NewBookingHandler(doctorDirectory, scheduleService, appointmentService, logger),
		Chat:         handlers.NewChatHandler(chatService, portalMetrics, logger, cfg.Origin),
		Treatment:    handlers.NewTreatmentHandler(treatmentService, appointmentService, logger),
		Schedule:     handlers.NewScheduleHandler(scheduleService, logger),
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Ready:        ready,
	}, sessions, logger)

	// No write timeout: chat streams stay open for as long as the page does.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting portal", "backend", cfg.Backend.BaseURL)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx is done or the listener fails. A cancelled ctx
// triggers a graceful shutdown.
func serve(ctx context.Context, srv *http.Server, logger *logging.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
