package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkwise/internal/api"
	"parkwise/internal/auth"
	"parkwise/internal/config"
	"parkwise/internal/database"
	"parkwise/internal/domain"
	"parkwise/internal/events"
	"parkwise/internal/google"
	"parkwise/internal/logging"
	"parkwise/internal/metrics"
	"parkwise/internal/models"
	"parkwise/internal/notify"
	"parkwise/internal/report"
	"parkwise/internal/repository"
	"parkwise/internal/service"
	"parkwise/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger, database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	bus := events.NewEventBus()
	startMetrics(ctx, cfg, bus, &logger)

	tokens := auth.NewJWTManager(cfg.API.Auth)
	users := service.NewUserService(db, tokens, &logger)
	if err := users.BootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
		return err
	}

	parkings := service.NewParkingService(db, bus, &logger)
	if err := seedParkings(ctx, parkings, cfg.Bootstrap.ParkingsFile, &logger); err != nil {
		return err
	}
	publishInitialSpaces(ctx, db, &logger)

	notifier := worker.NewNotificationWorker(db, initDeliverers(ctx, cfg, &logger), redisClient, cfg.Worker, &logger)
	go notifier.Start(ctx)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	loc := cfg.Reports.Location()
	svc := api.Services{
		Entries:  service.NewEntryService(db, bus, notifier, &logger),
		Parkings: parkings,
		Users:    users,
		Reports:  service.NewReportService(report.NewAggregator(db, loc, report.WithLogger(&logger)), loc),

		Notifications: service.NewNotificationService(db),
	}

	limiter := api.NewRateLimiter(cfg.API.RateLimit, initRateLimitStore(ctx, redisClient, &logger), &logger)
	go limiter.StartSweeper(ctx, time.Minute, 10*time.Minute)
	checks := readinessChecks(db, redisClient)

	httpServer := api.NewHTTPServer(cfg.API, svc, tokens, limiter, checks, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, limiter, checks, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func seedParkings(ctx context.Context, svc *service.ParkingService, path string, logger *zerolog.Logger) error {
	if env := os.Getenv("PARKINGS_PATH"); env != "" {
		path = env
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("parkings_path", path).Msg("parkings file not found, skipping seed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read parkings: %w", err)
	}

	var seed struct {
		Parkings []models.Parking `yaml:"parkings"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse parkings %s: %w", path, err)
	}
	return svc.SeedParkings(ctx, seed.Parkings)
}

func publishInitialSpaces(ctx context.Context, db *database.DB, logger *zerolog.Logger) {
	parkings, err := db.ListParkings(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("list parkings for metrics")
		return
	}
	for _, p := range parkings {
		metrics.SetAvailableSpaces(p.Code, p.AvailableSpaces)
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initRateLimitStore(ctx context.Context, client *redis.Client, logger *zerolog.Logger) domain.RateLimitStore {
	memory := repository.NewMemoryRateLimitStore()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				memory.Sweep()
			}
		}
	}()

	if client == nil {
		return memory
	}
	return repository.NewFailoverRateLimitStore(repository.NewRedisRateLimitStore(client), memory, logger)
}

// initDeliverers leaves a channel nil when it is disabled or fails to start.
func initDeliverers(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) worker.Deliverers {
	var d worker.Deliverers

	if cfg.Notifications.Email.Enabled {
		d.Mailer = notify.NewMailer(cfg.Notifications.Email)
		logger.Info().Str("host", cfg.Notifications.Email.Host).Msg("email notifications enabled")
	}

	if cfg.Notifications.Telegram.Enabled {
		bot, err := notify.NewTelegramBot(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without chat notifications")
		} else {
			d.Chat = notify.NewTelegramNotifier(bot, cfg.Notifications.Telegram.ChatIDs)
			logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
		}
	}

	if cfg.Google.Enabled() {
		sheet, err := google.NewLedgerSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.LedgerSpreadsheetID, cfg.Google.LedgerSheetName)
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger")
			return d
		}
		if err := sheet.EnsureHeader(ctx); err != nil {
			logger.Warn().Err(err).Msg("ledger sheet header")
		}
		if err := sheet.WarmUpCache(ctx); err != nil {
			logger.Warn().Err(err).Msg("ledger sheet cache warm-up")
		}
		d.Ledger = sheet
		logger.Info().Msg("google sheets ledger connected")
	}

	return d
}

func readinessChecks(db *database.DB, client *redis.Client) map[string]api.ReadinessCheck {
	checks := map[string]api.ReadinessCheck{
		"database": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return repository.Ping(ctx, client)
		}
	}
	return checks
}

func startMetrics(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	metrics.SubscribeToEvents(bus)
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go grpcServer.MonitorHealth(ctx, 10*time.Second)
		go func() {
			if err := grpcServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
