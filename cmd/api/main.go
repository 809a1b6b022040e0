// Package main is the entrypoint for the ATS Pro API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/atspro/atspro/internal/analytics"
	"github.com/atspro/atspro/internal/archive"
	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/cache"
	"github.com/atspro/atspro/internal/config"
	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/events"
	"github.com/atspro/atspro/internal/handler"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/middleware"
	"github.com/atspro/atspro/internal/oracle"
	"github.com/atspro/atspro/internal/repository"
	"github.com/atspro/atspro/internal/server"
	"github.com/atspro/atspro/internal/service"
	"github.com/atspro/atspro/internal/session"
	"github.com/atspro/atspro/internal/webhook"
)

func main() {
	ctx := context.Background()

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL, cfg.RabbitMQURL))
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	recorder, snapshotter, metricsHTTP, observer := newMetrics(cfg)

	// Local store
	store, err := localstore.Open(ctx, localstore.Options{
		Backend:     cfg.LocalStore,
		Dir:         cfg.LocalStoreDir,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		Table:       cfg.KVTable,
	})
	if err != nil {
		logger.Error("failed to open local store",
			slog.String("backend", cfg.LocalStore),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return fmt.Errorf("open local store: %w", err)
	}
	logger.Info("local store ready", slog.String("backend", cfg.LocalStore))

	// Persistence adapter. The remote Data API is used only when configured.
	var remote *datastore.Remote
	remoteCfg := cfg.RemoteConfig()
	if remoteCfg.IsConfigured() {
		remote = datastore.NewRemote(remoteCfg, datastore.NewHTTPClient(cfg.DataAPITimeout))
		logger.Info("remote data api enabled", slog.String("data_source", remoteCfg.DataSource))
	} else {
		logger.Info("remote data api not configured, running local only")
	}
	adapter := datastore.New(datastore.NewLocal(store, cfg.StoragePrefix), remote, logger, recorder)
	repo := repository.New(adapter, logger)

	// Credentials and the default admin
	verifier, err := auth.NewVerifier(cfg.CredentialScheme)
	if err != nil {
		return err
	}
	authSvc := service.NewAuthService(repo, verifier, logger)
	if err := authSvc.EnsureDefaultAdmin(ctx); err != nil {
		if errors.Is(err, localstore.ErrIOFailure) {
			logger.Error("cannot initialize: local storage unavailable")
		}
		_ = store.Close()
		return fmt.Errorf("seed default admin: %w", err)
	}

	// Scoring oracle
	scorer, err := newScorer(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	// Shared Redis client for rate limits and stream events
	var cacheClient *cache.Cache
	if (cfg.RateLimitEnabled && cfg.RedisURL != "") || cfg.EventsDriver == config.EventsRedis {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to Redis")
	}

	publisher, err := newPublisher(cfg, cacheClient, logger)
	if err != nil {
		logger.Error("failed to connect event broker",
			slog.String("driver", cfg.EventsDriver),
			slog.String("error", sanitizeError(err, cfg.RabbitMQURL, cfg.WebhookSecret)),
		)
		_ = store.Close()
		return fmt.Errorf("connect events: %w", err)
	}
	notifier := events.NewNotifier(publisher, logger, recorder)

	var uploads service.Archiver
	if cfg.ArchiveEnabled() {
		a, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.ArchiveBucket,
			Endpoint:  cfg.ArchiveEndpoint,
			Region:    cfg.ArchiveRegion,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
		})
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("open archive: %w", err)
		}
		uploads = a
		logger.Info("upload archive enabled", slog.String("bucket", cfg.ArchiveBucket))
	}

	book := service.NewReportBook(repo, service.ReportBookOptions{
		Scorer:   oracle.Instrument(scorer, recorder),
		Notifier: notifier,
		Archive:  uploads,
		Logger:   logger,
		Metrics:  recorder,
	})
	if err := book.Load(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("load reports: %w", err)
	}

	deps := server.Deps{
		Config: server.RouterConfig{
			IsDevelopment:  cfg.IsDevelopment(),
			AllowedOrigins: cfg.GetCORSAllowedOrigins(),
			MaxUploadSize:  cfg.MaxUploadSize,
			AnalysisLimit:  cache.Limit{PerMinute: cfg.AnalysisRatePerMin, Burst: cfg.AnalysisBurst},
			LoginLimit:     cache.Limit{PerMinute: cfg.LoginRatePerMin, Burst: cfg.LoginBurst},
		},
		Logger:           logger,
		Book:             book,
		Auth:             authSvc,
		Sessions:         session.NewRegistry(store, logger),
		Directory:        repo,
		Store:            store,
		Metrics:          snapshotter,
		MetricsHandler:   metricsHTTP,
		HTTPObserver:     observer,
		RemoteConfigured: remote != nil,
	}
	// Interfaces stay nil unless their backend exists.
	if cacheClient != nil {
		deps.Cache = cacheClient
	}
	if cfg.RateLimitEnabled {
		if cacheClient != nil {
			deps.Limiter = cacheClient
		} else {
			deps.Limiter = cache.NewLocalLimiter()
			logger.Info("rate limiting in process, REDIS_URL not set")
		}
	}

	var timelineWorker *analytics.Worker
	if cfg.TimelineEnabled {
		timeline := analytics.NewTimeline(store)
		deps.Timeline = timeline
		timelineWorker = analytics.NewWorker(cacheClient.Client(), timeline, logger, analytics.WorkerOptions{Metrics: recorder})
	}

	srv := server.New(server.NewRouter(deps), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnClose("localstore", store.Close)
	if cacheClient != nil {
		srv.OnClose("redis", cacheClient.Close)
	}
	srv.OnClose("events", notifier.Close)
	if timelineWorker != nil {
		// Registered last so it stops before Redis closes.
		srv.OnShutdown("timeline", timelineWorker.Shutdown)
		go func() {
			if err := timelineWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("timeline worker stopped", "error", err)
			}
		}()
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", handler.Version,
		"oracle", cfg.OracleDriver,
		"events", cfg.EventsDriver,
	)

	return srv.Run()
}

// newMetrics returns the recorder for METRICS_BACKEND. Exactly one of
// snapshotter and handler is non-nil.
func newMetrics(cfg *config.Config) (metrics.Recorder, metrics.Snapshotter, http.Handler, middleware.HTTPObserver) {
	if cfg.MetricsBackend == "prometheus" {
		prom := metrics.NewPrometheus()
		return prom, nil, prom.Handler(), prom
	}
	mem := metrics.NewInMemory()
	return mem, mem, nil, nil
}

// newScorer builds the scoring oracle selected by ORACLE_DRIVER.
func newScorer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (oracle.Scorer, error) {
	if cfg.GoogleAPIKey == "" {
		logger.Warn("GOOGLE_API_KEY not set, analyses will fail")
	}

	switch cfg.OracleDriver {
	case "agent":
		return oracle.NewAgentScorer(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, logger)
	default:
		return oracle.NewGeminiScorer(ctx, oracle.GeminiConfig{
			APIKey:  cfg.GoogleAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		}, logger)
	}
}

// newPublisher returns the status event publisher for EVENTS_DRIVER.
func newPublisher(cfg *config.Config, cacheClient *cache.Cache, logger *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsWebhook:
		return webhook.NewPublisher(webhook.Config{
			URL:           cfg.WebhookURL,
			Secret:        cfg.WebhookSecret,
			AllowInsecure: cfg.WebhookAllowInsecure,
		}, logger)
	case config.EventsAMQP:
		return events.NewAMQPPublisher(cfg.RabbitMQURL)
	case config.EventsRedis:
		return events.NewStreamPublisher(cacheClient.Client()), nil
	default:
		return events.Noop{}, nil
	}
}

// initLogger initializes the slog logger based on configuration. The
// returned func flushes and closes the log file, if any.
func initLogger(cfg *config.Config) (*slog.Logger, func()) {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var out io.Writer = os.Stdout
	closeLog := func() {}
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		}
		out = io.MultiWriter(os.Stdout, file)
		closeLog = func() { _ = file.Close() }
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(h).With("service", "atspro")
	slog.SetDefault(logger)

	return logger, closeLog
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces connection secrets in an error message.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
