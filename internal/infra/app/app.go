package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/account-recovery/internal/core/port"
	"github.com/arklim/account-recovery/internal/infra/config"
	"github.com/arklim/account-recovery/internal/infra/database"
	kafkainfra "github.com/arklim/account-recovery/internal/infra/kafka"
	"github.com/arklim/account-recovery/internal/infra/logger"
	"github.com/arklim/account-recovery/internal/infra/mailer"
	redisinfra "github.com/arklim/account-recovery/internal/infra/redis"
	"github.com/arklim/account-recovery/internal/infra/security"
	"github.com/arklim/account-recovery/internal/infra/telemetry"
	postgresrepo "github.com/arklim/account-recovery/internal/repository/postgres"
	redisrepo "github.com/arklim/account-recovery/internal/repository/redis"
	"github.com/arklim/account-recovery/internal/transport/http/middleware"
	"github.com/arklim/account-recovery/internal/transport/http/routes"
	"github.com/arklim/account-recovery/internal/usecase"
)

// Version is reported by the index endpoint. Overridden at build time with -ldflags.
var Version = "dev"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	application := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			application.close(context.Background())
		}
	}()

	application.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	jwtManager, err := security.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return nil, fmt.Errorf("init jwt manager: %w", err)
	}

	application.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, application.pool, log); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	// Rate limiting fails open, so a missing Redis only disables it.
	var rateLimiter *middleware.RateLimiter
	application.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
	} else {
		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		store := redisrepo.NewRateLimitRepository(application.redis.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       window * 2,
		})
		rateLimiter = middleware.NewRateLimiter(store, log)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			application.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	notifier, err := mailer.New(cfg.Mail, cfg.Reset.CodeTTL, log)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	recoveryMetrics, err := telemetry.NewRecoveryMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init recovery metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	repos := postgresrepo.NewRepositories(application.pool)
	hasher := security.NewArgon2Hasher()
	passwordValidator := security.DefaultPasswordValidator(cfg.Password.MinLength, cfg.Password.MinStrength)

	authService := usecase.NewAuthService(repos.Users, hasher, jwtManager, eventPublisher, passwordValidator, recoveryMetrics, log)

	passwordResetService := usecase.NewPasswordResetService(repos.Users, repos.ResetTokens, notifier, hasher, eventPublisher, passwordValidator, recoveryMetrics, log)
	passwordResetService.WithTTL(cfg.Reset.CodeTTL)
	passwordResetService.WithResendWindow(cfg.Reset.ResendWindow)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Version:     Version,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Database:    application.pool,
		Services: routes.ServiceSet{
			Auth:          authService,
			PasswordReset: passwordResetService,
		},
	}
	if application.redis != nil {
		deps.Cache = application.redis
	}
	application.engine = routes.Register(deps)

	ok = true
	return application, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account recovery API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("version", Version),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
