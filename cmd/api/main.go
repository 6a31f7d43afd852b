package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bazarche-storefront/api/controllers"
	"github.com/angelmondragon/bazarche-storefront/api/routes"
	"github.com/angelmondragon/bazarche-storefront/internal/poller"
	"github.com/angelmondragon/bazarche-storefront/internal/sessions"
	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
	"github.com/angelmondragon/bazarche-storefront/internal/users"
	"github.com/angelmondragon/bazarche-storefront/pkg/config"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"github.com/angelmondragon/bazarche-storefront/pkg/redis"
)

const (
	serviceName     = "bazarche-storefront"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	backendMetrics := metrics.NewBackendMetrics(promReg)
	jobMetrics := metrics.NewJobMetrics(promReg)
	storefrontMetrics := metrics.NewStorefrontMetrics(promReg)

	var attempts users.AttemptStore = users.NewMemoryAttemptStore()
	var readiness controllers.Pinger
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		attempts = redis.NewAttemptStore(redisClient, redis.DefaultAttemptRetention)
		readiness = redisClient
	}

	var seed *storefront.SeedData
	if cfg.Seed.Enabled {
		demo := storefront.DemoSeed()
		seed = &demo
	}

	registry, err := sessions.NewRegistry(sessions.Params{
		Logger: logg,
		Factory: sessions.NewFactory(sessions.FactoryParams{
			BaseURL:         cfg.Backend.BaseURL(),
			Timeout:         cfg.Backend.Timeout,
			CommentCacheTTL: cfg.Comments.CacheTTL,
			BackendMetrics:  backendMetrics,
			Template: storefront.Params{
				Logger:    logg,
				StoreName: cfg.Store.Name,
				Attempts:  attempts,
				RateLimit: users.RateLimitPolicy{
					MaxFailures: cfg.LoginRateLimit.MaxFailures,
					Lockout:     cfg.LoginRateLimit.Lockout,
				},
				Metrics:      storefrontMetrics,
				JobMetrics:   jobMetrics,
				PollInterval: cfg.Comments.PollInterval,
				Seed:         seed,
			},
			LoadCatalog: true,
		}),
		IdleTTL: cfg.Session.TTL,
		Metrics: storefrontMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session registry", err)
		os.Exit(1)
	}
	defer registry.Close()

	sweeper, err := poller.NewService(poller.ServiceParams{
		Logger:   logg,
		Registry: poller.NewRegistry(poller.JobFunc{JobName: "sessions.sweep", Fn: registry.Sweep}),
		Metrics:  jobMetrics,
		Interval: cfg.Session.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session sweeper", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"backend": cfg.Backend.BaseURL(),
	})

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweeper stopped unexpectedly", err)
		}
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:   cfg,
			Logger:   logg,
			Sessions: registry,
			Metrics:  promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}),
			Redis:    readiness,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting storefront api")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "storefront api stopped unexpectedly", err)
			stop()
			<-sweepDone
			registry.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(ctx, "storefront api shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "storefront api shutdown failed", err)
	}
	<-sweepDone
}
