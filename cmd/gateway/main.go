package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ratelimit-gateway/middleware/ratelimit"
	"ratelimit-gateway/middleware/ratelimit/domain"
	"ratelimit-gateway/middleware/ratelimit/infra"
)

func main() {
	if err := loadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "env file error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := readConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("gateway stopped", zap.Error(err))
	}
}

func newLogger(cfg config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(ctx context.Context, cfg config, log *zap.Logger) error {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	g, ctx := errgroup.WithContext(ctx)

	h := http.Handler(proxy)
	if cfg.RateEnabled {
		manager := infra.NewManager()
		defer manager.Close()

		storeCfg := infra.DefaultStoreConfig(cfg.RateNamespace)
		storeCfg.Driver = cfg.storeDriver()
		storeCfg.MaxKeys = cfg.RateMaxKeys
		if storeCfg.Driver == infra.DriverRedis {
			rdb, err := connectRedis(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()
			storeCfg.Redis = rdb
		}
		if err := manager.SetConfig(cfg.RateNamespace, storeCfg); err != nil {
			return err
		}

		var clock domain.Clock = domain.SystemClock{}
		if cfg.NTPServer != "" {
			ntpClock := infra.NewNTPClock(cfg.NTPServer)
			if err := ntpClock.Sync(); err != nil {
				log.Warn("ntp sync failed, using local clock offset 0", zap.String("server", cfg.NTPServer), zap.Error(err))
			}
			ntpClock.StartSync(ctx, cfg.NTPSyncEvery, func(err error) {
				log.Warn("ntp resync failed", zap.String("server", cfg.NTPServer), zap.Error(err))
			})
			log.Info("ntp clock enabled", zap.String("server", cfg.NTPServer), zap.Duration("offset", ntpClock.Offset()))
			clock = ntpClock
		}

		limiter, err := ratelimit.New(manager, ratelimit.Config{
			CacheNamespace: cfg.RateNamespace,
			Limit:          cfg.RateLimit,
			Period:         cfg.RatePeriod,
			Message:        cfg.RateMessage,
			DisableHeaders: cfg.RateDisableHeaders,
			KeyFn:          ratelimit.DefaultKeyFunc(cfg.RateKeyHeader, cfg.TrustXFF),
			Clock:          clock,
			Logger:         log.Named("ratelimit"),
			LockTimeout:    cfg.RateLockTimeout,
		})
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		h = ratelimit.Middleware(limiter)(h)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g.Go(func() error {
		log.Info("gateway listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("upstream", target.String()),
			zap.Bool("rate_enabled", cfg.RateEnabled),
			zap.Int("rate_limit", cfg.RateLimit),
			zap.Duration("rate_period", cfg.RatePeriod),
			zap.String("rate_store", string(cfg.storeDriver())),
			zap.String("rate_key_header", cfg.RateKeyHeader),
			zap.Bool("trust_xff", cfg.TrustXFF),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
