package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratelimit-gateway/middleware/ratelimit"
	"ratelimit-gateway/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: o limiter embutido direto no router da aplicação (sem proxy)
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	manager := infra.NewManager()
	defer manager.Close()

	// rotas /api usam um namespace próprio com ristretto; o resto cai no padrão (memória)
	if err := manager.SetConfig("api", infra.StoreConfig{Driver: infra.DriverRistretto, MaxKeys: 10_000}); err != nil {
		log.Fatal("store config", zap.Error(err))
	}

	site := ratelimit.MustNew(manager, ratelimit.Config{
		Limit:  10,
		Period: 10 * time.Second,
		Logger: log,
		SkipFn: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})
	api := ratelimit.MustNew(manager, ratelimit.Config{
		CacheNamespace: "api",
		Limit:          5,
		Period:         time.Minute,
		KeyFn:          ratelimit.DefaultKeyFunc("X-Api-Key", true),
		Headers:        &ratelimit.HeaderNames{Limit: "X-Api-Limit", Remaining: "X-Api-Remaining", Reset: "X-Api-Reset"},
		Logger:         log,
	})

	r := mux.NewRouter()
	r.Use(ratelimit.Middleware(site))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	sub := r.PathPrefix("/api").Subrouter()
	sub.Use(ratelimit.Middleware(api))
	sub.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("example server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
