package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// upstream simples para validar o gateway manualmente:
//
//	UPSTREAM_URL=http://localhost:8081 go run ./cmd/gateway
//	curl -i http://localhost:8080/showTela
func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/showTela", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso!</p>")
		log.Info("showTela", zap.String("remote", r.RemoteAddr), zap.String("xff", r.Header.Get("X-Forwarded-For")))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("upstream listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("upstream error", zap.Error(err))
	}
}
