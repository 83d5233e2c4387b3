package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeowCollections/piping-server/internal/platform/config"
	"github.com/MeowCollections/piping-server/internal/platform/logger"
	"github.com/MeowCollections/piping-server/internal/platform/metrics"
	"github.com/MeowCollections/piping-server/internal/relay"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	defaultN := config.GetEnvInt("DEFAULT_N", relay.DefaultReceiverCount)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	shutdownTimeout := time.Duration(config.GetEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	h := relay.NewHandler(log, met, defaultN)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Content-Disposition", "X-Piping"},
		MaxAge:         86400,
	}))
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveRendezvous(h.Registry().Len()) }).ServeHTTP(w, r)
	})
	r.Mount("/", h)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"default_n", defaultN,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
