package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/scorefluence/prelaunch/internal/http/handlers"
	mw "github.com/scorefluence/prelaunch/internal/http/middleware"
	"github.com/scorefluence/prelaunch/internal/mailer"
	"github.com/scorefluence/prelaunch/internal/storage"
	"github.com/scorefluence/prelaunch/pkg/config"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	selector := storage.NewSelector(cfg)
	defer selector.Close()

	// Instantiate the backend up front so a misconfigured durable store is
	// visible at startup instead of on the first request.
	store := selector.Store(context.Background())
	logger.Info("storage backend ready", "kind", store.Kind())

	mail := mailer.New(cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	h := handlers.New(selector, mail, cfg)
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting pre-launch registration API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
