package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/mercury-council/api/internal/config"
	"github.com/freeeve/mercury-council/api/internal/handler"
	"github.com/freeeve/mercury-council/api/internal/llm"
	"github.com/freeeve/mercury-council/api/internal/logger"
	"github.com/freeeve/mercury-council/api/internal/middleware"
	"github.com/freeeve/mercury-council/api/internal/repository/postgres"
	redisrepo "github.com/freeeve/mercury-council/api/internal/repository/redis"
	"github.com/freeeve/mercury-council/api/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Store and cache
	store := postgres.NewStore(db)

	// LLM provider
	provider := llm.Select(cfg)
	log.Info().Str("provider", provider.ProviderName()).Str("model", provider.ModelName()).Msg("LLM provider selected")

	// Services
	engine := service.NewEngine(store, redisClient, provider, cfg)
	query := service.NewQuery(store, redisClient)

	// Router
	mux := http.NewServeMux()
	handler.NewGameHandler(engine, query).Register(mux)

	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
