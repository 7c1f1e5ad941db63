package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/webpilot/backend/internal/api"
	"github.com/webpilot/backend/internal/config"
	"github.com/webpilot/backend/internal/events"
	"github.com/webpilot/backend/internal/repo"
	"github.com/webpilot/backend/internal/usecase"
	"github.com/webpilot/backend/pkg/logger"
	"github.com/webpilot/backend/pkg/meili"
	"github.com/webpilot/backend/pkg/oracle"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.IsDev())
	log := logger.Log

	var gem *oracle.Gemini
	if cfg.GeminiAPIKey != "" {
		var err error
		gem, err = oracle.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize oracle")
		}
		log.Info().Str("model", cfg.GeminiModel).Msg("oracle ready")
	} else {
		log.Warn().Msg("no GEMINI_API_KEY, planning falls back to heuristics")
	}

	var streams *repo.WorkstreamRepo
	if cfg.MongoURL != "" {
		var err error
		streams, err = repo.NewWorkstreamRepo(cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to MongoDB")
		}
		defer streams.Close()
		log.Info().Str("db", cfg.MongoDB).Msg("mongodb connected")
	}

	var search *meili.Client
	if cfg.MeiliURL != "" {
		var err error
		search, err = meili.New(cfg.MeiliURL, cfg.MeiliKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Meilisearch")
		}
	}

	var bus *events.Publisher
	if cfg.NatsURL != "" {
		natsClient, err := events.New(cfg.NatsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsClient.Close()
		bus = events.NewPublisher(natsClient)
	}

	tasks := usecase.NewTask(cfg, gem, streams, search, bus)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024,
	})
	api.NewHandler(tasks).SetupRoutes(app)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("webpilot started")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("HTTP server error")
	}
}
