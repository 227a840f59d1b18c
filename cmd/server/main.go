package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"thailaw-council/internal/config"
	"thailaw-council/internal/council"
	"thailaw-council/internal/gateway"
	"thailaw-council/internal/retrieval"
	"thailaw-council/internal/server"
	"thailaw-council/internal/storage"
	"thailaw-council/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gw := gateway.New(gateway.Config{
		APIKey:         cfg.OpenRouter.APIKey,
		BaseURL:        cfg.OpenRouter.BaseURL,
		DefaultTimeout: cfg.OpenRouter.Timeout,
	})

	aggregator, cleanup := buildRetrieval(cfg)
	defer cleanup()

	orchestrator, err := council.New(gw, aggregator, council.Config{
		Members:             cfg.Council.Members,
		Chairman:            cfg.Council.Chairman,
		FallbackChairmen:    cfg.Council.FallbackChairmen,
		TitleModel:          cfg.Council.TitleModel,
		StageTimeout:        cfg.Council.StageTimeout,
		TitleTimeout:        cfg.Council.TitleTimeout,
		RateLimitRetryDelay: cfg.Council.RateLimitRetryDelay,
	})
	if err != nil {
		logger.Fatal("failed to build council", zap.Error(err))
	}

	store, err := storage.NewStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("failed to open conversation store", zap.Error(err))
	}

	srv := server.New(server.Config{
		APIKey:         cfg.WordPress.APIKey,
		AllowedOrigins: cfg.WordPress.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, store, orchestrator)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting ThaiLawOnline council backend",
		zap.String("addr", addr),
		zap.Strings("members", cfg.Council.Members),
		zap.String("chairman", cfg.Council.Chairman))

	if err := srv.Router().Run(addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// buildRetrieval assembles the configured retrieval sources into an
// aggregator and returns a cleanup function for any held connections.
func buildRetrieval(cfg *config.Config) (*retrieval.Aggregator, func()) {
	var sources []retrieval.Source
	cleanup := func() {}

	switch cfg.Vortex.Type {
	case "mysql":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		vortex, err := retrieval.OpenVortex(ctx, retrieval.VortexConfig{
			Host:     cfg.Vortex.MySQLHost,
			Port:     cfg.Vortex.MySQLPort,
			User:     cfg.Vortex.MySQLUser,
			Password: cfg.Vortex.MySQLPass,
			Database: cfg.Vortex.MySQLDB,
		})
		if err != nil {
			// Vortex being down must not take the service down with it;
			// fall back to the JSON files.
			logger.Warn("vortex database unavailable, falling back to JSON files", zap.Error(err))
			sources = append(sources, retrieval.NewDirSource(cfg.Vortex.JSONDir))
		} else {
			sources = append(sources, vortex)
			cleanup = func() { vortex.Close() }
		}
	case "json_files":
		sources = append(sources, retrieval.NewDirSource(cfg.Vortex.JSONDir))
	}

	if cfg.Notion.Enabled {
		sources = append(sources, retrieval.NewNotionSource(cfg.Notion.APIKey))
	}

	if len(cfg.Pages.URLs) > 0 {
		sources = append(sources, retrieval.NewPageSource(cfg.Pages.URLs))
	}

	return retrieval.NewAggregator(sources, cfg.Vortex.MaxChunks, cfg.Retrieval.CacheTTL), cleanup
}
