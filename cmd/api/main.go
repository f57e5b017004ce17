package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"promptpix/internal/adapter/repo"
	"promptpix/internal/domain"
	"promptpix/internal/http/handlers"
	httpapi "promptpix/internal/http/httpapi"
	"promptpix/internal/imagegen"
	"promptpix/internal/infra"
	"promptpix/internal/infra/geoip"
	"promptpix/internal/middleware"
	"promptpix/internal/providers/imgbb"
	"promptpix/internal/providers/together"
	"promptpix/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.TogetherAPIKey == "" || cfg.ImgBBAPIKey == "" {
		logger.Warn().Msg("TOGETHER_API_KEY or IMGBB_API_KEY is not set; generation requests will fail until configured")
	}

	ctx := context.Background()

	var generations domain.GenerationRepository
	if cfg.PersistenceEnabled {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			logger.Warn().Msg("PERSISTENCE_ENABLED is set without DATABASE_URL; generation requests will fail until configured")
		} else {
			dbpool, err := infra.NewDBPool(ctx, cfg)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to connect database")
			}
			defer dbpool.Close()
			generationRepo := repo.NewGenerationRepository(infra.NewSQLRunner(dbpool, logger))
			schemaCtx, cancelSchema := context.WithTimeout(ctx, cfg.UpstreamTimeout)
			if err := generationRepo.EnsureSchema(schemaCtx); err != nil {
				logger.Warn().Err(err).Msg("could not ensure generations table")
			}
			cancelSchema()
			generations = generationRepo
		}
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.Lookup()
	}

	pipelineOpts := imagegen.Options{
		Settings: imagegen.SettingsFromConfig(cfg),
		Generator: together.NewClient(together.Options{
			APIKey:         cfg.TogetherAPIKey,
			BaseURL:        cfg.TogetherBaseURL,
			Model:          cfg.TogetherModel,
			Logger:         &logger,
			RequestTimeout: cfg.UpstreamTimeout,
		}),
		Uploader: imgbb.NewClient(imgbb.Options{
			APIKey:         cfg.ImgBBAPIKey,
			BaseURL:        cfg.ImgBBBaseURL,
			Expiration:     cfg.ImgBBExpiration,
			Logger:         &logger,
			RequestTimeout: cfg.UpstreamTimeout,
		}),
		Logger: logger.With().Str("component", "imagegen").Logger(),
	}
	if generations != nil {
		pipelineOpts.Recorder = generations
	}
	if cfg.ArchiveDir != "" {
		store, err := storage.NewFileStore(cfg.ArchiveDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", cfg.ArchiveDir).Msg("local archive disabled")
		} else {
			pipelineOpts.Archiver = store
		}
	}
	pipeline := imagegen.NewPipeline(pipelineOpts)

	app := handlers.NewApp(cfg, logger, pipeline, generations)
	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Bool("persistence", cfg.PersistenceEnabled).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
