package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tree-census/internal/client"
	"tree-census/internal/config"
	"tree-census/internal/db"
	httphandler "tree-census/internal/http"
	"tree-census/internal/http/middleware"
	"tree-census/internal/logger"
	"tree-census/internal/model"
	"tree-census/internal/repository"
	"tree-census/internal/service"
	"tree-census/internal/session"
	"tree-census/internal/spatial"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)
	if cfg.Session.GeneratedSecret {
		appLogger.Warn().Msg("SESSION_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	recordRepo := repository.NewRecordRepository(database)
	purged, err := recordRepo.PurgeBefore(context.Background(), time.Now().UTC().Add(-cfg.Session.TTL))
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to purge stale sessions")
	}
	if purged > 0 {
		appLogger.Info().Int64("sessions", purged).Msg("purged stale sessions")
	}

	containment, err := spatial.ParseContainment(cfg.Import.Containment)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("invalid containment mode")
	}

	tokenIssuer := session.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TokenTTL)

	var dashboardService *service.DashboardService
	sessionStore := session.NewStore(cfg.Session.TTL, appLogger, func(id string) {
		dashboardService.Evicted(id)
	})
	dashboardService = service.NewDashboardService(
		recordRepo,
		sessionStore,
		tokenIssuer,
		client.NewDatasetClient(cfg),
		service.Options{
			Viewport: model.Viewport{
				Center: model.LatLng{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng},
				Zoom:   cfg.Map.Zoom,
			},
			Containment: containment,
			Jitter:      cfg.Import.JitterDegrees,
			SampleSize:  cfg.Import.SampleSize,
			SampleSeed:  cfg.Import.SampleSeed,
		},
		appLogger,
	)

	handler := httphandler.NewHandler(dashboardService, cfg.Import.MaxBytes, appLogger)
	sessionMiddleware := middleware.Session(tokenIssuer)
	router := httphandler.NewRouter(handler, sessionMiddleware, database, cfg.Environment, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Str("db_driver", cfg.DB.Driver).Msg("starting tree census service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
