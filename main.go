package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/Iakithega/blumn/internal/config"
	"github.com/Iakithega/blumn/internal/database"
	"github.com/Iakithega/blumn/internal/repository"
	"github.com/Iakithega/blumn/internal/server"
	"github.com/Iakithega/blumn/internal/services"
)

func main() {
	importPath := flag.String("import", "", "import a CSV export of the legacy spreadsheet and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	plantRepo := repository.NewPlantRepository(db)
	recordRepo := repository.NewCareRecordRepository(db)

	if *importPath != "" {
		importService := services.NewImportService(plantRepo, recordRepo)
		stats, err := importService.ImportFile(context.Background(), *importPath)
		if err != nil {
			slog.Error("importing spreadsheet export", "error", err)
			os.Exit(1)
		}
		for _, message := range stats.Errors {
			slog.Warn("import row skipped", "detail", message)
		}
		return
	}

	userRepo := repository.NewUserRepository(db)

	ctx := context.Background()
	authService, err := services.NewAuthService(ctx, cfg, userRepo)
	if err != nil {
		slog.Error("creating auth service", "error", err)
		os.Exit(1)
	}

	careService := services.NewCareService(plantRepo, recordRepo, cfg.WateringScheduleDays, cfg.FertilizingScheduleDays)
	go runWateringReminder(careService)

	srv := server.New(db, cfg, authService)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}

func runWateringReminder(careService *services.CareService) {
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		ctx := context.Background()
		needing, err := careService.PlantsNeedingWater(ctx, time.Now())
		if err != nil {
			slog.Error("checking plants needing water", "error", err)
		}
		for _, status := range needing {
			slog.Info("plant needs water", "plant", status.PlantName, "days_since_watering", *status.DaysSinceWatering)
		}
		<-ticker.C
	}
}
