package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Iakithega/blumn/internal/models"
	"github.com/Iakithega/blumn/internal/repository"
)

var ErrNothingToRecord = errors.New("care update has no markers set")

// CareInput carries the markers for one care action on one date. Nil fields
// leave whatever is already recorded for that day untouched.
type CareInput struct {
	Date             time.Time
	WaterAmount      *string
	DaysWithoutWater *string
	Fertilizer       *string
	Treatment        *string
	Condition        *string
}

type CareService struct {
	plantRepo  repository.PlantRepository
	recordRepo repository.CareRecordRepository

	defaultWateringDays    int
	defaultFertilizingDays int
}

// NewCareService takes the instance-wide schedule defaults; plants with a
// zero schedule follow them. Non-positive defaults fall back to the built-in
// constants.
func NewCareService(plantRepo repository.PlantRepository, recordRepo repository.CareRecordRepository, defaultWateringDays, defaultFertilizingDays int) *CareService {
	if defaultWateringDays <= 0 {
		defaultWateringDays = models.DefaultWateringScheduleDays
	}
	if defaultFertilizingDays <= 0 {
		defaultFertilizingDays = models.DefaultFertilizingScheduleDays
	}
	return &CareService{
		plantRepo:              plantRepo,
		recordRepo:             recordRepo,
		defaultWateringDays:    defaultWateringDays,
		defaultFertilizingDays: defaultFertilizingDays,
	}
}

func (service *CareService) StatusForPlant(ctx context.Context, plantID string, today time.Time) (models.PlantCareStatus, error) {
	plant, err := service.plantRepo.FindByID(ctx, plantID)
	if err != nil {
		return models.PlantCareStatus{}, err
	}
	return service.statusFor(ctx, plant, today)
}

// Statuses derives a status per plant in creation order. A failure loading
// one plant's history is logged and skips that plant only.
func (service *CareService) Statuses(ctx context.Context, today time.Time) ([]models.PlantCareStatus, error) {
	plants, err := service.plantRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading plants: %w", err)
	}

	statuses := make([]models.PlantCareStatus, 0, len(plants))
	for _, plant := range plants {
		status, err := service.statusFor(ctx, plant, today)
		if err != nil {
			slog.Error("deriving plant status", "plant", plant.Name, "error", err)
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (service *CareService) statusFor(ctx context.Context, plant models.Plant, today time.Time) (models.PlantCareStatus, error) {
	records, err := service.recordRepo.FindByPlantID(ctx, plant.ID)
	if err != nil {
		return models.PlantCareStatus{}, fmt.Errorf("loading care records: %w", err)
	}

	watering := plant.WateringScheduleDays
	if watering <= 0 {
		watering = service.defaultWateringDays
	}
	fertilizing := plant.FertilizingScheduleDays
	if fertilizing <= 0 {
		fertilizing = service.defaultFertilizingDays
	}

	status, err := BuildStatus(plant.Name, records, today, watering, fertilizing)
	if err != nil {
		return models.PlantCareStatus{}, err
	}
	status.PlantID = plant.ID
	return status, nil
}

func (service *CareService) PeriodicityForPlant(ctx context.Context, plantID string) (models.PeriodicityReportEntry, error) {
	plant, err := service.plantRepo.FindByID(ctx, plantID)
	if err != nil {
		return models.PeriodicityReportEntry{}, err
	}
	records, err := service.recordRepo.FindByPlantID(ctx, plant.ID)
	if err != nil {
		return models.PeriodicityReportEntry{}, fmt.Errorf("loading care records: %w", err)
	}
	return models.PeriodicityReportEntry{
		PlantID:             plant.ID,
		PlantName:           plant.Name,
		PeriodicityEstimate: RoundInterval(Periodicity(records)),
	}, nil
}

func (service *CareService) PeriodicityReport(ctx context.Context) ([]models.PeriodicityReportEntry, error) {
	plants, err := service.plantRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading plants: %w", err)
	}

	report := make([]models.PeriodicityReportEntry, 0, len(plants))
	for _, plant := range plants {
		records, err := service.recordRepo.FindByPlantID(ctx, plant.ID)
		if err != nil {
			slog.Error("loading care records for periodicity", "plant", plant.Name, "error", err)
			continue
		}
		report = append(report, models.PeriodicityReportEntry{
			PlantID:             plant.ID,
			PlantName:           plant.Name,
			PeriodicityEstimate: RoundInterval(Periodicity(records)),
		})
	}
	return report, nil
}

// RecordCare writes the markers for one plant and date, merging into the
// existing record for that day when there is one.
func (service *CareService) RecordCare(ctx context.Context, plantID string, input CareInput) (models.CareRecord, error) {
	if input.WaterAmount == nil && input.DaysWithoutWater == nil && input.Fertilizer == nil &&
		input.Treatment == nil && input.Condition == nil {
		return models.CareRecord{}, ErrNothingToRecord
	}

	plant, err := service.plantRepo.FindByID(ctx, plantID)
	if err != nil {
		return models.CareRecord{}, err
	}

	day := time.Date(input.Date.Year(), input.Date.Month(), input.Date.Day(), 0, 0, 0, 0, time.UTC)
	record := models.CareRecord{
		PlantID:          plant.ID,
		PlantName:        plant.Name,
		Date:             day,
		WaterAmount:      input.WaterAmount,
		DaysWithoutWater: input.DaysWithoutWater,
		Fertilizer:       input.Fertilizer,
		Treatment:        input.Treatment,
		Condition:        input.Condition,
	}

	existing, err := service.recordRepo.FindAll(ctx, repository.CareRecordFilter{
		PlantID: &plant.ID,
		From:    &day,
		To:      &day,
	})
	if err != nil {
		return models.CareRecord{}, fmt.Errorf("loading existing record: %w", err)
	}
	if len(existing) > 0 {
		record = mergeCareRecord(existing[0], record)
	}

	return service.recordRepo.Upsert(ctx, record)
}

func mergeCareRecord(existing, update models.CareRecord) models.CareRecord {
	merged := existing
	if update.WaterAmount != nil {
		merged.WaterAmount = update.WaterAmount
	}
	if update.DaysWithoutWater != nil {
		merged.DaysWithoutWater = update.DaysWithoutWater
	}
	if update.Fertilizer != nil {
		merged.Fertilizer = update.Fertilizer
	}
	if update.Treatment != nil {
		merged.Treatment = update.Treatment
	}
	if update.Condition != nil {
		merged.Condition = update.Condition
	}
	return merged
}

// PlantsNeedingWater backs the dashboard and the reminder log.
func (service *CareService) PlantsNeedingWater(ctx context.Context, today time.Time) ([]models.PlantCareStatus, error) {
	statuses, err := service.Statuses(ctx, today)
	if err != nil {
		return nil, err
	}
	var needing []models.PlantCareStatus
	for _, status := range statuses {
		if status.NeedsWater {
			needing = append(needing, status)
		}
	}
	return needing, nil
}
