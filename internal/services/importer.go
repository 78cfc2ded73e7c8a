package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Iakithega/blumn/internal/models"
	"github.com/Iakithega/blumn/internal/repository"
)

// Spreadsheet export column order. Column F held a derived
// days-without-fertilizer value and is not imported; size is kept out of the
// care history too, it was a free-form pot size note.
const (
	columnDate = iota
	columnPlantName
	columnDaysWithoutWater
	columnWaterAmount
	columnFertilizer
	columnGap
	columnWash
	columnNeemOil
	columnPestMix
	columnSize
	columnCondition
	columnCount
)

type ImportStats struct {
	PlantsCreated  int
	RecordsWritten int
	RowsProcessed  int
	RowsSkipped    int
	Errors         []string
}

type ImportService struct {
	plantRepo  repository.PlantRepository
	recordRepo repository.CareRecordRepository
}

func NewImportService(plantRepo repository.PlantRepository, recordRepo repository.CareRecordRepository) *ImportService {
	return &ImportService{
		plantRepo:  plantRepo,
		recordRepo: recordRepo,
	}
}

// ImportFile reads a CSV export of the legacy spreadsheet and writes it into
// the database. The header row is taken as the schema declaration and
// skipped. Rows with an unparseable date or a blank plant name are counted
// and skipped; duplicate (plant, date) rows resolve last-seen-wins.
func (service *ImportService) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("opening import file: %w", err)
	}
	defer file.Close()

	stats, err := service.importReader(ctx, file)
	if err != nil {
		return stats, err
	}

	slog.Info("import finished",
		"plants_created", stats.PlantsCreated,
		"records_written", stats.RecordsWritten,
		"rows_processed", stats.RowsProcessed,
		"rows_skipped", stats.RowsSkipped,
		"errors", len(stats.Errors),
	)
	return stats, nil
}

func (service *ImportService) importReader(ctx context.Context, source io.Reader) (ImportStats, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1

	var stats ImportStats
	plants := make(map[string]models.Plant)

	rowNumber := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading csv row: %w", err)
		}

		rowNumber++
		if rowNumber == 1 {
			continue // header
		}

		raw := rowToRawCareRow(row)

		name := strings.TrimSpace(raw.PlantName)
		if name == "" {
			stats.RowsSkipped++
			continue
		}

		date, err := ParseCareDate(raw.Date)
		if err != nil {
			stats.RowsSkipped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
			continue
		}

		plant, known := plants[name]
		if !known {
			plant, err = service.findOrCreatePlant(ctx, name, &stats)
			if err != nil {
				stats.RowsSkipped++
				stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
				continue
			}
			plants[name] = plant
		}

		record := models.CareRecord{
			PlantID:   plant.ID,
			PlantName: plant.Name,
			Date:      date,
		}
		if value := strings.TrimSpace(raw.WaterAmount); value != "" {
			record.WaterAmount = &value
		}
		if value := strings.TrimSpace(raw.DaysWithoutWater); value != "" {
			record.DaysWithoutWater = &value
		}
		if value := strings.TrimSpace(raw.Fertilizer); value != "" {
			record.Fertilizer = &value
		}
		record.Treatment = CombineTreatments(raw.Wash, raw.NeemOil, raw.PestMix)
		if value := strings.TrimSpace(raw.Condition); value != "" {
			record.Condition = &value
		}

		if _, err := service.recordRepo.Upsert(ctx, record); err != nil {
			stats.RowsSkipped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
			continue
		}

		stats.RowsProcessed++
		stats.RecordsWritten++
	}

	return stats, nil
}

func (service *ImportService) findOrCreatePlant(ctx context.Context, name string, stats *ImportStats) (models.Plant, error) {
	plant, err := service.plantRepo.FindByName(ctx, name)
	if err == nil {
		return plant, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Plant{}, fmt.Errorf("looking up plant %q: %w", name, err)
	}

	plant, err = service.plantRepo.Create(ctx, models.Plant{Name: name})
	if err != nil {
		return models.Plant{}, fmt.Errorf("creating plant %q: %w", name, err)
	}
	stats.PlantsCreated++
	return plant, nil
}

func rowToRawCareRow(row []string) models.RawCareRow {
	field := func(index int) string {
		if index < len(row) {
			return row[index]
		}
		return ""
	}
	return models.RawCareRow{
		Date:             field(columnDate),
		PlantName:        field(columnPlantName),
		DaysWithoutWater: field(columnDaysWithoutWater),
		WaterAmount:      field(columnWaterAmount),
		Fertilizer:       field(columnFertilizer),
		Wash:             field(columnWash),
		NeemOil:          field(columnNeemOil),
		PestMix:          field(columnPestMix),
		Condition:        field(columnCondition),
	}
}
