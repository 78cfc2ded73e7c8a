package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Iakithega/blumn/internal/models"
	"github.com/google/uuid"
)

type CareRecordFilter struct {
	PlantID *string
	From    *time.Time
	To      *time.Time
}

type CareRecordRepository interface {
	FindByPlantID(ctx context.Context, plantID string) ([]models.CareRecord, error)
	FindAll(ctx context.Context, filter CareRecordFilter) ([]models.CareRecord, error)
	Upsert(ctx context.Context, record models.CareRecord) (models.CareRecord, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type SQLiteCareRecordRepository struct {
	database *sql.DB
}

func NewCareRecordRepository(database *sql.DB) *SQLiteCareRecordRepository {
	return &SQLiteCareRecordRepository{database: database}
}

const careRecordColumns = `care_records.id, care_records.plant_id, plants.name,
	care_records.care_date, care_records.water_amount, care_records.days_without_water,
	care_records.fertilizer, care_records.treatment, care_records.condition, care_records.created_at`

func (repository *SQLiteCareRecordRepository) FindByPlantID(ctx context.Context, plantID string) ([]models.CareRecord, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT `+careRecordColumns+`
		FROM care_records JOIN plants ON plants.id = care_records.plant_id
		WHERE care_records.plant_id = ?
		ORDER BY care_records.care_date ASC, care_records.created_at ASC`,
		plantID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding care records by plant: %w", err)
	}
	defer rows.Close()

	return scanCareRecords(rows)
}

func (repository *SQLiteCareRecordRepository) FindAll(ctx context.Context, filter CareRecordFilter) ([]models.CareRecord, error) {
	query := `SELECT ` + careRecordColumns + `
		FROM care_records JOIN plants ON plants.id = care_records.plant_id
		WHERE 1=1`

	var args []interface{}

	if filter.PlantID != nil {
		query += " AND care_records.plant_id = ?"
		args = append(args, *filter.PlantID)
	}
	if filter.From != nil {
		query += " AND care_records.care_date >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND care_records.care_date <= ?"
		args = append(args, *filter.To)
	}
	query += " ORDER BY care_records.care_date ASC, care_records.created_at ASC"

	rows, err := repository.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding care records: %w", err)
	}
	defer rows.Close()

	return scanCareRecords(rows)
}

// Upsert writes one record per plant per day. A second write for the same
// plant and date replaces the markers of the first, so raw duplicates resolve
// last-seen-wins. The conflict path keeps the stored row's id and created_at,
// which RETURNING reads back so the returned record matches the row.
func (repository *SQLiteCareRecordRepository) Upsert(ctx context.Context, record models.CareRecord) (models.CareRecord, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = time.Now()
	record.Date = time.Date(record.Date.Year(), record.Date.Month(), record.Date.Day(), 0, 0, 0, 0, time.UTC)

	err := repository.database.QueryRowContext(ctx,
		`INSERT INTO care_records (id, plant_id, care_date, water_amount, days_without_water, fertilizer, treatment, condition, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plant_id, care_date) DO UPDATE SET
			water_amount = excluded.water_amount,
			days_without_water = excluded.days_without_water,
			fertilizer = excluded.fertilizer,
			treatment = excluded.treatment,
			condition = excluded.condition
		RETURNING id, created_at`,
		record.ID, record.PlantID, record.Date,
		record.WaterAmount, record.DaysWithoutWater, record.Fertilizer, record.Treatment, record.Condition,
		record.CreatedAt,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return models.CareRecord{}, fmt.Errorf("upserting care record: %w", err)
	}
	return record, nil
}

func (repository *SQLiteCareRecordRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM care_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting care record: %w", err)
	}
	return nil
}

func (repository *SQLiteCareRecordRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := repository.database.QueryRowContext(ctx, "SELECT COUNT(*) FROM care_records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting care records: %w", err)
	}
	return count, nil
}

func scanCareRecords(rows *sql.Rows) ([]models.CareRecord, error) {
	var records []models.CareRecord
	for rows.Next() {
		var record models.CareRecord
		if err := rows.Scan(
			&record.ID, &record.PlantID, &record.PlantName,
			&record.Date, &record.WaterAmount, &record.DaysWithoutWater,
			&record.Fertilizer, &record.Treatment, &record.Condition, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning care record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
