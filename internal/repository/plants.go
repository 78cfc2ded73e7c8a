package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Iakithega/blumn/internal/models"
	"github.com/google/uuid"
)

type PlantRepository interface {
	FindByID(ctx context.Context, id string) (models.Plant, error)
	FindByName(ctx context.Context, name string) (models.Plant, error)
	FindAll(ctx context.Context) ([]models.Plant, error)
	Create(ctx context.Context, plant models.Plant) (models.Plant, error)
	Update(ctx context.Context, plant models.Plant) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type SQLitePlantRepository struct {
	database *sql.DB
}

func NewPlantRepository(database *sql.DB) *SQLitePlantRepository {
	return &SQLitePlantRepository{database: database}
}

func (repository *SQLitePlantRepository) FindByID(ctx context.Context, id string) (models.Plant, error) {
	var plant models.Plant
	err := repository.database.QueryRowContext(ctx,
		`SELECT id, name, watering_schedule_days, fertilizing_schedule_days, created_at, updated_at
		FROM plants WHERE id = ?`, id,
	).Scan(&plant.ID, &plant.Name, &plant.WateringScheduleDays, &plant.FertilizingScheduleDays, &plant.CreatedAt, &plant.UpdatedAt)
	if err != nil {
		return models.Plant{}, fmt.Errorf("finding plant by id: %w", err)
	}
	return plant, nil
}

func (repository *SQLitePlantRepository) FindByName(ctx context.Context, name string) (models.Plant, error) {
	var plant models.Plant
	err := repository.database.QueryRowContext(ctx,
		`SELECT id, name, watering_schedule_days, fertilizing_schedule_days, created_at, updated_at
		FROM plants WHERE name = ?`, name,
	).Scan(&plant.ID, &plant.Name, &plant.WateringScheduleDays, &plant.FertilizingScheduleDays, &plant.CreatedAt, &plant.UpdatedAt)
	if err != nil {
		return models.Plant{}, fmt.Errorf("finding plant by name: %w", err)
	}
	return plant, nil
}

// FindAll returns plants in creation order, which for imported data is the
// order plants were first encountered in the spreadsheet.
func (repository *SQLitePlantRepository) FindAll(ctx context.Context) ([]models.Plant, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT id, name, watering_schedule_days, fertilizing_schedule_days, created_at, updated_at
		FROM plants ORDER BY created_at ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("finding all plants: %w", err)
	}
	defer rows.Close()

	var plants []models.Plant
	for rows.Next() {
		var plant models.Plant
		if err := rows.Scan(&plant.ID, &plant.Name, &plant.WateringScheduleDays, &plant.FertilizingScheduleDays, &plant.CreatedAt, &plant.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning plant: %w", err)
		}
		plants = append(plants, plant)
	}
	return plants, rows.Err()
}

func (repository *SQLitePlantRepository) Create(ctx context.Context, plant models.Plant) (models.Plant, error) {
	if plant.ID == "" {
		plant.ID = uuid.New().String()
	}
	now := time.Now()
	plant.CreatedAt = now
	plant.UpdatedAt = now

	// A zero schedule is stored as-is: it means the plant follows the
	// instance-wide default, resolved when statuses are derived.
	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO plants (id, name, watering_schedule_days, fertilizing_schedule_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		plant.ID, plant.Name, plant.WateringScheduleDays, plant.FertilizingScheduleDays, plant.CreatedAt, plant.UpdatedAt,
	)
	if err != nil {
		return models.Plant{}, fmt.Errorf("creating plant: %w", err)
	}
	return plant, nil
}

func (repository *SQLitePlantRepository) Update(ctx context.Context, plant models.Plant) error {
	plant.UpdatedAt = time.Now()
	_, err := repository.database.ExecContext(ctx,
		`UPDATE plants SET name = ?, watering_schedule_days = ?, fertilizing_schedule_days = ?, updated_at = ?
		WHERE id = ?`,
		plant.Name, plant.WateringScheduleDays, plant.FertilizingScheduleDays, plant.UpdatedAt, plant.ID,
	)
	if err != nil {
		return fmt.Errorf("updating plant: %w", err)
	}
	return nil
}

func (repository *SQLitePlantRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM plants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting plant: %w", err)
	}
	return nil
}

func (repository *SQLitePlantRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := repository.database.QueryRowContext(ctx, "SELECT COUNT(*) FROM plants").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting plants: %w", err)
	}
	return count, nil
}
