package models

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type CareType string

const (
	CareWatering    CareType = "watering"
	CareFertilizing CareType = "fertilizing"
)

const (
	DefaultWateringScheduleDays    = 7
	DefaultFertilizingScheduleDays = 14
)

type User struct {
	ID          string
	OIDCSubject string
	Email       string
	Name        string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Plant struct {
	ID   string
	Name string

	WateringScheduleDays    int
	FertilizingScheduleDays int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CareRecord is one plant on one day. Optional markers are nil when the
// column was empty. DaysWithoutWater keeps the raw legacy spreadsheet value
// because the string "0" is one of the two watering signals.
type CareRecord struct {
	ID        string
	PlantID   string
	PlantName string
	Date      time.Time

	WaterAmount      *string
	DaysWithoutWater *string
	Fertilizer       *string
	Treatment        *string
	Condition        *string

	CreatedAt time.Time
}

// RawCareRow is a spreadsheet-shaped row before date parsing. Treatment
// markers are still split across their original columns.
type RawCareRow struct {
	PlantName        string
	Date             string
	DaysWithoutWater string
	WaterAmount      string
	Fertilizer       string
	Wash             string
	NeemOil          string
	PestMix          string
	Condition        string
}

// PlantSeries is one plant's records sorted by date ascending.
type PlantSeries struct {
	PlantName string
	Records   []CareRecord
}

type PlantCareStatus struct {
	PlantID   string `json:"plant_id,omitempty"`
	PlantName string `json:"plant_name"`

	LastWatered    *time.Time `json:"last_watered"`
	LastFertilized *time.Time `json:"last_fertilized"`

	DaysSinceWatering    *int `json:"days_since_watering"`
	DaysSinceFertilizing *int `json:"days_since_fertilizing"`

	WateringScheduleDays    int `json:"watering_schedule_days"`
	FertilizingScheduleDays int `json:"fertilizing_schedule_days"`

	NeedsWater      bool `json:"needs_water"`
	NeedsFertilizer bool `json:"needs_fertilizer"`
}

const (
	PeriodicityMethodMean      = "mean"
	PeriodicityMethodMovingAvg = "moving_avg"
)

// PeriodicityEstimate is the derived watering interval for one plant.
// IntervalDays and Method are absent when fewer than two watering dates
// exist. SampleCount is the number of watering dates observed.
type PeriodicityEstimate struct {
	IntervalDays *float64 `json:"estimated_interval_days"`
	Method       string   `json:"method,omitempty"`
	SampleCount  int      `json:"sample_count"`
}

type PeriodicityReportEntry struct {
	PlantID   string `json:"plant_id,omitempty"`
	PlantName string `json:"plant_name"`
	PeriodicityEstimate
}

type APIToken struct {
	ID              string
	Name            string
	TokenHash       string
	Scope           string
	CreatedByUserID string
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}
