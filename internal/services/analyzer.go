package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Iakithega/blumn/internal/models"
)

// movingAverageWindow is the number of most recent watering gaps used for the
// periodicity estimate once a plant has enough history. Early-lifetime
// irregularity should not skew the estimate forever.
const movingAverageWindow = 5

// careDateLayouts in preference order: day.month.year as written in the
// spreadsheet, then ISO, then the remaining formats seen in old exports.
var careDateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// ParseCareDate parses one of the accepted textual date formats and truncates
// to a calendar date.
func ParseCareDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range careDateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// IsWateringEvent reports whether a record marks a watering. Two historical
// signals count, either alone is enough: the legacy days-without-water column
// reset to zero, or a non-empty water amount.
func IsWateringEvent(record models.CareRecord) bool {
	if record.DaysWithoutWater != nil {
		raw := strings.TrimSpace(*record.DaysWithoutWater)
		if raw == "0" {
			return true
		}
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed == 0 {
			return true
		}
	}
	if record.WaterAmount != nil && strings.TrimSpace(*record.WaterAmount) != "" {
		return true
	}
	return false
}

func IsFertilizingEvent(record models.CareRecord) bool {
	return record.Fertilizer != nil && strings.TrimSpace(*record.Fertilizer) != ""
}

// CombineTreatments folds the separate spreadsheet treatment columns into one
// descriptive field, e.g. "wash(leaves), neemoil(5ml)".
func CombineTreatments(wash, neemOil, pestMix string) *string {
	var parts []string
	if value := strings.TrimSpace(wash); value != "" {
		parts = append(parts, fmt.Sprintf("wash(%s)", value))
	}
	if value := strings.TrimSpace(neemOil); value != "" {
		parts = append(parts, fmt.Sprintf("neemoil(%s)", value))
	}
	if value := strings.TrimSpace(pestMix); value != "" {
		parts = append(parts, fmt.Sprintf("pestmix(%s)", value))
	}
	if len(parts) == 0 {
		return nil
	}
	combined := strings.Join(parts, ", ")
	return &combined
}

// Normalize groups raw rows by plant and sorts each plant's records by date
// ascending. Rows whose date cannot be parsed or whose plant name is blank
// are dropped. Plants keep the order they were first encountered in, and the
// sort is stable so same-date duplicates keep their input order.
func Normalize(rows []models.RawCareRow) []models.PlantSeries {
	var order []string
	grouped := make(map[string][]models.CareRecord)

	for _, row := range rows {
		name := strings.TrimSpace(row.PlantName)
		if name == "" {
			continue
		}
		date, err := ParseCareDate(row.Date)
		if err != nil {
			continue
		}

		record := models.CareRecord{
			PlantName: name,
			Date:      date,
		}
		if value := strings.TrimSpace(row.WaterAmount); value != "" {
			record.WaterAmount = &value
		}
		if value := strings.TrimSpace(row.DaysWithoutWater); value != "" {
			record.DaysWithoutWater = &value
		}
		if value := strings.TrimSpace(row.Fertilizer); value != "" {
			record.Fertilizer = &value
		}
		record.Treatment = CombineTreatments(row.Wash, row.NeemOil, row.PestMix)
		if value := strings.TrimSpace(row.Condition); value != "" {
			record.Condition = &value
		}

		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], record)
	}

	series := make([]models.PlantSeries, 0, len(order))
	for _, name := range order {
		records := grouped[name]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Date.Before(records[j].Date)
		})
		series = append(series, models.PlantSeries{PlantName: name, Records: records})
	}
	return series
}

// LastCareDate returns the latest date in the series on which the given care
// type happened, or nil if it never did. A single forward scan keeps the last
// match, so later non-matching rows do not clear an earlier one.
func LastCareDate(records []models.CareRecord, careType models.CareType) (*time.Time, error) {
	var matches func(models.CareRecord) bool
	switch careType {
	case models.CareWatering:
		matches = IsWateringEvent
	case models.CareFertilizing:
		matches = IsFertilizingEvent
	default:
		return nil, fmt.Errorf("unknown care type %q", careType)
	}

	var last *time.Time
	for i := range records {
		if matches(records[i]) {
			date := records[i].Date
			last = &date
		}
	}
	return last, nil
}

// DaysSince returns whole days between last and today, or nil when last is
// absent. A today before last gives a negative count rather than an error.
func DaysSince(today time.Time, last *time.Time) *int {
	if last == nil {
		return nil
	}
	todayDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	days := int(todayDay.Sub(lastDay).Hours() / 24)
	return &days
}

// Overdue is boundary inclusive: exactly schedule days since care counts as
// overdue. Absent data is never overdue.
func Overdue(daysSince *int, scheduleDays int) bool {
	return daysSince != nil && *daysSince >= scheduleDays
}

// Periodicity estimates the average watering interval from the series. With
// fewer than movingAverageWindow gaps it averages all of them ("mean");
// beyond that only the most recent window counts ("moving_avg") so a drifted
// cadence is tracked instead of the lifetime average.
//
// Duplicate watering dates in the input are deliberately not deduplicated:
// the zero-length gap they produce matches how the spreadsheet handler always
// behaved. The database path cannot produce them (one record per plant/day).
func Periodicity(records []models.CareRecord) models.PeriodicityEstimate {
	var dates []time.Time
	for i := range records {
		if IsWateringEvent(records[i]) {
			dates = append(dates, records[i].Date)
		}
	}

	estimate := models.PeriodicityEstimate{SampleCount: len(dates)}
	if len(dates) < 2 {
		return estimate
	}

	gaps := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, dates[i].Sub(dates[i-1]).Hours()/24)
	}

	method := models.PeriodicityMethodMean
	window := gaps
	if len(gaps) >= movingAverageWindow {
		method = models.PeriodicityMethodMovingAvg
		window = gaps[len(gaps)-movingAverageWindow:]
	}

	var sum float64
	for _, gap := range window {
		sum += gap
	}
	interval := sum / float64(len(window))

	estimate.IntervalDays = &interval
	estimate.Method = method
	return estimate
}

// BuildStatus derives the care status for one plant from its chronological
// series. Pure function of its inputs; a plant with no valid records yields
// all-absent fields with both flags false. Non-positive schedules are a
// caller error.
func BuildStatus(plantName string, records []models.CareRecord, today time.Time, wateringScheduleDays, fertilizingScheduleDays int) (models.PlantCareStatus, error) {
	if wateringScheduleDays <= 0 {
		return models.PlantCareStatus{}, fmt.Errorf("watering schedule must be positive, got %d", wateringScheduleDays)
	}
	if fertilizingScheduleDays <= 0 {
		return models.PlantCareStatus{}, fmt.Errorf("fertilizing schedule must be positive, got %d", fertilizingScheduleDays)
	}

	lastWatered, err := LastCareDate(records, models.CareWatering)
	if err != nil {
		return models.PlantCareStatus{}, err
	}
	lastFertilized, err := LastCareDate(records, models.CareFertilizing)
	if err != nil {
		return models.PlantCareStatus{}, err
	}

	daysSinceWatering := DaysSince(today, lastWatered)
	daysSinceFertilizing := DaysSince(today, lastFertilized)

	return models.PlantCareStatus{
		PlantName:               plantName,
		LastWatered:             lastWatered,
		LastFertilized:          lastFertilized,
		DaysSinceWatering:       daysSinceWatering,
		DaysSinceFertilizing:    daysSinceFertilizing,
		WateringScheduleDays:    wateringScheduleDays,
		FertilizingScheduleDays: fertilizingScheduleDays,
		NeedsWater:              Overdue(daysSinceWatering, wateringScheduleDays),
		NeedsFertilizer:         Overdue(daysSinceFertilizing, fertilizingScheduleDays),
	}, nil
}

// RoundInterval rounds a periodicity estimate to one decimal for reports.
func RoundInterval(estimate models.PeriodicityEstimate) models.PeriodicityEstimate {
	if estimate.IntervalDays == nil {
		return estimate
	}
	rounded := math.Round(*estimate.IntervalDays*10) / 10
	estimate.IntervalDays = &rounded
	return estimate
}
