package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Iakithega/blumn/internal/middleware"
	"github.com/Iakithega/blumn/internal/models"
	"github.com/Iakithega/blumn/internal/repository"
	"github.com/Iakithega/blumn/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type APIHandler struct {
	careService *services.CareService
	plantRepo   repository.PlantRepository
	recordRepo  repository.CareRecordRepository
	tokenRepo   repository.APITokenRepository
	validate    *validator.Validate
}

func NewAPIHandler(
	careService *services.CareService,
	plantRepo repository.PlantRepository,
	recordRepo repository.CareRecordRepository,
	tokenRepo repository.APITokenRepository,
) *APIHandler {
	return &APIHandler{
		careService: careService,
		plantRepo:   plantRepo,
		recordRepo:  recordRepo,
		tokenRepo:   tokenRepo,
		validate:    validator.New(),
	}
}

type createPlantRequest struct {
	Name                    string `json:"name" validate:"required,max=100"`
	WateringScheduleDays    int    `json:"watering_schedule_days" validate:"omitempty,min=1,max=365"`
	FertilizingScheduleDays int    `json:"fertilizing_schedule_days" validate:"omitempty,min=1,max=365"`
}

type updatePlantRequest struct {
	Name                    *string `json:"name" validate:"omitempty,max=100"`
	WateringScheduleDays    *int    `json:"watering_schedule_days" validate:"omitempty,min=1,max=365"`
	FertilizingScheduleDays *int    `json:"fertilizing_schedule_days" validate:"omitempty,min=1,max=365"`
}

type recordCareRequest struct {
	Date             string  `json:"date" validate:"required"`
	WaterAmount      *string `json:"water_amount" validate:"omitempty,max=50"`
	DaysWithoutWater *string `json:"days_without_water" validate:"omitempty,max=50"`
	Fertilizer       *string `json:"fertilizer" validate:"omitempty,max=50"`
	Treatment        *string `json:"treatment" validate:"omitempty,max=100"`
	Condition        *string `json:"condition"`
}

// ListPlants returns the derived care status per plant, in the order plants
// were first recorded.
func (handler *APIHandler) ListPlants(w http.ResponseWriter, r *http.Request) {
	statuses, err := handler.careService.Statuses(r.Context(), referenceDate(r))
	if err != nil {
		slog.Error("listing plant statuses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load plants"})
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (handler *APIHandler) GetPlant(w http.ResponseWriter, r *http.Request) {
	status, err := handler.careService.StatusForPlant(r.Context(), chi.URLParam(r, "id"), referenceDate(r))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "plant not found"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (handler *APIHandler) CreatePlant(w http.ResponseWriter, r *http.Request) {
	var request createPlantRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := handler.validate.Struct(request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	plant, err := handler.plantRepo.Create(r.Context(), models.Plant{
		Name:                    request.Name,
		WateringScheduleDays:    request.WateringScheduleDays,
		FertilizingScheduleDays: request.FertilizingScheduleDays,
	})
	if err != nil {
		slog.Error("creating plant", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create plant"})
		return
	}
	writeJSON(w, http.StatusCreated, plantResponse(plant))
}

func (handler *APIHandler) UpdatePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plant, err := handler.plantRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "plant not found"})
		return
	}

	var request updatePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := handler.validate.Struct(request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if request.Name != nil {
		plant.Name = *request.Name
	}
	if request.WateringScheduleDays != nil {
		plant.WateringScheduleDays = *request.WateringScheduleDays
	}
	if request.FertilizingScheduleDays != nil {
		plant.FertilizingScheduleDays = *request.FertilizingScheduleDays
	}

	if err := handler.plantRepo.Update(ctx, plant); err != nil {
		slog.Error("updating plant", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update plant"})
		return
	}
	writeJSON(w, http.StatusOK, plantResponse(plant))
}

func (handler *APIHandler) DeletePlant(w http.ResponseWriter, r *http.Request) {
	if err := handler.plantRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting plant", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete plant"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *APIHandler) PlantHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plant, err := handler.plantRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "plant not found"})
		return
	}

	records, err := handler.recordRepo.FindByPlantID(ctx, plant.ID)
	if err != nil {
		slog.Error("loading care history", "plant", plant.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}

	// ?watered=true narrows the history to watering events, using the same
	// predicate the analyzer applies.
	wateredOnly := r.URL.Query().Get("watered") == "true"

	response := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		if wateredOnly && !services.IsWateringEvent(record) {
			continue
		}
		response = append(response, careRecordResponse(record))
	}
	writeJSON(w, http.StatusOK, response)
}

func (handler *APIHandler) RecordCare(w http.ResponseWriter, r *http.Request) {
	var request recordCareRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := handler.validate.Struct(request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	date, err := services.ParseCareDate(request.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unrecognized date format"})
		return
	}

	record, err := handler.careService.RecordCare(r.Context(), chi.URLParam(r, "id"), services.CareInput{
		Date:             date,
		WaterAmount:      request.WaterAmount,
		DaysWithoutWater: request.DaysWithoutWater,
		Fertilizer:       request.Fertilizer,
		Treatment:        request.Treatment,
		Condition:        request.Condition,
	})
	if errors.Is(err, services.ErrNothingToRecord) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one care marker is required"})
		return
	}
	if err != nil {
		slog.Error("recording care", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record care"})
		return
	}
	writeJSON(w, http.StatusCreated, careRecordResponse(record))
}

func (handler *APIHandler) PlantPeriodicity(w http.ResponseWriter, r *http.Request) {
	entry, err := handler.careService.PeriodicityForPlant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "plant not found"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (handler *APIHandler) PeriodicityReport(w http.ResponseWriter, r *http.Request) {
	report, err := handler.careService.PeriodicityReport(r.Context())
	if err != nil {
		slog.Error("building periodicity report", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build report"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (handler *APIHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plantCount, err := handler.plantRepo.Count(ctx)
	if err != nil {
		slog.Error("counting plants", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
		return
	}
	recordCount, _ := handler.recordRepo.Count(ctx)

	statuses, err := handler.careService.Statuses(ctx, referenceDate(r))
	if err != nil {
		slog.Error("loading statuses for dashboard", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
		return
	}

	needsWater := 0
	needsFertilizer := 0
	for _, status := range statuses {
		if status.NeedsWater {
			needsWater++
		}
		if status.NeedsFertilizer {
			needsFertilizer++
		}
	}

	stats := map[string]interface{}{
		"plants":           plantCount,
		"care_records":     recordCount,
		"needs_water":      needsWater,
		"needs_fertilizer": needsFertilizer,
	}
	writeJSON(w, http.StatusOK, stats)
}

func (handler *APIHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	name := r.FormValue("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	rawToken := generateToken()
	token := models.APIToken{
		Name:            name,
		Scope:           r.FormValue("scope"),
		TokenHash:       repository.HashToken(rawToken),
		CreatedByUserID: user.ID,
	}

	created, err := handler.tokenRepo.Create(ctx, token)
	if err != nil {
		slog.Error("creating token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create token"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    created.ID,
		"name":  created.Name,
		"token": rawToken,
	})
}

func (handler *APIHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := handler.tokenRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete token"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// referenceDate reads an optional ?today=YYYY-MM-DD override so derived
// statuses stay testable; everything below the handlers takes today as a
// parameter instead of reading the clock.
func referenceDate(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("today"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			return parsed
		}
	}
	return time.Now()
}

func plantResponse(plant models.Plant) map[string]interface{} {
	return map[string]interface{}{
		"id":                        plant.ID,
		"name":                      plant.Name,
		"watering_schedule_days":    plant.WateringScheduleDays,
		"fertilizing_schedule_days": plant.FertilizingScheduleDays,
		"created_at":                plant.CreatedAt,
		"updated_at":                plant.UpdatedAt,
	}
}

func careRecordResponse(record models.CareRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":                 record.ID,
		"plant_id":           record.PlantID,
		"plant_name":         record.PlantName,
		"date":               record.Date.Format("2006-01-02"),
		"water_amount":       record.WaterAmount,
		"days_without_water": record.DaysWithoutWater,
		"fertilizer":         record.Fertilizer,
		"treatment":          record.Treatment,
		"condition":          record.Condition,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
