package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Iakithega/blumn/internal/middleware"
	"github.com/Iakithega/blumn/internal/models"
	"github.com/Iakithega/blumn/internal/repository"
	"github.com/Iakithega/blumn/internal/services"
	"github.com/Iakithega/blumn/internal/testutil"
	"github.com/go-chi/chi/v5"
)

const testToken = "test-api-token"

type apiFixture struct {
	router     http.Handler
	plantRepo  repository.PlantRepository
	recordRepo repository.CareRecordRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	plantRepo := repository.NewPlantRepository(db)
	recordRepo := repository.NewCareRecordRepository(db)
	tokenRepo := repository.NewAPITokenRepository(db)

	user, err := userRepo.Create(ctx, models.User{
		OIDCSubject: "test-subject",
		Email:       "gardener@example.com",
		Name:        "Gardener",
		Role:        models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if _, err := tokenRepo.Create(ctx, models.APIToken{
		Name:            "test",
		TokenHash:       repository.HashToken(testToken),
		CreatedByUserID: user.ID,
	}); err != nil {
		t.Fatalf("creating token: %v", err)
	}

	careService := services.NewCareService(plantRepo, recordRepo, 0, 0)
	apiHandler := NewAPIHandler(careService, plantRepo, recordRepo, tokenRepo)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(middleware.APITokenAuth(tokenRepo, userRepo))
		r.Get("/api/plants", apiHandler.ListPlants)
		r.Get("/api/plants/{id}", apiHandler.GetPlant)
		r.Get("/api/plants/{id}/history", apiHandler.PlantHistory)
		r.Get("/api/plants/{id}/periodicity", apiHandler.PlantPeriodicity)
		r.Get("/api/periodicity", apiHandler.PeriodicityReport)
		r.Get("/api/dashboard", apiHandler.DashboardStats)
		r.Post("/api/plants", apiHandler.CreatePlant)
		r.Put("/api/plants/{id}", apiHandler.UpdatePlant)
		r.Delete("/api/plants/{id}", apiHandler.DeletePlant)
		r.Post("/api/plants/{id}/care", apiHandler.RecordCare)
	})

	return &apiFixture{router: router, plantRepo: plantRepo, recordRepo: recordRepo}
}

func (fixture *apiFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, req)
	return recorder
}

func (fixture *apiFixture) seedPlant(t *testing.T, name string) models.Plant {
	t.Helper()
	plant, err := fixture.plantRepo.Create(context.Background(), models.Plant{Name: name})
	if err != nil {
		t.Fatalf("creating plant: %v", err)
	}
	return plant
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("decoding response %q: %v", recorder.Body.String(), err)
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	fixture := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plants", nil)
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/plants", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	recorder = httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", recorder.Code)
	}
}

func TestAPI_CreateAndListPlants(t *testing.T) {
	fixture := newAPIFixture(t)

	recorder := fixture.request(t, http.MethodPost, "/api/plants",
		`{"name": "Monstera", "watering_schedule_days": 10}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var created map[string]interface{}
	decodeJSON(t, recorder, &created)
	if created["name"] != "Monstera" {
		t.Errorf("unexpected name: %v", created["name"])
	}
	if created["watering_schedule_days"] != float64(10) {
		t.Errorf("unexpected schedule: %v", created["watering_schedule_days"])
	}
	if created["fertilizing_schedule_days"] != float64(0) {
		t.Errorf("expected zero fertilizing schedule (follows the global default), got %v",
			created["fertilizing_schedule_days"])
	}

	recorder = fixture.request(t, http.MethodGet, "/api/plants", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var statuses []map[string]interface{}
	decodeJSON(t, recorder, &statuses)
	if len(statuses) != 1 || statuses[0]["plant_name"] != "Monstera" {
		t.Errorf("unexpected statuses: %v", statuses)
	}
	// The derived status resolves the unset schedule to the effective default.
	if statuses[0]["fertilizing_schedule_days"] != float64(models.DefaultFertilizingScheduleDays) {
		t.Errorf("expected effective fertilizing schedule in status, got %v",
			statuses[0]["fertilizing_schedule_days"])
	}
}

func TestAPI_CreatePlantValidation(t *testing.T) {
	fixture := newAPIFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"watering_schedule_days": 7}`},
		{"schedule too large", `{"name": "Monstera", "watering_schedule_days": 1000}`},
		{"not json", `name=Monstera`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := fixture.request(t, http.MethodPost, "/api/plants", test.body)
			if recorder.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", recorder.Code)
			}
		})
	}
}

func TestAPI_RecordCareAndHistory(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")

	recorder := fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care",
		`{"date": "05.03.2024", "water_amount": "150"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var record map[string]interface{}
	decodeJSON(t, recorder, &record)
	if record["date"] != "2024-03-05" {
		t.Errorf("unexpected date: %v", record["date"])
	}

	recorder = fixture.request(t, http.MethodGet, "/api/plants/"+plant.ID+"/history", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var history []map[string]interface{}
	decodeJSON(t, recorder, &history)
	if len(history) != 1 || history[0]["water_amount"] != "150" {
		t.Errorf("unexpected history: %v", history)
	}
}

func TestAPI_HistoryWateredFilter(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")

	bodies := []string{
		`{"date": "2024-03-01", "water_amount": "150"}`,
		`{"date": "2024-03-03", "fertilizer": "npk"}`,
		`{"date": "2024-03-05", "days_without_water": "0"}`,
		`{"date": "2024-03-07", "days_without_water": "0.0"}`,
		`{"date": "2024-03-09", "days_without_water": "4"}`,
	}
	for _, body := range bodies {
		recorder := fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care", body)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
	}

	recorder := fixture.request(t, http.MethodGet, "/api/plants/"+plant.ID+"/history?watered=true", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var history []map[string]interface{}
	decodeJSON(t, recorder, &history)
	if len(history) != 3 {
		t.Fatalf("expected 3 watering events, got %d: %v", len(history), history)
	}
	wateringDates := []string{"2024-03-01", "2024-03-05", "2024-03-07"}
	for i, want := range wateringDates {
		if history[i]["date"] != want {
			t.Errorf("expected date %s at position %d, got %v", want, i, history[i]["date"])
		}
	}

	recorder = fixture.request(t, http.MethodGet, "/api/plants/"+plant.ID+"/history", "")
	decodeJSON(t, recorder, &history)
	if len(history) != 5 {
		t.Errorf("expected unfiltered history of 5, got %d", len(history))
	}
}

func TestAPI_RecordCareRejectsEmptyMarkers(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")

	recorder := fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care",
		`{"date": "05.03.2024"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty care update, got %d", recorder.Code)
	}

	recorder = fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care",
		`{"date": "garbage", "water_amount": "150"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", recorder.Code)
	}
}

func TestAPI_StatusUsesReferenceDate(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")

	recorder := fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care",
		`{"date": "2024-03-01", "water_amount": "150"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", recorder.Code)
	}

	recorder = fixture.request(t, http.MethodGet, "/api/plants/"+plant.ID+"?today=2024-03-10", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var status struct {
		DaysSinceWatering *int `json:"days_since_watering"`
		NeedsWater        bool `json:"needs_water"`
	}
	decodeJSON(t, recorder, &status)
	if status.DaysSinceWatering == nil || *status.DaysSinceWatering != 9 {
		t.Errorf("expected 9 days since watering, got %v", status.DaysSinceWatering)
	}
	if !status.NeedsWater {
		t.Error("expected plant to need water")
	}
}

func TestAPI_UpdateAndDeletePlant(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")

	recorder := fixture.request(t, http.MethodPut, "/api/plants/"+plant.ID,
		`{"watering_schedule_days": 3}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var updated map[string]interface{}
	decodeJSON(t, recorder, &updated)
	if updated["watering_schedule_days"] != float64(3) {
		t.Errorf("unexpected schedule: %v", updated["watering_schedule_days"])
	}
	if updated["name"] != "Monstera" {
		t.Errorf("expected name untouched, got %v", updated["name"])
	}

	recorder = fixture.request(t, http.MethodDelete, "/api/plants/"+plant.ID, "")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}

	recorder = fixture.request(t, http.MethodGet, "/api/plants/"+plant.ID, "")
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", recorder.Code)
	}
}

func TestAPI_PeriodicityEndpoints(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")

	for _, date := range []string{"2024-01-01", "2024-01-08", "2024-01-15"} {
		recorder := fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care",
			`{"date": "`+date+`", "water_amount": "150"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", recorder.Code)
		}
	}

	recorder := fixture.request(t, http.MethodGet, "/api/plants/"+plant.ID+"/periodicity", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var entry struct {
		PlantName    string   `json:"plant_name"`
		IntervalDays *float64 `json:"estimated_interval_days"`
		Method       string   `json:"method"`
	}
	decodeJSON(t, recorder, &entry)
	if entry.IntervalDays == nil || *entry.IntervalDays != 7.0 {
		t.Errorf("expected 7.0, got %v", entry.IntervalDays)
	}
	if entry.Method != "mean" {
		t.Errorf("expected mean, got %q", entry.Method)
	}

	recorder = fixture.request(t, http.MethodGet, "/api/periodicity", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var report []map[string]interface{}
	decodeJSON(t, recorder, &report)
	if len(report) != 1 || report[0]["plant_name"] != "Monstera" {
		t.Errorf("unexpected report: %v", report)
	}
}

func TestAPI_DashboardStats(t *testing.T) {
	fixture := newAPIFixture(t)
	plant := fixture.seedPlant(t, "Monstera")
	fixture.seedPlant(t, "Ficus")

	recorder := fixture.request(t, http.MethodPost, "/api/plants/"+plant.ID+"/care",
		`{"date": "2024-03-01", "water_amount": "150"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", recorder.Code)
	}

	recorder = fixture.request(t, http.MethodGet, "/api/dashboard?today=2024-03-10", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var stats map[string]float64
	decodeJSON(t, recorder, &stats)
	if stats["plants"] != 2 {
		t.Errorf("expected 2 plants, got %v", stats["plants"])
	}
	if stats["care_records"] != 1 {
		t.Errorf("expected 1 record, got %v", stats["care_records"])
	}
	if stats["needs_water"] != 1 {
		t.Errorf("expected 1 plant needing water, got %v", stats["needs_water"])
	}
}

func TestReferenceDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/plants?today=2024-03-10", nil)
	got := referenceDate(req)
	want := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/plants?today=garbage", nil)
	if time.Since(referenceDate(req)) > time.Minute {
		t.Error("expected fallback to the current time")
	}
}
