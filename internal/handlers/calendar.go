package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Iakithega/blumn/internal/repository"
	"github.com/Iakithega/blumn/internal/services"
)

type CalendarHandler struct {
	careService   *services.CareService
	tokenRepo     repository.APITokenRepository
	calendarToken string
}

func NewCalendarHandler(careService *services.CareService, tokenRepo repository.APITokenRepository, calendarToken string) *CalendarHandler {
	return &CalendarHandler{
		careService:   careService,
		tokenRepo:     tokenRepo,
		calendarToken: calendarToken,
	}
}

// Feed serves the upcoming care dates as an iCal calendar, one all-day event
// per plant per due care type. Authorized by the static calendar token or an
// API token with the calendar scope.
func (handler *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	authorized := handler.calendarToken != "" && token == handler.calendarToken
	if !authorized {
		tokenHash := repository.HashToken(token)
		if found, err := handler.tokenRepo.FindByTokenHash(r.Context(), tokenHash); err == nil &&
			found.Scope == "calendar" &&
			(found.ExpiresAt == nil || found.ExpiresAt.After(time.Now())) {
			authorized = true
		}
	}
	if !authorized {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	statuses, err := handler.careService.Statuses(r.Context(), now)
	if err != nil {
		slog.Error("loading statuses for calendar", "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	calendar := ics.NewCalendar()
	calendar.SetMethod(ics.MethodPublish)
	calendar.SetProductId("-//Blumn//Plant Care//EN")
	calendar.SetCalscale("GREGORIAN")
	calendar.SetName("Blumn Plant Care")

	for _, status := range statuses {
		addCareEvent(calendar, status.PlantID, "Water", status.PlantName,
			nextDueDate(status.LastWatered, status.WateringScheduleDays, now), now)
		addCareEvent(calendar, status.PlantID, "Fertilize", status.PlantName,
			nextDueDate(status.LastFertilized, status.FertilizingScheduleDays, now), now)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=blumn-care.ics")
	w.Write([]byte(calendar.Serialize()))
}

// nextDueDate projects the next due day from the last care date. A plant with
// no history is due today rather than invisible.
func nextDueDate(last *time.Time, scheduleDays int, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if last == nil {
		return today
	}
	due := last.AddDate(0, 0, scheduleDays)
	if due.Before(today) {
		return today
	}
	return due
}

func addCareEvent(calendar *ics.Calendar, plantID, action, plantName string, due, now time.Time) {
	uid := fmt.Sprintf("%s-%s@blumn", plantID, action)
	event := calendar.AddEvent(uid)
	event.SetSummary(fmt.Sprintf("%s %s", action, plantName))
	event.SetDtStampTime(now.UTC())
	event.SetAllDayStartAt(due)
	event.SetAllDayEndAt(due.AddDate(0, 0, 1))
}
