package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/Iakithega/blumn/internal/config"
	"github.com/Iakithega/blumn/internal/handlers"
	"github.com/Iakithega/blumn/internal/middleware"
	"github.com/Iakithega/blumn/internal/repository"
	"github.com/Iakithega/blumn/internal/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	router *chi.Mux
	config config.Config
}

func New(database *sql.DB, cfg config.Config, authService *services.AuthService) *Server {
	userRepo := repository.NewUserRepository(database)
	plantRepo := repository.NewPlantRepository(database)
	recordRepo := repository.NewCareRecordRepository(database)
	tokenRepo := repository.NewAPITokenRepository(database)

	careService := services.NewCareService(plantRepo, recordRepo, cfg.WateringScheduleDays, cfg.FertilizingScheduleDays)

	authHandler := handlers.NewAuthHandler(authService)
	apiHandler := handlers.NewAPIHandler(careService, plantRepo, recordRepo, tokenRepo)
	calendarHandler := handlers.NewCalendarHandler(careService, tokenRepo, cfg.CalendarToken)

	router := chi.NewRouter()

	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Get("/login", authHandler.Login)
	router.Get("/auth/callback", authHandler.Callback)
	router.Get("/logout", authHandler.Logout)

	router.Get("/calendar", calendarHandler.Feed)

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

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(authService))
		r.Use(middleware.RequireAdmin)

		r.Post("/api/tokens", apiHandler.CreateToken)
		r.Delete("/api/tokens/{id}", apiHandler.DeleteToken)
	})

	server := &Server{
		router: router,
		config: cfg,
	}

	return server
}

func (server *Server) Start() error {
	address := ":" + server.config.Port
	slog.Info("starting server", "address", address)
	return http.ListenAndServe(address, server.router)
}

func (server *Server) Handler() http.Handler {
	return server.router
}
