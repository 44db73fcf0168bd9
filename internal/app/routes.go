package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Recurring obligations
	r.HandleFunc("/api/recurring", deps.RecurringHandler.ListObligations).Methods("GET")
	r.HandleFunc("/api/recurring", deps.RecurringHandler.CreateObligation).Methods("POST")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.GetObligation).Methods("GET")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.UpdateObligation).Methods("PUT")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.DeleteObligation).Methods("DELETE")
	r.HandleFunc("/api/recurring/{id}/active", deps.RecurringHandler.SetActive).Methods("PATCH")
	r.HandleFunc("/api/recurring/{id}/advance", deps.RecurringHandler.AdvanceObligation).Methods("POST")

	// Forecast
	r.HandleFunc("/api/forecast", deps.ForecastHandler.GetForecast).Methods("GET")
	r.HandleFunc("/api/forecast/export", deps.ForecastHandler.ExportForecast).Methods("GET")

	// User management
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
}
