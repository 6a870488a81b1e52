package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP handlers
func (s *FINQServer) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.corsMiddleware)

	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)

	r.HandleFunc("/datasets", s.HandleListDatasets).Methods(http.MethodGet)
	r.HandleFunc("/datasets/{id}", s.HandleIngest).Methods(http.MethodPost)
	r.HandleFunc("/datasets/{id}", s.HandleDeleteDataset).Methods(http.MethodDelete)
	r.HandleFunc("/runs", s.HandleRuns).Methods(http.MethodGet)

	r.HandleFunc("/financials", s.HandleFinancials).Methods(http.MethodGet)

	r.HandleFunc("/nl-query", s.HandleNLQuery).Methods(http.MethodPost)
	r.HandleFunc("/nl-converse", s.HandleNLConverse).Methods(http.MethodPost)
	r.HandleFunc("/ws/converse", s.HandleConverseWebSocket).Methods(http.MethodGet)

	r.HandleFunc("/analytics/forecast", s.HandleForecast).Methods(http.MethodGet)
	r.HandleFunc("/usage", s.HandleUsage).Methods(http.MethodGet)

	// Preflight requests reach the CORS middleware through this route
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return r
}
