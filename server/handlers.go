package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/ingest"
	"github.com/teranos/FINQ/logger"
	"github.com/teranos/FINQ/version"
)

// HandleHealth reports liveness and the build version
func (s *FINQServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get().Version,
		"state":   stateString(s.getState()),
	})
}

type ingestRequest struct {
	FilePath string `json:"file_path"`
	Format   string `json:"format,omitempty"`
}

// HandleIngest loads a server-side file into the dataset named in the path
func (s *FINQServer) HandleIngest(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["id"]

	var req ingestRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		s.writeError(w, r, errors.Wrap(errors.ErrMissingField, "file_path"))
		return
	}

	src, err := ingest.Describe(req.FilePath, req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Loader.Ingest(r.Context(), datasetID, src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLogger(r).Infow("Dataset ingested via API",
		logger.FieldDatasetID, datasetID,
		logger.FieldAdded, res.Added,
		logger.FieldTotal, res.Total,
	)
	_ = writeJSON(w, http.StatusOK, res)
}

// HandleListDatasets lists dataset summaries
func (s *FINQServer) HandleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.deps.Store.Datasets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, datasets)
}

// HandleDeleteDataset removes every record of a dataset
func (s *FINQServer) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["id"]

	deleted, err := s.deps.Store.DeleteDataset(r.Context(), datasetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLogger(r).Infow("Dataset deleted", logger.FieldDatasetID, datasetID, logger.FieldCount, deleted)
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"deleted":    deleted,
	})
}

// HandleRuns lists recent ingestion runs
func (s *FINQServer) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	runs, err := s.deps.Store.Runs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, runs)
}

// HandleFinancials lists records matching the optional query filters
func (s *FINQServer) HandleFinancials(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.deps.Store.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, records)
}

// HandleForecast projects a metric's monthly totals
func (s *FINQServer) HandleForecast(w http.ResponseWriter, r *http.Request) {
	if s.deps.Forecaster == nil {
		s.writeError(w, r, errors.Wrap(errors.ErrServiceUnavailable, "forecasting is not configured"))
		return
	}

	q := r.URL.Query()
	periods, err := intParam(q.Get("periods"), "periods", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Forecaster.Forecast(r.Context(), q.Get("metric"), periods)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, res)
}

// HandleUsage reports language model usage for the last days days
func (s *FINQServer) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		s.writeError(w, r, errors.Wrap(errors.ErrServiceUnavailable, "usage tracking is not configured"))
		return
	}

	days, err := intParam(r.URL.Query().Get("days"), "days", 7)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.deps.Usage.GetReport(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, report)
}
