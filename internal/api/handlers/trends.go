package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/pipeline"
	"github.com/wonny/polltrend/internal/store"
	"github.com/wonny/polltrend/pkg/config"
	"github.com/wonny/polltrend/pkg/logger"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// TrendHandler serves trend runs
// ⭐ SSOT: Trend API 핸들러는 이 구조체에서만
type TrendHandler struct {
	store  store.Store
	runner Runner
	logger *logger.Logger

	mu         sync.Mutex
	refreshing bool
}

// NewTrendHandler creates a trend handler. runner may be nil, which disables refresh.
func NewTrendHandler(st store.Store, runner Runner, log *logger.Logger) *TrendHandler {
	return &TrendHandler{
		store:  st,
		runner: runner,
		logger: log,
	}
}

// TrendRow is one grid date of the trend table
type TrendRow struct {
	Date   string              `json:"date"`
	Values map[string]*float64 `json:"values"`
}

// TrendsResponse is the latest trend table
type TrendsResponse struct {
	RunID      string     `json:"run_id"`
	FinishedAt time.Time  `json:"finished_at"`
	Candidates []string   `json:"candidates"`
	Rows       []TrendRow `json:"rows"`
}

// GetTrends returns the trend table of the latest run
// GET /api/trends?limit=30
func (h *TrendHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w, r)
	if !ok {
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	table := run.Result.Trends
	n := table.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	resp := TrendsResponse{
		RunID:      run.ID,
		FinishedAt: run.FinishedAt,
		Candidates: table.Candidates,
		Rows:       make([]TrendRow, 0, n),
	}
	for i := 0; i < n; i++ {
		row := TrendRow{
			Date:   table.Dates[i].Format(config.DateLayout),
			Values: make(map[string]*float64, len(table.Candidates)),
		}
		for _, c := range table.Candidates {
			row.Values[c] = table.Value(c, i)
		}
		resp.Rows = append(resp.Rows, row)
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetOutliers returns outliers of the latest run
// GET /api/outliers?level=average|observation&candidate=Name
func (h *TrendHandler) GetOutliers(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w, r)
	if !ok {
		return
	}

	level := contracts.OutlierLevel(r.URL.Query().Get("level"))
	candidate := r.URL.Query().Get("candidate")

	var records []contracts.OutlierRecord
	switch level {
	case "", contracts.OutlierAverage, contracts.OutlierObservation:
	default:
		respondError(w, http.StatusBadRequest, "level must be average or observation")
		return
	}

	if level == "" || level == contracts.OutlierAverage {
		records = append(records, run.Result.AverageOutliers...)
	}
	if level == "" || level == contracts.OutlierObservation {
		for _, c := range run.Result.Trends.Candidates {
			records = append(records, run.Result.ObservationOutliers[c]...)
		}
	}

	filtered := make([]contracts.OutlierRecord, 0, len(records))
	for _, rec := range records {
		if candidate == "" || rec.Candidate == candidate {
			filtered = append(filtered, rec)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   run.ID,
		"count":    len(filtered),
		"outliers": filtered,
	})
}

// GetDiagnostics returns the data-quality warnings of the latest run
// GET /api/diagnostics
func (h *TrendHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   run.ID,
		"warnings": run.Diagnostics.Warnings,
	})
}

// ListRuns returns recent run summaries
// GET /api/runs?limit=10
func (h *TrendHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 {
		limit = 10
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []contracts.RunSummary{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRun returns one run by id
// GET /api/runs/{id}
func (h *TrendHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, contracts.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", id).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// Refresh runs the pipeline now
// POST /api/trends/refresh
func (h *TrendHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "refresh is not enabled")
		return
	}

	h.mu.Lock()
	if h.refreshing {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "refresh already in progress")
		return
	}
	h.refreshing = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.refreshing = false
		h.mu.Unlock()
	}()

	report, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Refresh failed")
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, contracts.ErrFormat), errors.Is(err, contracts.ErrDateParse):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, contracts.ErrConfig), errors.Is(err, contracts.ErrContract):
			status = http.StatusInternalServerError
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report.Run.Summary())
}

// latest loads the latest run or writes the error response
func (h *TrendHandler) latest(w http.ResponseWriter, r *http.Request) (*contracts.TrendRun, bool) {
	run, err := h.store.LatestRun(r.Context())
	if errors.Is(err, contracts.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "no trend run available yet")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return nil, false
	}
	return run, true
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
