package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/dripline/internal/cycle"
	"github.com/lox/dripline/internal/export"
	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/store"
	"github.com/lox/dripline/internal/window"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 500
	ingestHealthDays  = 7
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// parseTime accepts RFC 3339 timestamps, or a bare date in the server's zone.
func (s *Server) parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, HealthStatus{Status: "error", Error: err.Error()})
		return
	}
	n, err := s.store.CountMeasurements(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, HealthStatus{Status: "error", MigrationVersion: version, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthStatus{Status: "ok", MigrationVersion: version, Measurements: n})
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := s.now().Add(-window.DefaultLookback)
	if v := q.Get("start"); v != "" {
		t, err := s.parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start = t
	}

	all, err := s.store.ScanAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	idx := window.NewIndex(all)

	resp := MeasurementWindow{Start: start}
	if v := q.Get("end"); v != "" {
		end, err := s.parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp.End = &end
		resp.Measurements = idx.Select(start, end)
	} else {
		resp.Measurements = idx.Since(start)
	}
	if resp.Measurements == nil {
		resp.Measurements = []models.Measurement{}
	}
	resp.Count = len(resp.Measurements)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, http.StatusBadRequest, errors.New("start and end are required"))
		return
	}
	start, err := s.parseTime(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := s.parseTime(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := export.NewExporter(s.store, nil).Export(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Name))
	w.Write(res.Data)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	limit := defaultCycleLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = min(n, maxCycleLimit)
	}

	records, err := s.store.GetRecentCycles(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]CycleView, 0, len(records))
	for _, rec := range records {
		views = append(views, newCycleView(rec, s.loc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("decision cycles are not configured"))
		return
	}

	out, err := s.runner.Run(r.Context())
	if err != nil {
		var se *cycle.StageError
		if errors.As(err, &se) {
			writeJSON(w, http.StatusBadGateway, CycleFailure{Stage: string(se.Stage), Error: se.Err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, CycleResult{
		ID:       out.Record.ID,
		Forecast: out.Forecast,
		Fused:    out.Record.Fused,
		Decision: out.Decision,
		Command:  out.Command,
	})
}

func (s *Server) handleIngestHealth(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.GetIngestHealth(r.Context(), ingestHealthDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	runs, err := s.store.GetRecentIngestErrors(r.Context(), 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := IngestHealth{Days: ingestHealthDays, Summary: summary, Errors: []IngestError{}}
	if resp.Summary == nil {
		resp.Summary = []store.IngestHealthSummary{}
	}
	for _, run := range runs {
		resp.Errors = append(resp.Errors, IngestError{
			StartedAt:  run.StartedAt,
			Source:     run.Source,
			Endpoint:   run.Endpoint,
			HTTPStatus: run.HTTPStatus.Int64,
			Error:      run.ErrorMessage.String,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
