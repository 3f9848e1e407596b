package store

import (
	"context"
	"database/sql"
	"time"
)

// IngestRun audits one call to the sensor head or the forecast provider.
type IngestRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Source            string // "sensorhead", "weatherapi"
	Endpoint          string // "getdata", "forecast.json"
	LocationID        sql.NullString
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	RecordsParsed     sql.NullInt64
	RecordsStored     sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
}

// Observe records the HTTP outcome of the call. Zero values are left NULL.
func (r *IngestRun) Observe(status, size int) {
	r.HTTPStatus = sql.NullInt64{Int64: int64(status), Valid: status > 0}
	r.ResponseSizeBytes = sql.NullInt64{Int64: int64(size), Valid: size > 0}
}

// Finish sets the run's result. A nil err marks it successful.
func (r *IngestRun) Finish(parsed, stored int, err error) {
	r.Success = err == nil
	r.RecordsParsed = sql.NullInt64{Int64: int64(parsed), Valid: true}
	r.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
	if err != nil {
		r.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// StartIngestRun inserts an unfinished run. location may be empty.
func (s *Store) StartIngestRun(ctx context.Context, source, endpoint, location string) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt:  time.Now().UTC(),
		Source:     source,
		Endpoint:   endpoint,
		LocationID: nullString(location),
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (started_at, source, endpoint, location_id, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.Endpoint, run.LocationID)
	if err != nil {
		return nil, err
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) CompleteIngestRun(ctx context.Context, run *IngestRun) error {
	if run == nil {
		return nil
	}
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs SET
			finished_at = ?, http_status = ?, response_size_bytes = ?,
			records_parsed = ?, records_stored = ?, success = ?, error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.ResponseSizeBytes,
		run.RecordsParsed, run.RecordsStored, run.Success, run.ErrorMessage, run.ID)
	return err
}

// IngestHealthSummary aggregates a day of runs for one source and endpoint.
type IngestHealthSummary struct {
	Date         string `json:"date"`
	Source       string `json:"source"`
	Endpoint     string `json:"endpoint"`
	TotalRuns    int    `json:"total_runs"`
	SuccessRuns  int    `json:"success_runs"`
	FailedRuns   int    `json:"failed_runs"`
	TotalRecords int64  `json:"total_records"`
}

// GetIngestHealth summarises the runs of the last days days, newest day first.
func (s *Store) GetIngestHealth(ctx context.Context, days int) ([]IngestHealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) AS day,
			source,
			endpoint,
			COUNT(*),
			SUM(CASE WHEN success THEN 1 ELSE 0 END),
			SUM(CASE WHEN success THEN 0 ELSE 1 END),
			COALESCE(SUM(records_stored), 0)
		FROM ingest_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY day, source, endpoint
		ORDER BY day DESC, source, endpoint
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestHealthSummary
	for rows.Next() {
		var h IngestHealthSummary
		if err := rows.Scan(&h.Date, &h.Source, &h.Endpoint, &h.TotalRuns,
			&h.SuccessRuns, &h.FailedRuns, &h.TotalRecords); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetRecentIngestErrors returns the latest failed runs, newest first.
func (s *Store) GetRecentIngestErrors(ctx context.Context, limit int) ([]IngestRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, source, endpoint, location_id,
			http_status, response_size_bytes, records_parsed, records_stored,
			success, error_message
		FROM ingest_runs
		WHERE NOT success
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestRun
	for rows.Next() {
		var r IngestRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Endpoint,
			&r.LocationID, &r.HTTPStatus, &r.ResponseSizeBytes,
			&r.RecordsParsed, &r.RecordsStored, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
