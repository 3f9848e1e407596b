package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lox/dripline/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append stores a measurement and returns the id assigned to it. The id is
// max(id)+1 at write time; the caller's ID field is ignored.
func (s *Store) Append(ctx context.Context, m models.Measurement) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM measurements`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next measurement id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO measurements (id, captured_at, soil_moisture, pressure, temperature, humidity)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, m.Timestamp.UTC(), models.Round2(m.SoilMoisture), models.Round2(m.Pressure), models.Round2(m.Temperature), models.Round2(m.Humidity))
	if err != nil {
		return 0, fmt.Errorf("insert measurement %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit measurement %d: %w", id, err)
	}
	return id, nil
}

// ScanAll returns every stored measurement. No order is guaranteed.
func (s *Store) ScanAll(ctx context.Context) ([]models.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, captured_at, soil_moisture, pressure, temperature, humidity
		FROM measurements
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.SoilMoisture, &m.Pressure, &m.Temperature, &m.Humidity); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

func (s *Store) CountMeasurements(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM measurements`).Scan(&n)
	return n, err
}

// InsertCycle writes the audit record of one decision cycle.
func (s *Store) InsertCycle(ctx context.Context, r models.CycleRecord) error {
	var pSoil, pPressure, pTemp, pHum sql.NullFloat64
	if r.Predicted != nil {
		pSoil = sql.NullFloat64{Float64: r.Predicted.SoilMoisture, Valid: true}
		pPressure = sql.NullFloat64{Float64: r.Predicted.Pressure, Valid: true}
		pTemp = sql.NullFloat64{Float64: r.Predicted.Temperature, Valid: true}
		pHum = sql.NullFloat64{Float64: r.Predicted.Humidity, Valid: true}
	}
	var fSoil, fPressure, fTemp, fHum, precip sql.NullFloat64
	var rain sql.NullBool
	if r.Fused != nil {
		fSoil = sql.NullFloat64{Float64: r.Fused.SoilMoisture, Valid: true}
		fPressure = sql.NullFloat64{Float64: r.Fused.Pressure, Valid: true}
		fTemp = sql.NullFloat64{Float64: r.Fused.Temperature, Valid: true}
		fHum = sql.NullFloat64{Float64: r.Fused.Humidity, Valid: true}
		precip = sql.NullFloat64{Float64: r.Fused.PrecipitationMM, Valid: true}
		rain = sql.NullBool{Bool: r.Fused.RainExpected, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (id, started_at, finished_at, window_size,
			predicted_soil_moisture, predicted_pressure, predicted_temperature, predicted_humidity,
			fused_soil_moisture, fused_pressure, fused_temperature, fused_humidity,
			rain_expected, precipitation_mm, irrigate, reason, duration_seconds,
			failed_stage, error_message, narrative)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.WindowSize,
		pSoil, pPressure, pTemp, pHum,
		fSoil, fPressure, fTemp, fHum,
		rain, precip, r.Irrigate, r.Reason, r.DurationSeconds,
		r.FailedStage, r.ErrorMessage, r.Narrative)
	return err
}

// SetCycleNarrative attaches a generated narrative to an existing cycle.
func (s *Store) SetCycleNarrative(ctx context.Context, id, narrative string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cycles SET narrative = ? WHERE id = ?`, narrative, id)
	return err
}

// GetRecentCycles returns the most recent cycles, newest first.
func (s *Store) GetRecentCycles(ctx context.Context, limit int) ([]models.CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, window_size,
			predicted_soil_moisture, predicted_pressure, predicted_temperature, predicted_humidity,
			fused_soil_moisture, fused_pressure, fused_temperature, fused_humidity,
			rain_expected, precipitation_mm, irrigate, reason, duration_seconds,
			failed_stage, error_message, narrative
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CycleRecord
	for rows.Next() {
		var r models.CycleRecord
		var pSoil, pPressure, pTemp, pHum sql.NullFloat64
		var fSoil, fPressure, fTemp, fHum, precip sql.NullFloat64
		var rain sql.NullBool
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.WindowSize,
			&pSoil, &pPressure, &pTemp, &pHum,
			&fSoil, &fPressure, &fTemp, &fHum,
			&rain, &precip, &r.Irrigate, &r.Reason, &r.DurationSeconds,
			&r.FailedStage, &r.ErrorMessage, &r.Narrative); err != nil {
			return nil, err
		}
		if pSoil.Valid {
			r.Predicted = &models.PredictedState{
				SoilMoisture: pSoil.Float64,
				Pressure:     pPressure.Float64,
				Temperature:  pTemp.Float64,
				Humidity:     pHum.Float64,
			}
		}
		if fSoil.Valid {
			r.Fused = &models.FusedState{
				SoilMoisture:    fSoil.Float64,
				Pressure:        fPressure.Float64,
				Temperature:     fTemp.Float64,
				Humidity:        fHum.Float64,
				RainExpected:    rain.Bool,
				PrecipitationMM: precip.Float64,
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
