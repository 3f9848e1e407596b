package api

import (
	"time"

	"github.com/lox/dripline/internal/forecast"
	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/store"
)

type HealthStatus struct {
	Status           string `json:"status"`
	MigrationVersion int    `json:"migration_version"`
	Measurements     int    `json:"measurements"`
	Error            string `json:"error,omitempty"`
}

type MeasurementWindow struct {
	Start        time.Time            `json:"start"`
	End          *time.Time           `json:"end,omitempty"`
	Count        int                  `json:"count"`
	Measurements []models.Measurement `json:"measurements"`
}

// CycleView is the JSON form of a cycle audit record.
type CycleView struct {
	ID              string                 `json:"id"`
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
	WindowSize      int                    `json:"window_size"`
	Predicted       *models.PredictedState `json:"predicted,omitempty"`
	Fused           *models.FusedState     `json:"fused,omitempty"`
	Irrigate        *bool                  `json:"irrigate,omitempty"`
	Reason          string                 `json:"reason,omitempty"`
	DurationSeconds *float64               `json:"duration_seconds,omitempty"`
	FailedStage     string                 `json:"failed_stage,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Narrative       string                 `json:"narrative,omitempty"`
}

func newCycleView(r models.CycleRecord, loc *time.Location) CycleView {
	v := CycleView{
		ID:          r.ID,
		StartedAt:   r.StartedAt.In(loc),
		FinishedAt:  r.FinishedAt.In(loc),
		WindowSize:  r.WindowSize,
		Predicted:   r.Predicted,
		Fused:       r.Fused,
		Reason:      r.Reason.String,
		FailedStage: r.FailedStage.String,
		Error:       r.ErrorMessage.String,
		Narrative:   r.Narrative.String,
	}
	if r.Irrigate.Valid {
		v.Irrigate = &r.Irrigate.Bool
	}
	if r.DurationSeconds.Valid {
		v.DurationSeconds = &r.DurationSeconds.Float64
	}
	return v
}

type CycleResult struct {
	ID       string                   `json:"id"`
	Forecast forecast.Summary         `json:"forecast"`
	Fused    *models.FusedState       `json:"fused"`
	Decision models.Decision          `json:"decision"`
	Command  models.IrrigationCommand `json:"command"`
}

type CycleFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type IngestHealth struct {
	Days    int                         `json:"days"`
	Summary []store.IngestHealthSummary `json:"summary"`
	Errors  []IngestError               `json:"recent_errors"`
}

type IngestError struct {
	StartedAt  time.Time `json:"started_at"`
	Source     string    `json:"source"`
	Endpoint   string    `json:"endpoint"`
	HTTPStatus int64     `json:"http_status,omitempty"`
	Error      string    `json:"error"`
}
