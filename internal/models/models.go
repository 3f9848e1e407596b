package models

import (
	"database/sql"
	"errors"
	"time"
)

// Measurement is one sensor head sample. ID is assigned by the store as max(ID)+1.
type Measurement struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	SoilMoisture float64   `json:"soil_moisture"`
	Pressure     float64   `json:"pressure"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
}

// ForecastSample is one hourly weather prediction.
type ForecastSample struct {
	Time            time.Time `json:"time"`
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	Pressure        float64   `json:"pressure"`
	WillRain        bool      `json:"will_rain"`
	RainChance      int       `json:"rain_chance"` // 0-100
	PrecipitationMM float64   `json:"precipitation_mm"`
}

// Position is the GPS fix reported by the sensor head.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PredictedState is the oracle's estimate for the next time step.
type PredictedState struct {
	SoilMoisture float64 `json:"soil_moisture"`
	Pressure     float64 `json:"pressure"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
}

// FusedState combines a prediction with the forecast window.
type FusedState struct {
	SoilMoisture    float64 `json:"soil_moisture"`
	Pressure        float64 `json:"pressure"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	RainExpected    bool    `json:"rain_expected"`
	PrecipitationMM float64 `json:"precipitation_mm"`
}

// ThresholdConfig holds the per-cycle thresholds and soil physical parameters.
type ThresholdConfig struct {
	Moisture    float64 // soil moisture %, hard floor
	Temperature float64 // °C, stress above
	Humidity    float64 // air humidity %, stress below
	Pressure    float64 // hPa, stress above

	Density  float64 // soil bulk density, kg/m³
	Area     float64 // plantation area, m²
	Depth    float64 // root-zone depth, m
	FlowRate float64 // L/s per emitter
	Emitters int
}

var ErrInvalidThresholds = errors.New("invalid threshold config")

// Validate rejects configs that cannot produce an irrigation duration,
// including a field with no flow capacity.
func (c ThresholdConfig) Validate() error {
	switch {
	case c.Density <= 0:
		return errors.Join(ErrInvalidThresholds, errors.New("soil density must be positive"))
	case c.Area <= 0:
		return errors.Join(ErrInvalidThresholds, errors.New("plantation area must be positive"))
	case c.Depth <= 0:
		return errors.Join(ErrInvalidThresholds, errors.New("root depth must be positive"))
	case c.FlowRate <= 0:
		return errors.Join(ErrInvalidThresholds, errors.New("flow rate must be positive"))
	case c.Emitters <= 0:
		return errors.Join(ErrInvalidThresholds, errors.New("emitter count must be positive"))
	}
	return nil
}

type DecisionReason string

const (
	ReasonBelowThreshold     DecisionReason = "moisture_below_threshold"
	ReasonBelowSoftThreshold DecisionReason = "moisture_below_soft_threshold"
	ReasonNotNeeded          DecisionReason = "no_irrigation_needed"
)

type Decision struct {
	Irrigate bool           `json:"irrigate"`
	Reason   DecisionReason `json:"reason"`
}

// IrrigationCommand is a complete valve instruction. Zero closes the valve.
type IrrigationCommand struct {
	DurationSeconds float64 `json:"duration_seconds"`
}

// Open reports whether the command opens the valve.
func (c IrrigationCommand) Open() bool {
	return c.DurationSeconds > 0
}

// CycleRecord is the audit row written for every decision cycle, successful or not.
type CycleRecord struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	WindowSize      int
	Predicted       *PredictedState
	Fused           *FusedState
	Irrigate        sql.NullBool
	Reason          sql.NullString
	DurationSeconds sql.NullFloat64
	FailedStage     sql.NullString
	ErrorMessage    sql.NullString
	Narrative       sql.NullString
}

// Success reports whether the cycle reached actuation.
func (r CycleRecord) Success() bool {
	return !r.FailedStage.Valid
}
