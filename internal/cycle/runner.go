// Package cycle runs decision cycles: select the recent measurement window,
// fetch the forecast, predict, fuse, decide, time and actuate.
package cycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/dripline/internal/forecast"
	"github.com/lox/dripline/internal/irrigation"
	"github.com/lox/dripline/internal/metrics"
	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/window"
)

type MeasurementSource interface {
	ScanAll(ctx context.Context) ([]models.Measurement, error)
}

type Locator interface {
	Coordinates(ctx context.Context) (models.Position, error)
}

type Forecaster interface {
	Forecast(ctx context.Context, pos models.Position) ([]models.ForecastSample, error)
}

type Oracle interface {
	Predict(ctx context.Context, window []models.Measurement) (models.PredictedState, error)
}

type Valve interface {
	SetValve(ctx context.Context, seconds float64) error
}

// Recorder persists cycle audit records.
type Recorder interface {
	InsertCycle(ctx context.Context, r models.CycleRecord) error
	SetCycleNarrative(ctx context.Context, id, narrative string) error
}

type Narrator interface {
	Describe(ctx context.Context, r models.CycleRecord) (string, error)
}

// Observer is notified of every finished cycle. Observer errors are logged.
type Observer func(ctx context.Context, r models.CycleRecord) error

type Config struct {
	Thresholds models.ThresholdConfig
	Lookback   time.Duration // training window, default 24h
	Horizon    time.Duration // forecast window, default 6h
}

type Runner struct {
	cfg        Config
	source     MeasurementSource
	locator    Locator
	forecaster Forecaster
	oracle     Oracle
	valve      Valve

	recorder  Recorder
	narrator  Narrator
	observers map[string]Observer

	now func() time.Time
	mu  sync.Mutex
}

func NewRunner(cfg Config, source MeasurementSource, locator Locator, forecaster Forecaster, oracle Oracle, valve Valve) (*Runner, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = window.DefaultLookback
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = forecast.DefaultHorizon
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		locator:    locator,
		forecaster: forecaster,
		oracle:     oracle,
		valve:      valve,
		observers:  map[string]Observer{},
		now:        time.Now,
	}, nil
}

func (r *Runner) SetRecorder(rec Recorder) { r.recorder = rec }

func (r *Runner) SetNarrator(n Narrator) { r.narrator = n }

// AddObserver registers fn under name, replacing any observer with that name.
func (r *Runner) AddObserver(name string, fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[name] = fn
}

// Outcome is the result of a cycle that reached actuation.
type Outcome struct {
	Record   models.CycleRecord       `json:"-"`
	Forecast forecast.Summary         `json:"forecast"`
	Decision models.Decision          `json:"decision"`
	Command  models.IrrigationCommand `json:"command"`
}

// Run executes one decision cycle. Cycles never overlap. On failure the
// returned error is a *StageError and no valve command has been sent.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := models.CycleRecord{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
	}
	out, err := r.run(ctx, &rec)
	rec.FinishedAt = r.now()

	var se *StageError
	if errors.As(err, &se) {
		rec.FailedStage = sql.NullString{String: string(se.Stage), Valid: true}
		rec.ErrorMessage = sql.NullString{String: se.Err.Error(), Valid: true}
		metrics.Cycles.WithLabelValues("failed", string(se.Stage)).Inc()
		log.Printf("cycle: %s failed in %s stage: %v", rec.ID, se.Stage, se.Err)
	} else {
		metrics.Cycles.WithLabelValues("ok", "").Inc()
	}
	metrics.CycleDuration.Observe(rec.FinishedAt.Sub(rec.StartedAt).Seconds())

	r.finish(ctx, rec)
	if out != nil {
		out.Record = rec
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, rec *models.CycleRecord) (*Outcome, error) {
	now := rec.StartedAt

	var all []models.Measurement
	var samples []models.ForecastSample
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = r.source.ScanAll(gctx)
		if err != nil {
			return stageError(StageWindow, ErrStoreUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		pos, err := r.locator.Coordinates(gctx)
		if err != nil {
			return stageError(StageForecast, ErrForecastUnavailable, fmt.Errorf("locate sensor head: %w", err))
		}
		samples, err = r.forecaster.Forecast(gctx, pos)
		if err != nil {
			return stageError(StageForecast, ErrForecastUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recent := window.NewIndex(all).Since(now.Add(-r.cfg.Lookback))
	rec.WindowSize = len(recent)
	next := forecast.Next(samples, now, r.cfg.Horizon)

	predicted, err := r.oracle.Predict(ctx, recent)
	if err != nil {
		return nil, stageError(StagePredict, ErrPredictionUnavailable, err)
	}
	rec.Predicted = &predicted

	fused, err := irrigation.Fuse(predicted, next, r.cfg.Thresholds)
	if err != nil {
		return nil, stageError(StageFusion, nil, err)
	}
	rec.Fused = &fused
	log.Printf("cycle: %s fused soil %.2f%%, %.2f°C, %.2f%% RH, %.2f hPa, rain expected %v",
		rec.ID, fused.SoilMoisture, fused.Temperature, fused.Humidity, fused.Pressure, fused.RainExpected)

	decision := irrigation.Decide(fused, r.cfg.Thresholds, fused.RainExpected)
	rec.Irrigate = sql.NullBool{Bool: decision.Irrigate, Valid: true}
	rec.Reason = sql.NullString{String: string(decision.Reason), Valid: true}
	metrics.Decisions.WithLabelValues(string(decision.Reason)).Inc()

	cmd, err := irrigation.Command(decision, fused, r.cfg.Thresholds)
	if err != nil {
		return nil, stageError(StageTiming, nil, err)
	}

	if err := r.valve.SetValve(ctx, cmd.DurationSeconds); err != nil {
		return nil, stageError(StageActuation, ErrActuatorUnavailable, err)
	}
	rec.DurationSeconds = sql.NullFloat64{Float64: cmd.DurationSeconds, Valid: true}
	metrics.LastValveSeconds.Set(cmd.DurationSeconds)

	if cmd.Open() {
		log.Printf("cycle: %s opened valve for %.2fs (%s, soil %.2f%%)", rec.ID, cmd.DurationSeconds, decision.Reason, fused.SoilMoisture)
	} else {
		log.Printf("cycle: %s closed valve (%s)", rec.ID, decision.Reason)
	}

	return &Outcome{
		Forecast: forecast.Summarize(next),
		Decision: decision,
		Command:  cmd,
	}, nil
}

// finish records the cycle and notifies observers. None of this can change
// the outcome of the cycle.
func (r *Runner) finish(ctx context.Context, rec models.CycleRecord) {
	ctx = context.WithoutCancel(ctx)

	if r.recorder != nil {
		if err := r.recorder.InsertCycle(ctx, rec); err != nil {
			log.Printf("cycle: record %s: %v", rec.ID, err)
		}
	}

	for name, fn := range r.observers {
		octx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := fn(octx, rec); err != nil {
			log.Printf("cycle: %s observer %s: %v", rec.ID, name, err)
		}
		cancel()
	}

	if r.narrator != nil && r.recorder != nil {
		nctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		text, err := r.narrator.Describe(nctx, rec)
		if err != nil {
			log.Printf("cycle: narrate %s: %v", rec.ID, err)
			return
		}
		if err := r.recorder.SetCycleNarrative(nctx, rec.ID, text); err != nil {
			log.Printf("cycle: store narrative %s: %v", rec.ID, err)
		}
	}
}
