package cycle

import (
	"errors"
	"fmt"
)

var (
	ErrStoreUnavailable      = errors.New("measurement store unavailable")
	ErrForecastUnavailable   = errors.New("forecast unavailable")
	ErrPredictionUnavailable = errors.New("prediction unavailable")
	ErrActuatorUnavailable   = errors.New("actuator unavailable")
)

type Stage string

const (
	StageWindow    Stage = "window"
	StageForecast  Stage = "forecast"
	StagePredict   Stage = "predict"
	StageFusion    Stage = "fusion"
	StageDecision  Stage = "decision"
	StageTiming    Stage = "timing"
	StageActuation Stage = "actuation"
)

// StageError reports the stage a cycle failed in. errors.Is matches both the
// stage's sentinel and the underlying cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, sentinel, cause error) *StageError {
	if sentinel == nil {
		return &StageError{Stage: stage, Err: cause}
	}
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
