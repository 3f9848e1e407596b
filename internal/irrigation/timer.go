package irrigation

import (
	"fmt"

	"github.com/lox/dripline/internal/models"
)

// DurationParams are the inputs of the valve-open time formula. Moisture
// values are percentages.
type DurationParams struct {
	Initial  float64
	Target   float64
	Density  float64 // kg/m³
	Area     float64 // m²
	Depth    float64 // m
	FlowRate float64 // L/s per emitter
	Emitters int
}

// ComputeDuration returns the seconds of flow needed to raise the root zone
// from Initial to Target moisture. The result is negative when the soil is
// already wetter than the target.
func ComputeDuration(p DurationParams) (float64, error) {
	flow := p.FlowRate * float64(p.Emitters)
	if flow == 0 {
		return 0, fmt.Errorf("%w: flow rate %v with %d emitters", ErrInvalidIrrigationParameters, p.FlowRate, p.Emitters)
	}
	delta := p.Target/100 - p.Initial/100
	return p.Density * p.Area * p.Depth * delta / (1000 * flow), nil
}

// Command builds the valve command for a decision. A non-irrigating decision
// closes the valve; otherwise the duration is rounded to the two decimals the
// valve controllers accept and clamped at zero.
func Command(d models.Decision, fused models.FusedState, t models.ThresholdConfig) (models.IrrigationCommand, error) {
	if !d.Irrigate {
		return models.IrrigationCommand{}, nil
	}
	seconds, err := ComputeDuration(DurationParams{
		Initial:  fused.SoilMoisture,
		Target:   t.Moisture,
		Density:  t.Density,
		Area:     t.Area,
		Depth:    t.Depth,
		FlowRate: t.FlowRate,
		Emitters: t.Emitters,
	})
	if err != nil {
		return models.IrrigationCommand{}, err
	}
	return models.IrrigationCommand{DurationSeconds: max(models.Round2(seconds), 0)}, nil
}
