package irrigation

import "github.com/lox/dripline/internal/models"

// SoftThresholdFactor scales the moisture threshold for the corroborated tier.
const SoftThresholdFactor = 0.9

// Decide applies the two-tier moisture policy. Below the moisture threshold
// always irrigates. Below 90% of it irrigates only when some other reading
// indicates stress and no rain is expected.
func Decide(fused models.FusedState, t models.ThresholdConfig, rainExpected bool) models.Decision {
	if fused.SoilMoisture < t.Moisture {
		return models.Decision{Irrigate: true, Reason: models.ReasonBelowThreshold}
	}

	stressed := fused.Temperature > t.Temperature ||
		fused.Humidity < t.Humidity ||
		fused.Pressure > t.Pressure
	if fused.SoilMoisture < SoftThresholdFactor*t.Moisture && stressed && !rainExpected {
		return models.Decision{Irrigate: true, Reason: models.ReasonBelowSoftThreshold}
	}

	return models.Decision{Irrigate: false, Reason: models.ReasonNotNeeded}
}
