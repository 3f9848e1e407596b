// Package irrigation turns a predicted soil state and a short weather forecast
// into a valve command.
package irrigation

import (
	"fmt"

	"github.com/lox/dripline/internal/forecast"
	"github.com/lox/dripline/internal/models"
)

// Fuse combines the oracle's prediction with the forecast window.
//
// Temperature, humidity and pressure are the mean of the predicted value and
// the window mean. Soil moisture is the predicted value unless rain is
// expected, in which case the window's precipitation is added as water mass
// over the plantation's root zone.
func Fuse(predicted models.PredictedState, window []models.ForecastSample, soil models.ThresholdConfig) (models.FusedState, error) {
	if len(window) == 0 {
		return models.FusedState{}, ErrInvalidForecastWindow
	}
	sum := forecast.Summarize(window)

	fused := models.FusedState{
		SoilMoisture:    predicted.SoilMoisture,
		Temperature:     (predicted.Temperature + sum.Temperature) / 2,
		Humidity:        (predicted.Humidity + sum.Humidity) / 2,
		Pressure:        (predicted.Pressure + sum.Pressure) / 2,
		RainExpected:    sum.RainExpected,
		PrecipitationMM: sum.PrecipitationMM,
	}

	if sum.RainExpected {
		soilMass := soil.Density * soil.Area * soil.Depth
		if soilMass == 0 {
			return models.FusedState{}, fmt.Errorf("%w: zero soil mass with rain expected", ErrInvalidIrrigationParameters)
		}
		// 1 mm of rain over 1 m² is 1 kg of water.
		water := predicted.SoilMoisture / 100 * soilMass
		rain := sum.PrecipitationMM * soil.Area
		fused.SoilMoisture = (water + rain) * 100 / soilMass
	}

	return fused, nil
}
