// Package predict estimates the next soil and weather reading from a window of
// measurements.
package predict

import (
	"context"
	"errors"

	"github.com/lox/dripline/internal/models"
)

var ErrNotEnoughData = errors.New("not enough measurements to predict")

// Trend fits a least-squares line to each quantity over the sample index and
// extrapolates one step past the last measurement.
type Trend struct{}

func (Trend) Predict(_ context.Context, window []models.Measurement) (models.PredictedState, error) {
	switch len(window) {
	case 0:
		return models.PredictedState{}, ErrNotEnoughData
	case 1:
		m := window[0]
		return models.PredictedState{
			SoilMoisture: m.SoilMoisture,
			Pressure:     m.Pressure,
			Temperature:  m.Temperature,
			Humidity:     m.Humidity,
		}, nil
	}

	next := float64(len(window))
	extrapolate := func(value func(models.Measurement) float64) float64 {
		slope, intercept := fit(window, value)
		return intercept + slope*next
	}

	return models.PredictedState{
		SoilMoisture: extrapolate(func(m models.Measurement) float64 { return m.SoilMoisture }),
		Pressure:     extrapolate(func(m models.Measurement) float64 { return m.Pressure }),
		Temperature:  extrapolate(func(m models.Measurement) float64 { return m.Temperature }),
		Humidity:     extrapolate(func(m models.Measurement) float64 { return m.Humidity }),
	}, nil
}

// fit returns the ordinary least-squares line through (i, value(window[i])).
func fit(window []models.Measurement, value func(models.Measurement) float64) (slope, intercept float64) {
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, m := range window {
		x := float64(i)
		y := value(m)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
