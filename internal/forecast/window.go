// Package forecast reduces an hourly weather forecast to the short window a
// decision cycle looks at.
package forecast

import (
	"slices"
	"time"

	"github.com/lox/dripline/internal/models"
)

// DefaultHorizon is how far ahead a decision cycle looks.
const DefaultHorizon = 6 * time.Hour

// Next returns the samples with now <= Time <= now+horizon, ordered by time.
// Both ends are inclusive.
func Next(samples []models.ForecastSample, now time.Time, horizon time.Duration) []models.ForecastSample {
	end := now.Add(horizon)
	var out []models.ForecastSample
	for _, s := range samples {
		if s.Time.Before(now) || s.Time.After(end) {
			continue
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b models.ForecastSample) int {
		return a.Time.Compare(b.Time)
	})
	return out
}

// Summary is the aggregate view of a forecast window.
type Summary struct {
	Samples         int     `json:"samples"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	Pressure        float64 `json:"pressure"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	MaxRainChance   int     `json:"max_rain_chance"`
	RainExpected    bool    `json:"rain_expected"`
}

// Summarize averages temperature, humidity and pressure over the window and
// totals its precipitation. An empty window yields the zero Summary.
func Summarize(window []models.ForecastSample) Summary {
	var s Summary
	if len(window) == 0 {
		return s
	}
	for _, f := range window {
		s.Temperature += f.Temperature
		s.Humidity += f.Humidity
		s.Pressure += f.Pressure
		s.PrecipitationMM += f.PrecipitationMM
		s.MaxRainChance = max(s.MaxRainChance, f.RainChance)
		if f.WillRain {
			s.RainExpected = true
		}
	}
	n := float64(len(window))
	s.Samples = len(window)
	s.Temperature /= n
	s.Humidity /= n
	s.Pressure /= n
	return s
}
