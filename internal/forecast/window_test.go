package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/lox/dripline/internal/models"
)

func hourlySamples(start time.Time, n int) []models.ForecastSample {
	out := make([]models.ForecastSample, n)
	for i := range out {
		out[i] = models.ForecastSample{
			Time:        start.Add(time.Duration(i) * time.Hour),
			Temperature: float64(20 + i),
			Humidity:    60,
			Pressure:    1010,
		}
	}
	return out
}

func TestNext(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := hourlySamples(day, 48)

	tests := []struct {
		name      string
		now       time.Time
		wantCount int
		wantFirst time.Time
	}{
		{"on the hour includes both ends", day.Add(10 * time.Hour), 7, day.Add(10 * time.Hour)},
		{"between hours", day.Add(10*time.Hour + 30*time.Minute), 6, day.Add(11 * time.Hour)},
		{"near end of forecast", day.Add(45 * time.Hour), 3, day.Add(45 * time.Hour)},
		{"after forecast", day.Add(72 * time.Hour), 0, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(samples, tt.now, DefaultHorizon)
			if len(got) != tt.wantCount {
				t.Fatalf("len(Next) = %d, want %d", len(got), tt.wantCount)
			}
			if len(got) > 0 && !got[0].Time.Equal(tt.wantFirst) {
				t.Errorf("first sample at %v, want %v", got[0].Time, tt.wantFirst)
			}
		})
	}
}

func TestNext_SortsUnorderedInput(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := hourlySamples(day, 4)
	samples[0], samples[3] = samples[3], samples[0]

	got := Next(samples, day, 3*time.Hour)
	for i := 1; i < len(got); i++ {
		if got[i].Time.Before(got[i-1].Time) {
			t.Fatalf("samples out of order at %d: %v", i, got)
		}
	}
}

func TestSummarize(t *testing.T) {
	window := []models.ForecastSample{
		{Temperature: 20, Humidity: 50, Pressure: 1000, PrecipitationMM: 0.5, RainChance: 10},
		{Temperature: 24, Humidity: 70, Pressure: 1010, PrecipitationMM: 1.5, RainChance: 80, WillRain: true},
	}

	s := Summarize(window)
	if s.Samples != 2 {
		t.Errorf("Samples = %d, want 2", s.Samples)
	}
	if s.Temperature != 22 || s.Humidity != 60 || s.Pressure != 1005 {
		t.Errorf("means = %v/%v/%v, want 22/60/1005", s.Temperature, s.Humidity, s.Pressure)
	}
	if math.Abs(s.PrecipitationMM-2.0) > 1e-9 {
		t.Errorf("PrecipitationMM = %v, want 2", s.PrecipitationMM)
	}
	if !s.RainExpected {
		t.Error("RainExpected = false, want true")
	}
	if s.MaxRainChance != 80 {
		t.Errorf("MaxRainChance = %d, want 80", s.MaxRainChance)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if s := Summarize(nil); s != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", s)
	}
}
