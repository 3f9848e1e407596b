package irrigation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lox/dripline/internal/models"
)

const tolerance = 1e-9

func soil() models.ThresholdConfig {
	return models.ThresholdConfig{
		Moisture:    30,
		Temperature: 32,
		Humidity:    40,
		Pressure:    1020,
		Density:     1500,
		Area:        10,
		Depth:       0.3,
		FlowRate:    2,
		Emitters:    4,
	}
}

func sixHours(rain bool, precip float64) []models.ForecastSample {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.ForecastSample, 7)
	for i := range out {
		out[i] = models.ForecastSample{
			Time:            start.Add(time.Duration(i) * time.Hour),
			Temperature:     24,
			Humidity:        60,
			Pressure:        1012,
			PrecipitationMM: precip,
		}
	}
	out[3].WillRain = rain
	return out
}

func TestFuse_NoRainKeepsPredictedMoisture(t *testing.T) {
	predicted := models.PredictedState{SoilMoisture: 27.31, Temperature: 30, Humidity: 50, Pressure: 1008}

	fused, err := Fuse(predicted, sixHours(false, 0.4), soil())
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if fused.SoilMoisture != predicted.SoilMoisture {
		t.Errorf("SoilMoisture = %v, want %v unchanged", fused.SoilMoisture, predicted.SoilMoisture)
	}
	if fused.RainExpected {
		t.Error("RainExpected = true, want false")
	}
}

func TestFuse_Averages(t *testing.T) {
	tests := []struct {
		name      string
		predicted models.PredictedState
		wantT     float64
		wantH     float64
		wantP     float64
	}{
		{"warmer than forecast", models.PredictedState{Temperature: 30, Humidity: 50, Pressure: 1008}, 27, 55, 1010},
		{"equal to forecast", models.PredictedState{Temperature: 24, Humidity: 60, Pressure: 1012}, 24, 60, 1012},
		{"below zero", models.PredictedState{Temperature: -4, Humidity: 90, Pressure: 1000}, 10, 75, 1006},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused, err := Fuse(tt.predicted, sixHours(false, 0), soil())
			if err != nil {
				t.Fatalf("Fuse: %v", err)
			}
			if math.Abs(fused.Temperature-tt.wantT) > tolerance {
				t.Errorf("Temperature = %v, want %v", fused.Temperature, tt.wantT)
			}
			if math.Abs(fused.Humidity-tt.wantH) > tolerance {
				t.Errorf("Humidity = %v, want %v", fused.Humidity, tt.wantH)
			}
			if math.Abs(fused.Pressure-tt.wantP) > tolerance {
				t.Errorf("Pressure = %v, want %v", fused.Pressure, tt.wantP)
			}
		})
	}
}

func TestFuse_RainAddsWaterMass(t *testing.T) {
	predicted := models.PredictedState{SoilMoisture: 20}
	// 7 samples of 1 mm over 10 m² is 70 kg of water into 4500 kg of soil.
	fused, err := Fuse(predicted, sixHours(true, 1), soil())
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	want := (0.20*4500 + 70) * 100 / 4500
	if math.Abs(fused.SoilMoisture-want) > tolerance {
		t.Errorf("SoilMoisture = %v, want %v", fused.SoilMoisture, want)
	}
	if !fused.RainExpected {
		t.Error("RainExpected = false, want true")
	}
	if math.Abs(fused.PrecipitationMM-7) > tolerance {
		t.Errorf("PrecipitationMM = %v, want 7", fused.PrecipitationMM)
	}
}

func TestFuse_Errors(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		_, err := Fuse(models.PredictedState{}, nil, soil())
		if !errors.Is(err, ErrInvalidForecastWindow) {
			t.Errorf("err = %v, want ErrInvalidForecastWindow", err)
		}
	})

	t.Run("zero soil mass with rain", func(t *testing.T) {
		cfg := soil()
		cfg.Depth = 0
		_, err := Fuse(models.PredictedState{SoilMoisture: 20}, sixHours(true, 1), cfg)
		if !errors.Is(err, ErrInvalidIrrigationParameters) {
			t.Errorf("err = %v, want ErrInvalidIrrigationParameters", err)
		}
	})

	t.Run("zero soil mass without rain", func(t *testing.T) {
		cfg := soil()
		cfg.Depth = 0
		if _, err := Fuse(models.PredictedState{SoilMoisture: 20}, sixHours(false, 0), cfg); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDecide(t *testing.T) {
	cfg := soil()

	tests := []struct {
		name   string
		fused  models.FusedState
		rain   bool
		want   bool
		reason models.DecisionReason
	}{
		{
			name:   "just below floor with favourable weather",
			fused:  models.FusedState{SoilMoisture: 30 - 1e-6, Temperature: 20, Humidity: 80, Pressure: 1000},
			want:   true,
			reason: models.ReasonBelowThreshold,
		},
		{
			name:   "below floor with rain expected",
			fused:  models.FusedState{SoilMoisture: 10, Temperature: 20, Humidity: 80, Pressure: 1000},
			rain:   true,
			want:   true,
			reason: models.ReasonBelowThreshold,
		},
		{
			name:   "at floor",
			fused:  models.FusedState{SoilMoisture: 30, Temperature: 40, Humidity: 10, Pressure: 1030},
			want:   false,
			reason: models.ReasonNotNeeded,
		},
		{
			name:   "wet soil with rain expected",
			fused:  models.FusedState{SoilMoisture: 31, Temperature: 20, Humidity: 80, Pressure: 1000},
			rain:   true,
			want:   false,
			reason: models.ReasonNotNeeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.fused, cfg, tt.rain)
			if got.Irrigate != tt.want || got.Reason != tt.reason {
				t.Errorf("Decide() = %+v, want {%v %s}", got, tt.want, tt.reason)
			}
		})
	}
}

func TestDecide_TierOneDominates(t *testing.T) {
	cfg := soil()
	for _, eps := range []float64{1e-9, 0.01, 1, 29} {
		for _, rain := range []bool{false, true} {
			fused := models.FusedState{SoilMoisture: cfg.Moisture - eps, Temperature: -10, Humidity: 100, Pressure: 900}
			if d := Decide(fused, cfg, rain); !d.Irrigate || d.Reason != models.ReasonBelowThreshold {
				t.Errorf("eps=%v rain=%v: Decide() = %+v, want tier-one irrigation", eps, rain, d)
			}
		}
	}
}

// The soft floor sits below the hard floor for positive thresholds, so it
// can only decide on its own when the moisture threshold is negative.
func TestDecide_SoftFloor(t *testing.T) {
	cfg := soil()
	cfg.Moisture = -10

	tests := []struct {
		name   string
		fused  models.FusedState
		rain   bool
		want   bool
		reason models.DecisionReason
	}{
		{"hot and dry", models.FusedState{SoilMoisture: -9.5, Temperature: 35, Humidity: 80, Pressure: 1000}, false, true, models.ReasonBelowSoftThreshold},
		{"low humidity", models.FusedState{SoilMoisture: -9.5, Temperature: 20, Humidity: 30, Pressure: 1000}, false, true, models.ReasonBelowSoftThreshold},
		{"high pressure", models.FusedState{SoilMoisture: -9.5, Temperature: 20, Humidity: 80, Pressure: 1025}, false, true, models.ReasonBelowSoftThreshold},
		{"stressed but rain expected", models.FusedState{SoilMoisture: -9.5, Temperature: 35, Humidity: 30, Pressure: 1025}, true, false, models.ReasonNotNeeded},
		{"no stress", models.FusedState{SoilMoisture: -9.5, Temperature: 20, Humidity: 80, Pressure: 1000}, false, false, models.ReasonNotNeeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.fused, cfg, tt.rain)
			if got.Irrigate != tt.want || got.Reason != tt.reason {
				t.Errorf("Decide() = %+v, want {%v %s}", got, tt.want, tt.reason)
			}
		})
	}
}

func TestComputeDuration(t *testing.T) {
	tests := []struct {
		name string
		p    DurationParams
		want float64
	}{
		{
			name: "reference plot",
			p:    DurationParams{Initial: 20, Target: 40, Density: 1500, Area: 10, Depth: 0.3, FlowRate: 2, Emitters: 4},
			want: 1500 * 10 * 0.3 * (0.40 - 0.20) / (1000 * 2 * 4),
		},
		{
			name: "one point of moisture",
			p:    DurationParams{Initial: 29, Target: 30, Density: 1300, Area: 100, Depth: 0.4, FlowRate: 0.5, Emitters: 26},
			want: 1300 * 100 * 0.4 * 0.01 / (1000 * 0.5 * 26),
		},
		{
			name: "already wetter than target",
			p:    DurationParams{Initial: 40, Target: 20, Density: 1500, Area: 10, Depth: 0.3, FlowRate: 2, Emitters: 4},
			want: -1500 * 10 * 0.3 * 0.20 / (1000 * 2 * 4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDuration(tt.p)
			if err != nil {
				t.Fatalf("ComputeDuration: %v", err)
			}
			if math.Abs(got-tt.want) > tolerance {
				t.Errorf("ComputeDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeDuration_ReferenceValue(t *testing.T) {
	got, err := ComputeDuration(DurationParams{Initial: 20, Target: 40, Density: 1500, Area: 10, Depth: 0.3, FlowRate: 2, Emitters: 4})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-0.1125) > tolerance {
		t.Errorf("ComputeDuration() = %v, want 0.1125", got)
	}
}

func TestComputeDuration_NoFlow(t *testing.T) {
	for _, p := range []DurationParams{
		{Initial: 20, Target: 40, Density: 1500, Area: 10, Depth: 0.3, FlowRate: 0, Emitters: 4},
		{Initial: 20, Target: 40, Density: 1500, Area: 10, Depth: 0.3, FlowRate: 2, Emitters: 0},
	} {
		if _, err := ComputeDuration(p); !errors.Is(err, ErrInvalidIrrigationParameters) {
			t.Errorf("ComputeDuration(%+v) err = %v, want ErrInvalidIrrigationParameters", p, err)
		}
	}
}

func TestCommand(t *testing.T) {
	cfg := soil()

	t.Run("no irrigation closes the valve", func(t *testing.T) {
		cmd, err := Command(models.Decision{Irrigate: false}, models.FusedState{SoilMoisture: 10}, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if cmd.DurationSeconds != 0 || cmd.Open() {
			t.Errorf("Command() = %+v, want closed", cmd)
		}
	})

	t.Run("irrigation fills to the moisture threshold", func(t *testing.T) {
		cmd, err := Command(models.Decision{Irrigate: true}, models.FusedState{SoilMoisture: 20}, cfg)
		if err != nil {
			t.Fatal(err)
		}
		// 1500 * 10 * 0.3 * (0.30 - 0.20) / (1000 * 2 * 4) = 0.05625
		if cmd.DurationSeconds != 0.06 {
			t.Errorf("DurationSeconds = %v, want 0.06", cmd.DurationSeconds)
		}
	})

	t.Run("duration below a hundredth of a second closes the valve", func(t *testing.T) {
		// 1500 * 10 * 0.3 * (0.30 - 0.295) / 8000 = 0.0028125
		cmd, err := Command(models.Decision{Irrigate: true}, models.FusedState{SoilMoisture: 29.5}, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if cmd.DurationSeconds != 0 || cmd.Open() {
			t.Errorf("Command() = %+v, want closed", cmd)
		}
	})

	t.Run("negative duration is clamped", func(t *testing.T) {
		cmd, err := Command(models.Decision{Irrigate: true}, models.FusedState{SoilMoisture: 45}, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if cmd.DurationSeconds != 0 {
			t.Errorf("DurationSeconds = %v, want 0", cmd.DurationSeconds)
		}
	})

	t.Run("no flow is an error", func(t *testing.T) {
		bad := cfg
		bad.Emitters = 0
		if _, err := Command(models.Decision{Irrigate: true}, models.FusedState{SoilMoisture: 20}, bad); !errors.Is(err, ErrInvalidIrrigationParameters) {
			t.Errorf("err = %v, want ErrInvalidIrrigationParameters", err)
		}
	})

	t.Run("no flow is irrelevant when not irrigating", func(t *testing.T) {
		bad := cfg
		bad.Emitters = 0
		if _, err := Command(models.Decision{Irrigate: false}, models.FusedState{}, bad); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
