package predict

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lox/dripline/internal/models"
)

func series(soil ...float64) []models.Measurement {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Measurement, len(soil))
	for i, v := range soil {
		out[i] = models.Measurement{
			ID:           int64(i + 1),
			Timestamp:    base.Add(time.Duration(i) * 10 * time.Minute),
			SoilMoisture: v,
			Pressure:     1010,
			Temperature:  20 + float64(i),
			Humidity:     60 - 2*float64(i),
		}
	}
	return out
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name     string
		window   []models.Measurement
		wantSoil float64
		wantTemp float64
		wantHum  float64
	}{
		{"single sample", series(31), 31, 20, 60},
		{"linear decline", series(30, 29, 28, 27), 26, 24, 52},
		{"flat", series(25, 25, 25), 25, 23, 54},
		{"noisy", series(30, 32, 30, 32), 32, 24, 52},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Trend{}.Predict(context.Background(), tt.window)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if math.Abs(got.SoilMoisture-tt.wantSoil) > 1e-9 {
				t.Errorf("SoilMoisture = %v, want %v", got.SoilMoisture, tt.wantSoil)
			}
			if math.Abs(got.Temperature-tt.wantTemp) > 1e-9 {
				t.Errorf("Temperature = %v, want %v", got.Temperature, tt.wantTemp)
			}
			if math.Abs(got.Humidity-tt.wantHum) > 1e-9 {
				t.Errorf("Humidity = %v, want %v", got.Humidity, tt.wantHum)
			}
			if got.Pressure != 1010 {
				t.Errorf("Pressure = %v, want 1010", got.Pressure)
			}
		})
	}
}

func TestTrend_Empty(t *testing.T) {
	if _, err := (Trend{}).Predict(context.Background(), nil); !errors.Is(err, ErrNotEnoughData) {
		t.Errorf("err = %v, want ErrNotEnoughData", err)
	}
}

func TestRemote_Predict(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var window []models.Measurement
		if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
			t.Errorf("decode window: %v", err)
		}
		if len(window) != 3 {
			t.Errorf("len(window) = %d, want 3", len(window))
		}
		json.NewEncoder(w).Encode(models.PredictedState{SoilMoisture: 27.5, Pressure: 1011, Temperature: 24, Humidity: 55})
	}))
	defer srv.Close()

	got, err := NewRemote(srv.URL).Predict(context.Background(), series(30, 29, 28))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.SoilMoisture != 27.5 || got.Humidity != 55 {
		t.Errorf("Predict() = %+v", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls.Load())
	}
}

func TestRemote_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad window", http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := NewRemote(srv.URL).Predict(context.Background(), series(30)); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
