package narrative

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"

	"github.com/lox/dripline/internal/models"
)

func irrigatedCycle() models.CycleRecord {
	return models.CycleRecord{
		ID:              "c-1",
		FinishedAt:      time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
		WindowSize:      144,
		Predicted:       &models.PredictedState{SoilMoisture: 22, Temperature: 30, Humidity: 45, Pressure: 1010},
		Fused:           &models.FusedState{SoilMoisture: 22, Temperature: 29, Humidity: 50, Pressure: 1011},
		Irrigate:        sql.NullBool{Bool: true, Valid: true},
		Reason:          sql.NullString{String: string(models.ReasonBelowThreshold), Valid: true},
		DurationSeconds: sql.NullFloat64{Float64: 4.5, Valid: true},
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name string
		rec  models.CycleRecord
		want []string
	}{
		{
			name: "irrigated",
			rec:  irrigatedCycle(),
			want: []string{"Fri 1 Mar 15:00", "last 24 hours: 144", "soil moisture 22.00%", "no rain expected", "Valve opened for 4.50 seconds"},
		},
		{
			name: "rain",
			rec: func() models.CycleRecord {
				r := irrigatedCycle()
				r.Fused.RainExpected = true
				r.Fused.PrecipitationMM = 3.2
				r.Irrigate = sql.NullBool{Bool: false, Valid: true}
				r.Reason = sql.NullString{String: string(models.ReasonNotNeeded), Valid: true}
				return r
			}(),
			want: []string{"rain expected, 3.2 mm", "no irrigation (no_irrigation_needed)", "Valve closed"},
		},
		{
			name: "failed",
			rec: models.CycleRecord{
				ID:           "c-2",
				FailedStage:  sql.NullString{String: "forecast", Valid: true},
				ErrorMessage: sql.NullString{String: "status 503", Valid: true},
			},
			want: []string{"failed during forecast: status 503", "not commanded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Report(tt.rec, time.UTC)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Report() missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	if _, err := NewGenerator("", "", nil); err == nil {
		t.Error("expected error without api key")
	}
}

func TestDescribe(t *testing.T) {
	var gotModel string
	var gotMessages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string            `json:"model"`
			Messages []json.RawMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		gotMessages = len(req.Messages)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1709300000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  The soil was dry at 22%, so the valve ran for 4.5 seconds.  "}
			}]
		}`))
	}))
	defer srv.Close()

	g, err := NewGenerator("test-key", "", time.UTC, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	text, err := g.Describe(context.Background(), irrigatedCycle())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if text != "The soil was dry at 22%, so the valve ran for 4.5 seconds." {
		t.Errorf("Describe() = %q", text)
	}
	if gotModel != DefaultModel || gotMessages != 2 {
		t.Errorf("request model=%q messages=%d", gotModel, gotMessages)
	}
}

func TestDescribe_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	g, err := NewGenerator("k", "m", time.UTC, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Describe(context.Background(), irrigatedCycle()); err == nil {
		t.Error("expected error for empty choices")
	}
}
