package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScheduler_SetDecisionCycle(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"", false},
		{"@hourly", false},
		{"0 6,18 * * *", false},
		{"every now and then", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s := NewScheduler(setupTestStore(t), nil, time.UTC)
			err := s.SetDecisionCycle(tt.spec, func(context.Context) error { return nil })
			if (err != nil) != tt.wantErr {
				t.Errorf("SetDecisionCycle(%q) err = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_RunImportsAndStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sensorJSON)
	}))
	defer srv.Close()

	st := setupTestStore(t)
	s := NewScheduler(st, NewImporter(st, NewSensorHead(srv.URL)), time.UTC)
	s.SetImportInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := st.CountMeasurements(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d measurements imported", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_ImportOnceWithoutImporter(t *testing.T) {
	s := NewScheduler(setupTestStore(t), nil, time.UTC)
	if err := s.ImportOnce(context.Background()); err == nil {
		t.Error("expected error without a sensor head")
	}
}
