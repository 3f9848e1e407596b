package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lox/dripline/internal/httputil"
	"github.com/lox/dripline/internal/metrics"
)

// Valve drives the solenoid through the field controller's HTTP endpoint.
// Commands are not retried; after repeated failures the breaker opens and
// commands fail fast until the controller recovers.
type Valve struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewValve(baseURL string) *Valve {
	return &Valve{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(httputil.WithTimeout(15 * time.Second)),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "valve",
			Interval: 10 * time.Minute,
			Timeout:  2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// FormatSeconds renders a duration the way the controller expects it.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 2, 64)
}

// SetValve opens the valve for seconds, or closes it when seconds is zero.
func (v *Valve) SetValve(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("set valve: negative duration %v", seconds)
	}
	_, err := v.breaker.Execute(func() (any, error) {
		return nil, v.post(ctx, seconds)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ValveCommands.WithLabelValues("http", "rejected").Inc()
		return fmt.Errorf("set valve: %w", err)
	case err != nil:
		metrics.ValveCommands.WithLabelValues("http", "error").Inc()
		return err
	}
	metrics.ValveCommands.WithLabelValues("http", "ok").Inc()
	return nil
}

func (v *Valve) post(ctx context.Context, seconds float64) error {
	url := v.baseURL + "/solenoide?tempo=" + FormatSeconds(seconds)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("set valve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("set valve: status %d: %s", resp.StatusCode, truncateBody(body, 200))
	}
	return nil
}
