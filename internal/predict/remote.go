package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/dripline/internal/httputil"
	"github.com/lox/dripline/internal/metrics"
	"github.com/lox/dripline/internal/models"
)

// Remote asks a model service for the prediction. The window is POSTed as a
// JSON array of measurements and the response is a single PredictedState.
type Remote struct {
	url    string
	client *http.Client
}

func NewRemote(url string) *Remote {
	return &Remote{
		url:    url,
		client: httputil.NewClient(),
	}
}

func (r *Remote) Predict(ctx context.Context, window []models.Measurement) (models.PredictedState, error) {
	if len(window) == 0 {
		return models.PredictedState{}, ErrNotEnoughData
	}
	payload, err := json.Marshal(window)
	if err != nil {
		return models.PredictedState{}, fmt.Errorf("marshal window: %w", err)
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := r.client.Do(req)
		metrics.UpstreamLatency.WithLabelValues("oracle").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCalls.WithLabelValues("oracle", "error").Inc()
			return fmt.Errorf("predict request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCalls.WithLabelValues("oracle", "retry").Inc()
			return fmt.Errorf("predict: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCalls.WithLabelValues("oracle", "error").Inc()
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("predict: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.UpstreamCalls.WithLabelValues("oracle", "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return models.PredictedState{}, err
	}

	var state models.PredictedState
	if err := json.Unmarshal(body, &state); err != nil {
		return models.PredictedState{}, fmt.Errorf("unmarshal prediction: %w", err)
	}
	return state, nil
}
