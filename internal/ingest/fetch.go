package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/dripline/internal/metrics"
)

// FetchResult describes one upstream response for the ingest audit trail.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	Body         []byte
}

// getWithRetry GETs url, retrying rate limits, server errors and transport
// failures with exponential backoff. Other non-200 statuses fail at once.
func getWithRetry(ctx context.Context, client *http.Client, upstream, url string, maxElapsed time.Duration) (*FetchResult, error) {
	result := &FetchResult{}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := client.Do(req)
		metrics.UpstreamLatency.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCalls.WithLabelValues(upstream, "error").Inc()
			return fmt.Errorf("%s request: %w", upstream, err)
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.UpstreamCalls.WithLabelValues(upstream, "error").Inc()
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		result.ResponseSize = len(body)
		result.Body = body

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCalls.WithLabelValues(upstream, "retry").Inc()
			return fmt.Errorf("%s: status %d", upstream, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCalls.WithLabelValues(upstream, "error").Inc()
			return backoff.Permanent(fmt.Errorf("%s: status %d: %s", upstream, resp.StatusCode, truncateBody(body, 200)))
		}
		metrics.UpstreamCalls.WithLabelValues(upstream, "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return result, err
	}
	return result, nil
}

func truncateBody(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
