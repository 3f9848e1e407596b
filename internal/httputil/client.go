// Package httputil builds the HTTP clients used to talk to the sensor head,
// the forecast provider, the prediction service and the valve controller.
package httputil

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "dripline/1.0"
)

type Option func(*http.Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *http.Client) { c.Timeout = d }
}

// NewClient returns a client with DefaultTimeout that identifies itself as
// dripline on every request.
func NewClient(opts ...Option) *http.Client {
	c := &http.Client{
		Timeout:   DefaultTimeout,
		Transport: userAgent{next: http.DefaultTransport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type userAgent struct {
	next http.RoundTripper
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return u.next.RoundTrip(req)
}
