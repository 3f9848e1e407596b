package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/dripline/internal/metrics"
	"github.com/lox/dripline/internal/models"
)

// ValveMessage is the command payload the field controller subscribes to.
type ValveMessage struct {
	Seconds  float64   `json:"seconds"`
	IssuedAt time.Time `json:"issued_at"`
}

// Valve sends valve commands as MQTT messages.
type Valve struct {
	client  Publisher
	topic   string
	timeout time.Duration
	now     func() time.Time
}

func NewValve(client Publisher, topic string) *Valve {
	return &Valve{
		client:  client,
		topic:   topic,
		timeout: DefaultPublishTimeout,
		now:     time.Now,
	}
}

func (v *Valve) SetValve(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("set valve: negative duration %v", seconds)
	}
	payload, err := json.Marshal(ValveMessage{
		Seconds:  models.Round2(seconds),
		IssuedAt: v.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := publish(ctx, v.client, v.topic, payload, v.timeout); err != nil {
		metrics.ValveCommands.WithLabelValues("mqtt", "error").Inc()
		return fmt.Errorf("set valve: %w", err)
	}
	metrics.ValveCommands.WithLabelValues("mqtt", "ok").Inc()
	return nil
}
