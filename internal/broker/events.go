package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lox/dripline/internal/models"
)

// DecisionEvent is published after every decision cycle.
type DecisionEvent struct {
	CycleID         string                 `json:"cycle_id"`
	FinishedAt      time.Time              `json:"finished_at"`
	Success         bool                   `json:"success"`
	Irrigate        bool                   `json:"irrigate"`
	Reason          string                 `json:"reason,omitempty"`
	DurationSeconds float64                `json:"duration_seconds"`
	Fused           *models.FusedState     `json:"fused,omitempty"`
	Predicted       *models.PredictedState `json:"predicted,omitempty"`
	FailedStage     string                 `json:"failed_stage,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// DecisionPublisher announces cycle outcomes to dashboards and other
// subscribers.
type DecisionPublisher struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

func NewDecisionPublisher(client Publisher, topic string) *DecisionPublisher {
	return &DecisionPublisher{client: client, topic: topic, timeout: DefaultPublishTimeout}
}

func NewDecisionEvent(r models.CycleRecord) DecisionEvent {
	return DecisionEvent{
		CycleID:         r.ID,
		FinishedAt:      r.FinishedAt.UTC(),
		Success:         r.Success(),
		Irrigate:        r.Irrigate.Bool,
		Reason:          r.Reason.String,
		DurationSeconds: r.DurationSeconds.Float64,
		Fused:           r.Fused,
		Predicted:       r.Predicted,
		FailedStage:     r.FailedStage.String,
		Error:           r.ErrorMessage.String,
	}
}

func (p *DecisionPublisher) PublishCycle(ctx context.Context, r models.CycleRecord) error {
	payload, err := json.Marshal(NewDecisionEvent(r))
	if err != nil {
		return err
	}
	return publish(ctx, p.client, p.topic, payload, p.timeout)
}
