// Package narrative writes a short plain-language summary of a decision cycle
// for the audit log.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/dripline/internal/models"
)

const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You summarise the decisions of an automated drip-irrigation controller for the farmer who owns it.
Write two or three short sentences in plain language. Mention the soil moisture, whether rain is expected and what the valve did.
Do not give advice. Do not invent readings that are not in the report.`

// Generator asks a chat model to explain a cycle.
type Generator struct {
	client openai.Client
	model  string
	loc    *time.Location
}

func NewGenerator(apiKey, model string, loc *time.Location, opts ...option.RequestOption) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	if model == "" {
		model = DefaultModel
	}
	if loc == nil {
		loc = time.UTC
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Generator{
		client: openai.NewClient(opts...),
		model:  model,
		loc:    loc,
	}, nil
}

// Report renders the facts of a cycle that the model is allowed to use.
func Report(r models.CycleRecord, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle finished at %s.\n", r.FinishedAt.In(loc).Format("Mon 2 Jan 15:04"))
	fmt.Fprintf(&b, "Measurements in the last 24 hours: %d.\n", r.WindowSize)

	if r.Predicted != nil {
		fmt.Fprintf(&b, "Predicted soil moisture %.2f%%, temperature %.2f°C, air humidity %.2f%%, pressure %.2f hPa.\n",
			r.Predicted.SoilMoisture, r.Predicted.Temperature, r.Predicted.Humidity, r.Predicted.Pressure)
	}
	if r.Fused != nil {
		rain := "no rain expected"
		if r.Fused.RainExpected {
			rain = fmt.Sprintf("rain expected, %.1f mm over the next 6 hours", r.Fused.PrecipitationMM)
		}
		fmt.Fprintf(&b, "After the forecast: soil moisture %.2f%%, temperature %.2f°C, air humidity %.2f%%, pressure %.2f hPa, %s.\n",
			r.Fused.SoilMoisture, r.Fused.Temperature, r.Fused.Humidity, r.Fused.Pressure, rain)
	}

	switch {
	case !r.Success():
		fmt.Fprintf(&b, "The cycle failed during %s: %s. The valve was not commanded.\n", r.FailedStage.String, r.ErrorMessage.String)
	case r.Irrigate.Bool:
		fmt.Fprintf(&b, "Decision: irrigate (%s). Valve opened for %.2f seconds.\n", r.Reason.String, r.DurationSeconds.Float64)
	default:
		fmt.Fprintf(&b, "Decision: no irrigation (%s). Valve closed.\n", r.Reason.String)
	}
	return b.String()
}

// Describe returns the model's summary of r.
func (g *Generator) Describe(ctx context.Context, r models.CycleRecord) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(Report(r, g.loc)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no narrative returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty narrative returned")
	}
	log.Printf("narrative: cycle %s: %d chars", r.ID, len(text))
	return text, nil
}
