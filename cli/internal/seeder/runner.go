package seeder

import (
	"context"
	"sort"
	"time"

	"github.com/telhawk-systems/capi-relay/cli/internal/client"
)

// Sender delivers one payload to the relay.
type Sender interface {
	SendWebhook(ctx context.Context, payload interface{}) (*client.WebhookResponse, error)
}

// Result is the outcome of one simulated webhook.
type Result struct {
	Index     int
	EventType string
	Response  *client.WebhookResponse
	Err       error
}

// Summary totals a run.
type Summary struct {
	Sent      int            `json:"sent"`
	Succeeded int            `json:"succeeded"`
	Ignored   int            `json:"ignored"`
	Failed    int            `json:"failed"`
	ByEvent   map[string]int `json:"by_event"`
	Duration  time.Duration  `json:"duration"`
}

// EventTypes returns the event types seen, sorted.
func (s Summary) EventTypes() []string {
	types := make([]string, 0, len(s.ByEvent))
	for t := range s.ByEvent {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Runner handles the simulation execution.
type Runner struct {
	Config    *Config
	Generator *Generator
	Sender    Sender
	// OnResult, if set, is called after each webhook.
	OnResult func(Result)
}

func NewRunner(cfg *Config, sender Sender) *Runner {
	return &Runner{
		Config:    cfg,
		Generator: NewGenerator(*cfg),
		Sender:    sender,
	}
}

// Run sends Config.Count payloads, pausing Config.Interval between them.
// A cancelled context stops the run and returns the partial summary with
// the context error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{ByEvent: make(map[string]int)}

	for i := 0; i < r.Config.Count; i++ {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		p := r.Generator.Next()
		eventType, _ := p["event"].(string)
		resp, err := r.Sender.SendWebhook(ctx, p)

		summary.Sent++
		summary.ByEvent[eventType]++
		switch {
		case err != nil || !resp.OK():
			summary.Failed++
		case resp.Status == "ignored":
			summary.Ignored++
		default:
			summary.Succeeded++
		}

		if r.OnResult != nil {
			r.OnResult(Result{Index: i, EventType: eventType, Response: resp, Err: err})
		}

		if r.Config.Interval > 0 && i < r.Config.Count-1 {
			select {
			case <-ctx.Done():
			case <-time.After(r.Config.Interval):
			}
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}
