package form

import (
	"context"
	"time"

	"github.com/yanizio/adept-leads/internal/logger"
)

// Simulated is a Sender that waits Delay and then succeeds.  It stands in for
// real delivery in demo deployments where no action is configured.
type Simulated struct {
	Delay time.Duration
}

// Send logs the lead and returns nil once Delay has elapsed.
func (s Simulated) Send(ctx context.Context, lead Lead) error {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	logger.FromContext(ctx).Infow("lead accepted (simulated)",
		"form", lead.FormID, "lead", lead.ID, "fields", len(lead.Values))
	return nil
}
