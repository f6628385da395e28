package aicreative

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultVideoPollInitial = 5 * time.Second
	defaultVideoPollCap     = 20 * time.Second
	// defaultVideoPollBudget matches §5's "video generation polling carries
	// its own longer budget (5 min)".
	defaultVideoPollBudget = 5 * time.Minute
)

// PollOption configures GenerateVideoAndWait's polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	budget  time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultVideoPollInitial,
		cap:     defaultVideoPollCap,
		budget:  defaultVideoPollBudget,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) { c.initial = d }
}

// WithPollBudget overrides the overall poll budget.
func WithPollBudget(d time.Duration) PollOption {
	return func(c *pollConfig) { c.budget = d }
}

// GenerateVideoAndWait starts a video-generation operation and polls it to
// completion with exponential backoff. When ctx has no deadline of its own,
// polling is bounded by the poll budget (5 minutes unless WithPollBudget
// overrides it). Returns the terminal operation, or an error if it fails or
// the budget or ctx runs out first; any status other than succeeded or
// failed is polled again.
func GenerateVideoAndWait(ctx context.Context, c Client, req VideoGenerateRequest, opts ...PollOption) (*VideoOperation, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.budget)
		defer cancel()
	}

	op, err := c.GenerateVideo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "aicreative: start video generation")
	}

	interval := cfg.initial
	for {
		switch op.Status {
		case VideoStatusSucceeded:
			return op, nil
		case VideoStatusFailed:
			return op, eris.Errorf("aicreative: video operation %s failed: %s", op.ID, op.Error)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "aicreative: video generation poll budget exhausted")
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}

		op, err = c.PollVideo(ctx, op.ID)
		if err != nil {
			return nil, eris.Wrap(err, "aicreative: poll video operation")
		}
	}
}
