// Package rollover resets the week automatically once a new Monday starts.
package rollover

import (
	"context"
	"log/slog"
	"time"
)

// Roller performs the reset when it is due.
type Roller interface {
	RolloverIfDue(ctx context.Context, now time.Time) (bool, error)
}

// DefaultInterval is how often Run checks the calendar.
const DefaultInterval = time.Minute

// Run checks immediately and then every interval until ctx is done. Failed
// checks are logged and retried on the next tick.
func Run(ctx context.Context, r Roller, interval time.Duration, clock func() time.Time, log *slog.Logger) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = time.Now
	}
	check := func() {
		did, err := r.RolloverIfDue(ctx, clock())
		switch {
		case err != nil && ctx.Err() == nil:
			log.Error("weekly rollover failed", "err", err)
		case did:
			log.Info("weekly rollover done")
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			check()
		}
	}
}
