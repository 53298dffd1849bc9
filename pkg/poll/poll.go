// Package poll implements the bounded convergence-polling primitive shared
// by all state-changing maintenance steps: probe an externally owned state
// on a fixed interval until a target condition holds or a retry budget is
// exhausted.
//
// The budget is counted in retries, not wall-clock time, so behavior stays
// deterministic under clock skew; a step's effective timeout is
// MaxRetries x Interval.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Probe checks externally owned state once. It returns done when the
// target condition holds, along with a short human-readable observation
// ("3 copies mounted") surfaced in progress reporting and timeouts.
// A non-nil error aborts the loop immediately; probes that want to keep
// waiting through transient unreachability must swallow it themselves.
type Probe func(ctx context.Context) (done bool, observed string, err error)

// Config bounds one convergence wait.
type Config struct {
	Interval   time.Duration
	MaxRetries int
}

// TimeoutError reports an exhausted retry budget. Steps classify it per
// their declared on-timeout policy; it is not inherently fatal.
type TimeoutError struct {
	Attempts     int
	Budget       time.Duration
	LastObserved string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not reached after %d probes (%s): last observed %s",
		e.Attempts, e.Budget, e.LastObserved)
}

// Until probes immediately, then once per interval until the probe reports
// done, the probe fails, the retry budget is exhausted, or ctx is
// cancelled. Cancellation interrupts the inter-probe sleep promptly.
func Until(ctx context.Context, cfg Config, probe Probe) error {
	attempts := 0
	lastObserved := "nothing"

	for {
		done, observed, err := probe(ctx)
		if err != nil {
			return err
		}
		if observed != "" {
			lastObserved = observed
		}
		attempts++
		if done {
			return nil
		}
		if attempts > cfg.MaxRetries {
			return &TimeoutError{
				Attempts:     attempts,
				Budget:       time.Duration(cfg.MaxRetries) * cfg.Interval,
				LastObserved: lastObserved,
			}
		}

		timer := time.NewTimer(cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
