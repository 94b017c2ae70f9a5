// Package retry provides bounded-count, fixed-delay retry policies keyed by
// operation name. The storage layer wraps every primitive call in a policy
// lookup so transient failures are re-executed transparently while structural
// failures surface immediately.
package retry

import (
	"context"
	"time"

	"github.com/flatfs/flatfs/pkg/errors"
)

// Policy describes how many times an operation may be attempted and the fixed
// delay between attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed sleep between attempts.
	Delay time.Duration
}

// TryOnceThenFail is the policy applied to operations with no registered
// policy: a single attempt, no retry.
func TryOnceThenFail() Policy {
	return Policy{MaxAttempts: 1}
}

// DefaultPolicy mirrors the store defaults: 4 attempts with a fixed 10 second
// sleep between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, Delay: 10 * time.Second}
}

// Retryer holds an immutable operation-name to policy table. It is
// constructed once at adapter initialization and safe for concurrent use
// without locking.
type Retryer struct {
	policies  map[string]Policy
	retryable func(error) bool
}

// New creates a Retryer that applies the given base policy to every named
// operation. retryable decides whether a failure may be re-executed; when
// nil, errors.Retryable is used.
func New(base Policy, operations []string, retryable func(error) bool) *Retryer {
	if base.MaxAttempts <= 0 {
		base.MaxAttempts = 1
	}
	if retryable == nil {
		retryable = errors.Retryable
	}
	policies := make(map[string]Policy, len(operations))
	for _, op := range operations {
		policies[op] = base
	}
	return &Retryer{policies: policies, retryable: retryable}
}

// PolicyFor returns the policy registered for op, or TryOnceThenFail when the
// operation has no registered policy.
func (r *Retryer) PolicyFor(op string) Policy {
	if p, ok := r.policies[op]; ok {
		return p
	}
	return TryOnceThenFail()
}

// Do executes fn under the policy registered for op. A failure is retried
// only when the retryable classifier accepts it; once attempts are exhausted
// the final failure is returned unchanged.
func (r *Retryer) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := r.PolicyFor(op)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !r.retryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay):
		}
	}
	return lastErr
}
