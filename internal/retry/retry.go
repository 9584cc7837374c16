// Package retry wraps remote operations with bounded exponential
// backoff. Transient failures are retried; structural failures
// propagate immediately for classification by the backend package.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"referral-service/internal/backend"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// InitialDelay is the delay before the first retry; it doubles on
	// each subsequent retry up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Classify reports whether an error is worth retrying. Defaults to
	// backend.IsTransient.
	Classify func(error) bool
}

// DefaultPolicy retries twice with a doubling delay starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

func (p Policy) classify(err error) bool {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return backend.IsTransient(err)
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	return backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx)
}

// Do runs op, retrying transient failures per the policy. The last
// failure is returned once the retry budget is exhausted.
func Do(ctx context.Context, policy Policy, op func(context.Context) error) error {
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !policy.classify(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backoff(ctx))
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
