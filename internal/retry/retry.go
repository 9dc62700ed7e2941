// Package retry wraps persistence calls with bounded exponential-backoff
// retry. It assumes wrapped operations are idempotent or safely
// re-runnable: all callers in this module wrap reads or upsert-style writes.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds the retry behavior: up to MaxRetries additional attempts
// after the first, with delay BaseDelay * 2^attempt between attempts
// (pure exponential backoff, no jitter).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy returns the policy applied to persistence calls when the
// configuration does not override it.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
	}
}

// backoff builds the go-retry backoff chain for the policy.
func (p Policy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(max(p.MaxRetries, 0)), retry.NewExponential(base))
}

// Do executes op under the policy and returns its result. Every failure is
// treated as retryable; after the attempt budget is exhausted, the last
// error is returned annotated with the operation label.
func Do[T any](ctx context.Context, policy Policy, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", label, err)
	}
	return out, nil
}

// DoVoid is Do for operations that return no value.
func DoVoid(ctx context.Context, policy Policy, label string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, policy, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
