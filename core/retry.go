package core

import (
	"context"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries      = 5
	DefaultConnectAttempts = 3
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = time.Minute
	DefaultMultiplier      = 2.0
)

// RetryableKind registers an error kind as retryable. Errors of that kind whose code matches
// any of IgnoreCodes are still fatal.
type RetryableKind struct {
	Kind        ErrorKind
	IgnoreCodes []*regexp.Regexp
}

// DefaultRetryable is the registry consulted on every failure.
// SQLSTATE class 42 (syntax error or access rule violation) can never succeed on retry.
func DefaultRetryable() []RetryableKind {
	return []RetryableKind{
		{Kind: KindConnection},
		{Kind: KindQuery, IgnoreCodes: []*regexp.Regexp{regexp.MustCompile(`^42`)}},
		{Kind: KindDeadConnection},
	}
}

// RetryPolicy decides whether a failed attempt is retried and how long to wait before the next one.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Retryable       []RetryableKind
}

// NewQueryRetryPolicy returns the policy used for query execution.
// maxRetries is the number of attempts; 0 and 1 both mean a single attempt.
func NewQueryRetryPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     maxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		Retryable:       DefaultRetryable(),
	}
}

// DefaultConnectRetryPolicy returns the policy used when establishing connections and tunnels.
func DefaultConnectRetryPolicy() *RetryPolicy {
	return NewQueryRetryPolicy(DefaultConnectAttempts)
}

// WithMaxAttempts returns a copy of the policy with updated attempt ceiling.
func (rp *RetryPolicy) WithMaxAttempts(attempts int) *RetryPolicy {
	policy := *rp
	policy.MaxAttempts = attempts
	return &policy
}

// WithInterval returns a copy of the policy with updated intervals.
func (rp *RetryPolicy) WithInterval(initial, max time.Duration) *RetryPolicy {
	policy := *rp
	policy.InitialInterval = initial
	policy.MaxInterval = max
	return &policy
}

// Attempts returns the effective number of attempts (at least one).
func (rp *RetryPolicy) Attempts() int {
	if rp.MaxAttempts < 1 {
		return 1
	}
	return rp.MaxAttempts
}

// IsRetryable reports whether the error kind is registered and its code isn't ignored.
func (rp *RetryPolicy) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	kind, code := KindOf(err)
	if kind == KindUnknown {
		return false
	}

	for _, entry := range rp.Retryable {
		if entry.Kind != kind {
			continue
		}
		for _, ignore := range entry.IgnoreCodes {
			if ignore.MatchString(code) {
				return false
			}
		}
		return true
	}

	return false
}

// ShouldRetry reports whether another attempt follows the failed attempt number "attempt" (1-based).
func (rp *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt < rp.Attempts() && rp.IsRetryable(err)
}

func (rp *RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = rp.InitialInterval
	b.MaxInterval = rp.MaxInterval
	b.Multiplier = rp.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if b.Multiplier < 1 {
		b.Multiplier = DefaultMultiplier
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultMaxInterval
	}
	b.Reset()
	return b
}

// BackoffDelay returns the delay to wait after the failed attempt number "attempt" (1-based).
func (rp *RetryPolicy) BackoffDelay(attempt int) time.Duration {
	b := rp.newBackOff()
	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

type maxRetriesKey struct{}

// WithMaxRetries returns a context carrying the retry ceiling for queries issued on behalf of
// a single export, such as its catalog lookups.
func WithMaxRetries(ctx context.Context, maxRetries int) context.Context {
	return context.WithValue(ctx, maxRetriesKey{}, maxRetries)
}

// MaxRetries returns the retry ceiling carried by ctx, DefaultMaxRetries when there is none.
func MaxRetries(ctx context.Context) int {
	if n, ok := ctx.Value(maxRetriesKey{}).(int); ok {
		return n
	}
	return DefaultMaxRetries
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
