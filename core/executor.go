package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var _ Querier = (*Executor)(nil)

// RowProcessor consumes a result stream. It is called once per attempt with a fresh stream,
// so it must reset any state it accumulated on a previous attempt.
type RowProcessor func(rows ResultStream) error

// Executor runs queries over a Connection and retries failures classified as retryable.
// Before each retry it attempts to reconnect. Only one query may be in flight at a time.
type Executor struct {
	conn   *Connection
	policy *RetryPolicy
	log    logrus.FieldLogger
	sleep  func(context.Context, time.Duration) error
}

type ExecutorOption func(*Executor)

// WithRetryPolicy sets the policy template (intervals and retryable registry).
// The attempt ceiling is always taken from the maxRetries argument of each call.
func WithRetryPolicy(policy *RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.policy = policy
	}
}

func WithExecutorLogger(log logrus.FieldLogger) ExecutorOption {
	return func(e *Executor) {
		e.log = log
	}
}

func NewExecutor(conn *Connection, opts ...ExecutorOption) *Executor {
	e := &Executor{
		conn:   conn,
		policy: NewQueryRetryPolicy(DefaultMaxRetries),
		log:    logrus.StandardLogger(),
		sleep:  sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Connection() *Connection {
	return e.conn
}

// Query dispatches the query and returns the unconsumed stream. The caller must close it.
// Errors raised while iterating the stream are not retried; use QueryAndProcess for that.
func (e *Executor) Query(ctx context.Context, query string, maxRetries int) (ResultStream, error) {
	var result ResultStream

	err := e.retry(ctx, maxRetries, func(ctx context.Context) error {
		rows, err := e.conn.Driver().Query(ctx, query)
		if err != nil {
			return err
		}
		result = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// QueryAndProcess dispatches the query, hands the stream to process, closes the stream and checks
// that the connection is still alive, all as a single retryable unit: a server error may surface
// only while rows are being fetched, and a connection dying right at the end would otherwise look
// like a complete result.
func (e *Executor) QueryAndProcess(ctx context.Context, query string, maxRetries int, process RowProcessor) error {
	return e.retry(ctx, maxRetries, func(ctx context.Context) error {
		rows, err := e.conn.Driver().Query(ctx, query)
		if err != nil {
			return err
		}

		err = process(rows)
		closeErr := rows.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}

		if err := e.conn.IsAlive(ctx); err != nil {
			return &DeadConnectionError{Err: err}
		}
		return nil
	})
}

// retry runs op until it succeeds, fails with a non-retryable error or the attempts are exhausted.
//
//	attempt -> ok                                   -> done
//	        -> not retryable                        -> error returned as is
//	        -> retryable, attempts left             -> reconnect, backoff, next attempt
//	        -> retryable, no attempts left          -> AdapterError
func (e *Executor) retry(ctx context.Context, maxRetries int, op func(context.Context) error) error {
	policy := e.policy.WithMaxAttempts(maxRetries)

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !policy.IsRetryable(err) {
			return err
		}

		if !policy.ShouldRetry(err, attempt) {
			return &AdapterError{Attempts: attempt, Err: err}
		}

		delay := policy.BackoffDelay(attempt)
		e.log.Warnf("%s. Retrying in %s... [%dx]", err, delay, attempt)

		if rerr := e.conn.Reconnect(ctx); rerr != nil {
			// the original error is the one that matters
			e.log.Debugf("reconnect failed: %s", rerr)
		}

		if serr := e.sleep(ctx, delay); serr != nil {
			return &AdapterError{Attempts: attempt, Err: fmt.Errorf("%w (retry canceled: %s)", err, serr)}
		}
	}
}
