package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type (
	// Adapter is a backend (one per supported database). It connects to the database and
	// provides the dialect specific capabilities.
	Adapter interface {
		Connect(ctx context.Context, params *ConnectionParams) (Driver, error)
		QueryBuilder() QueryBuilder
		// MetadataProvider introspects the database through q. params are the expanded
		// connection parameters (default schema and such).
		MetadataProvider(q Querier, params *ConnectionParams) MetadataProvider
	}

	// Driver is a live database handle
	Driver interface {
		Query(ctx context.Context, query string) (ResultStream, error)
		Ping(ctx context.Context) error
		Close() error
	}

	// Querier executes queries with retries
	Querier interface {
		Query(ctx context.Context, query string, maxRetries int) (ResultStream, error)
	}
)

// Connection owns the single live database handle. The handle is replaced wholesale on reconnect.
// Connection is not safe for concurrent use.
type Connection struct {
	params  *ConnectionParams
	adapter Adapter
	policy  *RetryPolicy
	log     logrus.FieldLogger
	sleep   func(context.Context, time.Duration) error

	driver Driver
}

type ConnectionOption func(*Connection)

// WithConnectRetryPolicy overrides the policy used to establish the connection.
func WithConnectRetryPolicy(policy *RetryPolicy) ConnectionOption {
	return func(c *Connection) {
		c.policy = policy
	}
}

func WithConnectionLogger(log logrus.FieldLogger) ConnectionOption {
	return func(c *Connection) {
		c.log = log
	}
}

// NewConnection connects to the database described by params using the adapter.
// Transient failures are retried per the connect retry policy. A missing driver or invalid
// parameters result in an ApplicationError, exhausted retries in a UserError.
func NewConnection(ctx context.Context, params *ConnectionParams, adapter Adapter, opts ...ConnectionOption) (*Connection, error) {
	c := &Connection{
		adapter: adapter,
		policy:  DefaultConnectRetryPolicy(),
		log:     logrus.StandardLogger(),
		sleep:   sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.params = params.ExpandWithLogger(c.log)

	for attempt := 1; ; attempt++ {
		driver, err := c.open(ctx)
		if err == nil {
			c.driver = driver
			return c, nil
		}

		var connErr *ConnectionError
		if errors.As(err, &connErr) && connErr.Fatal {
			return nil, NewApplicationError("Cannot connect to %q database: %w", c.params.Type, err)
		}

		if attempt >= c.policy.Attempts() {
			return nil, NewUserError("Error connecting to DB: %w", err)
		}

		delay := c.policy.BackoffDelay(attempt)
		c.log.Warnf("%s. Retrying connection in %s [%dx]", err, delay, attempt)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, NewUserError("Error connecting to DB: %w", err)
		}
	}
}

// open creates a new handle, verifies it and runs the init queries on it.
func (c *Connection) open(ctx context.Context) (Driver, error) {
	driver, err := c.adapter.Connect(ctx, c.params)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &ConnectionError{Err: err}
	}

	if err := driver.Ping(ctx); err != nil {
		_ = driver.Close()
		return nil, &ConnectionError{Err: err}
	}

	for _, query := range c.params.InitQueries {
		if err := runVerbatim(ctx, driver, query); err != nil {
			_ = driver.Close()
			return nil, &ConnectionError{Err: fmt.Errorf("init query %q: %w", query, err)}
		}
	}

	return driver, nil
}

func runVerbatim(ctx context.Context, driver Driver, query string) error {
	rows, err := driver.Query(ctx, query)
	if err != nil {
		return err
	}
	for rows.HasNext() {
		if _, err := rows.Next(); err != nil {
			_ = rows.Close()
			return err
		}
	}
	return rows.Close()
}

// Driver returns the current live handle.
func (c *Connection) Driver() Driver {
	return c.driver
}

// Adapter returns the backend used by the connection.
func (c *Connection) Adapter() Adapter {
	return c.adapter
}

// Params returns the expanded connection parameters.
func (c *Connection) Params() *ConnectionParams {
	return c.params
}

// Reconnect replaces the live handle with a new one. On failure the current handle is kept
// and the error is returned; callers treat the reconnect as best effort.
func (c *Connection) Reconnect(ctx context.Context) error {
	driver, err := c.open(ctx)
	if err != nil {
		return err
	}

	old := c.driver
	c.driver = driver
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// IsAlive checks the live handle.
func (c *Connection) IsAlive(ctx context.Context) error {
	if c.driver == nil {
		return errors.New("not connected")
	}
	return c.driver.Ping(ctx)
}

func (c *Connection) Close() error {
	if c.driver == nil {
		return nil
	}
	err := c.driver.Close()
	c.driver = nil
	return err
}
