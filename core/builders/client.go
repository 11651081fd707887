package builders

import (
	"context"
	"database/sql"
	"strings"

	"github.com/keboola/db-extractor-common-sub000/core"
)

var _ core.Driver = (*Client)(nil)

// default sql client used by the specific backend implementations
type Client struct {
	db             *sql.DB
	typeProcessors map[string]func(any) any
	classify       func(error) error
}

func NewClient(db *sql.DB, opts ...ClientOption) *Client {
	config := clientConfig{
		typeProcessors: make(map[string]func(any) any),
		classify:       ClassifyError,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Client{
		db:             db,
		typeProcessors: config.typeProcessors,
		classify:       config.classify,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.classifyErr(c.db.PingContext(ctx))
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) classifyErr(err error) error {
	if err == nil {
		return nil
	}
	return c.classify(err)
}

func (c *Client) getTypeProcessor(typ string) func(any) any {
	proc, ok := c.typeProcessors[strings.ToLower(typ)]
	if ok {
		return proc
	}

	return func(val any) any {
		valb, ok := val.([]byte)
		if ok {
			return string(valb)
		}
		return val
	}
}

// Query executes a query on a dedicated connection and returns an unbuffered result stream.
// The connection is released when the stream is closed.
func (c *Client) Query(ctx context.Context, query string) (core.ResultStream, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, c.classifyErr(err)
	}

	dbRows, err := conn.QueryContext(ctx, query)
	if err != nil {
		_ = conn.Close()
		return nil, c.classifyErr(err)
	}

	header, err := dbRows.Columns()
	if err != nil {
		_ = dbRows.Close()
		_ = conn.Close()
		return nil, c.classifyErr(err)
	}

	dbCols, err := dbRows.ColumnTypes()
	if err != nil {
		_ = dbRows.Close()
		_ = conn.Close()
		return nil, c.classifyErr(err)
	}

	meta := &core.Meta{}
	processors := make([]func(any) any, len(dbCols))
	for i, col := range dbCols {
		processors[i] = c.getTypeProcessor(col.DatabaseTypeName())

		typ := &core.ColumnType{
			Name:   col.Name(),
			DBType: col.DatabaseTypeName(),
		}
		if nullable, ok := col.Nullable(); ok {
			typ.Nullable = nullable
		}
		if length, ok := col.Length(); ok {
			typ.Length = formatLength(length)
		} else if precision, scale, ok := col.DecimalSize(); ok {
			typ.Length = formatLength(precision) + "," + formatLength(scale)
		}
		meta.Columns = append(meta.Columns, typ)
	}

	// rows.Next advances the cursor, so the result is peeked and remembered until consumed
	peeked := false
	hasNextFunc := func() bool {
		if peeked {
			return true
		}
		peeked = dbRows.Next()
		return peeked
	}

	nextFunc := func() (core.Row, error) {
		if !hasNextFunc() {
			return nil, ErrNoNextRow
		}
		peeked = false

		columns := make([]any, len(dbCols))
		columnPointers := make([]any, len(dbCols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := dbRows.Scan(columnPointers...); err != nil {
			return nil, c.classifyErr(err)
		}

		row := make(core.Row, len(dbCols))
		for i := range dbCols {
			row[i] = processors[i](columns[i])
		}

		return row, nil
	}

	closeFunc := func() error {
		defer conn.Close()

		closeErr := dbRows.Close()
		// rows.Err reports an error the server raised while streaming
		if streamErr := dbRows.Err(); streamErr != nil {
			return c.classifyErr(streamErr)
		}
		if closeErr != nil {
			return c.classifyErr(closeErr)
		}

		// the result is complete only if the connection that streamed it is still alive
		if err := conn.PingContext(ctx); err != nil {
			return &core.DeadConnectionError{Err: c.classifyErr(err)}
		}
		return nil
	}

	rows := NewResultStreamBuilder().
		WithNextFunc(nextFunc, hasNextFunc).
		WithHeader(header).
		WithMeta(meta).
		WithCloseFunc(closeFunc).
		Build()

	return rows, nil
}
