package mock

import (
	"errors"
	"fmt"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

var ErrClosed = errors.New("result stream closed")

func newNext(rows []core.Row, nextErrors map[int]error) (func() (core.Row, error), func() bool) {
	index := 0
	broken := false

	next, hasNext := builders.NextSlice(rows, func(row core.Row) core.Row { return row })

	hasNextFunc := func() bool {
		return !broken && hasNext()
	}

	nextFunc := func() (core.Row, error) {
		if !hasNextFunc() {
			return nil, builders.ErrNoNextRow
		}

		if err, ok := nextErrors[index]; ok {
			// the stream is broken from here on
			broken = true
			return nil, err
		}

		index++
		return next()
	}

	return nextFunc, hasNextFunc
}

type ResultStream struct {
	next    func() (core.Row, error)
	hasNext func() bool
	config  *resultStreamConfig
	closed  bool
}

func makeDefaultHeader(rows []core.Row) core.Header {
	var header core.Header
	if len(rows) > 0 {
		for i := range rows[0] {
			header = append(header, fmt.Sprintf("header_%d", i))
		}
	}
	return header
}

// NewResultStream returns a mocked result stream with provided rows.
// It creates a header that matches the number of columns in the first row
// in form of: <header_0>, <header_1>, etc.
func NewResultStream(rows []core.Row, opts ...ResultStreamOption) *ResultStream {
	config := &resultStreamConfig{
		meta:       &core.Meta{},
		header:     makeDefaultHeader(rows),
		nextErrors: make(map[int]error),
	}
	for _, opt := range opts {
		opt(config)
	}

	next, hasNext := newNext(rows, config.nextErrors)

	return &ResultStream{
		next:    next,
		hasNext: hasNext,
		config:  config,
	}
}

func (rs *ResultStream) Meta() *core.Meta {
	return rs.config.meta
}

func (rs *ResultStream) Header() core.Header {
	return rs.config.header
}

func (rs *ResultStream) Next() (core.Row, error) {
	if rs.closed {
		return nil, ErrClosed
	}
	return rs.next()
}

func (rs *ResultStream) HasNext() bool {
	return !rs.closed && rs.hasNext()
}

func (rs *ResultStream) Close() error {
	rs.closed = true
	return rs.config.closeErr
}

// NewRows returns a slice of rows in form of:
//
//	{ <index>(int), "row_<index>"(string) }
//
// where the first index is "from" and the last one is one less than "to".
func NewRows(from, to int) []core.Row {
	var rows []core.Row

	for i := from; i < to; i++ {
		rows = append(rows, core.Row{i, fmt.Sprintf("row_%d", i)})
	}
	return rows
}
