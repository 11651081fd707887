package builders

import (
	"errors"
	"sync"

	"github.com/keboola/db-extractor-common-sub000/core"
)

var (
	ErrNoNextRow    = errors.New("no next row")
	ErrResultClosed = errors.New("result stream is closed")
)

var _ core.ResultStream = (*Result)(nil)

// Result fills core.ResultStream interface for all sql dbs
type Result struct {
	next    func() (core.Row, error)
	hasNext func() bool
	close   func() error
	meta    *core.Meta
	header  core.Header

	once     sync.Once
	closed   bool
	closeErr error
}

func (r *Result) Meta() *core.Meta {
	return r.meta
}

func (r *Result) Header() core.Header {
	return r.header
}

func (r *Result) HasNext() bool {
	if r.closed {
		return false
	}
	return r.hasNext()
}

func (r *Result) Next() (core.Row, error) {
	if r.closed {
		return nil, ErrResultClosed
	}
	return r.next()
}

// Close releases the stream. It is safe to call multiple times; every call returns the
// error of the first one.
func (r *Result) Close() error {
	r.once.Do(func() {
		r.closed = true
		r.closeErr = r.close()
	})
	return r.closeErr
}

// ResultStreamBuilder builds the rows
type ResultStreamBuilder struct {
	next    func() (core.Row, error)
	hasNext func() bool
	header  core.Header
	close   func() error
	meta    *core.Meta
}

func NewResultStreamBuilder() *ResultStreamBuilder {
	return &ResultStreamBuilder{
		next:    func() (core.Row, error) { return nil, ErrNoNextRow },
		hasNext: func() bool { return false },
		header:  core.Header{},
		close:   func() error { return nil },
		meta:    &core.Meta{},
	}
}

func (b *ResultStreamBuilder) WithNextFunc(fn func() (core.Row, error), has func() bool) *ResultStreamBuilder {
	b.next = fn
	b.hasNext = has
	return b
}

func (b *ResultStreamBuilder) WithHeader(header core.Header) *ResultStreamBuilder {
	b.header = header
	return b
}

func (b *ResultStreamBuilder) WithCloseFunc(fn func() error) *ResultStreamBuilder {
	b.close = fn
	return b
}

func (b *ResultStreamBuilder) WithMeta(meta *core.Meta) *ResultStreamBuilder {
	b.meta = meta
	return b
}

func (b *ResultStreamBuilder) Build() *Result {
	return &Result{
		next:    b.next,
		hasNext: b.hasNext,
		header:  b.header,
		close:   b.close,
		meta:    b.meta,
	}
}
