package mock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/keboola/db-extractor-common-sub000/core"
)

var ErrUnknownTable = errors.New("unknown table")

var _ core.Driver = (*driver)(nil)

type driver struct {
	adapter *Adapter
	closed  bool
}

func (d *driver) Query(ctx context.Context, query string) (core.ResultStream, error) {
	d.adapter.record(query)

	eff, ok := d.adapter.config.querySideEffects[query]
	if ok {
		err := eff(ctx)
		if err != nil {
			return nil, err
		}
	}

	if res, ok := d.adapter.config.queryResults[query]; ok {
		return NewResultStream(res.rows, res.opts...), nil
	}

	return NewResultStream(d.adapter.data, d.adapter.config.resultStreamOptions...), nil
}

func (d *driver) Ping(_ context.Context) error {
	return d.adapter.nextPingError()
}

func (d *driver) Close() error {
	d.adapter.mu.Lock()
	defer d.adapter.mu.Unlock()

	if !d.closed {
		d.closed = true
		d.adapter.closes++
	}
	return nil
}

var _ core.Adapter = (*Adapter)(nil)

// Adapter is a configurable in-memory backend. Every connection shares the adapter's
// configuration and bookkeeping.
type Adapter struct {
	data   []core.Row
	config *adapterConfig

	mu       sync.Mutex
	queries  []string
	connects int
	closes   int
}

func NewAdapter(data []core.Row, opts ...AdapterOption) *Adapter {
	config := &adapterConfig{
		querySideEffects: make(map[string]func(context.Context) error),
		queryResults:     make(map[string]queryResult),
		builder:          &queryBuilder{},

		resultStreamOptions: []ResultStreamOption{},
	}
	for _, opt := range opts {
		opt(config)
	}

	return &Adapter{
		data:   data,
		config: config,
	}
}

func (a *Adapter) Connect(_ context.Context, _ *core.ConnectionParams) (core.Driver, error) {
	a.mu.Lock()
	a.connects++
	var err error
	if len(a.config.connectErrors) > 0 {
		err = a.config.connectErrors[0]
		a.config.connectErrors = a.config.connectErrors[1:]
	}
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return &driver{adapter: a}, nil
}

func (a *Adapter) QueryBuilder() core.QueryBuilder {
	return a.config.builder
}

func (a *Adapter) MetadataProvider(_ core.Querier, _ *core.ConnectionParams) core.MetadataProvider {
	return &metadataProvider{tables: a.config.tables}
}

// Queries returns all queries received by any connection, in order.
func (a *Adapter) Queries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.queries...)
}

// QueryCount returns how many times the query was received.
func (a *Adapter) QueryCount(query string) int {
	count := 0
	for _, q := range a.Queries() {
		if q == query {
			count++
		}
	}
	return count
}

// Connects returns the number of Connect calls.
func (a *Adapter) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

// Closes returns the number of closed connections.
func (a *Adapter) Closes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

func (a *Adapter) record(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, query)
}

func (a *Adapter) nextPingError() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.config.pingErrors) == 0 {
		return nil
	}
	err := a.config.pingErrors[0]
	a.config.pingErrors = a.config.pingErrors[1:]
	return err
}

var _ core.MetadataProvider = (*metadataProvider)(nil)

type metadataProvider struct {
	tables []*core.Table
}

func (p *metadataProvider) GetTable(_ context.Context, ref core.TableRef) (*core.Table, error) {
	for _, t := range p.tables {
		if strings.EqualFold(t.Name, ref.Name) && (ref.Schema == "" || strings.EqualFold(t.Schema, ref.Schema)) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTable, ref)
}

func (p *metadataProvider) ListTables(ctx context.Context, only []core.TableRef, _ bool) ([]*core.Table, error) {
	if len(only) == 0 {
		return p.tables, nil
	}

	var tables []*core.Table
	for _, ref := range only {
		t, err := p.GetTable(ctx, ref)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

var _ core.QueryBuilder = (*queryBuilder)(nil)

// queryBuilder renders plain ANSI queries.
type queryBuilder struct{}

func (*queryBuilder) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (b *queryBuilder) table(ref core.TableRef) string {
	if ref.Schema == "" {
		return b.QuoteIdentifier(ref.Name)
	}
	return b.QuoteIdentifier(ref.Schema) + "." + b.QuoteIdentifier(ref.Name)
}

func (b *queryBuilder) BuildSelect(q *core.SelectQuery) (string, error) {
	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = b.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", cols, b.table(q.Table))
	if q.Filter != nil {
		value := "'" + strings.ReplaceAll(q.Filter.Value, "'", "''") + "'"
		if q.Filter.Numeric {
			value = q.Filter.Value
		}
		query += fmt.Sprintf(" WHERE %s >= %s", b.QuoteIdentifier(q.Filter.Column), value)
	}
	if q.OrderBy != "" {
		query += " ORDER BY " + b.QuoteIdentifier(q.OrderBy)
	}
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}
	return query, nil
}

func (b *queryBuilder) BuildMaxValue(table core.TableRef, column string) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", b.QuoteIdentifier(column), b.table(table))
}
