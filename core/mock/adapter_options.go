package mock

import (
	"context"

	"github.com/keboola/db-extractor-common-sub000/core"
)

type queryResult struct {
	rows []core.Row
	opts []ResultStreamOption
}

type adapterConfig struct {
	querySideEffects map[string]func(context.Context) error
	queryResults     map[string]queryResult
	tables           []*core.Table
	connectErrors    []error
	pingErrors       []error
	builder          core.QueryBuilder

	resultStreamOptions []ResultStreamOption
}

type AdapterOption func(*adapterConfig)

// AdapterWithQuerySideEffect runs sideEffect every time the query is dispatched.
// A returned error fails the dispatch.
func AdapterWithQuerySideEffect(query string, sideEffect func(context.Context) error) AdapterOption {
	return func(c *adapterConfig) {
		_, ok := c.querySideEffects[query]
		if ok {
			panic("side effect already registered for query: " + query)
		}

		c.querySideEffects[query] = sideEffect
	}
}

// AdapterWithQueryResult returns rows instead of the default data for the query.
func AdapterWithQueryResult(query string, rows []core.Row, opts ...ResultStreamOption) AdapterOption {
	return func(c *adapterConfig) {
		_, ok := c.queryResults[query]
		if ok {
			panic("result already registered for query: " + query)
		}

		c.queryResults[query] = queryResult{rows: rows, opts: opts}
	}
}

func AdapterWithTableDefinition(table *core.Table) AdapterOption {
	return func(c *adapterConfig) {
		c.tables = append(c.tables, table)
	}
}

// AdapterWithConnectErrors makes consecutive Connect calls fail with errs.
// A nil entry is a successful connect, connects after the last entry succeed.
func AdapterWithConnectErrors(errs ...error) AdapterOption {
	return func(c *adapterConfig) {
		c.connectErrors = append(c.connectErrors, errs...)
	}
}

// AdapterWithPingErrors makes consecutive Ping calls (on any connection) return errs.
func AdapterWithPingErrors(errs ...error) AdapterOption {
	return func(c *adapterConfig) {
		c.pingErrors = append(c.pingErrors, errs...)
	}
}

func AdapterWithResultStreamOpts(opts ...ResultStreamOption) AdapterOption {
	return func(c *adapterConfig) {
		c.resultStreamOptions = append(c.resultStreamOptions, opts...)
	}
}
