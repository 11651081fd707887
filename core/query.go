package core

import "context"

type (
	// IncrementalFilter restricts a select to rows whose column is >= the last fetched value.
	// The boundary row is fetched again on purpose; the storage deduplicates by primary key.
	IncrementalFilter struct {
		Column string
		Value  string
		// Numeric values are inlined as literals, anything else is quoted as a string
		Numeric bool
	}

	// SelectQuery is a structural export query.
	SelectQuery struct {
		Table   TableRef
		Columns []string
		// Filter is optional
		Filter *IncrementalFilter
		// OrderBy is an optional column to sort by (ascending)
		OrderBy string
		// Limit is ignored when not positive
		Limit int
	}

	// QueryBuilder renders queries in the backend dialect.
	QueryBuilder interface {
		QuoteIdentifier(name string) string
		BuildSelect(q *SelectQuery) (string, error)
		BuildMaxValue(table TableRef, column string) string
	}

	// MetadataProvider introspects tables.
	MetadataProvider interface {
		GetTable(ctx context.Context, ref TableRef) (*Table, error)
		// ListTables lists tables, optionally limited to the given ones.
		ListTables(ctx context.Context, only []TableRef, withColumns bool) ([]*Table, error)
	}
)
