package core

import "strings"

type (
	// Row and Header are attributes of the ResultStream iterator
	Row    []any
	Header []string

	// ColumnType describes a single column of an executed result set.
	ColumnType struct {
		Name     string
		DBType   string
		Nullable bool
		Length   string
	}

	// Meta holds metadata of a result set
	Meta struct {
		// column types as reported by the driver, empty when the driver doesn't report them
		Columns []*ColumnType
	}

	// ResultStream is a forward-only cursor over the rows of a single executed query.
	// Rows are pulled from the server on demand. Once exhausted or closed, no more rows are returned.
	// Close must be called after consumption: it reports any error the server raised mid-stream.
	ResultStream interface {
		Meta() *Meta
		Header() Header
		Next() (Row, error)
		HasNext() bool
		Close() error
	}
)

// Index returns the position of the named column in the header (case insensitive) or -1.
func (h Header) Index(name string) int {
	for i, col := range h {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

// TableRef points to a table in a schema.
type TableRef struct {
	Schema string
	Name   string
}

func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// ForeignKey describes a reference of a column to a column of another table.
type ForeignKey struct {
	Name      string
	RefSchema string
	RefTable  string
	RefColumn string
}

// Column is the introspected definition of a table column.
type Column struct {
	Name          string
	SanitizedName string
	Type          string
	Nullable      bool
	Default       *string
	Length        string
	Ordinal       int
	PrimaryKey    bool
	AutoIncrement bool
	ForeignKey    *ForeignKey
}

// Table is the introspected definition of a table.
type Table struct {
	Schema   string
	Name     string
	Type     string
	RowCount int64
	Columns  []*Column
}

func (t *Table) Ref() TableRef {
	return TableRef{Schema: t.Schema, Name: t.Name}
}

// Column returns the column with given name (case insensitive) or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// PrimaryKey returns names of the primary key columns in ordinal order.
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}
