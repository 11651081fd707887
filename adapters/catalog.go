package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

var ErrTableNotFound = errors.New("table not found")

// positions in rows returned by catalogQueries.columns
const (
	colSchema = iota
	colTable
	colName
	colType
	colNullable
	colDefault
	colLength
	colOrdinal
	colPrimaryKey
	colAutoIncrement
	colFKName
	colFKSchema
	colFKTable
	colFKColumn
	colCount
)

// catalogQueries are the dialect specific introspection queries. Both take a boolean SQL
// condition built from the given schema and table expressions.
type catalogQueries struct {
	// tables returns rows of (schema, name, type, row count)
	tables      func(cond string) string
	tableSchema string
	tableName   string

	// columns returns one row per column, see the col* positions
	columns      func(cond string) string
	columnSchema string
	columnTable  string
}

var _ core.MetadataProvider = (*catalogProvider)(nil)

// catalogProvider implements core.MetadataProvider on top of catalog queries.
type catalogProvider struct {
	q       core.Querier
	builder *sqlBuilder
	queries *catalogQueries
	// defaultSchema is used for table references without schema
	defaultSchema string
	// listSchema limits listing of all tables to one schema
	listSchema string
}

func (p *catalogProvider) normalize(refs []core.TableRef) []core.TableRef {
	out := make([]core.TableRef, len(refs))
	for i, ref := range refs {
		if ref.Schema == "" {
			ref.Schema = p.defaultSchema
		}
		out[i] = ref
	}
	return out
}

func (p *catalogProvider) condition(schemaExpr, nameExpr string, refs []core.TableRef) string {
	if len(refs) == 0 {
		if p.listSchema == "" || schemaExpr == "" {
			return "1 = 1"
		}
		return schemaExpr + " = " + p.builder.quoteLiteral(p.listSchema)
	}

	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		part := nameExpr + " = " + p.builder.quoteLiteral(ref.Name)
		if schemaExpr != "" && ref.Schema != "" {
			part = "(" + schemaExpr + " = " + p.builder.quoteLiteral(ref.Schema) + " AND " + part + ")"
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (p *catalogProvider) fetch(ctx context.Context, query string) ([]core.Row, error) {
	rows, err := p.q.Query(ctx, query, core.MaxRetries(ctx))
	if err != nil {
		return nil, err
	}
	return builders.FetchAll(rows)
}

func (p *catalogProvider) ListTables(ctx context.Context, only []core.TableRef, withColumns bool) ([]*core.Table, error) {
	refs := p.normalize(only)

	rows, err := p.fetch(ctx, p.queries.tables(p.condition(p.queries.tableSchema, p.queries.tableName, refs)))
	if err != nil {
		return nil, fmt.Errorf("catalogProvider.ListTables: %w", err)
	}

	tables := make([]*core.Table, 0, len(rows))
	index := make(map[core.TableRef]*core.Table, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("catalogProvider.ListTables: unexpected row %v", row)
		}
		table := &core.Table{
			Schema:   asString(row[0]),
			Name:     asString(row[1]),
			Type:     asString(row[2]),
			RowCount: max(asInt64(row[3]), 0),
		}
		tables = append(tables, table)
		index[table.Ref()] = table
	}

	if !withColumns || len(tables) == 0 {
		return tables, nil
	}

	rows, err = p.fetch(ctx, p.queries.columns(p.condition(p.queries.columnSchema, p.queries.columnTable, refs)))
	if err != nil {
		return nil, fmt.Errorf("catalogProvider.ListTables: %w", err)
	}

	for _, row := range rows {
		if len(row) < colCount {
			return nil, fmt.Errorf("catalogProvider.ListTables: unexpected column row %v", row)
		}

		table, ok := index[core.TableRef{Schema: asString(row[colSchema]), Name: asString(row[colTable])}]
		if !ok {
			continue
		}

		name := asString(row[colName])
		// a column referenced by more foreign keys comes in more rows
		if table.Column(name) != nil {
			continue
		}

		column := &core.Column{
			Name:          name,
			Type:          asString(row[colType]),
			Nullable:      asBool(row[colNullable]),
			Default:       asNullableString(row[colDefault]),
			Length:        asString(row[colLength]),
			Ordinal:       int(asInt64(row[colOrdinal])),
			PrimaryKey:    asBool(row[colPrimaryKey]),
			AutoIncrement: asBool(row[colAutoIncrement]),
		}
		if fkTable := asString(row[colFKTable]); fkTable != "" {
			column.ForeignKey = &core.ForeignKey{
				Name:      asString(row[colFKName]),
				RefSchema: asString(row[colFKSchema]),
				RefTable:  fkTable,
				RefColumn: asString(row[colFKColumn]),
			}
		}
		table.Columns = append(table.Columns, column)
	}

	return tables, nil
}

func (p *catalogProvider) GetTable(ctx context.Context, ref core.TableRef) (*core.Table, error) {
	tables, err := p.ListTables(ctx, []core.TableRef{ref}, true)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}
	return tables[0], nil
}
