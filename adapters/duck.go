//go:build cgo && ((darwin && (amd64 || arm64)) || (linux && (amd64 || arm64 || riscv64)))

package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func init() {
	_ = register(&Duck{}, "duck", "duckdb")
}

// error message prefixes of parse, bind and catalog failures
var duckSyntaxErrors = []string{"Parser Error", "Binder Error", "Catalog Error", "Permission Error"}

var _ core.Adapter = (*Duck)(nil)

// Duck reads a duckdb database file (in-memory when the database parameter is empty).
type Duck struct{}

func (d *Duck) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	db, err := sql.Open("duckdb", params.Database)
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("unable to open duckdb database: %w", err)}
	}

	return builders.NewClient(db, builders.WithErrorClassifier(classifyDuckError)), nil
}

func (d *Duck) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder(`"`, `"`, limitClause)
}

func (d *Duck) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	defaultSchema := params.Schema
	if defaultSchema == "" {
		defaultSchema = "main"
	}

	return &catalogProvider{
		q:             q,
		builder:       newSQLBuilder(`"`, `"`, limitClause),
		queries:       duckCatalog(),
		defaultSchema: defaultSchema,
		listSchema:    params.Schema,
	}
}

func classifyDuckError(err error) error {
	for _, prefix := range duckSyntaxErrors {
		if strings.Contains(err.Error(), prefix) {
			return core.NewDBError(core.KindQuery, "42000", err)
		}
	}
	return builders.ClassifyError(err)
}

func duckCatalog() *catalogQueries {
	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT table_schema, table_name, table_type, NULL
				FROM information_schema.tables
				WHERE table_schema NOT IN ('information_schema', 'pg_catalog') AND %s
				ORDER BY table_schema, table_name`, cond)
		},
		tableSchema: "table_schema",
		tableName:   "table_name",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default,
					CAST(COALESCE(c.character_maximum_length, c.numeric_precision) AS VARCHAR),
					c.ordinal_position,
					CASE WHEN list_contains(k.constraint_column_names, c.column_name) THEN 1 ELSE 0 END,
					0,
					NULL, NULL, NULL, NULL
				FROM information_schema.columns c
				LEFT JOIN duckdb_constraints() k
					ON k.schema_name = c.table_schema AND k.table_name = c.table_name AND k.constraint_type = 'PRIMARY KEY'
				WHERE %s
				ORDER BY c.table_schema, c.table_name, c.ordinal_position`, cond)
		},
		columnSchema: "c.table_schema",
		columnTable:  "c.table_name",
	}
}
