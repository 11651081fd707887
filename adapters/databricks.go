package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbsql "github.com/databricks/databricks-sql-go"
	dbsqlerr "github.com/databricks/databricks-sql-go/errors"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

// Register client
func init() {
	_ = register(&Databricks{}, "databricks")
}

const databricksDefaultPort = 443

var _ core.Adapter = (*Databricks)(nil)

// Databricks connects to a SQL warehouse. The database parameter is the catalog, the password
// is a personal access token and the "httpPath" option is the warehouse endpoint path.
type Databricks struct{}

func (d *Databricks) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	httpPath := params.Options["httpPath"]
	if httpPath == "" {
		return nil, &core.ConnectionError{Fatal: true, Err: errors.New(`required databricks option "httpPath" is missing`)}
	}
	if params.Database == "" {
		return nil, &core.ConnectionError{Fatal: true, Err: errors.New("databricks catalog (database) is missing")}
	}

	port := params.Port
	if port == 0 {
		port = databricksDefaultPort
	}

	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(params.Host),
		dbsql.WithPort(port),
		dbsql.WithHTTPPath(httpPath),
		dbsql.WithAccessToken(params.Password),
		dbsql.WithInitialNamespace(params.Database, params.Schema),
	)
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("invalid databricks connection parameters: %w", err)}
	}

	return builders.NewClient(sql.OpenDB(connector), builders.WithErrorClassifier(classifyDatabricksError)), nil
}

func (d *Databricks) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder("`", "`", limitClause)
}

func (d *Databricks) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	defaultSchema := params.Schema
	if defaultSchema == "" {
		defaultSchema = "default"
	}

	b := newSQLBuilder("`", "`", limitClause)
	b.backslashEscapes = true

	return &catalogProvider{
		q:             q,
		builder:       b,
		queries:       databricksCatalog(b.QuoteIdentifier(params.Database)),
		defaultSchema: defaultSchema,
		listSchema:    params.Schema,
	}
}

func classifyDatabricksError(err error) error {
	var execErr dbsqlerr.DBExecutionError
	if errors.As(err, &execErr) && execErr.SqlState() != "" {
		return core.NewDBError(core.KindQuery, execErr.SqlState(), err)
	}
	return builders.ClassifyError(err)
}

func databricksCatalog(catalog string) *catalogQueries {
	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT table_schema, table_name, table_type, NULL
				FROM %s.information_schema.tables
				WHERE table_schema <> 'information_schema' AND %s
				ORDER BY table_schema, table_name`, catalog, cond)
		},
		tableSchema: "table_schema",
		tableName:   "table_name",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default,
					CAST(COALESCE(c.character_maximum_length, c.numeric_precision) AS STRING),
					c.ordinal_position,
					CASE WHEN pk.column_name IS NULL THEN 0 ELSE 1 END,
					0,
					NULL, NULL, NULL, NULL
				FROM %[1]s.information_schema.columns c
				LEFT JOIN (
					SELECT kcu.table_schema, kcu.table_name, kcu.column_name
					FROM %[1]s.information_schema.table_constraints tc
					JOIN %[1]s.information_schema.key_column_usage kcu
						ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
					WHERE tc.constraint_type = 'PRIMARY KEY'
				) pk ON pk.table_schema = c.table_schema AND pk.table_name = c.table_name AND pk.column_name = c.column_name
				WHERE %[2]s
				ORDER BY c.table_schema, c.table_name, c.ordinal_position`, catalog, cond)
		},
		columnSchema: "c.table_schema",
		columnTable:  "c.table_name",
	}
}
