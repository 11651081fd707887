package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	nurl "net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

// Register client
func init() {
	_ = register(&Postgres{}, "postgres", "postgresql", "pgsql", "pg")
	_ = register(&Postgres{redshift: true}, "redshift")
}

const postgresDefaultPort = 5432

var _ core.Adapter = (*Postgres)(nil)

// Postgres serves PostgreSQL and Redshift (which speaks the postgres protocol).
type Postgres struct {
	redshift bool
}

func postgresURL(params *core.ConnectionParams) *nurl.URL {
	port := params.Port
	if port == 0 {
		port = postgresDefaultPort
	}

	values := nurl.Values{}
	values.Set("sslmode", "disable")
	values.Set("connect_timeout", "30")
	for k, v := range params.Options {
		values.Set(k, v)
	}

	return &nurl.URL{
		Scheme:   "postgres",
		User:     nurl.UserPassword(params.User, params.Password),
		Host:     net.JoinHostPort(params.Host, strconv.Itoa(port)),
		Path:     "/" + params.Database,
		RawQuery: values.Encode(),
	}
}

func (p *Postgres) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	u := postgresURL(params)

	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("unable to open postgres database: %w", err)}
	}

	return builders.NewClient(db, builders.WithErrorClassifier(classifyPostgresError)), nil
}

func (p *Postgres) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder(`"`, `"`, limitClause)
}

func (p *Postgres) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	defaultSchema := params.Schema
	if defaultSchema == "" {
		defaultSchema = "public"
	}

	return &catalogProvider{
		q:             q,
		builder:       newSQLBuilder(`"`, `"`, limitClause),
		queries:       postgresCatalog(p.redshift),
		defaultSchema: defaultSchema,
		listSchema:    params.Schema,
	}
}

// classifyPostgresError maps pq errors to SQLSTATE classified errors.
// Class 08 (connection exception) and 57P0x (operator intervention) mean the connection is gone.
func classifyPostgresError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return builders.ClassifyError(err)
	}

	code := string(pqErr.Code)
	kind := core.KindQuery
	if strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P0") {
		kind = core.KindConnection
	}
	return core.NewDBError(kind, code, err)
}

func postgresCatalog(redshift bool) *catalogQueries {
	autoIncrement := `c.column_default LIKE 'nextval(%%' OR c.is_identity = 'YES'`
	rowCount := "c.reltuples::bigint"
	if redshift {
		// no identity columns in redshift information schema
		autoIncrement = `c.column_default LIKE '%%identity%%'`
	}

	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT t.table_schema, t.table_name, t.table_type, %s
				FROM information_schema.tables t
				LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = t.table_schema
				LEFT JOIN pg_catalog.pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
				WHERE t.table_schema NOT IN ('pg_catalog', 'information_schema') AND %s
				ORDER BY t.table_schema, t.table_name`, rowCount, cond)
		},
		tableSchema: "t.table_schema",
		tableName:   "t.table_name",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default,
					COALESCE(c.character_maximum_length::text, c.numeric_precision::text || COALESCE(',' || c.numeric_scale::text, '')),
					c.ordinal_position,
					CASE WHEN pk.column_name IS NULL THEN 0 ELSE 1 END,
					CASE WHEN `+autoIncrement+` THEN 1 ELSE 0 END,
					fk.constraint_name, fk.ref_schema, fk.ref_table, fk.ref_column
				FROM information_schema.columns c
				LEFT JOIN (
					SELECT kcu.table_schema, kcu.table_name, kcu.column_name
					FROM information_schema.table_constraints tc
					JOIN information_schema.key_column_usage kcu
						ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
					WHERE tc.constraint_type = 'PRIMARY KEY'
				) pk ON pk.table_schema = c.table_schema AND pk.table_name = c.table_name AND pk.column_name = c.column_name
				LEFT JOIN (
					SELECT kcu.table_schema, kcu.table_name, kcu.column_name, tc.constraint_name,
						ccu.table_schema AS ref_schema, ccu.table_name AS ref_table, ccu.column_name AS ref_column
					FROM information_schema.table_constraints tc
					JOIN information_schema.key_column_usage kcu
						ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
					JOIN information_schema.constraint_column_usage ccu
						ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema
					WHERE tc.constraint_type = 'FOREIGN KEY'
				) fk ON fk.table_schema = c.table_schema AND fk.table_name = c.table_name AND fk.column_name = c.column_name
				WHERE %s
				ORDER BY c.table_schema, c.table_name, c.ordinal_position`, cond)
		},
		columnSchema: "c.table_schema",
		columnTable:  "c.table_name",
	}
}
