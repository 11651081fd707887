package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	nurl "net/url"
	"strconv"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func init() {
	_ = register(&SQLServer{}, "sqlserver", "mssql")
}

const sqlServerDefaultPort = 1433

// error numbers of syntax, missing object and permission errors; reported as SQLSTATE 42000
var sqlServerSyntaxErrors = map[int32]bool{
	102:  true, // incorrect syntax
	105:  true, // unclosed quotation mark
	156:  true, // incorrect syntax near keyword
	207:  true, // invalid column name
	208:  true, // invalid object name
	229:  true, // permission denied on object
	230:  true, // permission denied on column
	262:  true, // permission denied in database
	4060: true, // cannot open database
}

var _ core.Adapter = (*SQLServer)(nil)

type SQLServer struct{}

func sqlServerURL(params *core.ConnectionParams) *nurl.URL {
	port := params.Port
	if port == 0 {
		port = sqlServerDefaultPort
	}

	values := nurl.Values{}
	values.Set("database", params.Database)
	values.Set("dial timeout", "30")
	for k, v := range params.Options {
		values.Set(k, v)
	}

	return &nurl.URL{
		Scheme:   "sqlserver",
		User:     nurl.UserPassword(params.User, params.Password),
		Host:     net.JoinHostPort(params.Host, strconv.Itoa(port)),
		RawQuery: values.Encode(),
	}
}

func (s *SQLServer) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	db, err := sql.Open("sqlserver", sqlServerURL(params).String())
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("unable to open sqlserver database: %w", err)}
	}

	return builders.NewClient(db,
		builders.WithErrorClassifier(classifySQLServerError),
		builders.WithCustomTypeProcessor(
			"uniqueidentifier",
			func(a any) any {
				b, ok := a.([]byte)
				if !ok {
					return a
				}

				id, err := uuid.FromBytes(mssqlUUIDBytes(b))
				if err != nil {
					return a
				}

				return id.String()
			}),
	), nil
}

// mssqlUUIDBytes reorders the mixed-endian uniqueidentifier wire format to RFC 4122 order.
func mssqlUUIDBytes(b []byte) []byte {
	if len(b) != 16 {
		return b
	}
	out := make([]byte, 16)
	copy(out, b)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	return out
}

func (s *SQLServer) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder("[", "]", limitTop)
}

func (s *SQLServer) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	defaultSchema := params.Schema
	if defaultSchema == "" {
		defaultSchema = "dbo"
	}

	return &catalogProvider{
		q:             q,
		builder:       newSQLBuilder("[", "]", limitTop),
		queries:       sqlServerCatalog(),
		defaultSchema: defaultSchema,
		listSchema:    params.Schema,
	}
}

// classifySQLServerError maps server errors to codes. Severity 20 and above terminates the connection.
func classifySQLServerError(err error) error {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		return builders.ClassifyError(err)
	}

	code := strconv.Itoa(int(msErr.Number))
	if sqlServerSyntaxErrors[msErr.Number] {
		code = "42000"
	}

	kind := core.KindQuery
	if msErr.Class >= 20 {
		kind = core.KindConnection
	}
	return core.NewDBError(kind, code, err)
}

func sqlServerCatalog() *catalogQueries {
	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT t.TABLE_SCHEMA, t.TABLE_NAME, t.TABLE_TYPE, NULL
				FROM INFORMATION_SCHEMA.TABLES t
				WHERE t.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA') AND %s
				ORDER BY t.TABLE_SCHEMA, t.TABLE_NAME`, cond)
		},
		tableSchema: "t.TABLE_SCHEMA",
		tableName:   "t.TABLE_NAME",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
					COALESCE(CAST(c.CHARACTER_MAXIMUM_LENGTH AS VARCHAR(20)),
						CAST(c.NUMERIC_PRECISION AS VARCHAR(10)) + COALESCE(',' + CAST(c.NUMERIC_SCALE AS VARCHAR(10)), '')),
					c.ORDINAL_POSITION,
					CASE WHEN pk.COLUMN_NAME IS NULL THEN 0 ELSE 1 END,
					COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity'),
					NULL, NULL, NULL, NULL
				FROM INFORMATION_SCHEMA.COLUMNS c
				LEFT JOIN (
					SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
					FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
					JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
						ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND kcu.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
					WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
				) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA AND pk.TABLE_NAME = c.TABLE_NAME AND pk.COLUMN_NAME = c.COLUMN_NAME
				WHERE %s
				ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`, cond)
		},
		columnSchema: "c.TABLE_SCHEMA",
		columnTable:  "c.TABLE_NAME",
	}
}
