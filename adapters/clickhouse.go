package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func init() {
	_ = register(&Clickhouse{}, "clickhouse")
}

const clickhouseDefaultPort = 9000

var clickhouseSyntaxErrors = map[int32]bool{
	46:  true, // UNKNOWN_FUNCTION
	47:  true, // UNKNOWN_IDENTIFIER
	60:  true, // UNKNOWN_TABLE
	62:  true, // SYNTAX_ERROR
	81:  true, // UNKNOWN_DATABASE
	497: true, // ACCESS_DENIED
	516: true, // AUTHENTICATION_FAILED
}

var clickhouseConnectionErrors = map[int32]bool{
	209: true, // SOCKET_TIMEOUT
	210: true, // NETWORK_ERROR
}

var _ core.Adapter = (*Clickhouse)(nil)

type Clickhouse struct{}

func clickhouseOptions(params *core.ConnectionParams) *clickhouse.Options {
	port := params.Port
	if port == 0 {
		port = clickhouseDefaultPort
	}

	settings := clickhouse.Settings{}
	for k, v := range params.Options {
		settings[k] = v
	}

	return &clickhouse.Options{
		Addr: []string{net.JoinHostPort(params.Host, strconv.Itoa(port))},
		Auth: clickhouse.Auth{
			Database: params.Database,
			Username: params.User,
			Password: params.Password,
		},
		Settings:    settings,
		DialTimeout: 30 * time.Second,
	}
}

func (p *Clickhouse) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	db := clickhouse.OpenDB(clickhouseOptions(params))

	return builders.NewClient(db, builders.WithErrorClassifier(classifyClickhouseError)), nil
}

func (p *Clickhouse) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder("`", "`", limitClause)
}

func (p *Clickhouse) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	defaultSchema := params.Database
	if defaultSchema == "" {
		defaultSchema = "default"
	}

	b := newSQLBuilder("`", "`", limitClause)
	b.backslashEscapes = true

	return &catalogProvider{
		q:             q,
		builder:       b,
		queries:       clickhouseCatalog(),
		defaultSchema: defaultSchema,
		listSchema:    params.Database,
	}
}

func classifyClickhouseError(err error) error {
	var chErr *clickhouse.Exception
	if !errors.As(err, &chErr) {
		return builders.ClassifyError(err)
	}

	code := strconv.Itoa(int(chErr.Code))
	if clickhouseSyntaxErrors[chErr.Code] {
		code = "42000"
	}

	kind := core.KindQuery
	if clickhouseConnectionErrors[chErr.Code] {
		kind = core.KindConnection
	}
	return core.NewDBError(kind, code, err)
}

func clickhouseCatalog() *catalogQueries {
	systemDatabases := "'system', 'INFORMATION_SCHEMA', 'information_schema'"

	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT database, name, engine, total_rows
				FROM system.tables
				WHERE database NOT IN (%s) AND %s
				ORDER BY database, name`, systemDatabases, cond)
		},
		tableSchema: "database",
		tableName:   "name",

		// literal NULLs would be Nullable(Nothing) columns, empty strings are used instead
		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT database, table, name, type,
					if(startsWith(type, 'Nullable('), 'YES', 'NO'),
					default_expression,
					'',
					position,
					is_in_primary_key,
					0,
					'', '', '', ''
				FROM system.columns
				WHERE database NOT IN (%s) AND %s
				ORDER BY database, table, position`, systemDatabases, cond)
		},
		columnSchema: "database",
		columnTable:  "table",
	}
}
