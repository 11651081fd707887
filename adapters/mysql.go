package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func init() {
	_ = register(&MySQL{}, "mysql", "mariadb")
}

const mysqlDefaultPort = 3306

// server error numbers meaning the connection is gone
var mysqlConnectionErrors = map[uint16]bool{
	1053: true, // ER_SERVER_SHUTDOWN
	1152: true, // ER_ABORTING_CONNECTION
	1158: true, // ER_NET_READ_ERROR
	1159: true, // ER_NET_READ_INTERRUPTED
	1160: true, // ER_NET_ERROR_ON_WRITE
	1161: true, // ER_NET_WRITE_INTERRUPTED
	2006: true, // CR_SERVER_GONE_ERROR
	2013: true, // CR_SERVER_LOST
}

var _ core.Adapter = (*MySQL)(nil)

type MySQL struct{}

func mysqlConfig(params *core.ConnectionParams) *mysql.Config {
	port := params.Port
	if port == 0 {
		port = mysqlDefaultPort
	}

	cfg := mysql.NewConfig()
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(params.Host, strconv.Itoa(port))
	cfg.DBName = params.Database
	cfg.Timeout = 30 * time.Second
	// values are exported verbatim, no parsing into time.Time
	cfg.ParseTime = false
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range params.Options {
		cfg.Params[k] = v
	}

	return cfg
}

func (m *MySQL) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	connector, err := mysql.NewConnector(mysqlConfig(params))
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("unable to open mysql database: %w", err)}
	}

	db := sql.OpenDB(connector)

	return builders.NewClient(db, builders.WithErrorClassifier(classifyMySQLError)), nil
}

func (m *MySQL) QueryBuilder() core.QueryBuilder {
	return m.builder()
}

func (m *MySQL) builder() *sqlBuilder {
	b := newSQLBuilder("`", "`", limitClause)
	b.backslashEscapes = true
	return b
}

func (m *MySQL) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	return &catalogProvider{
		q:             q,
		builder:       m.builder(),
		queries:       mysqlCatalog(),
		defaultSchema: params.Database,
		listSchema:    params.Database,
	}
}

func classifyMySQLError(err error) error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return core.NewDBError(core.KindConnection, "", err)
	}

	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return builders.ClassifyError(err)
	}

	code := string(myErr.SQLState[:])
	if myErr.SQLState == [5]byte{} {
		code = strconv.Itoa(int(myErr.Number))
	}

	kind := core.KindQuery
	if mysqlConnectionErrors[myErr.Number] {
		kind = core.KindConnection
	}
	return core.NewDBError(kind, code, err)
}

func mysqlCatalog() *catalogQueries {
	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE, TABLE_ROWS
				FROM information_schema.TABLES
				WHERE TABLE_SCHEMA NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys') AND %s
				ORDER BY TABLE_SCHEMA, TABLE_NAME`, cond)
		},
		tableSchema: "TABLE_SCHEMA",
		tableName:   "TABLE_NAME",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
					COALESCE(CAST(c.CHARACTER_MAXIMUM_LENGTH AS CHAR), CONCAT(c.NUMERIC_PRECISION, IF(c.NUMERIC_SCALE IS NULL, '', CONCAT(',', c.NUMERIC_SCALE)))),
					c.ORDINAL_POSITION,
					IF(c.COLUMN_KEY = 'PRI', 1, 0),
					IF(c.EXTRA LIKE '%%auto_increment%%', 1, 0),
					k.CONSTRAINT_NAME, k.REFERENCED_TABLE_SCHEMA, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME
				FROM information_schema.COLUMNS c
				LEFT JOIN information_schema.KEY_COLUMN_USAGE k
					ON k.TABLE_SCHEMA = c.TABLE_SCHEMA AND k.TABLE_NAME = c.TABLE_NAME AND k.COLUMN_NAME = c.COLUMN_NAME
					AND k.REFERENCED_TABLE_NAME IS NOT NULL
				WHERE %s
				ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`, cond)
		},
		columnSchema: "c.TABLE_SCHEMA",
		columnTable:  "c.TABLE_NAME",
	}
}
