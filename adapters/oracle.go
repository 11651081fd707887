package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func init() {
	_ = register(&Oracle{}, "oracle")
}

const oracleDefaultPort = 1521

var oracleConnectionErrors = map[int]bool{
	3113:  true, // end-of-file on communication channel
	3114:  true, // not connected to ORACLE
	3135:  true, // connection lost contact
	12170: true, // connect timeout
	12514: true, // listener does not know of service
	12537: true, // connection closed
	12541: true, // no listener
	12543: true, // destination host unreachable
}

var _ core.Adapter = (*Oracle)(nil)

type Oracle struct{}

func (o *Oracle) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	port := params.Port
	if port == 0 {
		port = oracleDefaultPort
	}

	url := go_ora.BuildUrl(params.Host, port, params.Database, params.User, params.Password, params.Options)

	db, err := sql.Open("oracle", url)
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("unable to open oracle database: %w", err)}
	}

	return builders.NewClient(db, builders.WithErrorClassifier(classifyOracleError)), nil
}

func (o *Oracle) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder(`"`, `"`, limitFetchFirst)
}

func (o *Oracle) MetadataProvider(q core.Querier, params *core.ConnectionParams) core.MetadataProvider {
	defaultSchema := params.Schema
	if defaultSchema == "" {
		defaultSchema = strings.ToUpper(params.User)
	}

	return &catalogProvider{
		q:             q,
		builder:       newSQLBuilder(`"`, `"`, limitFetchFirst),
		queries:       oracleCatalog(),
		defaultSchema: defaultSchema,
		listSchema:    params.Schema,
	}
}

// classifyOracleError reports ORA codes. ORA-009xx are parse and missing object errors,
// ORA-01031 insufficient privileges; both are reported as SQLSTATE 42000.
func classifyOracleError(err error) error {
	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return builders.ClassifyError(err)
	}

	code := fmt.Sprintf("ORA-%05d", oraErr.ErrCode)
	if (oraErr.ErrCode >= 900 && oraErr.ErrCode < 1000) || oraErr.ErrCode == 1031 {
		code = "42000"
	}

	kind := core.KindQuery
	if oracleConnectionErrors[oraErr.ErrCode] {
		kind = core.KindConnection
	}
	return core.NewDBError(kind, code, err)
}

func oracleCatalog() *catalogQueries {
	systemOwners := "'SYS', 'SYSTEM', 'OUTLN', 'XDB', 'DBSNMP', 'APPQOSSYS', 'AUDSYS', 'CTXSYS', 'DVSYS', 'GSMADMIN_INTERNAL', 'LBACSYS', 'MDSYS', 'OJVMSYS', 'OLAPSYS', 'ORDDATA', 'ORDSYS', 'WMSYS'"

	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT t.OWNER, t.TABLE_NAME, 'BASE TABLE', t.NUM_ROWS
				FROM ALL_TABLES t
				WHERE t.OWNER NOT IN (%s) AND %s
				ORDER BY t.OWNER, t.TABLE_NAME`, systemOwners, cond)
		},
		tableSchema: "t.OWNER",
		tableName:   "t.TABLE_NAME",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT c.OWNER, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE,
					CASE c.NULLABLE WHEN 'Y' THEN 'YES' ELSE 'NO' END,
					NULL,
					CASE WHEN c.DATA_PRECISION IS NOT NULL THEN c.DATA_PRECISION || ',' || c.DATA_SCALE ELSE TO_CHAR(c.DATA_LENGTH) END,
					c.COLUMN_ID,
					CASE WHEN pk.COLUMN_NAME IS NULL THEN 0 ELSE 1 END,
					CASE WHEN c.IDENTITY_COLUMN = 'YES' THEN 1 ELSE 0 END,
					NULL, NULL, NULL, NULL
				FROM ALL_TAB_COLUMNS c
				LEFT JOIN (
					SELECT cc.OWNER, cc.TABLE_NAME, cc.COLUMN_NAME
					FROM ALL_CONSTRAINTS con
					JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = con.OWNER AND cc.CONSTRAINT_NAME = con.CONSTRAINT_NAME
					WHERE con.CONSTRAINT_TYPE = 'P'
				) pk ON pk.OWNER = c.OWNER AND pk.TABLE_NAME = c.TABLE_NAME AND pk.COLUMN_NAME = c.COLUMN_NAME
				WHERE c.OWNER NOT IN (%s) AND %s
				ORDER BY c.OWNER, c.TABLE_NAME, c.COLUMN_ID`, systemOwners, cond)
		},
		columnSchema: "c.OWNER",
		columnTable:  "c.TABLE_NAME",
	}
}
