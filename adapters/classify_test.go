package adapters

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
	"github.com/stretchr/testify/assert"

	"github.com/keboola/db-extractor-common-sub000/core"
)

func TestClassifiers(t *testing.T) {
	policy := core.NewQueryRetryPolicy(5)

	tests := []struct {
		name      string
		classify  func(error) error
		err       error
		wantKind  core.ErrorKind
		wantCode  string
		retryable bool
	}{
		{
			name:     "postgres undefined table",
			classify: classifyPostgresError,
			err:      &pq.Error{Code: "42P01", Message: `relation "missing" does not exist`},
			wantKind: core.KindQuery, wantCode: "42P01", retryable: false,
		},
		{
			name:     "postgres connection failure",
			classify: classifyPostgresError,
			err:      &pq.Error{Code: "08006", Message: "connection failure"},
			wantKind: core.KindConnection, wantCode: "08006", retryable: true,
		},
		{
			name:     "postgres admin shutdown",
			classify: classifyPostgresError,
			err:      &pq.Error{Code: "57P01", Message: "terminating connection due to administrator command"},
			wantKind: core.KindConnection, wantCode: "57P01", retryable: true,
		},
		{
			name:     "postgres plain network error",
			classify: classifyPostgresError,
			err:      sql.ErrConnDone,
			wantKind: core.KindConnection, wantCode: "", retryable: true,
		},
		{
			name:     "mysql syntax error",
			classify: classifyMySQLError,
			err:      &mysql.MySQLError{Number: 1064, SQLState: [5]byte{'4', '2', '0', '0', '0'}, Message: "You have an error in your SQL syntax"},
			wantKind: core.KindQuery, wantCode: "42000", retryable: false,
		},
		{
			name:     "mysql server gone away",
			classify: classifyMySQLError,
			err:      &mysql.MySQLError{Number: 2006, SQLState: [5]byte{'H', 'Y', '0', '0', '0'}, Message: "MySQL server has gone away"},
			wantKind: core.KindConnection, wantCode: "HY000", retryable: true,
		},
		{
			name:     "mysql deadlock",
			classify: classifyMySQLError,
			err:      &mysql.MySQLError{Number: 1213, SQLState: [5]byte{'4', '0', '0', '0', '1'}, Message: "Deadlock found"},
			wantKind: core.KindQuery, wantCode: "40001", retryable: true,
		},
		{
			name:     "mysql invalid connection",
			classify: classifyMySQLError,
			err:      mysql.ErrInvalidConn,
			wantKind: core.KindConnection, wantCode: "", retryable: true,
		},
		{
			name:     "sqlserver invalid object",
			classify: classifySQLServerError,
			err:      mssql.Error{Number: 208, Class: 16, Message: "Invalid object name 'missing'."},
			wantKind: core.KindQuery, wantCode: "42000", retryable: false,
		},
		{
			name:     "sqlserver fatal severity",
			classify: classifySQLServerError,
			err:      mssql.Error{Number: 596, Class: 21, Message: "Cannot continue the execution because the session is in the kill state."},
			wantKind: core.KindConnection, wantCode: "596", retryable: true,
		},
		{
			name:     "oracle missing table",
			classify: classifyOracleError,
			err:      &network.OracleError{ErrCode: 942, ErrMsg: "ORA-00942: table or view does not exist"},
			wantKind: core.KindQuery, wantCode: "42000", retryable: false,
		},
		{
			name:     "oracle lost connection",
			classify: classifyOracleError,
			err:      &network.OracleError{ErrCode: 3113, ErrMsg: "ORA-03113: end-of-file on communication channel"},
			wantKind: core.KindConnection, wantCode: "ORA-03113", retryable: true,
		},
		{
			name:     "clickhouse syntax error",
			classify: classifyClickhouseError,
			err:      &clickhouse.Exception{Code: 62, Name: "DB::Exception", Message: "Syntax error"},
			wantKind: core.KindQuery, wantCode: "42000", retryable: false,
		},
		{
			name:     "clickhouse network error",
			classify: classifyClickhouseError,
			err:      &clickhouse.Exception{Code: 210, Name: "DB::NetException", Message: "Connection reset by peer"},
			wantKind: core.KindConnection, wantCode: "210", retryable: true,
		},
		{
			name:     "unclassified driver error",
			classify: classifyPostgresError,
			err:      errors.New("pq: unknown response for simple query"),
			wantKind: core.KindQuery, wantCode: "", retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.classify(tt.err)

			kind, code := core.KindOf(got)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.retryable, policy.IsRetryable(got))

			var dbErr *core.DBError
			if assert.True(t, errors.As(got, &dbErr)) {
				assert.Equal(t, tt.err, dbErr.Err)
			}
		})
	}
}
