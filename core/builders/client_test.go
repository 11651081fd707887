package builders_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func setupTestClient(t *testing.T, opts ...builders.ClientOption) (*builders.Client, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return builders.NewClient(db, opts...), mock
}

func TestClient_Query(t *testing.T) {
	r := require.New(t)
	client, mock := setupTestClient(t)

	mock.ExpectQuery("SELECT id, name FROM simple").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("first")).
			AddRow(int64(2), nil))

	result, err := client.Query(context.Background(), "SELECT id, name FROM simple")
	r.NoError(err)
	r.Equal(core.Header{"id", "name"}, result.Header())
	r.Len(result.Meta().Columns, 2)

	rows, err := builders.FetchAll(result)
	r.NoError(err)
	r.Equal([]core.Row{
		{int64(1), "first"},
		{int64(2), nil},
	}, rows)

	r.NoError(mock.ExpectationsWereMet())
}

func TestClient_Query_HasNextDoesNotSkipRows(t *testing.T) {
	r := require.New(t)
	client, mock := setupTestClient(t)

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)).AddRow(int64(2)))

	result, err := client.Query(context.Background(), "SELECT 1")
	r.NoError(err)

	r.True(result.HasNext())
	r.True(result.HasNext())
	row, err := result.Next()
	r.NoError(err)
	r.Equal(core.Row{int64(1)}, row)

	r.True(result.HasNext())
	row, err = result.Next()
	r.NoError(err)
	r.Equal(core.Row{int64(2)}, row)

	r.False(result.HasNext())
	r.NoError(result.Close())
}

func TestClient_Query_StreamErrorSurfacesOnClose(t *testing.T) {
	r := require.New(t)
	client, mock := setupTestClient(t)

	streamErr := errors.New("canceling statement due to conflict with recovery")
	mock.ExpectQuery("SELECT * FROM big").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(int64(1)).
			AddRow(int64(2)).
			RowError(1, streamErr))

	result, err := client.Query(context.Background(), "SELECT * FROM big")
	r.NoError(err)

	count := 0
	for result.HasNext() {
		_, err := result.Next()
		r.NoError(err)
		count++
	}
	r.Equal(1, count)

	err = result.Close()
	r.ErrorIs(err, streamErr)

	kind, _ := core.KindOf(err)
	r.Equal(core.KindQuery, kind)
}

func TestClient_Query_DeadStreamingConnection(t *testing.T) {
	r := require.New(t)

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	r.NoError(err)
	t.Cleanup(func() { db.Close() })
	client := builders.NewClient(db)

	pingErr := errors.New("server closed the connection unexpectedly")
	mock.ExpectQuery("SELECT id FROM simple").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectPing().WillReturnError(pingErr)

	result, err := client.Query(context.Background(), "SELECT id FROM simple")
	r.NoError(err)

	r.True(result.HasNext())
	_, err = result.Next()
	r.NoError(err)
	r.False(result.HasNext())

	err = result.Close()
	var dead *core.DeadConnectionError
	r.ErrorAs(err, &dead)
	r.ErrorIs(err, pingErr)
	r.True(core.DefaultConnectRetryPolicy().IsRetryable(err))

	r.NoError(mock.ExpectationsWereMet())
}

func TestClient_Query_PingsStreamingConnection(t *testing.T) {
	r := require.New(t)

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	r.NoError(err)
	t.Cleanup(func() { db.Close() })
	client := builders.NewClient(db)

	mock.ExpectQuery("SELECT id FROM simple").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectPing()

	result, err := client.Query(context.Background(), "SELECT id FROM simple")
	r.NoError(err)
	_, err = builders.FetchAll(result)
	r.NoError(err)

	r.NoError(mock.ExpectationsWereMet())
}

func TestClient_Query_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind core.ErrorKind
	}{
		{name: "lost connection", err: sql.ErrConnDone, wantKind: core.KindConnection},
		{name: "query error", err: errors.New("relation does not exist"), wantKind: core.KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := setupTestClient(t)
			mock.ExpectQuery("SELECT broken").WillReturnError(tt.err)

			got, err := client.Query(context.Background(), "SELECT broken")
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.err)

			kind, _ := core.KindOf(err)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestClient_CustomClassifierAndProcessor(t *testing.T) {
	r := require.New(t)

	classify := func(err error) error {
		return core.NewDBError(core.KindQuery, "42601", err)
	}
	processed := func(v any) any { return "processed" }

	client, mock := setupTestClient(t,
		builders.WithErrorClassifier(classify),
		builders.WithCustomTypeProcessor("TEXT", processed),
	)

	mock.ExpectQuery("SELEC 1").WillReturnError(errors.New("syntax error"))
	_, err := client.Query(context.Background(), "SELEC 1")
	kind, code := core.KindOf(err)
	r.Equal(core.KindQuery, kind)
	r.Equal("42601", code)

	mock.ExpectQuery("SELECT name").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("name").OfType("TEXT", ""),
		).AddRow("raw"))

	result, err := client.Query(context.Background(), "SELECT name")
	r.NoError(err)
	row, err := builders.FetchOne(result)
	r.NoError(err)
	r.Equal(core.Row{"processed"}, row)
}
