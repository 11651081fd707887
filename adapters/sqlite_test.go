//go:build (darwin && (amd64 || arm64)) || (freebsd && (386 || amd64 || arm || arm64)) || (linux && (386 || amd64 || arm || arm64 || ppc64le || riscv64 || s390x)) || (netbsd && amd64) || (openbsd && (amd64 || arm64)) || (windows && (amd64 || arm64))

package adapters

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func newSQLiteFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT 'n/a'
		)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER REFERENCES customers(id),
			amount REAL,
			created_at TEXT
		)`,
		`CREATE VIEW big_orders AS SELECT * FROM orders WHERE amount > 100`,
		`INSERT INTO customers (id, name) VALUES (1, 'alice'), (2, 'bob')`,
		`INSERT INTO orders VALUES (1, 1, 10.5, '2024-01-01 10:00:00'), (2, 2, 200, '2024-01-02 10:00:00')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return path
}

func newSQLiteExecutor(t *testing.T, path string) *core.Executor {
	t.Helper()

	log, _ := test.NewNullLogger()
	conn, err := NewConnection(context.Background(), &core.ConnectionParams{Type: "sqlite", Database: path}, core.WithConnectionLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return core.NewExecutor(conn, core.WithExecutorLogger(log))
}

func TestSQLite_ListTables(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	exec := newSQLiteExecutor(t, newSQLiteFixture(t))
	provider := exec.Connection().Adapter().MetadataProvider(exec, exec.Connection().Params())

	tables, err := provider.ListTables(ctx, nil, false)
	r.NoError(err)
	r.Len(tables, 3)

	r.Equal("big_orders", tables[0].Name)
	r.Equal("VIEW", tables[0].Type)
	r.Equal("customers", tables[1].Name)
	r.Equal("BASE TABLE", tables[1].Type)
	r.Equal("orders", tables[2].Name)
	r.Empty(tables[2].Columns)

	tables, err = provider.ListTables(ctx, []core.TableRef{{Name: "customers"}}, true)
	r.NoError(err)
	r.Len(tables, 1)
	r.Equal([]string{"id"}, tables[0].PrimaryKey())
}

func TestSQLite_GetTable(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	exec := newSQLiteExecutor(t, newSQLiteFixture(t))
	provider := exec.Connection().Adapter().MetadataProvider(exec, exec.Connection().Params())

	table, err := provider.GetTable(ctx, core.TableRef{Name: "orders"})
	r.NoError(err)
	r.Len(table.Columns, 4)

	id := table.Column("id")
	r.NotNil(id)
	r.True(id.PrimaryKey)
	r.True(id.AutoIncrement)
	r.Equal(1, id.Ordinal)

	customer := table.Column("customer_id")
	r.NotNil(customer)
	r.False(customer.PrimaryKey)
	r.True(customer.Nullable)
	r.NotNil(customer.ForeignKey)
	r.Equal("customers", customer.ForeignKey.RefTable)
	r.Equal("id", customer.ForeignKey.RefColumn)

	r.Equal("REAL", table.Column("amount").Type)
	r.Nil(table.Column("amount").ForeignKey)

	customers, err := provider.GetTable(ctx, core.TableRef{Name: "customers"})
	r.NoError(err)
	name := customers.Column("name")
	r.False(name.Nullable)
	r.NotNil(name.Default)
	r.Equal("'n/a'", *name.Default)

	_, err = provider.GetTable(ctx, core.TableRef{Name: "missing"})
	r.ErrorIs(err, ErrTableNotFound)
}

func TestSQLite_Query(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	exec := newSQLiteExecutor(t, newSQLiteFixture(t))
	b := exec.Connection().Adapter().QueryBuilder()

	query, err := b.BuildSelect(&core.SelectQuery{
		Table:   core.TableRef{Name: "orders"},
		Columns: []string{"id", "created_at"},
		Filter:  &core.IncrementalFilter{Column: "id", Value: "2", Numeric: true},
		OrderBy: "id",
	})
	r.NoError(err)

	result, err := exec.Query(ctx, query, 3)
	r.NoError(err)
	r.Equal(core.Header{"id", "created_at"}, result.Header())

	rows, err := builders.FetchAll(result)
	r.NoError(err)
	r.Equal([]core.Row{{int64(2), "2024-01-02 10:00:00"}}, rows)

	result, err = exec.Query(ctx, b.BuildMaxValue(core.TableRef{Name: "orders"}, "created_at"), 3)
	r.NoError(err)
	row, err := builders.FetchOne(result)
	r.NoError(err)
	r.Equal(core.Row{"2024-01-02 10:00:00"}, row)
}

func TestSQLite_QueryErrorIsNotRetried(t *testing.T) {
	exec := newSQLiteExecutor(t, newSQLiteFixture(t))

	_, err := exec.Query(context.Background(), `SELECT * FROM "missing"`, 5)
	require.Error(t, err)

	var adapterErr *core.AdapterError
	assert.False(t, errors.As(err, &adapterErr))

	kind, code := core.KindOf(err)
	assert.Equal(t, core.KindQuery, kind)
	assert.Equal(t, "42000", code)
}
