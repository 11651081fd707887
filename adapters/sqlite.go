//go:build (darwin && (amd64 || arm64)) || (freebsd && (386 || amd64 || arm || arm64)) || (linux && (386 || amd64 || arm || arm64 || ppc64le || riscv64 || s390x)) || (netbsd && amd64) || (openbsd && (amd64 || arm64)) || (windows && (amd64 || arm64))

package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func init() {
	_ = register(&SQLite{}, "sqlite", "sqlite3")
}

var _ core.Adapter = (*SQLite)(nil)

// SQLite reads a database file. The file path is taken from the database parameter.
type SQLite struct{}

func (s *SQLite) Connect(_ context.Context, params *core.ConnectionParams) (core.Driver, error) {
	if params.Database == "" {
		return nil, &core.ConnectionError{Fatal: true, Err: errors.New("sqlite database file is not set")}
	}

	db, err := sql.Open("sqlite", params.Database)
	if err != nil {
		return nil, &core.ConnectionError{Fatal: true, Err: fmt.Errorf("unable to open sqlite database: %w", err)}
	}
	// every query runs on its own connection, keep them on a single one
	db.SetMaxOpenConns(1)

	return builders.NewClient(db, builders.WithErrorClassifier(classifySQLiteError)), nil
}

func (s *SQLite) QueryBuilder() core.QueryBuilder {
	return newSQLBuilder(`"`, `"`, limitClause)
}

func (s *SQLite) MetadataProvider(q core.Querier, _ *core.ConnectionParams) core.MetadataProvider {
	return &catalogProvider{
		q:       q,
		builder: newSQLBuilder(`"`, `"`, limitClause),
		queries: sqliteCatalog(),
	}
}

// classifySQLiteError maps result codes. SQLITE_ERROR covers syntax errors and missing objects,
// so it's reported as SQLSTATE 42000.
func classifySQLiteError(err error) error {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return builders.ClassifyError(err)
	}

	primary := liteErr.Code() & 0xff
	switch primary {
	case sqlite3.SQLITE_ERROR, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM:
		return core.NewDBError(core.KindQuery, "42000", err)
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return core.NewDBError(core.KindConnection, strconv.Itoa(primary), err)
	default:
		return core.NewDBError(core.KindQuery, strconv.Itoa(primary), err)
	}
}

func sqliteCatalog() *catalogQueries {
	return &catalogQueries{
		tables: func(cond string) string {
			return fmt.Sprintf(`
				SELECT '', m.name, CASE m.type WHEN 'view' THEN 'VIEW' ELSE 'BASE TABLE' END, NULL
				FROM sqlite_master m
				WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%%' AND %s
				ORDER BY m.name`, cond)
		},
		tableName: "m.name",

		columns: func(cond string) string {
			return fmt.Sprintf(`
				SELECT '', m.name, p.name, p.type,
					CASE WHEN p."notnull" = 1 THEN 'NO' ELSE 'YES' END,
					p.dflt_value,
					NULL,
					p.cid + 1,
					CASE WHEN p.pk > 0 THEN 1 ELSE 0 END,
					CASE WHEN p.pk = 1 AND upper(p.type) = 'INTEGER' THEN 1 ELSE 0 END,
					CASE WHEN fk."table" IS NULL THEN NULL ELSE 'fk_' || m.name || '_' || fk.id END,
					NULL, fk."table", fk."to"
				FROM sqlite_master m, pragma_table_info(m.name) p
				LEFT JOIN pragma_foreign_key_list(m.name) fk ON fk."from" = p.name
				WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%%' AND %s
				ORDER BY m.name, p.cid`, cond)
		},
		columnTable: "m.name",
	}
}
