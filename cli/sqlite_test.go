//go:build (darwin && (amd64 || arm64)) || (freebsd && (386 || amd64 || arm || arm64)) || (linux && (386 || amd64 || arm || arm64 || ppc64le || riscv64 || s390x)) || (netbsd && amd64) || (openbsd && (amd64 || arm64)) || (windows && (amd64 || arm64))

package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// sqliteDataDir creates a data directory with a source database and a config pointing to it.
func sqliteDataDir(t *testing.T, action, row string) string {
	t.Helper()
	r := require.New(t)

	source := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", source)
	r.NoError(err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE simple (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	r.NoError(err)
	_, err = db.Exec(`INSERT INTO simple (id, name) VALUES (1, 'alice'), (2, 'bob')`)
	r.NoError(err)

	if row != "" {
		row = ", " + row
	}
	return writeConfig(t, fmt.Sprintf(`{
  "action": %q,
  "parameters": {
    "db": {"driver": "sqlite", "database": %q}%s
  }
}`, action, source, row))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestRun_Export(t *testing.T) {
	r := require.New(t)

	dir := sqliteDataDir(t, "run", `"outputTable": "in.c-main.simple", "table": {"tableName": "simple"}, "incrementalFetchingColumn": "id"`)

	code, _, stderr := execute("--data-dir", dir, "run")
	r.Equal(0, code, stderr)

	r.Equal("1,alice\n2,bob\n", readFile(t, filepath.Join(dir, "out", "tables", "in.c-main.simple.csv")))
	r.FileExists(filepath.Join(dir, "out", "tables", "in.c-main.simple.csv.manifest"))
	r.JSONEq(`{"lastFetchedRow": "2"}`, readFile(t, filepath.Join(dir, "out", "state.json")))
	r.Contains(stderr, "run_id=")
}

func TestRun_ExportFromInputState(t *testing.T) {
	r := require.New(t)

	dir := sqliteDataDir(t, "run", `"outputTable": "in.c-main.simple", "table": {"tableName": "simple"}, "incrementalFetchingColumn": "id"`)
	r.NoError(os.MkdirAll(filepath.Join(dir, "in"), 0o755))
	r.NoError(os.WriteFile(filepath.Join(dir, "in", "state.json"), []byte(`{"lastFetchedRow": "2"}`), 0o600))

	code, _, stderr := execute("--data-dir", dir)
	r.Equal(0, code, stderr)

	r.Equal("2,bob\n", readFile(t, filepath.Join(dir, "out", "tables", "in.c-main.simple.csv")))
	r.JSONEq(`{"lastFetchedRow": "2"}`, readFile(t, filepath.Join(dir, "out", "state.json")))
}

func TestRun_QueryFailureWritesNoState(t *testing.T) {
	r := require.New(t)

	dir := sqliteDataDir(t, "run", `"outputTable": "in.c-main.missing", "query": "SELECT * FROM missing", "retries": 1`)

	code, _, stderr := execute("--data-dir", dir, "run")
	r.Equal(1, code)
	r.Contains(stderr, "[in.c-main.missing]: DB query failed")
	r.NoFileExists(filepath.Join(dir, "out", "state.json"))
	r.NoFileExists(filepath.Join(dir, "out", "tables", "in.c-main.missing.csv"))
}

func TestRun_TestConnection(t *testing.T) {
	r := require.New(t)

	dir := sqliteDataDir(t, "testConnection", "")

	code, stdout, stderr := execute("--data-dir", dir)
	r.Equal(0, code, stderr)
	r.JSONEq(`{"status": "success"}`, stdout)
}

func TestRun_GetTablesJSON(t *testing.T) {
	r := require.New(t)

	dir := sqliteDataDir(t, "run", "")

	code, stdout, stderr := execute("--data-dir", dir, "get-tables")
	r.Equal(0, code, stderr)

	var response tablesResponse
	r.NoError(json.Unmarshal([]byte(stdout), &response))
	r.Equal("success", response.Status)
	r.Len(response.Tables, 1)
	r.Equal("simple", response.Tables[0].Name)
	r.Len(response.Tables[0].Columns, 2)
	r.Equal("id", response.Tables[0].Columns[0].Name)
	r.True(response.Tables[0].Columns[0].PrimaryKey)
	r.Equal(1, response.Tables[0].Columns[0].OrdinalPosition)
	r.Equal("name", response.Tables[0].Columns[1].Name)
	r.False(response.Tables[0].Columns[1].Nullable)
}

func TestRun_GetTablesTable(t *testing.T) {
	r := require.New(t)

	dir := sqliteDataDir(t, "getTables", "")

	code, stdout, stderr := execute("--data-dir", dir, "get-tables", "--format", "table")
	r.Equal(0, code, stderr)
	r.Contains(stdout, "primary key")
	r.Contains(stdout, "simple")
	r.Contains(stdout, "INTEGER")
}
