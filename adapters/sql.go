package adapters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/keboola/db-extractor-common-sub000/core"
)

type limitStyle int

const (
	// SELECT ... LIMIT n
	limitClause limitStyle = iota
	// SELECT TOP n ...
	limitTop
	// SELECT ... FETCH FIRST n ROWS ONLY
	limitFetchFirst
)

var numericLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][-+]?\d+)?$`)

var _ core.QueryBuilder = (*sqlBuilder)(nil)

// sqlBuilder renders export queries for dialects that differ only in identifier quoting
// and row limit syntax.
type sqlBuilder struct {
	open  string
	close string
	limit limitStyle
	// backslashEscapes is set for dialects that treat backslash in string literals as escape
	backslashEscapes bool
}

func newSQLBuilder(open, close string, limit limitStyle) *sqlBuilder {
	return &sqlBuilder{
		open:  open,
		close: close,
		limit: limit,
	}
}

func (b *sqlBuilder) QuoteIdentifier(name string) string {
	return b.open + strings.ReplaceAll(name, b.close, b.close+b.close) + b.close
}

func (b *sqlBuilder) quoteLiteral(value string) string {
	if b.backslashEscapes {
		value = strings.ReplaceAll(value, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (b *sqlBuilder) quoteTable(ref core.TableRef) string {
	if ref.Schema == "" {
		return b.QuoteIdentifier(ref.Name)
	}
	return b.QuoteIdentifier(ref.Schema) + "." + b.QuoteIdentifier(ref.Name)
}

func (b *sqlBuilder) BuildSelect(q *core.SelectQuery) (string, error) {
	if q.Table.Name == "" {
		return "", fmt.Errorf("sqlBuilder.BuildSelect: table name is required")
	}

	columns := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, col := range q.Columns {
			quoted[i] = b.QuoteIdentifier(col)
		}
		columns = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Limit > 0 && b.limit == limitTop {
		sb.WriteString("TOP " + strconv.Itoa(q.Limit) + " ")
	}
	sb.WriteString(columns)
	sb.WriteString(" FROM ")
	sb.WriteString(b.quoteTable(q.Table))

	if q.Filter != nil {
		value := b.quoteLiteral(q.Filter.Value)
		if q.Filter.Numeric {
			if !numericLiteral.MatchString(q.Filter.Value) {
				return "", fmt.Errorf("sqlBuilder.BuildSelect: %q is not a numeric value", q.Filter.Value)
			}
			value = q.Filter.Value
		}
		// the last fetched row is fetched again, the storage deduplicates it by primary key
		sb.WriteString(" WHERE " + b.QuoteIdentifier(q.Filter.Column) + " >= " + value)
	}

	if q.OrderBy != "" {
		sb.WriteString(" ORDER BY " + b.QuoteIdentifier(q.OrderBy))
	}

	if q.Limit > 0 {
		switch b.limit {
		case limitClause:
			sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
		case limitFetchFirst:
			sb.WriteString(" FETCH FIRST " + strconv.Itoa(q.Limit) + " ROWS ONLY")
		}
	}

	return sb.String(), nil
}

func (b *sqlBuilder) BuildMaxValue(table core.TableRef, column string) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", b.QuoteIdentifier(column), b.quoteTable(table))
}

// value conversion helpers for catalog rows

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func asNullableString(v any) *string {
	if v == nil {
		return nil
	}
	s := asString(v)
	return &s
}

func asInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case uint64:
		return int64(val)
	case uint32:
		return int64(val)
	case uint8:
		return int64(val)
	case float64:
		return int64(val)
	case nil:
		return 0
	default:
		n, err := strconv.ParseFloat(strings.TrimSpace(asString(val)), 64)
		if err != nil {
			return 0
		}
		return int64(n)
	}
}

func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	case string, []byte:
		switch strings.ToUpper(strings.TrimSpace(asString(val))) {
		case "1", "YES", "Y", "TRUE", "T":
			return true
		}
		return false
	default:
		return asInt64(val) != 0
	}
}
