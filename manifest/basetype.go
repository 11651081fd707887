package manifest

import (
	"regexp"
	"strings"
)

// storage base types
const (
	BaseTypeString    = "STRING"
	BaseTypeInteger   = "INTEGER"
	BaseTypeNumeric   = "NUMERIC"
	BaseTypeFloat     = "FLOAT"
	BaseTypeBoolean   = "BOOLEAN"
	BaseTypeDate      = "DATE"
	BaseTypeTimestamp = "TIMESTAMP"
)

var baseTypes = []struct {
	pattern *regexp.Regexp
	base    string
}{
	{regexp.MustCompile(`^(u?(tiny|small|medium|big)?int(eger)?[0-9]*|(small|big)?serial[0-9]*)( unsigned)?$`), BaseTypeInteger},
	{regexp.MustCompile(`^(numeric|decimal[0-9]*|dec|number|money|smallmoney)$`), BaseTypeNumeric},
	{regexp.MustCompile(`^(float[0-9]*|real|double( precision)?|binary_float|binary_double)( unsigned)?$`), BaseTypeFloat},
	{regexp.MustCompile(`^(bool|boolean|bit)$`), BaseTypeBoolean},
	{regexp.MustCompile(`^(date|date32)$`), BaseTypeDate},
	{regexp.MustCompile(`^(timestamp.*|datetime.*|smalldatetime)$`), BaseTypeTimestamp},
}

var (
	typeParams  = regexp.MustCompile(`\(.*?\)`)
	typeWrapper = regexp.MustCompile(`^(nullable|lowcardinality)\((.*)\)$`)
)

// BaseType maps a database column type to the storage base type. Unknown types are strings.
func BaseType(dbType string) string {
	t := strings.ToLower(strings.TrimSpace(dbType))
	for {
		m := typeWrapper.FindStringSubmatch(t)
		if m == nil {
			break
		}
		t = m[2]
	}
	t = strings.Join(strings.Fields(typeParams.ReplaceAllString(t, "")), " ")

	for _, bt := range baseTypes {
		if bt.pattern.MatchString(t) {
			return bt.base
		}
	}
	return BaseTypeString
}
