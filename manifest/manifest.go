package manifest

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/format"
	"github.com/keboola/db-extractor-common-sub000/export"
	"github.com/keboola/db-extractor-common-sub000/sanitize"
)

// metadata keys
const (
	KeyName            = "KBC.name"
	KeySanitizedName   = "KBC.sanitizedName"
	KeySchema          = "KBC.schema"
	KeyType            = "KBC.type"
	KeyRowCount        = "KBC.rowCount"
	KeySourceName      = "KBC.sourceName"
	KeyDataType        = "KBC.datatype.type"
	KeyBaseType        = "KBC.datatype.basetype"
	KeyNullable        = "KBC.datatype.nullable"
	KeyLength          = "KBC.datatype.length"
	KeyDefault         = "KBC.datatype.default"
	KeyOrdinalPosition = "KBC.ordinalPosition"
	KeyPrimaryKey      = "KBC.primaryKey"
	KeyAutoIncrement   = "KBC.autoIncrement"
	KeyForeignKey      = "KBC.foreignKey"
	KeyForeignKeyName  = "KBC.foreignKeyName"
	KeyRefSchema       = "KBC.foreignKeyRefSchema"
	KeyRefTable        = "KBC.foreignKeyRefTable"
	KeyRefColumn       = "KBC.foreignKeyRefColumn"
)

type (
	Manifest struct {
		Destination   string            `json:"destination"`
		Incremental   bool              `json:"incremental"`
		PrimaryKey    []string          `json:"primary_key"`
		TableMetadata map[string]string `json:"table_metadata,omitempty"`
		Schema        []*Column         `json:"schema,omitempty"`
	}

	Column struct {
		Name       string            `json:"name"`
		DataType   DataType          `json:"data_type"`
		Nullable   bool              `json:"nullable"`
		PrimaryKey bool              `json:"primary_key"`
		Metadata   map[string]string `json:"metadata"`
	}

	DataType struct {
		Base BaseDataType `json:"base"`
	}

	BaseDataType struct {
		Type    string  `json:"type"`
		Length  string  `json:"length,omitempty"`
		Default *string `json:"default,omitempty"`
	}
)

var _ export.ManifestWriter = (*Generator)(nil)

// Generator builds manifests of finished exports and writes them with the serializer.
type Generator struct {
	serializer format.Serializer
}

func NewGenerator(s format.Serializer) *Generator {
	if s == nil {
		s = format.NewJSON()
	}
	return &Generator{serializer: s}
}

// Generate builds the manifest. An export with a header in the csv gets no column schema,
// the header describes the columns.
func (g *Generator) Generate(cfg *export.ExportConfig, result *export.ExportResult) *Manifest {
	m := &Manifest{
		Destination: result.Destination,
		Incremental: cfg.Incremental,
		PrimaryKey:  []string{},
	}

	if result.Table != nil {
		m.TableMetadata = tableMetadata(result.Table)
	}

	var columns []*core.Column
	switch {
	case result.HasHeader:
	case result.Table != nil && len(result.Table.Columns) > 0:
		columns = selectColumns(result.Table, cfg.Columns)
	default:
		columns = lo.Map(result.QueryColumns, func(c *core.ColumnType, i int) *core.Column {
			return &core.Column{
				Name:     c.Name,
				Type:     c.DBType,
				Nullable: c.Nullable,
				Length:   c.Length,
				Ordinal:  i + 1,
			}
		})
	}

	sanitized := sanitize.ColumnNames(lo.Map(columns, func(c *core.Column, _ int) string { return c.Name }))
	sanitizedBySource := make(map[string]string, len(columns))
	for i, c := range columns {
		sanitizedBySource[c.Name] = sanitized[i]
	}

	// explicit primary key wins over the source one
	pk := cfg.PrimaryKey
	if len(pk) == 0 && result.Table != nil {
		pk = result.Table.PrimaryKey()
	}
	for _, name := range pk {
		m.PrimaryKey = append(m.PrimaryKey, lo.ValueOr(sanitizedBySource, name, sanitize.ColumnName(name)))
	}

	for i, c := range columns {
		m.Schema = append(m.Schema, column(c, sanitized[i], lo.Contains(pk, c.Name)))
	}

	return m
}

// selectColumns returns the table columns in the configured order, all of them when none are configured.
func selectColumns(table *core.Table, names []string) []*core.Column {
	if len(names) == 0 {
		return table.Columns
	}
	return lo.FilterMap(names, func(name string, _ int) (*core.Column, bool) {
		c := table.Column(name)
		return c, c != nil
	})
}

func tableMetadata(t *core.Table) map[string]string {
	md := map[string]string{
		KeyName:          t.Name,
		KeySanitizedName: sanitize.ColumnName(t.Name),
	}
	if t.Schema != "" {
		md[KeySchema] = t.Schema
	}
	if t.Type != "" {
		md[KeyType] = t.Type
	}
	if t.RowCount > 0 {
		md[KeyRowCount] = strconv.FormatInt(t.RowCount, 10)
	}
	return md
}

func column(c *core.Column, sanitizedName string, primaryKey bool) *Column {
	base := BaseType(c.Type)

	md := map[string]string{
		KeySourceName:    c.Name,
		KeySanitizedName: sanitizedName,
		KeyDataType:      c.Type,
		KeyBaseType:      base,
		KeyNullable:      strconv.FormatBool(c.Nullable),
		KeyPrimaryKey:    strconv.FormatBool(primaryKey),
		KeyAutoIncrement: strconv.FormatBool(c.AutoIncrement),
	}
	if c.Ordinal > 0 {
		md[KeyOrdinalPosition] = strconv.Itoa(c.Ordinal)
	}
	if c.Length != "" {
		md[KeyLength] = c.Length
	}
	if c.Default != nil {
		md[KeyDefault] = *c.Default
	}
	if fk := c.ForeignKey; fk != nil {
		md[KeyForeignKey] = "true"
		md[KeyForeignKeyName] = fk.Name
		md[KeyRefTable] = fk.RefTable
		md[KeyRefColumn] = fk.RefColumn
		if fk.RefSchema != "" {
			md[KeyRefSchema] = fk.RefSchema
		}
	}

	return &Column{
		Name: sanitizedName,
		DataType: DataType{
			Base: BaseDataType{
				Type:    base,
				Length:  c.Length,
				Default: c.Default,
			},
		},
		Nullable:   c.Nullable,
		PrimaryKey: primaryKey,
		Metadata:   md,
	}
}

// Write writes the manifest to path.
func (g *Generator) Write(path string, m *Manifest) error {
	if err := format.WriteFile(path, m, g.serializer); err != nil {
		return fmt.Errorf("manifest.Write: %w", err)
	}
	return nil
}

func (g *Generator) WriteManifest(path string, cfg *export.ExportConfig, result *export.ExportResult) error {
	return g.Write(path, g.Generate(cfg, result))
}
