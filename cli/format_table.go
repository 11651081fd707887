package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/keboola/db-extractor-common-sub000/core"
)

// formatTables renders one line per column of every table.
func formatTables(tables []*core.Table) []byte {
	var tableRows []table.Row
	for _, tbl := range tables {
		for _, c := range tbl.Columns {
			tableRows = append(tableRows, table.Row{
				tbl.Ref().String(),
				c.Name,
				c.Type,
				yesNo(c.Nullable),
				yesNo(c.PrimaryKey),
			})
		}
		if len(tbl.Columns) == 0 {
			tableRows = append(tableRows, table.Row{tbl.Ref().String(), "", "", "", ""})
		}
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"table", "column", "type", "nullable", "primary key"})
	t.AppendRows(tableRows)
	t.AppendSeparator()
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Style().Options.DrawBorder = false
	t.SuppressTrailingSpaces()

	return []byte(t.Render() + "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
