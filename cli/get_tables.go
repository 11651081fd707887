package cli

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/keboola/db-extractor-common-sub000/config"
	"github.com/keboola/db-extractor-common-sub000/core"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

func newGetTablesCmd(opts *options) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "get-tables",
		Short: "List tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFormat != formatJSON && outputFormat != formatTable {
				return core.NewUserError("Unknown output format %q, use %q or %q.", outputFormat, formatJSON, formatTable)
			}
			return opts.withApp(cmd, config.ActionGetTables, func(ctx context.Context, a *app) error {
				return a.getTables(ctx, outputFormat)
			})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", formatJSON, "output format (json, table)")
	return cmd
}

type (
	tablesResponse struct {
		Tables []*tableResponse `json:"tables"`
		Status string           `json:"status"`
	}

	tableResponse struct {
		Name     string            `json:"name"`
		Schema   string            `json:"schema,omitempty"`
		Type     string            `json:"type,omitempty"`
		RowCount int64             `json:"rowCount,omitempty"`
		Columns  []*columnResponse `json:"columns"`
	}

	columnResponse struct {
		Name            string  `json:"name"`
		SanitizedName   string  `json:"sanitizedName"`
		Type            string  `json:"type"`
		PrimaryKey      bool    `json:"primaryKey"`
		Length          string  `json:"length,omitempty"`
		Nullable        bool    `json:"nullable"`
		Default         *string `json:"default,omitempty"`
		OrdinalPosition int     `json:"ordinalPosition"`
	}
)

func newTablesResponse(tables []*core.Table) *tablesResponse {
	return &tablesResponse{
		Status: "success",
		Tables: lo.Map(tables, func(t *core.Table, _ int) *tableResponse {
			return &tableResponse{
				Name:     t.Name,
				Schema:   t.Schema,
				Type:     t.Type,
				RowCount: t.RowCount,
				Columns: lo.Map(t.Columns, func(c *core.Column, _ int) *columnResponse {
					return &columnResponse{
						Name:            c.Name,
						SanitizedName:   c.SanitizedName,
						Type:            c.Type,
						PrimaryKey:      c.PrimaryKey,
						Length:          c.Length,
						Nullable:        c.Nullable,
						Default:         c.Default,
						OrdinalPosition: c.Ordinal,
					}
				}),
			}
		}),
	}
}

func (a *app) getTables(ctx context.Context, outputFormat string) error {
	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	tables, err := s.metadata().ListTables(ctx, nil, true)
	if err != nil {
		return core.NewUserError("Unable to list tables: %w", err)
	}
	a.log.Run().Infof("Found %d tables", len(tables))

	if outputFormat == formatTable {
		_, err := a.out.Write(formatTables(tables))
		return err
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(newTablesResponse(tables))
}
