package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/keboola/db-extractor-common-sub000/config"
	"github.com/keboola/db-extractor-common-sub000/core"
)

func newTestConnectionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the database is reachable with the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, config.ActionTestConnection, func(ctx context.Context, a *app) error {
				return a.testConnection(ctx)
			})
		},
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

func (a *app) testConnection(ctx context.Context) error {
	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.conn.IsAlive(ctx); err != nil {
		return core.NewUserError("Connection test failed: %w", err)
	}

	return json.NewEncoder(a.out).Encode(&statusResponse{Status: "success"})
}
