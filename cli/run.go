package cli

import (
	"context"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/keboola/db-extractor-common-sub000/config"
	"github.com/keboola/db-extractor-common-sub000/export"
	"github.com/keboola/db-extractor-common-sub000/manifest"
	"github.com/keboola/db-extractor-common-sub000/state"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Export the configured tables and queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, config.ActionRun, func(ctx context.Context, a *app) error {
				return a.run(ctx)
			})
		},
	}
}

func (a *app) inStatePath() string {
	return filepath.Join(a.dataDir, "in", "state.json")
}

func (a *app) outStatePath() string {
	return filepath.Join(a.dataDir, "out", "state.json")
}

func (a *app) tablesDir() string {
	return filepath.Join(a.dataDir, "out", "tables")
}

// run exports all enabled tables and writes the output state. Nothing is written
// to the output state when any of the exports fails.
func (a *app) run(ctx context.Context) error {
	log := a.log.Run()

	cfgs, err := a.cfg.ExportConfigs()
	if err != nil {
		return err
	}

	prior, err := state.NewTracker(a.inStatePath()).Load()
	if err != nil {
		return err
	}

	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	adapter := s.conn.Adapter()
	exporter := export.NewExporter(s.exec, adapter.QueryBuilder(), s.metadata(),
		export.WithOutputDir(a.tablesDir()),
		export.WithManifestWriter(manifest.NewGenerator(nil)),
		export.WithLogger(log),
		export.WithStateCallback(func(cfg *export.ExportConfig, st export.State) {
			log.Debugf("[%s]: %s", cfg.OutputTable, st)
		}),
	)

	next, results, err := exporter.ExportAll(ctx, cfgs, prior)
	if err != nil {
		return err
	}

	if err := state.NewTracker(a.outStatePath()).Save(next); err != nil {
		return err
	}

	rows := lo.SumBy(results, func(r *export.ExportResult) int64 {
		return r.Rows
	})
	log.Infof("Exported %d tables, %s rows in total", len(results), humanize.Comma(rows))
	return nil
}
