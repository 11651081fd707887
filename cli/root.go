// Package cli is the command line entrypoint of the extractor.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keboola/db-extractor-common-sub000/config"
	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/logging"
)

const (
	dataDirEnv     = "KBC_DATADIR"
	defaultDataDir = "/data"
)

type options struct {
	dataDir  string
	logLevel string
	logFile  string
}

// app is the state shared by the actions of a single invocation.
type app struct {
	dataDir string
	cfg     *config.Config
	log     *logging.Logger
	out     io.Writer
}

func (o *options) newApp(cmd *cobra.Command) (*app, error) {
	log, err := logging.New(logging.Options{
		Level:  o.logLevel,
		File:   o.logFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, core.NewUserError("Invalid logging options: %w", err)
	}

	cfg, err := config.Load(o.dataDir)
	if err != nil {
		log.Close()
		return nil, err
	}
	cfg.Dump(log.Run())

	return &app{
		dataDir: o.dataDir,
		cfg:     cfg,
		log:     log,
		out:     cmd.OutOrStdout(),
	}, nil
}

func (a *app) Close() {
	a.log.Close()
}

// withApp runs fn with a fresh app, the action overrides the one from the configuration
// when not empty.
func (o *options) withApp(cmd *cobra.Command, action string, fn func(ctx context.Context, a *app) error) error {
	a, err := o.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if action != "" {
		a.cfg.Action = action
	}

	err = fn(cmd.Context(), a)
	if err != nil {
		a.log.Run().Errorf("%s failed: %s", a.cfg.Action, err)
	}
	return err
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "db-extractor",
		Short: "Extract database tables into csv files with manifests",
		Long: `db-extractor exports tables and queries of a relational database into csv files
described by manifests. The component configuration is read from <data-dir>/config.json,
without a subcommand the action from the configuration is executed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, "", func(ctx context.Context, a *app) error {
				switch a.cfg.Action {
				case config.ActionTestConnection:
					return a.testConnection(ctx)
				case config.ActionGetTables:
					return a.getTables(ctx, formatJSON)
				default:
					return a.run(ctx)
				}
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dataDir, "data-dir", "d", dataDir(), "data directory with config.json (env "+dataDirEnv+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also append logs to this file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(opts),
		newTestConnectionCmd(opts),
		newGetTablesCmd(opts),
	)

	return rootCmd
}

func dataDir() string {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		return dir
	}
	return defaultDataDir
}

// Run executes the command line and returns the process exit code:
// 0 on success, 1 on user errors and 2 on application errors.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
	}
	return core.ExitCode(err)
}

// Execute runs the command line of the process.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
