package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/format"
	"github.com/keboola/db-extractor-common-sub000/sanitize"
	"github.com/keboola/db-extractor-common-sub000/state"
)

type (
	// Executor runs queries with retries, see core.Executor.
	Executor interface {
		core.Querier
		QueryAndProcess(ctx context.Context, query string, maxRetries int, process core.RowProcessor) error
	}

	// ManifestWriter writes the manifest of a finished export.
	ManifestWriter interface {
		WriteManifest(path string, cfg *ExportConfig, result *ExportResult) error
	}
)

var _ Executor = (*core.Executor)(nil)

// ExportResult describes a finished export.
type ExportResult struct {
	// Destination is the output table
	Destination string
	Rows        int64
	// LastFetchedValue is the watermark for the next run, nil without incremental fetching
	LastFetchedValue *string
	// HasHeader is set when the csv starts with a header row (raw query exports)
	HasHeader bool

	CSVPath      string
	ManifestPath string

	// Table is the introspected source table, nil for raw queries
	Table *core.Table
	// QueryColumns are the column types reported by the driver for the executed query
	QueryColumns []*core.ColumnType
}

// Exporter exports tables and queries into csv files with manifests. It drives a single
// connection, so exports run one at a time.
type Exporter struct {
	exec      Executor
	builder   core.QueryBuilder
	metadata  core.MetadataProvider
	manifests ManifestWriter
	outDir    string
	log       logrus.FieldLogger
	onState   func(cfg *ExportConfig, s State)
}

func NewExporter(exec Executor, builder core.QueryBuilder, metadata core.MetadataProvider, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		exec:     exec,
		builder:  builder,
		metadata: metadata,
		outDir:   ".",
		log:      logrus.StandardLogger(),
		onState:  func(*ExportConfig, State) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Paths returns the csv and manifest paths of the output table.
func (e *Exporter) Paths(outputTable string) (csvPath, manifestPath string) {
	csvPath = filepath.Join(e.outDir, sanitize.TableName(outputTable)+".csv")
	return csvPath, csvPath + ".manifest"
}

func (e *Exporter) transition(cfg *ExportConfig, s State) {
	e.log.WithField("table", cfg.OutputTable).Debugf("export %s", s)
	e.onState(cfg, s)
}

// Export runs a single export:
//
//	building_query -> executing -> streaming -> finalizing (rows > 0) -> done
//	                                         -> discarding (no rows)  -> done
//
// Any failure ends in the failed state. prior is the state of the previous run.
func (e *Exporter) Export(ctx context.Context, cfg *ExportConfig, prior state.State) (*ExportResult, error) {
	if err := cfg.Validate(); err != nil {
		e.transition(cfg, StateFailed)
		return nil, err
	}

	result, err := e.export(ctx, cfg, prior)
	if err != nil {
		e.transition(cfg, StateFailed)
		return nil, e.wrapError(cfg, err)
	}

	e.transition(cfg, StateDone)
	return result, nil
}

func (e *Exporter) export(ctx context.Context, cfg *ExportConfig, prior state.State) (*ExportResult, error) {
	ctx = core.WithMaxRetries(ctx, cfg.Retries)
	log := e.log.WithField("table", cfg.OutputTable)
	csvPath, manifestPath := e.Paths(cfg.OutputTable)

	result := &ExportResult{
		Destination:  cfg.OutputTable,
		HasHeader:    cfg.IsQuery(),
		CSVPath:      csvPath,
		ManifestPath: manifestPath,
	}

	e.transition(cfg, StateBuildingQuery)

	if cfg.Table != nil && !cfg.IsQuery() {
		table, err := e.metadata.GetTable(ctx, *cfg.Table)
		if err != nil {
			return nil, err
		}
		result.Table = table
	}

	plan, err := PlanIncremental(ctx, cfg, result.Table, prior, e.exec, e.builder)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		log.Infof("Incremental fetching on %q (numeric: %t, limit: %d, last fetched: %s, max: %s)",
			plan.Column, plan.Numeric, plan.Limit, lo.FromPtrOr(plan.Prior, "-"), lo.FromPtrOr(plan.Max, "-"))
	}

	query, err := e.buildQuery(cfg, result.Table, plan)
	if err != nil {
		return nil, err
	}

	e.transition(cfg, StateExecuting)
	log.Infof("Exporting to %q", csvPath)
	log.Debugf("query: %s", query)

	writer, err := format.NewCSVWriter(csvPath)
	if err != nil {
		return nil, err
	}

	var lastStreamed *string
	err = e.exec.QueryAndProcess(ctx, query, cfg.Retries, func(rows core.ResultStream) error {
		e.transition(cfg, StateStreaming)

		// a previous attempt may have written rows already
		if err := writer.Truncate(); err != nil {
			return err
		}
		lastStreamed = nil
		if meta := rows.Meta(); meta != nil {
			result.QueryColumns = meta.Columns
		}

		header := rows.Header()
		watermark := -1
		if plan != nil {
			watermark = header.Index(plan.Column)
		}

		for rows.HasNext() {
			row, err := rows.Next()
			if err != nil {
				return err
			}

			if result.HasHeader && writer.Rows() == 0 {
				if err := writer.WriteHeader(header); err != nil {
					return err
				}
			}
			if err := writer.WriteRow(row); err != nil {
				return err
			}

			if watermark >= 0 && watermark < len(row) {
				value := format.FormatValue(row[watermark])
				lastStreamed = &value
			}
		}
		return nil
	})
	if err != nil {
		_ = writer.Remove()
		return nil, err
	}

	result.Rows = writer.Rows()

	if result.Rows == 0 {
		e.transition(cfg, StateDiscarding)
		if err := writer.Remove(); err != nil {
			return nil, err
		}
		// a manifest of an earlier export must not describe the missing csv
		if err := os.Remove(manifestPath); err != nil && !os.IsNotExist(err) {
			return nil, &core.CSVWriteError{Path: manifestPath, Err: err}
		}
		log.Warnf("Table %q is empty, no data exported", cfg.OutputTable)

		// nothing new since the last run, the watermark stays
		if plan != nil {
			result.LastFetchedValue = plan.Prior
		}
		return result, nil
	}

	e.transition(cfg, StateFinalizing)
	if err := writer.Close(); err != nil {
		return nil, err
	}
	result.LastFetchedValue = plan.Next(lastStreamed)

	if e.manifests != nil {
		if err := e.manifests.WriteManifest(manifestPath, cfg, result); err != nil {
			return nil, &core.CSVWriteError{Path: manifestPath, Err: err}
		}
	}

	size := int64(0)
	if info, err := os.Stat(csvPath); err == nil {
		size = info.Size()
	}
	log.Infof("Exported %s rows (%s) to %q", humanize.Comma(result.Rows), humanize.Bytes(uint64(size)), csvPath)

	return result, nil
}

func (e *Exporter) buildQuery(cfg *ExportConfig, table *core.Table, plan *IncrementalPlan) (string, error) {
	if cfg.IsQuery() {
		return cfg.Query, nil
	}

	columns := cfg.Columns
	if len(columns) == 0 && table != nil {
		columns = lo.Map(table.Columns, func(c *core.Column, _ int) string { return c.Name })
	}

	q := &core.SelectQuery{
		Table:   *cfg.Table,
		Columns: columns,
		Filter:  plan.Filter(),
	}
	if table != nil {
		q.Table = table.Ref()
	}
	if plan != nil && plan.Limit > 0 {
		q.OrderBy = plan.Column
		q.Limit = plan.Limit
	}

	query, err := e.builder.BuildSelect(q)
	if err != nil {
		return "", core.NewValidationError("[%s]: %w", cfg.OutputTable, err)
	}
	return query, nil
}

// wrapError adds the output table to the error. Write failures are application errors,
// anything else is reported to the user.
func (e *Exporter) wrapError(cfg *ExportConfig, err error) error {
	var csvErr *core.CSVWriteError
	if errors.As(err, &csvErr) {
		return core.NewApplicationError("[%s]: %w", cfg.OutputTable, err)
	}

	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		return err
	}

	var adapterErr *core.AdapterError
	if errors.As(err, &adapterErr) {
		return core.NewUserError("[%s]: DB query failed: %w", cfg.OutputTable, err)
	}

	return core.NewUserError("[%s]: DB query failed: %w Tried %d times.", cfg.OutputTable, err, 1)
}

// ExportAll exports the enabled configs in order and returns the state for the next run.
// The first failure stops the run.
func (e *Exporter) ExportAll(ctx context.Context, cfgs []*ExportConfig, prior state.State) (state.State, []*ExportResult, error) {
	enabled := lo.Filter(cfgs, func(cfg *ExportConfig, _ int) bool { return cfg.Enabled })

	incremental := lo.CountBy(enabled, func(cfg *ExportConfig) bool { return cfg.IncrementalFetching() })
	if incremental > 0 && len(enabled) > 1 {
		return nil, nil, core.NewValidationError("Incremental fetching is not supported for multiple tables, use a single table configuration.")
	}

	next := prior.Clone()
	results := make([]*ExportResult, 0, len(enabled))
	for _, cfg := range enabled {
		result, err := e.Export(ctx, cfg, prior)
		if err != nil {
			return nil, results, err
		}
		results = append(results, result)

		if result.LastFetchedValue != nil {
			next = next.WithLastFetchedRow(*result.LastFetchedValue)
		}
	}

	return next, results, nil
}
