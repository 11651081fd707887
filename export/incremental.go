package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
	"github.com/keboola/db-extractor-common-sub000/core/format"
	"github.com/keboola/db-extractor-common-sub000/state"
)

var (
	// types are matched without length/precision and nullability wrappers
	numericType   = regexp.MustCompile(`^(unsigned )?(u?(tiny|small|medium|big)?int(eger)?[0-9]*|(small|big)?serial[0-9]*|numeric|decimal[0-9]*|dec|number|float[0-9]*|real|double( precision)?|money|smallmoney)( unsigned)?( zerofill)?$`)
	timestampType = regexp.MustCompile(`^(timestamp.*|datetime.*|smalldatetime|date[0-9]*|time)$`)
	typeParams    = regexp.MustCompile(`\(.*?\)`)
	typeWrapper   = regexp.MustCompile(`^(nullable|lowcardinality)\((.*)\)$`)
)

// normalizeType lowercases a database type and drops parameters: "DECIMAL(10, 2)" -> "decimal".
func normalizeType(typ string) string {
	t := strings.ToLower(strings.TrimSpace(typ))
	for {
		m := typeWrapper.FindStringSubmatch(t)
		if m == nil {
			break
		}
		t = m[2]
	}
	t = typeParams.ReplaceAllString(t, "")
	return strings.Join(strings.Fields(t), " ")
}

// IncrementalPlan is the resolved incremental fetching of a single export. It's computed once
// before the query is built and consulted again when the export finishes.
type IncrementalPlan struct {
	Column  string
	Numeric bool
	Limit   int

	// Prior is the watermark of the previous run, nil on the first run
	Prior *string
	// Max is the MAX(column) computed before the export. It's only computed when the export
	// isn't limited and then it's the definitive new watermark.
	Max *string
}

// Filter returns the predicate continuing from the prior watermark, nil on the first run.
func (p *IncrementalPlan) Filter() *core.IncrementalFilter {
	if p == nil || p.Prior == nil {
		return nil
	}
	return &core.IncrementalFilter{
		Column:  p.Column,
		Value:   *p.Prior,
		Numeric: p.Numeric,
	}
}

// Next returns the watermark after an export which wrote rows. lastStreamed is the column value
// of the last written row.
func (p *IncrementalPlan) Next(lastStreamed *string) *string {
	if p == nil {
		return nil
	}
	if p.Max != nil {
		return p.Max
	}
	return lastStreamed
}

// PlanIncremental validates the incremental fetching column against the table and resolves the
// plan. It returns nil when incremental fetching is off.
func PlanIncremental(ctx context.Context, cfg *ExportConfig, table *core.Table, prior state.State, q core.Querier, b core.QueryBuilder) (*IncrementalPlan, error) {
	if !cfg.IncrementalFetching() {
		return nil, nil
	}
	if table == nil {
		return nil, core.NewValidationError("[%s]: Incremental fetching is not supported for advanced queries.", cfg.OutputTable)
	}

	column := table.Column(cfg.IncrementalFetchingColumn)
	if column == nil {
		return nil, core.NewValidationError("[%s]: Column %q specified for incremental fetching was not found in the table.",
			cfg.OutputTable, cfg.IncrementalFetchingColumn)
	}

	if len(cfg.Columns) > 0 && !lo.ContainsBy(cfg.Columns, func(name string) bool { return strings.EqualFold(name, column.Name) }) {
		return nil, core.NewValidationError("[%s]: Column %q specified for incremental fetching must be one of the exported columns.",
			cfg.OutputTable, column.Name)
	}

	typ := normalizeType(column.Type)
	numeric := numericType.MatchString(typ)
	if !numeric && !timestampType.MatchString(typ) {
		return nil, core.NewValidationError("[%s]: Column %q specified for incremental fetching is not numeric or timestamp, type %q is not supported.",
			cfg.OutputTable, column.Name, column.Type)
	}

	plan := &IncrementalPlan{
		Column:  column.Name,
		Numeric: numeric,
		Limit:   cfg.IncrementalFetchingLimit,
	}
	if value, ok := prior.LastFetchedRow(); ok {
		plan.Prior = &value
	}

	if plan.Limit > 0 {
		return plan, nil
	}

	rows, err := q.Query(ctx, b.BuildMaxValue(table.Ref(), column.Name), cfg.Retries)
	if err != nil {
		return nil, fmt.Errorf("PlanIncremental: max value: %w", err)
	}
	row, err := builders.FetchOne(rows)
	if err != nil {
		return nil, fmt.Errorf("PlanIncremental: max value: %w", err)
	}
	// empty table
	if len(row) > 0 && row[0] != nil {
		value := format.FormatValue(row[0])
		plan.Max = &value
	}

	return plan, nil
}
