package export

import (
	"github.com/keboola/db-extractor-common-sub000/core"
)

// DefaultRetries is the number of query attempts when the configuration doesn't say otherwise.
const DefaultRetries = core.DefaultMaxRetries

// ExportConfig is a single table or query export request.
type ExportConfig struct {
	// ID and Name identify legacy multi-table entries in logs
	ID   int
	Name string
	// Enabled is only consulted by ExportAll
	Enabled bool

	// OutputTable is the storage destination, also used to derive the file name
	OutputTable string

	// exactly one of Table and Query is set
	Table *core.TableRef
	Query string

	Columns    []string
	PrimaryKey []string

	// Incremental marks the manifest as an incremental load
	Incremental               bool
	IncrementalFetchingColumn string
	// IncrementalFetchingLimit caps the rows fetched per run, 0 means no limit
	IncrementalFetchingLimit int

	// Retries is the attempt ceiling of the export query; 0 disables retrying
	Retries int
}

// IncrementalFetching reports whether the export continues from the last fetched value.
func (c *ExportConfig) IncrementalFetching() bool {
	return c.IncrementalFetchingColumn != ""
}

// IsQuery reports whether the source is a raw query.
func (c *ExportConfig) IsQuery() bool {
	return c.Query != ""
}

// Validate checks the invariants of the request. The error is a *core.ValidationError.
func (c *ExportConfig) Validate() error {
	if c.OutputTable == "" {
		return core.NewValidationError("Output table is not set.")
	}

	hasTable := c.Table != nil && c.Table.Name != ""
	switch {
	case hasTable && c.IsQuery():
		return core.NewValidationError("[%s]: Both table and query cannot be set together.", c.OutputTable)
	case !hasTable && !c.IsQuery():
		return core.NewValidationError("[%s]: One of table or query is required.", c.OutputTable)
	}

	if c.IsQuery() && c.IncrementalFetching() {
		return core.NewValidationError("[%s]: Incremental fetching is not supported for advanced queries.", c.OutputTable)
	}

	if c.IncrementalFetchingLimit < 0 {
		return core.NewValidationError("[%s]: Incremental fetching limit must not be negative.", c.OutputTable)
	}
	if c.IncrementalFetchingLimit > 0 && !c.IncrementalFetching() {
		return core.NewValidationError("[%s]: Incremental fetching limit requires the incremental fetching column.", c.OutputTable)
	}

	if c.Retries < 0 {
		return core.NewValidationError("[%s]: Retries must not be negative.", c.OutputTable)
	}

	return nil
}
