package builders

import (
	"fmt"

	"github.com/keboola/db-extractor-common-sub000/core"
)

// FetchAll drains and closes the stream. Use it only for small (catalog) results.
func FetchAll(rows core.ResultStream) ([]core.Row, error) {
	var out []core.Row

	for rows.HasNext() {
		row, err := rows.Next()
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("result.Next: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("result.Close: %w", err)
	}

	return out, nil
}

// FetchOne returns the first row of the stream (nil when empty) and closes the stream.
func FetchOne(rows core.ResultStream) (core.Row, error) {
	var row core.Row

	if rows.HasNext() {
		var err error
		row, err = rows.Next()
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("result.Next: %w", err)
		}
	}

	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("result.Close: %w", err)
	}

	return row, nil
}
