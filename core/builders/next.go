package builders

import (
	"github.com/keboola/db-extractor-common-sub000/core"
)

// NextSlice creates next and hasNext functions from provided values
// preprocess converts a single value from slice to a row
func NextSlice[T any](values []T, preprocess func(T) core.Row) (func() (core.Row, error), func() bool) {
	index := 0

	hasNext := func() bool {
		return index < len(values)
	}

	// iterator functions
	next := func() (core.Row, error) {
		if !hasNext() {
			return nil, ErrNoNextRow
		}

		row := preprocess(values[index])
		index++
		return row, nil
	}

	return next, hasNext
}
