package core_test

import (
	"time"

	"github.com/keboola/db-extractor-common-sub000/core"
)

// fastPolicy is the default registry with intervals short enough for tests.
func fastPolicy(attempts int) *core.RetryPolicy {
	return core.NewQueryRetryPolicy(attempts).WithInterval(time.Millisecond, 2*time.Millisecond)
}
