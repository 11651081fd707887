package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/db-extractor-common-sub000/core"
)

func TestRetryPolicy_IsRetryable(t *testing.T) {
	policy := core.NewQueryRetryPolicy(5)
	cause := errors.New("cause")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "connection", err: core.NewDBError(core.KindConnection, "", cause), want: true},
		{name: "query without code", err: core.NewDBError(core.KindQuery, "", cause), want: true},
		{name: "serialization failure", err: core.NewDBError(core.KindQuery, "40001", cause), want: true},
		{name: "syntax error", err: core.NewDBError(core.KindQuery, "42601", cause), want: false},
		{name: "access violation", err: core.NewDBError(core.KindQuery, "42000", cause), want: false},
		{name: "dead connection", err: &core.DeadConnectionError{Err: cause}, want: true},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), core.NewDBError(core.KindConnection, "", cause)), want: true},
		{name: "unclassified", err: cause, want: false},
		{name: "user error", err: core.NewUserError("bad config"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.IsRetryable(tt.err))
		})
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	r := require.New(t)
	err := core.NewDBError(core.KindConnection, "", errors.New("gone away"))

	policy := core.NewQueryRetryPolicy(3)
	r.Equal(3, policy.Attempts())
	r.True(policy.ShouldRetry(err, 1))
	r.True(policy.ShouldRetry(err, 2))
	r.False(policy.ShouldRetry(err, 3))

	for _, maxRetries := range []int{0, 1, -1} {
		policy := core.NewQueryRetryPolicy(maxRetries)
		r.Equal(1, policy.Attempts())
		r.False(policy.ShouldRetry(err, 1))
	}

	r.Equal(core.DefaultConnectAttempts, core.DefaultConnectRetryPolicy().Attempts())
}

func TestRetryPolicy_BackoffDelay(t *testing.T) {
	r := require.New(t)
	policy := core.NewQueryRetryPolicy(10)

	r.Equal(1*time.Second, policy.BackoffDelay(1))
	r.Equal(2*time.Second, policy.BackoffDelay(2))
	r.Equal(4*time.Second, policy.BackoffDelay(3))
	r.Equal(8*time.Second, policy.BackoffDelay(4))
	// capped
	r.Equal(time.Minute, policy.BackoffDelay(8))
	r.Equal(time.Minute, policy.BackoffDelay(30))

	custom := policy.WithInterval(10*time.Millisecond, 25*time.Millisecond)
	r.Equal(10*time.Millisecond, custom.BackoffDelay(1))
	r.Equal(20*time.Millisecond, custom.BackoffDelay(2))
	r.Equal(25*time.Millisecond, custom.BackoffDelay(3))
	// copies don't touch the original
	r.Equal(1*time.Second, policy.BackoffDelay(1))
}
