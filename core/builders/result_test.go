package builders_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/core/builders"
)

func TestResult_Close(t *testing.T) {
	r := require.New(t)

	closeErr := errors.New("stream broke")
	closeCalls := 0

	next, hasNext := builders.NextSlice([]int{1, 2, 3}, func(v int) core.Row { return core.Row{v} })
	result := builders.NewResultStreamBuilder().
		WithNextFunc(next, hasNext).
		WithHeader(core.Header{"id"}).
		WithCloseFunc(func() error {
			closeCalls++
			return closeErr
		}).
		Build()

	r.True(result.HasNext())
	row, err := result.Next()
	r.NoError(err)
	r.Equal(core.Row{1}, row)

	r.ErrorIs(result.Close(), closeErr)
	// idempotent, the first error is reported again
	r.ErrorIs(result.Close(), closeErr)
	r.Equal(1, closeCalls)

	// no rows after close even though the source isn't exhausted
	r.False(result.HasNext())
	_, err = result.Next()
	r.ErrorIs(err, builders.ErrResultClosed)
}

func TestResult_Defaults(t *testing.T) {
	r := require.New(t)

	result := builders.NewResultStreamBuilder().Build()

	r.False(result.HasNext())
	r.NotNil(result.Meta())
	r.Empty(result.Header())
	r.NoError(result.Close())
}

func TestFetchAll(t *testing.T) {
	r := require.New(t)

	closed := false
	next, hasNext := builders.NextSlice([]string{"a", "b"}, func(v string) core.Row { return core.Row{v} })
	result := builders.NewResultStreamBuilder().
		WithNextFunc(next, hasNext).
		WithCloseFunc(func() error {
			closed = true
			return nil
		}).
		Build()

	rows, err := builders.FetchAll(result)
	r.NoError(err)
	r.Equal([]core.Row{{"a"}, {"b"}}, rows)
	r.True(closed)
}

func TestFetchAll_CloseError(t *testing.T) {
	closeErr := errors.New("server error while streaming")
	next, hasNext := builders.NextSlice([]string{"a"}, func(v string) core.Row { return core.Row{v} })
	result := builders.NewResultStreamBuilder().
		WithNextFunc(next, hasNext).
		WithCloseFunc(func() error { return closeErr }).
		Build()

	_, err := builders.FetchAll(result)
	require.ErrorIs(t, err, closeErr)
}

func TestFetchOne(t *testing.T) {
	r := require.New(t)

	next, hasNext := builders.NextSlice([]int{7, 8}, func(v int) core.Row { return core.Row{v} })
	result := builders.NewResultStreamBuilder().WithNextFunc(next, hasNext).Build()

	row, err := builders.FetchOne(result)
	r.NoError(err)
	r.Equal(core.Row{7}, row)
	r.False(result.HasNext())

	row, err = builders.FetchOne(builders.NewResultStreamBuilder().Build())
	r.NoError(err)
	r.Nil(row)
}
