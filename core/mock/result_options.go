package mock

import (
	"github.com/keboola/db-extractor-common-sub000/core"
)

type resultStreamConfig struct {
	meta       *core.Meta
	header     core.Header
	nextErrors map[int]error
	closeErr   error
}

type ResultStreamOption func(*resultStreamConfig)

func ResultStreamWithMeta(meta *core.Meta) ResultStreamOption {
	return func(c *resultStreamConfig) {
		c.meta = meta
	}
}

func ResultStreamWithHeader(header core.Header) ResultStreamOption {
	return func(c *resultStreamConfig) {
		c.header = header
	}
}

// ResultStreamWithNextError fails Next on the row with given index.
// No rows are returned after that.
func ResultStreamWithNextError(index int, err error) ResultStreamOption {
	return func(c *resultStreamConfig) {
		c.nextErrors[index] = err
	}
}

// ResultStreamWithCloseError makes Close report err, like a server error raised mid-stream.
func ResultStreamWithCloseError(err error) ResultStreamOption {
	return func(c *resultStreamConfig) {
		c.closeErr = err
	}
}
