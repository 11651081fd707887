package builders

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/keboola/db-extractor-common-sub000/core"
)

// ClassifyError is the backend independent classification of database/sql errors.
// Network level failures are connection errors, anything else is a query error without code.
// Already classified errors and context errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *core.DBError
	if errors.As(err, &dbErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if IsConnectionFailure(err) {
		return core.NewDBError(core.KindConnection, "", err)
	}

	return core.NewDBError(core.KindQuery, "", err)
}

// IsConnectionFailure reports whether err means the server couldn't be reached or the
// connection was lost.
func IsConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
