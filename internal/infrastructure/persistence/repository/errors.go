package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/payhub/approval-engine/internal/application/port"
)

// dbErr wraps a storage failure, classifying timeouts and lost connections
// as port.ErrUnavailable so callers can tell retryable outages apart from
// real query failures.
func dbErr(msg string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", msg, port.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}

	// A busy database that outlived the busy timeout is retryable too.
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}

	return false
}
