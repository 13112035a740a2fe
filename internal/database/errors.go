package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the service cares about.
const (
	errTooManyConnections = 1040
	errLockWaitTimeout    = 1205
	errDeadlock           = 1213
)

// IsRetryable reports whether err is a transient store failure after which
// re-running a rolled back transaction is safe: lost or refused connections,
// lock wait timeouts and deadlocks.  Constraint violations, cancelled
// contexts and anything unrecognised are fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errTooManyConnections, errLockWaitTimeout, errDeadlock:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
