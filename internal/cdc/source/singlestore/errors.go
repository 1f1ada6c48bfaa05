package singlestore

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/julianstephens/cdcsync/internal/cdc/source"
)

// Server error codes produced by a connection that was killed from the
// session's own control connection. Fetch errors with these codes are the
// expected outcome of forced cancellation, not failures.
const (
	// ER_QUERY_INTERRUPTED: the running statement was killed.
	codeQueryInterrupted uint16 = 1317
	// CR_SERVER_LOST: the connection dropped mid-result.
	codeServerLost uint16 = 2013
)

// ER_DISTRIBUTED_DATABASE_NOT_SHARDED: raised by SHOW PARTITIONS against
// a singlebox database.
const CodeNotSharded uint16 = 1795

// Error wraps driver failures with the operation that produced them and
// classifies self-inflicted kill errors as cancellations.
type Error struct {
	Op   string
	Code uint16 // server error code, 0 when the failure was client-side
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("singlestore: %s failed (server error %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("singlestore: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ServerCode exposes the server error code for source.Code.
func (e *Error) ServerCode() uint16 { return e.Code }

func (e *Error) Is(target error) bool {
	if target != source.ErrCancelled {
		return false
	}
	switch e.Code {
	case codeQueryInterrupted, codeServerLost:
		return true
	}
	// The driver invalidates the whole connection when the server side
	// disappears under it.
	return errors.Is(e.Err, mysql.ErrInvalidConn)
}

func wrap(op string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return &Error{Op: op, Code: me.Number, Err: err}
	}
	return &Error{Op: op, Err: err}
}
