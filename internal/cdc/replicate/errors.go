package replicate

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned by Run after an external Stop.
	ErrStopped = errors.New("replicate: stopped")

	// ErrApplyFailed is returned when a unit could not be applied to the
	// target inside its transaction.
	ErrApplyFailed = errors.New("replicate: apply failed")

	// ErrSetup is returned when partition discovery or table setup fails.
	ErrSetup = errors.New("replicate: setup failed")
)

// ApplyError carries the position of the unit that failed to apply.
type ApplyError struct {
	Table       string
	PartitionID int
	RecordIndex int // index within the unit, or -1 for unit-level failures
	Err         error
	Cause       error
}

func (e *ApplyError) Error() string {
	if e.RecordIndex >= 0 {
		return fmt.Sprintf("apply failed for table %s partition %d at record %d: %v",
			e.Table, e.PartitionID, e.RecordIndex, e.Cause)
	}
	return fmt.Sprintf("apply failed for table %s partition %d: %v", e.Table, e.PartitionID, e.Cause)
}

func (e *ApplyError) Unwrap() error { return e.Err }
