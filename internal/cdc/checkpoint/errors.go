package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrOffsetRegression is returned when a save would move a
	// partition's checkpoint backwards.
	ErrOffsetRegression = errors.New("checkpoint: offset regression")

	// ErrPartitionRange is returned when a stored partition id does not
	// fit the caller's partition count.
	ErrPartitionRange = errors.New("checkpoint: stored partition id out of range")
)

// StoreError wraps checkpoint store failures with their operation and
// position.
type StoreError struct {
	Op        string // "open", "init", "load", "save", "list"
	Path      string
	Table     string
	Partition int
	Err       error
}

func (e *StoreError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("checkpoint %s failed on %s: %v", e.Op, e.Path, e.Err)
	case e.Table != "":
		return fmt.Sprintf("checkpoint %s failed for table %s partition %d: %v", e.Op, e.Table, e.Partition, e.Err)
	default:
		return fmt.Sprintf("checkpoint %s failed: %v", e.Op, e.Err)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }
