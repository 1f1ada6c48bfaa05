package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPartitions is returned when an iterator is built with a
	// non-positive partition count.
	ErrNoPartitions = errors.New("engine: partition count must be at least 1")

	// ErrPartitionRange is returned when a record reports a partition id
	// outside the iterator's slot array.
	ErrPartitionRange = errors.New("engine: record partition id out of range")
)

// PartitionRangeError carries the offending partition id alongside the
// configured partition count.
type PartitionRangeError struct {
	PartitionID int
	Partitions  int
}

func (e *PartitionRangeError) Error() string {
	return fmt.Sprintf("engine: record partition id %d out of range (partitions=%d)",
		e.PartitionID, e.Partitions)
}

func (e *PartitionRangeError) Unwrap() error { return ErrPartitionRange }
