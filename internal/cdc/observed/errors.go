package observed

import (
	"errors"
	"fmt"

	"github.com/julianstephens/cdcsync/internal/cdc/record"
)

var (
	ErrNotBegin               = errors.New("observed: unit must start from a begin marker")
	ErrTxMismatch             = errors.New("observed: transaction id mismatch")
	ErrPartitionMismatch      = errors.New("observed: partition id mismatch")
	ErrPartitionCountMismatch = errors.New("observed: transaction partition count mismatch")
	ErrUnitComplete           = errors.New("observed: unit is already complete")
	ErrNestedBegin            = errors.New("observed: begin marker inside an open unit")
	ErrBadCommitType          = errors.New("observed: wrong commit type for unit kind")
)

type ViolationKind uint8

const (
	ViolationNotBegin ViolationKind = iota
	ViolationTxMismatch
	ViolationPartitionMismatch
	ViolationPartitionCountMismatch
	ViolationUnitComplete
	ViolationNestedBegin
	ViolationBadCommitType
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationNotBegin:
		return "not_begin"
	case ViolationTxMismatch:
		return "tx_mismatch"
	case ViolationPartitionMismatch:
		return "partition_mismatch"
	case ViolationPartitionCountMismatch:
		return "partition_count_mismatch"
	case ViolationUnitComplete:
		return "unit_complete"
	case ViolationNestedBegin:
		return "nested_begin"
	case ViolationBadCommitType:
		return "bad_commit_type"
	default:
		return "unknown"
	}
}

// ProtocolError reports a record sequence that breaks the Begin/Commit
// invariants of the stream. It is fatal: the reassembly assumptions no
// longer hold, so it is surfaced to the caller and never retried.
type ProtocolError struct {
	Kind ViolationKind

	// UnitKind is the kind of the unit the record was applied to.
	UnitKind Kind

	// Positional context of the offending record.
	PartitionID int
	Offset      record.Offset
	RecordType  record.Type

	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation kind=%s unit=%s partition=%d offset=%s record=%s: %v",
		e.Kind.String(), e.UnitKind.String(), e.PartitionID, e.Offset, e.RecordType, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrNotBegin:
		return e.Kind == ViolationNotBegin
	case ErrTxMismatch:
		return e.Kind == ViolationTxMismatch
	case ErrPartitionMismatch:
		return e.Kind == ViolationPartitionMismatch
	case ErrPartitionCountMismatch:
		return e.Kind == ViolationPartitionCountMismatch
	case ErrUnitComplete:
		return e.Kind == ViolationUnitComplete
	case ErrNestedBegin:
		return e.Kind == ViolationNestedBegin
	case ErrBadCommitType:
		return e.Kind == ViolationBadCommitType
	}
	return false
}

// AsProtocolError unwraps err to a *ProtocolError when possible.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
