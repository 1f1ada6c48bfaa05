package record

import (
	"errors"
	"fmt"
)

var (
	ErrShortRow      = errors.New("record: row has fewer than the fixed aux columns")
	ErrBadOffsetSize = errors.New("record: offset is not the fixed byte width")
	ErrInvalidType   = errors.New("record: invalid record type")
	ErrBadColumn     = errors.New("record: aux column has unexpected shape")
)

type DecodeErrorKind uint8

const (
	DecodeShortRow DecodeErrorKind = iota
	DecodeBadOffset
	DecodeInvalidType
	DecodeBadColumn
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeShortRow:
		return "short_row"
	case DecodeBadOffset:
		return "bad_offset"
	case DecodeInvalidType:
		return "invalid_type"
	case DecodeBadColumn:
		return "bad_column"
	default:
		return "unknown"
	}
}

// DecodeError describes a malformed raw row. The stream is assumed
// corrupt when one is returned; no recovery is attempted.
type DecodeError struct {
	Kind DecodeErrorKind

	// Column is the index of the failing aux column, or -1 when the
	// failure is row-level.
	Column int

	Want int
	Have int

	Err error
}

func (e *DecodeError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("record decode error kind=%s col=%d want=%d have=%d: %v",
			e.Kind.String(), e.Column, e.Want, e.Have, e.Err)
	}
	return fmt.Sprintf("record decode error kind=%s want=%d have=%d: %v",
		e.Kind.String(), e.Want, e.Have, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrShortRow:
		return e.Kind == DecodeShortRow
	case ErrBadOffsetSize:
		return e.Kind == DecodeBadOffset
	case ErrInvalidType:
		return e.Kind == DecodeInvalidType
	case ErrBadColumn:
		return e.Kind == DecodeBadColumn
	}
	return false
}

// AsDecodeError unwraps err to a *DecodeError when possible.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
