package record

import "fmt"

// Type identifies the kind of change-stream event a record carries.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeBeginTransaction
	TypeBeginSnapshot
	TypeCommitTransaction
	TypeCommitSnapshot
	TypeInsert
	TypeUpdate
	TypeDelete
)

func (t Type) String() string {
	switch t {
	case TypeBeginTransaction:
		return "BeginTransaction"
	case TypeBeginSnapshot:
		return "BeginSnapshot"
	case TypeCommitTransaction:
		return "CommitTransaction"
	case TypeCommitSnapshot:
		return "CommitSnapshot"
	case TypeInsert:
		return "Insert"
	case TypeUpdate:
		return "Update"
	case TypeDelete:
		return "Delete"
	default:
		return "unknown"
	}
}

// ParseType maps the wire name of a record type to its Type value.
func ParseType(s string) (Type, error) {
	switch s {
	case "BeginTransaction":
		return TypeBeginTransaction, nil
	case "BeginSnapshot":
		return TypeBeginSnapshot, nil
	case "CommitTransaction":
		return TypeCommitTransaction, nil
	case "CommitSnapshot":
		return TypeCommitSnapshot, nil
	case "Insert":
		return TypeInsert, nil
	case "Update":
		return TypeUpdate, nil
	case "Delete":
		return TypeDelete, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// IsBegin reports whether the type opens a transaction or snapshot.
func (t Type) IsBegin() bool {
	return t == TypeBeginTransaction || t == TypeBeginSnapshot
}

// IsCommit reports whether the type closes a transaction or snapshot.
func (t Type) IsCommit() bool {
	return t == TypeCommitTransaction || t == TypeCommitSnapshot
}

// IsBody reports whether the type is row content rather than a marker.
func (t Type) IsBody() bool {
	return t == TypeInsert || t == TypeUpdate || t == TypeDelete
}
