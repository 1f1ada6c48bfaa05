// Package record models one row of the change stream as a typed,
// immutable event, and the opaque per-partition offsets that position it.
package record

import (
	"bytes"
	"fmt"
)

// MinColumns is the number of fixed aux columns every observed row
// carries before the projected row image begins.
const MinColumns = 7

// Positions of the fixed aux columns within a raw row.
const (
	colOffset = iota
	colPartitionID
	colType
	colTable
	colTxID
	colTxPartitions
	colInternalID
)

// Record is one change-stream event, decoded from a raw row.
type Record struct {
	// Offset positions the record within its partition's log.
	Offset Offset

	// PartitionID is the partition the record arrived on.
	PartitionID int

	// Type discriminates markers from row content.
	Type Type

	// Table names the table the record belongs to.
	Table string

	// TxID is the opaque token grouping records across partitions into
	// one logical transaction.
	TxID []byte

	// TxPartitions is how many partitions participate in the transaction.
	TxPartitions int

	// InternalID is the monotonic counter used for idempotent replay.
	InternalID int64

	// Row is the projected column values: new values for Insert/Update,
	// old values for Delete. Empty for markers.
	Row []any
}

// Decode turns a raw row into a Record. It fails with a *DecodeError if
// fewer than MinColumns are present, if the offset is not exactly
// OffsetSize bytes, or if the record type is unknown.
func Decode(row []any) (Record, error) {
	var rec Record

	if len(row) < MinColumns {
		return rec, &DecodeError{
			Kind:   DecodeShortRow,
			Column: -1,
			Want:   MinColumns,
			Have:   len(row),
			Err:    ErrShortRow,
		}
	}

	rawOffset, err := columnBytes(row, colOffset)
	if err != nil {
		return rec, err
	}
	rec.Offset, err = NewOffset(rawOffset)
	if err != nil {
		return rec, err
	}

	partition, err := columnInt(row, colPartitionID)
	if err != nil {
		return rec, err
	}
	rec.PartitionID = int(partition)

	typeName, err := columnString(row, colType)
	if err != nil {
		return rec, err
	}
	rec.Type, err = ParseType(typeName)
	if err != nil {
		return rec, &DecodeError{
			Kind:   DecodeInvalidType,
			Column: colType,
			Err:    err,
		}
	}

	rec.Table, err = columnString(row, colTable)
	if err != nil {
		return rec, err
	}

	txID, err := columnBytes(row, colTxID)
	if err != nil {
		return rec, err
	}
	rec.TxID = append([]byte(nil), txID...)

	txPartitions, err := columnInt(row, colTxPartitions)
	if err != nil {
		return rec, err
	}
	rec.TxPartitions = int(txPartitions)

	rec.InternalID, err = columnInt(row, colInternalID)
	if err != nil {
		return rec, err
	}

	rec.Row = append([]any(nil), row[MinColumns:]...)
	return rec, nil
}

// SameTx reports whether the record carries the given transaction id.
func (r Record) SameTx(txID []byte) bool {
	return bytes.Equal(r.TxID, txID)
}

func (r Record) String() string {
	return fmt.Sprintf("Record(offset=%s partition=%d type=%s table=%s tx=%x partitions=%d internal_id=%d cols=%d)",
		r.Offset, r.PartitionID, r.Type, r.Table, r.TxID, r.TxPartitions, r.InternalID, len(r.Row))
}

// columnBytes coerces an aux column into raw bytes. Drivers surface
// binary columns as []byte or string depending on wire mode.
func columnBytes(row []any, col int) ([]byte, error) {
	switch v := row[col].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, badColumn(col, "bytes", v)
	}
}

// columnString coerces an aux column into a string.
func columnString(row []any, col int) (string, error) {
	switch v := row[col].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", badColumn(col, "string", v)
	}
}

// columnInt coerces an aux column into an int64. Integer columns arrive
// as int64 from the driver, but text-protocol results degrade to bytes.
func columnInt(row []any, col int) (int64, error) {
	switch v := row[col].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case []byte:
		return parseInt(col, string(v))
	case string:
		return parseInt(col, v)
	default:
		return 0, badColumn(col, "integer", v)
	}
}

func parseInt(col int, s string) (int64, error) {
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, badColumn(col, "integer", s)
	}
	return n, nil
}

func badColumn(col int, want string, have any) *DecodeError {
	return &DecodeError{
		Kind:   DecodeBadColumn,
		Column: col,
		Err:    fmt.Errorf("%w: want %s, have %T", ErrBadColumn, want, have),
	}
}
