// Package testutil provides fakes and builders for exercising the change
// stream pipeline without a live cluster.
package testutil

import (
	"encoding/binary"
	"io"

	"github.com/julianstephens/cdcsync/internal/cdc/record"
)

// ScriptedRows replays a fixed sequence of raw rows and then a terminal
// error. It satisfies both engine.RowSource and source.RowStream.
type ScriptedRows struct {
	Rows [][]any

	// FinalErr is returned once the rows are exhausted. Defaults to io.EOF.
	FinalErr error

	pos    int
	Closed bool
}

func (s *ScriptedRows) Next() ([]any, error) {
	if s.pos >= len(s.Rows) {
		if s.FinalErr != nil {
			return nil, s.FinalErr
		}
		return nil, io.EOF
	}
	row := s.Rows[s.pos]
	s.pos++
	return row, nil
}

func (s *ScriptedRows) Close() error {
	s.Closed = true
	return nil
}

// TestOffset builds a deterministic offset that orders by seq within a
// partition.
func TestOffset(partition, seq int) record.Offset {
	var raw [record.OffsetSize]byte
	binary.BigEndian.PutUint64(raw[0:8], uint64(partition))
	binary.BigEndian.PutUint64(raw[16:24], uint64(seq))
	off, err := record.NewOffset(raw[:])
	if err != nil {
		panic(err)
	}
	return off
}

// StreamBuilder assembles a raw observed-row script: it tracks a
// per-partition offset sequence and a global internal_id counter so
// scripted streams look like real partition logs.
type StreamBuilder struct {
	Table string

	seq        []int
	internalID int64
	rows       [][]any
	offsets    []record.Offset
}

// NewStreamBuilder starts a script for one table over the given number
// of partitions.
func NewStreamBuilder(table string, partitions int) *StreamBuilder {
	return &StreamBuilder{
		Table: table,
		seq:   make([]int, partitions),
	}
}

func (b *StreamBuilder) add(partition int, typ, txID string, txPartitions int, vals ...any) record.Offset {
	b.seq[partition]++
	b.internalID++
	off := TestOffset(partition, b.seq[partition])

	row := []any{
		off.Bytes(),
		int64(partition),
		typ,
		b.Table,
		[]byte(txID),
		int64(txPartitions),
		b.internalID,
	}
	row = append(row, vals...)

	b.rows = append(b.rows, row)
	b.offsets = append(b.offsets, off)
	return off
}

// BeginTx appends a BeginTransaction marker.
func (b *StreamBuilder) BeginTx(partition int, txID string, txPartitions int) record.Offset {
	return b.add(partition, "BeginTransaction", txID, txPartitions)
}

// CommitTx appends a CommitTransaction marker.
func (b *StreamBuilder) CommitTx(partition int, txID string, txPartitions int) record.Offset {
	return b.add(partition, "CommitTransaction", txID, txPartitions)
}

// BeginSnapshot appends a BeginSnapshot marker.
func (b *StreamBuilder) BeginSnapshot(partition int, txID string, txPartitions int) record.Offset {
	return b.add(partition, "BeginSnapshot", txID, txPartitions)
}

// CommitSnapshot appends a CommitSnapshot marker.
func (b *StreamBuilder) CommitSnapshot(partition int, txID string, txPartitions int) record.Offset {
	return b.add(partition, "CommitSnapshot", txID, txPartitions)
}

// Insert appends an Insert body record carrying the given row image.
func (b *StreamBuilder) Insert(partition int, txID string, vals ...any) record.Offset {
	return b.add(partition, "Insert", txID, 1, vals...)
}

// Update appends an Update body record carrying the new row image.
func (b *StreamBuilder) Update(partition int, txID string, vals ...any) record.Offset {
	return b.add(partition, "Update", txID, 1, vals...)
}

// Delete appends a Delete body record carrying the old row image.
func (b *StreamBuilder) Delete(partition int, txID string, vals ...any) record.Offset {
	return b.add(partition, "Delete", txID, 1, vals...)
}

// Raw appends an arbitrary pre-built row, bypassing the offset and
// internal_id bookkeeping.
func (b *StreamBuilder) Raw(row []any) {
	b.rows = append(b.rows, row)
}

// Rows returns the scripted raw rows.
func (b *StreamBuilder) Rows() [][]any {
	return b.rows
}

// Source wraps the script in a replayable row source ending in err
// (io.EOF when nil).
func (b *StreamBuilder) Source(err error) *ScriptedRows {
	return &ScriptedRows{Rows: b.rows, FinalErr: err}
}

// LastInternalID returns the internal_id assigned to the most recent row.
func (b *StreamBuilder) LastInternalID() int64 {
	return b.internalID
}
