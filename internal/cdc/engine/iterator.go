// Package engine reconstructs whole transactions and snapshots from a
// raw, partition-interleaved record stream. Reassembly is partition
// local: the engine groups records, it never reorders them.
package engine

import (
	"github.com/julianstephens/cdcsync/internal/cdc/observed"
	"github.com/julianstephens/cdcsync/internal/cdc/record"
)

// RowSource produces raw rows for the iterator. Next blocks until a row
// is available and returns io.EOF once the underlying stream is
// exhausted.
type RowSource interface {
	Next() ([]any, error)
}

// Options tunes iterator behavior.
type Options struct {
	// KeepEmptyUnits disables the default suppression of units that
	// completed without any body records.
	KeepEmptyUnits bool
}

// slot is the per-partition cursor state: at most one open unit, plus the
// offset of the last record seen on the partition regardless of type.
type slot struct {
	open *observed.Unit
	last *record.Offset
}

// Iterator is the stream reassembly engine. It drives the raw fetch
// loop, dispatches each record to its partition's slot, and yields
// completed units as a lazy sequence. An iterator is bound to a single
// stream epoch: after a session restart, build a new one; slot state
// has no meaning across epochs except through the persisted offsets.
//
// The iterator must only ever be driven by one caller at a time.
type Iterator struct {
	src       RowSource
	slots     []slot
	singlebox bool
	skipEmpty bool
}

// New builds an iterator over src with one slot per partition. With a
// partition count of 1 the iterator runs in singlebox mode: all activity
// collapses onto slot 0 regardless of the partition id records report.
func New(partitions int, src RowSource, opts Options) (*Iterator, error) {
	if partitions < 1 {
		return nil, ErrNoPartitions
	}
	return &Iterator{
		src:       src,
		slots:     make([]slot, partitions),
		singlebox: partitions == 1,
		skipEmpty: !opts.KeepEmptyUnits,
	}, nil
}

// Next produces the next completed unit. It blocks while the source
// streams live and returns io.EOF once the source is exhausted; io.EOF
// is end-of-stream, not a failure. Any other error is fatal to this
// stream epoch.
func (it *Iterator) Next() (*observed.Unit, error) {
	for {
		row, err := it.src.Next()
		if err != nil {
			return nil, err
		}

		rec, err := record.Decode(row)
		if err != nil {
			return nil, err
		}

		unit, err := it.process(rec)
		if err != nil {
			return nil, err
		}
		if unit != nil {
			return unit, nil
		}
	}
}

// Offsets returns a snapshot of the last offset seen per partition. Nil
// entries mark partitions with no activity yet. Consumers use this to
// build a resume request after the current session ends.
func (it *Iterator) Offsets() []*record.Offset {
	out := make([]*record.Offset, len(it.slots))
	for i := range it.slots {
		if it.slots[i].last != nil {
			o := *it.slots[i].last
			out[i] = &o
		}
	}
	return out
}

// process applies one record to its partition slot and returns a unit
// when the record completed one.
func (it *Iterator) process(rec record.Record) (*observed.Unit, error) {
	idx := rec.PartitionID
	if it.singlebox {
		idx = 0
	}
	if idx < 0 || idx >= len(it.slots) {
		return nil, &PartitionRangeError{PartitionID: rec.PartitionID, Partitions: len(it.slots)}
	}
	s := &it.slots[idx]

	// The cursor advances on every record, markers included.
	off := rec.Offset
	s.last = &off

	switch rec.Type {
	case record.TypeBeginSnapshot:
		// Snapshots never nest on the same partition.
		if s.open != nil {
			return nil, &observed.ProtocolError{
				Kind:        observed.ViolationNestedBegin,
				UnitKind:    s.open.Kind(),
				PartitionID: rec.PartitionID,
				Offset:      rec.Offset,
				RecordType:  rec.Type,
				Err:         observed.ErrNestedBegin,
			}
		}
		unit, err := observed.New(rec)
		if err != nil {
			return nil, err
		}
		s.open = unit
		return nil, nil

	case record.TypeBeginTransaction:
		if s.open != nil {
			if s.open.IsSnapshot() {
				// Begin of a sub-transaction inside the open snapshot;
				// it does not replace the snapshot.
				return nil, nil
			}
			return nil, &observed.ProtocolError{
				Kind:        observed.ViolationNestedBegin,
				UnitKind:    s.open.Kind(),
				PartitionID: rec.PartitionID,
				Offset:      rec.Offset,
				RecordType:  rec.Type,
				Err:         observed.ErrNestedBegin,
			}
		}
		unit, err := observed.New(rec)
		if err != nil {
			return nil, err
		}
		s.open = unit
		return nil, nil

	case record.TypeCommitTransaction, record.TypeCommitSnapshot:
		if s.open == nil {
			// A resumed stream can open mid-transaction; the dangling
			// commit belongs to a unit from a previous epoch.
			return nil, nil
		}
		if err := s.open.Commit(rec); err != nil {
			return nil, err
		}
		if !s.open.IsComplete() {
			// Snapshot sub-transaction commit; the snapshot stays open.
			return nil, nil
		}
		unit := s.open
		s.open = nil
		if unit.IsEmpty() && it.skipEmpty {
			return nil, nil
		}
		return unit, nil

	default:
		if s.open == nil {
			// Body record from a transaction begun before this epoch.
			return nil, nil
		}
		if err := s.open.Append(rec); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
