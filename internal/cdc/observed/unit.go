// Package observed accumulates the records belonging to one open
// transaction or snapshot on a single partition. A unit is owned by one
// partition slot until it completes; ownership then transfers to the
// consumer and the unit is never reused.
package observed

import (
	"fmt"

	"github.com/julianstephens/cdcsync/internal/cdc/record"
)

// Kind discriminates the two unit variants. They share one shape and
// differ only in commit rules.
type Kind uint8

const (
	KindTransaction Kind = iota
	KindSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindTransaction:
		return "transaction"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Unit groups all records between a matching Begin and Commit marker on
// one partition.
type Unit struct {
	kind         Kind
	beginOffset  record.Offset
	commitOffset record.Offset
	partitionID  int
	txID         []byte
	txPartitions int
	records      []record.Record
	complete     bool
}

// New opens a unit from a begin marker. The unit kind follows the marker
// type: BeginSnapshot opens a snapshot, BeginTransaction a transaction.
func New(begin record.Record) (*Unit, error) {
	if !begin.Type.IsBegin() {
		return nil, &ProtocolError{
			Kind:        ViolationNotBegin,
			PartitionID: begin.PartitionID,
			Offset:      begin.Offset,
			RecordType:  begin.Type,
			Err:         ErrNotBegin,
		}
	}

	kind := KindTransaction
	if begin.Type == record.TypeBeginSnapshot {
		kind = KindSnapshot
	}

	return &Unit{
		kind:         kind,
		beginOffset:  begin.Offset,
		partitionID:  begin.PartitionID,
		txID:         append([]byte(nil), begin.TxID...),
		txPartitions: begin.TxPartitions,
	}, nil
}

// Kind returns the unit's variant.
func (u *Unit) Kind() Kind { return u.kind }

// IsSnapshot reports whether the unit is a snapshot.
func (u *Unit) IsSnapshot() bool { return u.kind == KindSnapshot }

// PartitionID returns the partition the unit is open on.
func (u *Unit) PartitionID() int { return u.partitionID }

// TxID returns the transaction id grouping the unit's records.
func (u *Unit) TxID() []byte { return u.txID }

// TxPartitions returns how many partitions participate in the transaction.
func (u *Unit) TxPartitions() int { return u.txPartitions }

// BeginOffset returns the offset of the unit's begin marker.
func (u *Unit) BeginOffset() record.Offset { return u.beginOffset }

// CommitOffset returns the offset of the commit marker. The second return
// is false until the unit is complete.
func (u *Unit) CommitOffset() (record.Offset, bool) {
	return u.commitOffset, u.complete
}

// Records returns the body records in per-partition arrival order.
func (u *Unit) Records() []record.Record { return u.records }

// IsComplete reports whether the unit has seen its commit marker.
func (u *Unit) IsComplete() bool { return u.complete }

// IsEmpty reports whether no body records were appended. The engine uses
// this to optionally suppress no-op units.
func (u *Unit) IsEmpty() bool { return len(u.records) == 0 }

// Append adds a body record to the unit. It fails if the record is itself
// a begin marker, if the unit is already complete, if the partition id
// mismatches, or (for transactions) if the transaction id mismatches.
// Snapshot units accept body records from nested sub-transactions, which
// carry their own transaction ids, so they do not check the id; they
// reject commit markers instead, which are routed through Commit.
func (u *Unit) Append(rec record.Record) error {
	if rec.Type.IsBegin() {
		return u.violation(ViolationNestedBegin, rec, ErrNestedBegin)
	}
	if u.kind == KindSnapshot && rec.Type.IsCommit() {
		return u.violation(ViolationBadCommitType, rec, ErrBadCommitType)
	}
	if u.kind == KindTransaction && !rec.SameTx(u.txID) {
		return u.violation(ViolationTxMismatch, rec, ErrTxMismatch)
	}
	if rec.PartitionID != u.partitionID {
		return u.violation(ViolationPartitionMismatch, rec, ErrPartitionMismatch)
	}
	if u.complete {
		return u.violation(ViolationUnitComplete, rec, ErrUnitComplete)
	}

	u.records = append(u.records, rec)
	return nil
}

// Commit finalizes the unit from a commit marker.
//
// Transaction kind: the marker must match the unit's transaction id,
// partition id, and partition count; on success the commit offset is set
// and the unit becomes complete (and immutable).
//
// Snapshot kind: only a CommitSnapshot record closes the unit. A
// CommitTransaction with a different transaction id is the boundary of a
// sub-transaction nested in the snapshot and is ignored without mutating
// the unit. A CommitTransaction with the snapshot's own id is a protocol
// violation: snapshots never close via transaction commit.
func (u *Unit) Commit(commit record.Record) error {
	if u.complete {
		return u.violation(ViolationUnitComplete, commit, ErrUnitComplete)
	}
	if u.kind == KindSnapshot {
		if !commit.SameTx(u.txID) {
			if commit.Type != record.TypeCommitTransaction {
				return u.violation(ViolationBadCommitType, commit, ErrBadCommitType)
			}
			// Sub-transaction boundary inside the snapshot.
			return nil
		}
		if commit.Type != record.TypeCommitSnapshot {
			return u.violation(ViolationBadCommitType, commit, ErrBadCommitType)
		}
	} else if !commit.SameTx(u.txID) {
		return u.violation(ViolationTxMismatch, commit, ErrTxMismatch)
	}

	if commit.PartitionID != u.partitionID {
		return u.violation(ViolationPartitionMismatch, commit, ErrPartitionMismatch)
	}
	if commit.TxPartitions != u.txPartitions {
		return u.violation(ViolationPartitionCountMismatch, commit, ErrPartitionCountMismatch)
	}

	u.commitOffset = commit.Offset
	u.complete = true
	return nil
}

func (u *Unit) String() string {
	commit := "unset"
	if u.complete {
		commit = u.commitOffset.String()
	}
	return fmt.Sprintf("Unit(kind=%s partition=%d tx=%x partitions=%d complete=%t records=%d begin=%s commit=%s)",
		u.kind, u.partitionID, u.txID, u.txPartitions, u.complete, len(u.records), u.beginOffset, commit)
}

func (u *Unit) violation(kind ViolationKind, rec record.Record, sentinel error) error {
	return &ProtocolError{
		Kind:        kind,
		UnitKind:    u.kind,
		PartitionID: rec.PartitionID,
		Offset:      rec.Offset,
		RecordType:  rec.Type,
		Err:         sentinel,
	}
}
