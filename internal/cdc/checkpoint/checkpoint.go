// Package checkpoint persists per-table, per-partition commit offsets in
// a local SQLite file. The replication driver saves an offset only after
// the matching target transaction commits, so the store always reflects
// confirmed progress.
package checkpoint

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/cdcsync/internal/cdc/record"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
	table_name   TEXT    NOT NULL,
	partition_id INTEGER NOT NULL,
	offset       BLOB    NOT NULL,
	updated_at   TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (table_name, partition_id)
)`

// Store is a SQLite-backed offset store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the checkpoint database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Path: path, Err: err}
	}
	// SQLite serializes writers; one connection avoids busy errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, &StoreError{Op: "init", Path: path, Err: err}
	}
	return &Store{db: db}, nil
}

// Load returns the saved offsets for a table as a resume slice of the
// given partition count. Partitions without a checkpoint are nil ("from
// the beginning").
func (s *Store) Load(ctx context.Context, table string, partitions int) ([]*record.Offset, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT partition_id, offset FROM checkpoints WHERE table_name = ?", table)
	if err != nil {
		return nil, &StoreError{Op: "load", Table: table, Err: err}
	}
	defer rows.Close()

	offsets := make([]*record.Offset, partitions)
	for rows.Next() {
		var partition int
		var raw []byte
		if err := rows.Scan(&partition, &raw); err != nil {
			return nil, &StoreError{Op: "load", Table: table, Err: err}
		}
		if partition < 0 || partition >= partitions {
			return nil, &StoreError{Op: "load", Table: table, Partition: partition, Err: ErrPartitionRange}
		}
		off, err := record.NewOffset(raw)
		if err != nil {
			return nil, &StoreError{Op: "load", Table: table, Partition: partition, Err: err}
		}
		offsets[partition] = &off
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "load", Table: table, Err: err}
	}
	return offsets, nil
}

// Save upserts one partition's offset. Offsets are monotonic
// non-decreasing per partition across the lifetime of a table's
// replication; a regression indicates checkpoint misuse and is rejected.
func (s *Store) Save(ctx context.Context, table string, partition int, off record.Offset) error {
	var existing []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT offset FROM checkpoints WHERE table_name = ? AND partition_id = ?",
		table, partition).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return &StoreError{Op: "save", Table: table, Partition: partition, Err: err}
	default:
		prev, err := record.NewOffset(existing)
		if err != nil {
			return &StoreError{Op: "save", Table: table, Partition: partition, Err: err}
		}
		if prev.Compare(off) > 0 {
			return &StoreError{Op: "save", Table: table, Partition: partition, Err: ErrOffsetRegression}
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (table_name, partition_id, offset) VALUES (?, ?, ?)
		ON CONFLICT (table_name, partition_id) DO UPDATE SET
			offset = excluded.offset,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		table, partition, off.Bytes())
	if err != nil {
		return &StoreError{Op: "save", Table: table, Partition: partition, Err: err}
	}
	return nil
}

// Entry is one saved checkpoint row.
type Entry struct {
	Table     string
	Partition int
	Offset    record.Offset
	UpdatedAt string
}

// List returns every saved checkpoint, ordered by table then partition.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, partition_id, offset, updated_at FROM checkpoints ORDER BY table_name, partition_id")
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.Table, &e.Partition, &raw, &e.UpdatedAt); err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		e.Offset, err = record.NewOffset(raw)
		if err != nil {
			return nil, &StoreError{Op: "list", Table: e.Table, Partition: e.Partition, Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return entries, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
