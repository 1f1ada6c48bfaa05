package checkpoint_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/julianstephens/cdcsync/internal/cdc/checkpoint"
	"github.com/julianstephens/cdcsync/internal/testutil"
)

func openStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestLoad_EmptyStore(t *testing.T) {
	store := openStore(t)

	offsets, err := store.Load(context.Background(), "orders", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offsets) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(offsets))
	}
	for i, off := range offsets {
		if off != nil {
			t.Errorf("partition %d: expected nil, got %s", i, off)
		}
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	offA := testutil.TestOffset(0, 5)
	offC := testutil.TestOffset(2, 9)

	if err := store.Save(ctx, "orders", 0, offA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Save(ctx, "orders", 2, offC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Another table's checkpoints must not bleed in.
	if err := store.Save(ctx, "users", 0, testutil.TestOffset(0, 99)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offsets, err := store.Load(ctx, "orders", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offsets[0] == nil || !offsets[0].Equal(offA) {
		t.Error("partition 0 offset lost")
	}
	if offsets[1] != nil || offsets[3] != nil {
		t.Error("unsaved partitions must stay nil")
	}
	if offsets[2] == nil || !offsets[2].Equal(offC) {
		t.Error("partition 2 offset lost")
	}
}

func TestSave_AdvancesAndRejectsRegression(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	low := testutil.TestOffset(0, 1)
	high := testutil.TestOffset(0, 2)

	if err := store.Save(ctx, "orders", 0, low); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Save(ctx, "orders", 0, high); err != nil {
		t.Fatalf("advancing save failed: %v", err)
	}
	// Re-saving the same offset is allowed; epochs can end without progress.
	if err := store.Save(ctx, "orders", 0, high); err != nil {
		t.Fatalf("idempotent save failed: %v", err)
	}

	err := store.Save(ctx, "orders", 0, low)
	if !errors.Is(err, checkpoint.ErrOffsetRegression) {
		t.Fatalf("expected ErrOffsetRegression, got %v", err)
	}
	var se *checkpoint.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
	if se.Table != "orders" || se.Partition != 0 {
		t.Errorf("regression context not preserved: %+v", se)
	}

	// The rejected save must not clobber the stored offset.
	offsets, err := store.Load(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !offsets[0].Equal(high) {
		t.Error("regression attempt overwrote the checkpoint")
	}
}

func TestLoad_PartitionOutOfRange(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "orders", 3, testutil.TestOffset(3, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The table was re-partitioned down; stale rows must fail loudly
	// rather than silently dropping a partition's position.
	_, err := store.Load(ctx, "orders", 2)
	if !errors.Is(err, checkpoint.ErrPartitionRange) {
		t.Errorf("expected ErrPartitionRange, got %v", err)
	}
}

func TestList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "users", 1, testutil.TestOffset(1, 4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Save(ctx, "orders", 0, testutil.TestOffset(0, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Ordered by table then partition.
	if entries[0].Table != "orders" || entries[1].Table != "users" {
		t.Errorf("unexpected order: %s, %s", entries[0].Table, entries[1].Table)
	}
	if entries[0].UpdatedAt == "" {
		t.Error("expected an updated_at timestamp")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	ctx := context.Background()

	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	off := testutil.TestOffset(0, 7)
	if err := store.Save(ctx, "orders", 0, off); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		_ = reopened.Close()
	}()

	offsets, err := reopened.Load(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offsets[0] == nil || !offsets[0].Equal(off) {
		t.Error("checkpoint did not survive reopen")
	}
}
