package e2e_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	tst "github.com/julianstephens/go-utils/tests"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/cdcsync/internal/cdc/checkpoint"
	"github.com/julianstephens/cdcsync/internal/cdc/replicate"
	"github.com/julianstephens/cdcsync/internal/cdc/schema"
	"github.com/julianstephens/cdcsync/internal/cdc/source"
	"github.com/julianstephens/cdcsync/internal/testutil"
)

// partitionRows fakes a SHOW PARTITIONS result with one row per partition.
func partitionRows(n int) *testutil.ScriptedRows {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	return &testutil.ScriptedRows{Rows: rows}
}

func openSQLiteTarget(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	tst.RequireNoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	if _, err := db.Exec("CREATE TABLE orders_replicated (internal_id bigint, foo int)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return db
}

func ordersTable() *schema.Table {
	return schema.NewTable("orders").Column(schema.Column{Name: "foo", SQLType: "int"})
}

func runUntilStopped(t *testing.T, rep *replicate.Replicator) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- rep.Run(context.Background())
	}()

	select {
	case err := <-done:
		if !errors.Is(err, replicate.ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("replication loop never stopped")
	}
}

func TestReplication_EndToEnd(t *testing.T) {
	// One observation epoch over two partitions: a transaction on
	// partition 0 interleaved with a snapshot (and a nested
	// sub-transaction) on partition 1.
	b := testutil.NewStreamBuilder("orders", 2)
	b.BeginTx(0, "tx-a", 2)
	b.BeginSnapshot(1, "snap-1", 1)
	b.Insert(0, "tx-a", int64(10))
	b.Insert(1, "snap-1", int64(20))
	b.BeginTx(1, "tx-sub", 1)
	b.Insert(1, "tx-sub", int64(21))
	b.CommitTx(1, "tx-sub", 1)
	b.Insert(0, "tx-a", int64(11))
	commitA := b.CommitTx(0, "tx-a", 2)
	commitSnap := b.CommitSnapshot(1, "snap-1", 1)

	cluster := testutil.NewFakeCluster(partitionRows(2), b.Source(nil))
	target := openSQLiteTarget(t)

	ckpt, err := checkpoint.Open(":memory:")
	tst.RequireNoError(t, err)
	defer func() {
		_ = ckpt.Close()
	}()

	var rep *replicate.Replicator
	rep, err = replicate.New(cluster, target, ckpt, ordersTable(), replicate.Options{
		PauseEvery: 5 * time.Millisecond,
		OnPause:    func(int) { rep.Stop() },
	})
	tst.RequireNoError(t, err)

	ctx := context.Background()
	if err := rep.Setup(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runUntilStopped(t, rep)

	// Every body record of both units landed, keyed by internal_id.
	rows, err := target.Query("SELECT internal_id, foo FROM orders_replicated ORDER BY internal_id")
	tst.RequireNoError(t, err)
	defer rows.Close()

	type row struct{ id, foo int64 }
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.foo); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFoo := map[int64]bool{10: true, 20: true, 21: true, 11: true}
	if len(got) != len(wantFoo) {
		t.Fatalf("expected %d rows, got %d: %v", len(wantFoo), len(got), got)
	}
	for _, r := range got {
		if !wantFoo[r.foo] {
			t.Errorf("unexpected row value %d", r.foo)
		}
	}

	// Confirmed offsets sit on the commit markers.
	offsets := rep.Offsets()
	if len(offsets) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(offsets))
	}
	if offsets[0] == nil || !offsets[0].Equal(commitA) {
		t.Error("partition 0 offset must be tx-a's commit")
	}
	if offsets[1] == nil || !offsets[1].Equal(commitSnap) {
		t.Error("partition 1 offset must be the snapshot commit")
	}

	// And the checkpoint store agrees.
	saved, err := ckpt.Load(ctx, "orders", 2)
	tst.RequireNoError(t, err)
	if saved[0] == nil || !saved[0].Equal(commitA) || saved[1] == nil || !saved[1].Equal(commitSnap) {
		t.Error("checkpoints do not match the confirmed offsets")
	}

	// The first epoch had nothing to resume from.
	observe := cluster.Queries[1]
	if !strings.HasPrefix(observe, "OBSERVE * FROM orders") || strings.Contains(observe, "BEGIN AT") {
		t.Errorf("unexpected first-epoch query %q", observe)
	}
}

func TestReplication_ResumesFromCheckpoints(t *testing.T) {
	ctx := context.Background()
	ckpt, err := checkpoint.Open(":memory:")
	tst.RequireNoError(t, err)
	defer func() {
		_ = ckpt.Close()
	}()

	// A previous run left a checkpoint on partition 0.
	resumeAt := testutil.TestOffset(0, 3)
	if err := ckpt.Save(ctx, "orders", 0, resumeAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cluster := testutil.NewFakeCluster(partitionRows(2), &testutil.ScriptedRows{})
	target := openSQLiteTarget(t)

	var rep *replicate.Replicator
	rep, err = replicate.New(cluster, target, ckpt, ordersTable(), replicate.Options{
		PauseEvery: 5 * time.Millisecond,
		OnPause:    func(int) { rep.Stop() },
	})
	tst.RequireNoError(t, err)
	if err := rep.Setup(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runUntilStopped(t, rep)

	observe := cluster.Queries[1]
	want := "BEGIN AT ('" + resumeAt.String() + "',NULL)"
	if !strings.Contains(observe, want) {
		t.Errorf("resume clause missing: query %q, want substring %q", observe, want)
	}
}

func TestReplication_RecoversFromCancellation(t *testing.T) {
	// Epoch 1 applies one transaction and then dies with a cancellation;
	// epoch 2 must start from the confirmed offset instead of failing.
	b := testutil.NewStreamBuilder("orders", 1)
	b.BeginTx(0, "tx-a", 1)
	b.Insert(0, "tx-a", int64(1))
	commitA := b.CommitTx(0, "tx-a", 1)

	cancelled := b.Source(source.ErrCancelled)
	cluster := testutil.NewFakeCluster(partitionRows(1), cancelled)
	target := openSQLiteTarget(t)

	ctx := context.Background()
	ckpt, err := checkpoint.Open(":memory:")
	tst.RequireNoError(t, err)
	defer func() {
		_ = ckpt.Close()
	}()

	epochs := 0
	var rep *replicate.Replicator
	rep, err = replicate.New(cluster, target, ckpt, ordersTable(), replicate.Options{
		PauseEvery: time.Nanosecond, // pause after every epoch
		OnPause: func(int) {
			epochs++
			if epochs >= 2 {
				rep.Stop()
			}
		},
	})
	tst.RequireNoError(t, err)
	if err := rep.Setup(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runUntilStopped(t, rep)

	// The unit committed before the cancellation survived.
	var count int
	if err := target.QueryRow("SELECT COUNT(*) FROM orders_replicated").Scan(&count); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	// A later epoch resumed from the confirmed commit offset.
	if len(cluster.Queries) < 3 {
		t.Fatalf("expected a second observation epoch, got queries %v", cluster.Queries)
	}
	if !strings.Contains(cluster.Queries[2], "BEGIN AT ('"+commitA.String()+"')") {
		t.Errorf("second epoch did not resume from the commit: %q", cluster.Queries[2])
	}
}

func TestReplication_FatalStreamErrorPropagates(t *testing.T) {
	b := testutil.NewStreamBuilder("orders", 1)
	b.BeginTx(0, "tx-a", 1)

	boom := errors.New("stream corrupted")
	cluster := testutil.NewFakeCluster(partitionRows(1), b.Source(boom))
	target := openSQLiteTarget(t)

	rep, err := replicate.New(cluster, target, nil, ordersTable(), replicate.Options{})
	tst.RequireNoError(t, err)

	ctx := context.Background()
	if err := rep.Setup(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rep.Run(ctx); !errors.Is(err, boom) {
		t.Errorf("expected the fatal stream error, got %v", err)
	}
}
