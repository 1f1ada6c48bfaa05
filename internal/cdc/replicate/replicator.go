// Package replicate drives continuous replication of one observed table
// into a MySQL-compatible target: it runs the session/engine loop,
// applies each reconstructed unit inside one target transaction, and
// checkpoints per-partition offsets only after that transaction commits.
package replicate

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/julianstephens/cdcsync/internal/cdc/checkpoint"
	"github.com/julianstephens/cdcsync/internal/cdc/engine"
	"github.com/julianstephens/cdcsync/internal/cdc/observed"
	"github.com/julianstephens/cdcsync/internal/cdc/record"
	"github.com/julianstephens/cdcsync/internal/cdc/schema"
	"github.com/julianstephens/cdcsync/internal/cdc/session"
	"github.com/julianstephens/cdcsync/internal/cdc/source"
	"github.com/julianstephens/cdcsync/internal/logger"
	"github.com/julianstephens/cdcsync/internal/metrics"
)

// Options configures a Replicator.
type Options struct {
	// TargetTable overrides the default "<table>_replicated" name.
	TargetTable string

	// PauseEvery bounds each observation epoch; it doubles as the
	// session timeout and the cadence of the OnPause callback.
	PauseEvery time.Duration

	// OnPause is invoked between epochs with the number of records
	// applied since the previous callback.
	OnPause func(records int)

	// Verbose logs one line per applied record.
	Verbose bool

	Logger logger.Logger
}

// Replicator replicates a single observed table into a target database.
type Replicator struct {
	src    source.Connector
	target *sql.DB
	ckpt   *checkpoint.Store
	table  *schema.Table
	opts   Options
	log    logger.Logger

	targetTable *schema.Table
	apply       *applier
	partitions  int
	offsets     []*record.Offset

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a replicator for one source table. ckpt may be nil to run
// without persisted checkpoints.
func New(src source.Connector, target *sql.DB, ckpt *checkpoint.Store, table *schema.Table, opts Options) (*Replicator, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if opts.PauseEvery <= 0 {
		opts.PauseEvery = 10 * time.Second
	}
	if opts.OnPause == nil {
		opts.OnPause = func(int) {}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NoOpLogger{}
	}
	if opts.TargetTable == "" {
		opts.TargetTable = table.Name + "_replicated"
	}

	targetTable := schema.NewTable(opts.TargetTable)
	targetTable.Type = table.Type
	targetTable.Column(schema.Column{Name: "internal_id", SQLType: "bigint"})
	targetTable.CopyColumns(table.Columns)

	return &Replicator{
		src:         src,
		target:      target,
		ckpt:        ckpt,
		table:       table,
		opts:        opts,
		log:         opts.Logger,
		targetTable: targetTable,
		apply:       newApplier(opts.TargetTable, table.Columns, opts.Logger, opts.Verbose),
		stop:        make(chan struct{}),
	}, nil
}

// Setup discovers the source partition count and loads any persisted
// checkpoints. Must run before Run.
func (r *Replicator) Setup(ctx context.Context) error {
	partitions, err := r.discoverPartitions(ctx)
	if err != nil {
		return err
	}
	r.partitions = partitions
	r.offsets = make([]*record.Offset, partitions)

	if r.ckpt != nil {
		offsets, err := r.ckpt.Load(ctx, r.table.Name, partitions)
		if err != nil {
			return err
		}
		r.offsets = offsets
	}

	r.log.Info("replication setup complete",
		"table", r.table.Name, "target", r.targetTable.Name, "partitions", partitions)
	return nil
}

// CreateTables drops and recreates the target table from the source
// definition (plus the leading internal_id column). Optional; skip it
// when the target schema is managed externally.
func (r *Replicator) CreateTables(ctx context.Context) error {
	drop, err := r.targetTable.DropSQL()
	if err != nil {
		return err
	}
	create, err := r.targetTable.CreateSQL()
	if err != nil {
		return err
	}
	if _, err := r.target.ExecContext(ctx, drop); err != nil {
		return wrapSetup(err)
	}
	if _, err := r.target.ExecContext(ctx, create); err != nil {
		return wrapSetup(err)
	}
	return nil
}

// Offsets returns a copy of the current confirmed per-partition offsets.
func (r *Replicator) Offsets() []*record.Offset {
	out := make([]*record.Offset, len(r.offsets))
	copy(out, r.offsets)
	return out
}

// Stop requests the replication loop to exit after the current epoch.
func (r *Replicator) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Run loops observation epochs until stopped. Only cancellation-class
// stream errors are recovered (by restarting from the confirmed
// offsets); everything else propagates.
func (r *Replicator) Run(ctx context.Context) error {
	lastPause := time.Now()
	for {
		select {
		case <-r.stop:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		applied, err := r.observeOnce(ctx)
		if err != nil {
			if !source.IsCancellation(err) {
				return err
			}
			r.log.Info("observation cancelled, resuming from confirmed offsets")
			metrics.SessionRestarts.Inc()
		}

		if time.Since(lastPause) > r.opts.PauseEvery {
			r.log.Debug("pausing observations", "records", applied)
			r.opts.OnPause(applied)
			lastPause = time.Now()
		}
	}
}

// observeOnce runs one observation epoch: a fresh session from the
// confirmed offsets, a fresh engine over its stream, and one target
// transaction per reconstructed unit.
func (r *Replicator) observeOnce(ctx context.Context) (int, error) {
	sess := session.New(r.src, session.Options{
		Tables:  []string{r.table.Name},
		Timeout: r.opts.PauseEvery,
		Logger:  r.log,
	})
	if err := sess.Start(ctx, r.offsets); err != nil {
		return 0, err
	}
	metrics.OpenSessions.Inc()
	defer func() {
		metrics.OpenSessions.Dec()
		if err := sess.Stop(ctx); err != nil {
			r.log.Error("session stop failed", err, "table", r.table.Name)
		}
	}()

	it, err := engine.New(r.partitions, sess.Rows(), engine.Options{})
	if err != nil {
		return 0, err
	}

	applied := 0
	for {
		select {
		case <-r.stop:
			return applied, nil
		default:
		}

		unit, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return applied, nil
			}
			return applied, err
		}

		n, err := r.applyOne(ctx, unit)
		if err != nil {
			return applied, err
		}
		applied += n
	}
}

// applyOne writes one unit inside a single target transaction and then
// advances the partition's confirmed offset. The checkpoint is persisted
// only after the target commit, so a crash between the two redelivers
// the unit rather than losing it; internal_id keying keeps the redelivery
// idempotent.
func (r *Replicator) applyOne(ctx context.Context, unit *observed.Unit) (int, error) {
	commitOffset, ok := unit.CommitOffset()
	if !ok {
		return 0, &ApplyError{
			Table:       r.table.Name,
			PartitionID: unit.PartitionID(),
			RecordIndex: -1,
			Err:         ErrApplyFailed,
			Cause:       errors.New("unit is not complete"),
		}
	}

	start := time.Now()
	tx, err := r.target.BeginTx(ctx, nil)
	if err != nil {
		return 0, &ApplyError{Table: r.table.Name, PartitionID: unit.PartitionID(),
			RecordIndex: -1, Err: ErrApplyFailed, Cause: err}
	}

	n, err := r.apply.applyUnit(ctx, tx, unit)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, &ApplyError{Table: r.table.Name, PartitionID: unit.PartitionID(),
			RecordIndex: -1, Err: ErrApplyFailed, Cause: err}
	}

	metrics.UnitsApplied.Inc()
	metrics.RecordsApplied.Add(float64(n))
	metrics.ApplyLatency.Observe(time.Since(start).Seconds())

	partition := unit.PartitionID()
	if r.partitions == 1 {
		partition = 0
	}
	r.offsets[partition] = &commitOffset

	if r.ckpt != nil {
		if err := r.ckpt.Save(ctx, r.table.Name, partition, commitOffset); err != nil {
			return n, err
		}
	}

	if r.opts.Verbose {
		begin := unit.BeginOffset()
		r.log.Info("unit applied",
			"records", len(unit.Records()), "partition", unit.PartitionID(),
			"begin", begin.String(), "commit", commitOffset.String())
	}
	return n, nil
}

func (r *Replicator) discoverPartitions(ctx context.Context) (int, error) {
	conn, err := r.src.Connect(ctx)
	if err != nil {
		return 0, wrapSetup(err)
	}
	defer func() {
		_ = conn.Close()
	}()

	rows, err := conn.Query(ctx, "SHOW PARTITIONS")
	if err != nil {
		if code, ok := source.Code(err); ok && code == notShardedCode {
			// Singlebox deployment: the whole stream is one partition.
			return 1, nil
		}
		return 0, wrapSetup(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	count := 0
	for {
		_, err := rows.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, wrapSetup(err)
		}
		count++
	}
	if count == 0 {
		count = 1
	}
	return count, nil
}

// notShardedCode is the server error raised by SHOW PARTITIONS against an
// unsharded database.
const notShardedCode uint16 = 1795

func wrapSetup(err error) error {
	return errors.Join(ErrSetup, err)
}
