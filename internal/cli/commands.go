package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/julianstephens/go-utils/cliutil"

	"github.com/julianstephens/cdcsync/internal/cdc/checkpoint"
	"github.com/julianstephens/cdcsync/internal/cdc/engine"
	"github.com/julianstephens/cdcsync/internal/cdc/observed"
	"github.com/julianstephens/cdcsync/internal/cdc/replicate"
	"github.com/julianstephens/cdcsync/internal/cdc/schema"
	"github.com/julianstephens/cdcsync/internal/cdc/session"
	"github.com/julianstephens/cdcsync/internal/cdc/source"
	"github.com/julianstephens/cdcsync/internal/cdc/source/singlestore"
	"github.com/julianstephens/cdcsync/internal/config"
	"github.com/julianstephens/cdcsync/internal/logger"
	"github.com/julianstephens/cdcsync/internal/metrics"
)

// Context carries shared dependencies into command Run methods.
type Context struct {
	Logger logger.Logger
}

// parseColumns turns repeated "name:type[:nullable]" flags into column
// definitions.
func parseColumns(specs []string) ([]schema.Column, error) {
	cols := make([]schema.Column, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid column spec %q, want name:type[:nullable]", spec)
		}
		col := schema.Column{Name: parts[0], SQLType: parts[1]}
		if len(parts) == 3 && parts[2] == "nullable" {
			col.Nullable = true
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// ReplicateCmd continuously replicates one observed table into a target
// database.
type ReplicateCmd struct {
	Config       string        `help:"Path to a YAML config file"                        type:"existingfile" optional:""`
	SourceDSN    string        `help:"DSN of the observed cluster"                       env:"CDCSYNC_SOURCE_DSN"`
	TargetDSN    string        `help:"DSN of the replication target"                     env:"CDCSYNC_TARGET_DSN"`
	Table        string        `help:"Source table to replicate"`
	TargetTable  string        `help:"Target table name (default: <table>_replicated)"`
	Column       []string      `help:"Source column as name:type[:nullable]; repeatable" default:"foo:int"`
	Checkpoint   string        `help:"SQLite file for offset checkpoints"`
	PauseEvery   time.Duration `help:"Observation epoch length"`
	CreateTables bool          `help:"Drop and recreate the target table first"`
	Verbose      bool          `help:"Log every applied record"`
	Metrics      bool          `help:"Serve Prometheus metrics"`
	MetricsPort  int           `help:"Prometheus exporter port"`
}

func (c *ReplicateCmd) Run(cc *Context) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	c.merge(cfg)
	if err := cfg.Validate(); err != nil {
		cliutil.PrintError(err.Error())
		return err
	}

	cols, err := parseColumns(c.Column)
	if err != nil {
		return err
	}
	table := schema.NewTable(cfg.Table).CopyColumns(cols)

	src, err := singlestore.NewConnector(cfg.SourceDSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	target, err := sql.Open("mysql", cfg.TargetDSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = target.Close()
	}()

	ckpt, err := checkpoint.Open(cfg.CheckpointPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ckpt.Close()
	}()

	if cfg.EnableMetrics {
		metrics.StartExporter(cfg.MetricsPort, cc.Logger)
	}

	rep, err := replicate.New(src, target, ckpt, table, replicate.Options{
		TargetTable: cfg.TargetTable,
		PauseEvery:  cfg.PauseEvery.Std(),
		Verbose:     cfg.Verbose,
		Logger:      cc.Logger,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := rep.Setup(ctx); err != nil {
		return err
	}
	if c.CreateTables {
		if err := rep.CreateTables(ctx); err != nil {
			return err
		}
	}

	cc.Logger.Info("starting replication", "table", cfg.Table)
	if err := rep.Run(ctx); err != nil && !errors.Is(err, replicate.ErrStopped) {
		return err
	}
	return nil
}

// merge overlays explicitly-set flags onto the file config.
func (c *ReplicateCmd) merge(cfg *config.Config) {
	if c.SourceDSN != "" {
		cfg.SourceDSN = c.SourceDSN
	}
	if c.TargetDSN != "" {
		cfg.TargetDSN = c.TargetDSN
	}
	if c.Table != "" {
		cfg.Table = c.Table
	}
	if c.TargetTable != "" {
		cfg.TargetTable = c.TargetTable
	}
	if c.Checkpoint != "" {
		cfg.CheckpointPath = c.Checkpoint
	}
	if c.PauseEvery > 0 {
		cfg.PauseEvery = config.Duration(c.PauseEvery)
	}
	if c.Verbose {
		cfg.Verbose = true
	}
	if c.Metrics {
		cfg.EnableMetrics = true
	}
	if c.MetricsPort != 0 {
		cfg.MetricsPort = c.MetricsPort
	}
	cfg.Normalize()
}

// ObserveCmd streams one observation epoch and prints each reconstructed
// unit. Useful for inspecting a change stream without a target.
type ObserveCmd struct {
	SourceDSN  string        `help:"DSN of the observed cluster"            env:"CDCSYNC_SOURCE_DSN" required:""`
	Table      []string      `help:"Tables to observe"                      required:""`
	Partitions int           `help:"Partition count of the source database" default:"1"`
	Timeout    time.Duration `help:"Session timeout"                        default:"60s"`
	KeepEmpty  bool          `help:"Print units that contain no records"`
}

func (c *ObserveCmd) Run(cc *Context) error {
	src, err := singlestore.NewConnector(c.SourceDSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	ctx := context.Background()
	sess := session.New(src, session.Options{
		Tables:  c.Table,
		Timeout: c.Timeout,
		Logger:  cc.Logger,
	})
	if err := sess.Start(ctx, nil); err != nil {
		return err
	}
	defer func() {
		_ = sess.Stop(ctx)
	}()

	it, err := engine.New(c.Partitions, sess.Rows(), engine.Options{KeepEmptyUnits: c.KeepEmpty})
	if err != nil {
		return err
	}

	for {
		unit, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || source.IsCancellation(err) {
				return nil
			}
			return err
		}
		printUnit(unit)
	}
}

func printUnit(u *observed.Unit) {
	commit := "-"
	if off, ok := u.CommitOffset(); ok {
		commit = off.String()
	}
	begin := u.BeginOffset()
	fmt.Printf("%s partition=%d records=%d begin=%s commit=%s\n",
		u.Kind(), u.PartitionID(), len(u.Records()), begin.String(), commit)
	for _, rec := range u.Records() {
		fmt.Printf("  %s internal_id=%d row=%v\n", rec.Type, rec.InternalID, rec.Row)
	}
}

// OffsetsCmd prints the persisted checkpoints.
type OffsetsCmd struct {
	Checkpoint string `help:"SQLite file for offset checkpoints" default:"cdcsync-checkpoints.db"`
}

func (c *OffsetsCmd) Run(cc *Context) error {
	ckpt, err := checkpoint.Open(c.Checkpoint)
	if err != nil {
		return err
	}
	defer func() {
		_ = ckpt.Close()
	}()

	entries, err := ckpt.List(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no checkpoints")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s\tpartition=%d\toffset=%s\tupdated=%s\n",
			e.Table, e.Partition, e.Offset.String(), e.UpdatedAt)
	}
	return nil
}
