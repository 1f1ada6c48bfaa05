package replicate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/julianstephens/cdcsync/internal/cdc/observed"
	"github.com/julianstephens/cdcsync/internal/cdc/record"
	"github.com/julianstephens/cdcsync/internal/cdc/schema"
	"github.com/julianstephens/cdcsync/internal/logger"
)

// applier turns a unit's records into target DML. Rows are keyed on the
// stream's internal_id column, which makes redelivered records after a
// resume idempotent at the row level.
type applier struct {
	table      string
	insertStmt string
	updateStmt string
	deleteStmt string
	log        logger.Logger
	verbose    bool
}

// newApplier prepares the statement shapes for one target table. cols
// are the replicated source columns; the target additionally leads with
// internal_id.
func newApplier(targetTable string, cols []schema.Column, lg logger.Logger, verbose bool) *applier {
	placeholders := make([]string, len(cols)+1)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	assignments := make([]string, len(cols))
	for i, c := range cols {
		assignments[i] = c.Name + " = ?"
	}

	return &applier{
		table: targetTable,
		insertStmt: fmt.Sprintf("INSERT INTO %s VALUES (%s)",
			targetTable, strings.Join(placeholders, ", ")),
		updateStmt: fmt.Sprintf("UPDATE %s SET %s WHERE internal_id = ?",
			targetTable, strings.Join(assignments, ", ")),
		deleteStmt: fmt.Sprintf("DELETE FROM %s WHERE internal_id = ?", targetTable),
		log:        lg,
		verbose:    verbose,
	}
}

// applyUnit writes every body record of a completed unit inside the
// given target transaction. Marker records never reach here; the engine
// consumed them. Non-DML record types are skipped.
func (a *applier) applyUnit(ctx context.Context, tx *sql.Tx, unit *observed.Unit) (int, error) {
	applied := 0
	for i, rec := range unit.Records() {
		var err error
		switch rec.Type {
		case record.TypeInsert:
			args := append([]any{rec.InternalID}, rec.Row...)
			err = a.exec(ctx, tx, a.insertStmt, args...)
		case record.TypeUpdate:
			args := append(append([]any(nil), rec.Row...), rec.InternalID)
			err = a.exec(ctx, tx, a.updateStmt, args...)
		case record.TypeDelete:
			err = a.exec(ctx, tx, a.deleteStmt, rec.InternalID)
		default:
			continue
		}
		if err != nil {
			return applied, &ApplyError{
				Table:       a.table,
				PartitionID: unit.PartitionID(),
				RecordIndex: i,
				Err:         ErrApplyFailed,
				Cause:       err,
			}
		}
		applied++
	}
	return applied, nil
}

func (a *applier) exec(ctx context.Context, tx *sql.Tx, stmt string, args ...any) error {
	if a.verbose {
		a.log.Info("applying record", "stmt", stmt, "args", fmt.Sprintf("%v", args))
	}
	_, err := tx.ExecContext(ctx, stmt, args...)
	return err
}
