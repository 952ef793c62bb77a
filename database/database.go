package database

import (
	"context"
	"database/sql"

	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// itemFunc writes a single batch item inside the open transaction.
type itemFunc func(ctx context.Context, tx *sql.Tx, index int) (model.WriteOutcome, error)

// runBatch executes one transaction for the whole batch and one savepoint per
// item. A failing item is rolled back to its savepoint and reported in its
// outcome. If the datastore becomes unavailable the whole batch is rolled back
// and an error is returned.
func runBatch(ctx context.Context, db *helper.Database, operation string, size int, write itemFunc) ([]model.WriteOutcome, error) {
	outcomes := make([]model.WriteOutcome, size)
	if size == 0 {
		return outcomes, nil
	}

	tx, err := db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.ClassifyError(operation+" begin", err)
	}
	defer tx.Rollback()

	for i := 0; i < size; i++ {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT batch_item`); err != nil {
			return nil, helper.ClassifyError(operation+" savepoint", err)
		}

		outcome, err := write(ctx, tx, i)
		if err != nil {
			if helper.IsUnavailable(err) || ctx.Err() != nil {
				return nil, helper.ClassifyError(operation, err)
			}
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT batch_item`); rbErr != nil {
				return nil, helper.ClassifyError(operation+" rollback to savepoint", rbErr)
			}
			db.Logger.Warn("Batch item failed", "operation", operation, "index", i, "error", err)
			outcomes[i] = model.WriteOutcome{Status: model.WriteStatusFailed, Err: helper.NewError(operation, err)}
			continue
		}

		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT batch_item`); err != nil {
			return nil, helper.ClassifyError(operation+" release savepoint", err)
		}
		outcomes[i] = outcome
	}

	if err := tx.Commit(); err != nil {
		return nil, helper.ClassifyError(operation+" commit", err)
	}

	return outcomes, nil
}
