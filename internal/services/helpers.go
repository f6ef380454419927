package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const writeRetryBudget = 3

// withWriteRetry runs fn inside a transaction, retrying transient write
// conflicts up to the retry budget before surfacing ErrStorageUnavailable.
// Business errors returned by fn pass through untouched.
func withWriteRetry(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < writeRetryBudget; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableWriteError(err) {
			return err
		}
	}
	return fmt.Errorf("%w: retry budget exhausted: %v", ErrStorageUnavailable, err)
}

// lockForUpdate applies a pessimistic row lock on engines that support it.
// SQLite serialises writers on its own and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
