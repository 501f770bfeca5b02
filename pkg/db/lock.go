package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to the query on engines that support it. SQLite
// serializes writers on its own, so the clause is omitted there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if !supportsRowLocks(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// ForUpdateSkipLocked is ForUpdate for work queues: rows locked by another
// worker are skipped instead of waited on.
func ForUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	if !supportsRowLocks(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
}

func supportsRowLocks(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return true
	default:
		return false
	}
}
