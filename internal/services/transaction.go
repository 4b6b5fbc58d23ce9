package services

import "gorm.io/gorm"

// txRunner runs fn atomically. Services hold one so tests can run without a database.
type txRunner func(db *gorm.DB, fn func(tx *gorm.DB) error) error

func runInTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}
