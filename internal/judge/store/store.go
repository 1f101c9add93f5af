// Package store persists submissions, experiments and users in MySQL.
package store

import (
	"database/sql"
)

// Store wraps the shared database handle.
type Store struct {
	db *sql.DB
}

// New creates a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}
