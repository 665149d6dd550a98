package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/mercury-council/api/internal/repository"
)

// Store implements repository.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunInTx runs fn inside a single transaction. Any error from fn rolls
// the transaction back.
func (s *Store) RunInTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tx implements repository.Tx on a sql.Tx.
type Tx struct {
	tx *sql.Tx
}
