package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides access to schedules, sync runs, archives and overrides
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
