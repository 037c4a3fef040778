package monitor

import (
	"context"

	"monitor-concorrentes/internal/database"
)

// dbStore adapta *database.DB para Store
type dbStore struct {
	*database.DB
}

// NewStore usa o banco SQLite como Store
func NewStore(db *database.DB) Store {
	return dbStore{DB: db}
}

func (s dbStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.WithTx(ctx, func(tx *database.Tx) error {
		return fn(tx)
	})
}
