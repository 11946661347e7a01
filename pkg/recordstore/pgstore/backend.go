package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the backend uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	loadSnapshotQuery = `SELECT snapshot::text FROM record_snapshots WHERE collection = $1`
	saveSnapshotQuery = `INSERT INTO record_snapshots (collection, snapshot, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (collection) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`
)

// Backend stores one JSONB row per collection. The upsert is a single
// statement, so a snapshot is replaced atomically.
type Backend struct {
	db DB
}

// New wraps a connection pool. Run Migrate first.
func New(db DB) *Backend {
	if db == nil {
		panic(ErrNilDB)
	}
	return &Backend{db: db}
}

func (b *Backend) Load(ctx context.Context, collection string) ([]byte, error) {
	var snapshot string
	if err := b.db.QueryRow(ctx, loadSnapshotQuery, collection).Scan(&snapshot); err != nil {
		if IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(snapshot), nil
}

func (b *Backend) Save(ctx context.Context, collection string, snapshot []byte) error {
	tag, err := b.db.Exec(ctx, saveSnapshotQuery, collection, string(snapshot))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return errors.New("pgstore: snapshot upsert affected no rows")
	}
	return nil
}
