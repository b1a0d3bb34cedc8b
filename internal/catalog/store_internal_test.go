package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	lastSQL  string
	lastArgs []any
}

func (r *recordingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (r *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.lastSQL = sql
	r.lastArgs = args
	return nil, pgx.ErrNoRows
}

func (r *recordingDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	r.lastSQL = sql
	r.lastArgs = args
	return noRow{}
}

type noRow struct{}

func (noRow) Scan(...any) error { return pgx.ErrNoRows }

func TestGetProductBySlugOnlyMatchesActive(t *testing.T) {
	db := &recordingDB{}
	store := NewStore(db)

	_, err := store.GetProductBySlug(context.Background(), "inferno-drops-200ml")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, db.lastSQL, "AND active")
	require.Equal(t, []any{"inferno-drops-200ml"}, db.lastArgs)
}

func TestGetProductByIDDoesNotFilterActive(t *testing.T) {
	db := &recordingDB{}
	store := NewStore(db)

	_, err := store.GetProductByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
	require.NotContains(t, db.lastSQL, "AND active")
}
