package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// AuthState is one persisted key-value row.
type AuthState struct {
	bun.BaseModel `bun:"table:auth_state,alias:st"`

	Key       string    `bun:"key,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Bun is a durable key-value store over a single sqlite table.
type Bun struct {
	db *bun.DB
}

// NewBun wraps an existing bun handle. Call Init before first use.
func NewBun(db *bun.DB) *Bun {
	return &Bun{db: db}
}

// OpenSQLite opens (or creates) a sqlite database at dsn and returns a
// ready store. Use "file::memory:?cache=shared" for an in-memory database.
func OpenSQLite(ctx context.Context, dsn string) (*Bun, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to open sqlite database")
	}

	s := NewBun(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init creates the backing table if it does not exist.
func (s *Bun) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*AuthState)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create auth_state table")
	}
	return nil
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *Bun) Get(ctx context.Context, key string) ([]byte, error) {
	state := &AuthState{}
	err := s.db.NewSelect().
		Model(state).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to read auth state")
	}
	return state.Value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Bun) Set(ctx context.Context, key string, value []byte) error {
	state := &AuthState{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(state).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to write auth state")
	}
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *Bun) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*AuthState)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to delete auth state")
	}
	return nil
}

// DB exposes the underlying handle for callers that share the connection.
func (s *Bun) DB() *bun.DB {
	return s.db
}
