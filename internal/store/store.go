package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workshop-agenda/internal/model"
)

// EventsChannel is the NOTIFY channel every event write publishes on.
const EventsChannel = "agenda_events"

var ErrNotFound = model.ErrNotFound

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded schema files in name order. They are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// Notice is the payload carried by EventsChannel.
type Notice struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// delivered to listeners on commit, so it must run inside the writing tx
func notify(ctx context.Context, tx pgx.Tx, op, id string) error {
	b, err := json.Marshal(Notice{Op: op, ID: id})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, EventsChannel, string(b))
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
