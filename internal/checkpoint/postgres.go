package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps the checkpoint document in a single Postgres row, for
// deployments where a shared database is preferable to a local file.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	_, err := pool.Exec(ctx, `
		create table if not exists checkpoints (
			id text primary key,
			doc jsonb not null,
			updated_at timestamptz not null
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("ensure checkpoints table: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Load(ctx context.Context) (*State, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, "select doc from checkpoints where id = 'state'").Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var st State
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &st, nil
}

func (s *PGStore) Save(ctx context.Context, st *State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		insert into checkpoints (id, doc, updated_at) values ('state', $1, $2)
		on conflict (id) do update set doc = excluded.doc, updated_at = excluded.updated_at
	`, doc, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
