package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const createTable = `create table if not exists processed_messages (
	message_id text primary key,
	seen_at    timestamptz not null default now()
)`

// PostgresStore records ids in a table keyed by message id.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore opens dsn, checks connectivity and creates the table.
func NewPostgresStore(ctx context.Context, dsn string, ttl time.Duration) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	if ttl > 0 && ttl < time.Millisecond {
		return nil, fmt.Errorf("dedup ttl %v is below the 1ms interval resolution", ttl)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create processed_messages: %w", err)
	}
	return &PostgresStore{db: db, ttl: ttl}, nil
}

// MarkIfNew inserts id; an expired row is reclaimed in the same statement.
func (s *PostgresStore) MarkIfNew(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}
	var (
		res sql.Result
		err error
	)
	if s.ttl > 0 {
		res, err = s.db.ExecContext(ctx,
			`insert into processed_messages (message_id, seen_at) values ($1, now())
			 on conflict (message_id) do update set seen_at = now()
			 where processed_messages.seen_at < now() - $2::interval`,
			id, interval(s.ttl))
	} else {
		res, err = s.db.ExecContext(ctx,
			`insert into processed_messages (message_id) values ($1) on conflict (message_id) do nothing`, id)
	}
	if err != nil {
		return false, fmt.Errorf("insert processed message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Prune deletes rows older than the TTL.
func (s *PostgresStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`delete from processed_messages where seen_at < now() - $1::interval`,
		interval(s.ttl))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// interval renders ttl as a postgres interval literal.
func interval(ttl time.Duration) string {
	return fmt.Sprintf("%d milliseconds", ttl.Milliseconds())
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
