package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tyrowin/chatroom/internal/chat"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id       BIGSERIAL PRIMARY KEY,
	username TEXT        NOT NULL,
	text     TEXT        NOT NULL,
	time     TIMESTAMPTZ NOT NULL
)`

// PostgresStore is a chat.MessageStore backed by a PostgreSQL table.
type PostgresStore struct {
	mu    sync.Mutex
	pool  *pgxpool.Pool
	stamp *stamper
	log   *slog.Logger
}

// OpenPostgres connects to the database at url, verifies the connection and
// creates the messages table when missing.
func OpenPostgres(ctx context.Context, url string, log *slog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewPostgresStore(pool, log)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool. Call Migrate before first use.
func NewPostgresStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, stamp: newStamper(), log: log}
}

// Migrate creates the messages table and seeds the timestamp source from the
// newest stored message.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createMessagesTable); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	var last *time.Time
	err := s.pool.QueryRow(ctx, `SELECT max(time) FROM messages`).Scan(&last)
	if err != nil {
		return fmt.Errorf("read last message time: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last != nil {
		s.stamp.seed(*last)
	}
	return nil
}

// Append implements chat.MessageStore.
func (s *PostgresStore) Append(ctx context.Context, username, text string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// timestamptz keeps microseconds; truncating keeps the returned value
	// identical to what ListAll reads back.
	at := s.stamp.next().Truncate(time.Microsecond)

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (username, text, time) VALUES ($1, $2, $3) RETURNING id`,
		username, text, at,
	).Scan(&id)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, err)
	}

	s.log.Debug("Message stored", "id", id, "username", username)
	return chat.Message{ID: uint64(id), Username: username, Text: text, Time: at}, nil
}

// ListAll implements chat.MessageStore.
func (s *PostgresStore) ListAll(ctx context.Context) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, text, time FROM messages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Message, error) {
		var (
			m  chat.Message
			id int64
		)
		if err := row.Scan(&id, &m.Username, &m.Text, &m.Time); err != nil {
			return chat.Message{}, err
		}
		m.ID = uint64(id)
		m.Time = m.Time.UTC()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, err)
	}
	return messages, nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
