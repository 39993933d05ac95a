// Package postgres persists sessions and transcripts in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/overhear-ai/overhear/pkg/core/convo"
	"github.com/overhear-ai/overhear/pkg/core/live"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements live.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return goose.Up(db, "migrations")
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateSession inserts a new active session and returns its ID.
func (s *Store) CreateSession(ctx context.Context, ownerID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (owner_id) VALUES ($1) RETURNING id`,
		ownerID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// EndSession marks the session as ended.
func (s *Store) EndSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET ended_at = now(), status = 'ended' WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("end session: no active session %s", id)
	}
	return nil
}

// AddTranscript appends one committed turn to the session.
func (s *Store) AddTranscript(ctx context.Context, t live.Transcript) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (session_id, speaker, text, spoken_at) VALUES ($1, $2, $3, $4)`,
		t.SessionID, t.Speaker.String(), t.Text, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("add transcript: %w", err)
	}
	return nil
}

// Transcripts returns all turns of a session in spoken order.
func (s *Store) Transcripts(ctx context.Context, sessionID string) ([]live.Transcript, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, speaker, text, spoken_at
		 FROM transcripts
		 WHERE session_id = $1
		 ORDER BY spoken_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []live.Transcript
	for rows.Next() {
		var t live.Transcript
		var speaker string
		var spokenAt time.Time
		if err := rows.Scan(&t.SessionID, &speaker, &t.Text, &spokenAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		t.Speaker = channelFromString(speaker)
		t.Timestamp = spokenAt
		out = append(out, t)
	}
	return out, rows.Err()
}

// SessionInfo is one row of the sessions table.
type SessionInfo struct {
	ID        string
	OwnerID   string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    string
}

// LatestSession returns the most recent session for the owner, or nil when
// the owner has none.
func (s *Store) LatestSession(ctx context.Context, ownerID string) (*SessionInfo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, started_at, ended_at, status
		 FROM sessions
		 WHERE owner_id = $1
		 ORDER BY started_at DESC
		 LIMIT 1`,
		ownerID,
	)

	var info SessionInfo
	if err := row.Scan(&info.ID, &info.OwnerID, &info.StartedAt, &info.EndedAt, &info.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &info, nil
}

func channelFromString(s string) convo.Channel {
	if s == convo.Them.String() {
		return convo.Them
	}
	return convo.Me
}
