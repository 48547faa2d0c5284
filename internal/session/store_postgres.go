package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const pgSchemaVersion = 1

// PostgresStore keeps the in-memory store authoritative and mirrors every
// mutation to a row per session. Persistence is best-effort per the service's
// durability posture: a failed write is logged, never surfaced to the user.
type PostgresStore struct {
	*MemoryStore
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	ps := &PostgresStore{MemoryStore: NewMemoryStore(), pool: pool}

	sessions, err := ps.loadAll(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	ps.seed(sessions)

	ps.onMutate = func(s *Session) { ps.saveSession(s) }
	ps.onEvict = func(ids []int64) { ps.deleteSessions(ids) }
	return ps, nil
}

func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS relay_sessions (
			user_id BIGINT PRIMARY KEY,
			authenticated BOOLEAN NOT NULL DEFAULT FALSE,
			provider TEXT NOT NULL DEFAULT '',
			credential TEXT NOT NULL DEFAULT '',
			history JSONB NOT NULL DEFAULT '[]',
			last_activity_at TIMESTAMPTZ NOT NULL,
			schema_version INT NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_relay_sessions_last_activity ON relay_sessions (last_activity_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (ps *PostgresStore) loadAll(ctx context.Context) ([]*Session, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT user_id, authenticated, provider, credential, history, last_activity_at
		 FROM relay_sessions WHERE schema_version=$1`, pgSchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var (
			s       Session
			history []byte
		)
		if err := rows.Scan(&s.UserID, &s.Authenticated, &s.Provider, &s.Credential, &history, &s.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if err := json.Unmarshal(history, &s.History); err != nil {
			log.Warn().Err(err).Int64("user_id", s.UserID).Msg("unreadable persisted history, dropping it")
			s.History = nil
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (ps *PostgresStore) saveSession(s *Session) {
	history, err := json.Marshal(s.History)
	if err != nil {
		log.Error().Err(err).Int64("user_id", s.UserID).Msg("marshal history")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = ps.pool.Exec(ctx,
		`INSERT INTO relay_sessions (user_id, authenticated, provider, credential, history, last_activity_at, schema_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
			authenticated=EXCLUDED.authenticated,
			provider=EXCLUDED.provider,
			credential=EXCLUDED.credential,
			history=EXCLUDED.history,
			last_activity_at=EXCLUDED.last_activity_at,
			schema_version=EXCLUDED.schema_version`,
		s.UserID, s.Authenticated, s.Provider, s.Credential, history, s.LastActivityAt, pgSchemaVersion)
	if err != nil {
		log.Error().Err(err).Int64("user_id", s.UserID).Msg("persist session")
	}
}

func (ps *PostgresStore) deleteSessions(ids []int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := ps.pool.Exec(ctx, `DELETE FROM relay_sessions WHERE user_id = ANY($1)`, ids); err != nil {
		log.Error().Err(err).Int("count", len(ids)).Msg("delete evicted sessions")
	}
}
