package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/brobarber/brobot/internal/config"
)

// SQLStore is a ConversationStore backed by database/sql. It works against
// SQLite (default, single-node) and Postgres (managed deployments); the
// placeholder style is the only dialect difference in the queries it runs.
type SQLStore struct {
	db     *sql.DB
	rebind func(string) string
}

// Open builds the store selected by cfg. SQLite databases are created and
// migrated on open; Postgres schemas are managed by the migrate command.
func Open(cfg config.DatabaseConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return openSQLite(config.ExpandHome(cfg.SQLitePath))
	case "postgres":
		return openPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func openSQLite(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// modernc sqlite is single-writer; more connections just contend.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db, rebind: func(q string) string { return q }}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openPostgres(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres driver selected but BROBOT_POSTGRES_DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &SQLStore{db: db, rebind: rebindDollar}, nil
}

// rebindDollar rewrites ? placeholders to $1..$n for Postgres.
func rebindDollar(query string) string {
	var out []byte
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	greeted INTEGER NOT NULL DEFAULT 0,
	funnel_state TEXT NOT NULL DEFAULT 'new',
	updated_at TIMESTAMP NOT NULL
);`

func (s *SQLStore) ensureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`),
		uuid.Must(uuid.NewV7()).String(), conversationID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

func (s *SQLStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}

	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLStore) AllMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return s.RecentMessages(ctx, conversationID, 0)
}

func (s *SQLStore) Flags(ctx context.Context, conversationID string) (Flags, error) {
	var f Flags
	var greeted int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT greeted, funnel_state FROM conversations WHERE id = ?`), conversationID).
		Scan(&greeted, &f.FunnelState)
	if err == sql.ErrNoRows {
		return Flags{FunnelState: FunnelNew}, nil
	}
	if err != nil {
		return Flags{}, fmt.Errorf("store: query flags: %w", err)
	}
	f.Greeted = greeted != 0
	return f, nil
}

func (s *SQLStore) SetFlags(ctx context.Context, conversationID string, flags Flags) error {
	greeted := 0
	if flags.Greeted {
		greeted = 1
	}
	// The upsert form is shared: both SQLite and Postgres accept
	// ON CONFLICT ... DO UPDATE with the excluded pseudo-table.
	query := `INSERT INTO conversations (id, greeted, funnel_state, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET greeted = excluded.greeted,
		funnel_state = excluded.funnel_state, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		conversationID, greeted, flags.FunnelState, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: set flags: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
