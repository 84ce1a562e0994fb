// Package transcript archives conversations in SQLite. Restricted posts
// (Response.Locked) are never written.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"brobbot/internal/bus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Entry is one archived line.
type Entry struct {
	ID        int64
	Direction string // DirectionIn or DirectionOut
	Adapter   string
	Room      string
	UserID    string
	UserName  string
	Kind      string // "message" for inbound; the verb for outbound
	Text      string
	CreatedAt time.Time
}

// Store is the SQLite-backed transcript.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database at dbPath if needed and applies migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (direction, adapter, room, user_id, user_name, kind, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Direction, e.Adapter, e.Room, e.UserID, e.UserName, e.Kind, e.Text, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// Recent returns the last limit entries for room, oldest first.
func (s *Store) Recent(ctx context.Context, room string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, direction, adapter, room, user_id, user_name, kind, text, created_at
		 FROM (SELECT * FROM transcript WHERE room = ? ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, room, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Direction, &e.Adapter, &e.Room, &e.UserID, &e.UserName, &e.Kind, &e.Text, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcript WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune transcript: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("transcript pruned", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// Subscribe archives every inbound message announced on events until the
// returned func is called.
func (s *Store) Subscribe(events *bus.EventBus) (unsubscribe func()) {
	id := events.On(bus.EventMessageReceived, func(ev bus.Event) {
		m := ev.Message
		if m == nil {
			return
		}
		err := s.Append(context.Background(), Entry{
			Direction: DirectionIn,
			Adapter:   m.Adapter,
			Room:      m.Room,
			UserID:    m.User.ID,
			UserName:  m.User.Name,
			Kind:      "message",
			Text:      m.Text,
			CreatedAt: m.Timestamp,
		})
		if err != nil {
			s.logger.Error("transcript inbound write failed", "room", m.Room, "err", err)
		}
	})
	return func() { events.Off(bus.EventMessageReceived, id) }
}

func (s *Store) Close() error {
	return s.db.Close()
}
