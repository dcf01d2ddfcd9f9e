// Package history stores evaluated sources and their outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("sabri.history")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store is closed")

// Entry is one evaluation. Error is empty when the evaluation succeeded.
type Entry struct {
	ID        int64
	Session   string
	Source    string
	Result    string
	Error     string
	CreatedAt time.Time
}

// Failed reports whether the evaluation failed.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Store handles SQLite storage for evaluation history.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Open opens or creates the history database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		source TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`)
	if err == nil {
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS entries_session ON entries (session, id)`)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened history at %s", path)
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record appends an entry and returns its ID. A zero CreatedAt is set to
// the current time.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO entries (session, source, result, error, created_at) VALUES (?, ?, ?, ?, ?)",
		e.Session, e.Source, e.Result, e.Error, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording entry: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the last n entries across all sessions, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT * FROM (
			SELECT id, session, source, result, error, created_at
			FROM entries ORDER BY id DESC LIMIT ?
		) ORDER BY id`, n)
}

// Session returns every entry of one session, oldest first.
func (s *Store) Session(ctx context.Context, session string) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, session, source, result, error, created_at
		FROM entries WHERE session = ? ORDER BY id`, session)
}

// Sources returns the sources of the last n entries, oldest first, with
// consecutive repeats collapsed.
func (s *Store) Sources(ctx context.Context, n int) ([]string, error) {
	entries, err := s.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	var sources []string
	for i, e := range entries {
		if i > 0 && entries[i-1].Source == e.Source {
			continue
		}
		sources = append(sources, e.Source)
	}
	return sources, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Session, &e.Source, &e.Result, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
