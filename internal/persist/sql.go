package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaComponentState = `
CREATE TABLE IF NOT EXISTS component_state (
    component TEXT PRIMARY KEY,
    document TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const (
	selectStateSQL = `SELECT document FROM component_state WHERE component = ?`

	upsertStateSQL = `
		INSERT INTO component_state (component, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(component) DO UPDATE SET
			document=excluded.document,
			updated_at=excluded.updated_at
	`
)

// SQLStore keeps component documents in a single SQL table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database. The schema must already exist.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQLite opens/creates a SQLite file and ensures the table exists.
func OpenSQLite(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite is not great with many writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaComponentState); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return NewSQLStore(db), nil
}

// Load reads the component document. A missing row is an empty state.
func (s *SQLStore) Load(ctx context.Context, component string) (State, error) {
	if err := checkComponent(component); err != nil {
		return State{}, err
	}

	var doc string
	err := s.db.QueryRowContext(ctx, selectStateSQL, component).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Empty(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("query state %q: %w", component, err)
	}

	var st State
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return State{}, fmt.Errorf("decode state %q: %w", component, err)
	}
	return st.normalized(), nil
}

// Save upserts the component document.
func (s *SQLStore) Save(ctx context.Context, component string, st State) error {
	if err := checkComponent(component); err != nil {
		return err
	}

	doc, err := json.Marshal(st.normalized())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, upsertStateSQL, component, string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("save state %q: %w", component, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
