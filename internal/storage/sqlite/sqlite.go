package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/decipher/internal/storage"
	"github.com/michaelbrown/decipher/internal/trace"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// timeLayout has a fixed-width fraction so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const entryColumns = `id, user_id, code, language, inputs, outcome, error, step_count, created_at`

func (s *SQLiteStore) SaveEntry(ctx context.Context, e *storage.Entry, tr *trace.Trace) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Language == "" {
		e.Language = "python"
	}
	if e.Inputs == nil {
		e.Inputs = []string{}
	}
	inputs, err := json.Marshal(e.Inputs)
	if err != nil {
		return fmt.Errorf("marshaling inputs: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Code, e.Language, string(inputs), e.Outcome, e.Error, e.StepCount,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	if tr != nil {
		data, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("marshaling trace: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entry_traces (entry_id, trace) VALUES (?, ?)`,
			e.ID, string(data),
		); err != nil {
			return fmt.Errorf("inserting trace: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*storage.Entry, error) {
	// Try exact match first, then prefix match
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous entry prefix %q", id)
	}
}

func (s *SQLiteStore) ListEntries(ctx context.Context, userID string, opts storage.ListOptions) ([]storage.Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	entries := []storage.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) LoadTrace(ctx context.Context, id string) (*trace.Trace, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT trace FROM entry_traces WHERE entry_id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading trace: %w", err)
	}

	var tr trace.Trace
	if err := json.Unmarshal([]byte(data), &tr); err != nil {
		return nil, fmt.Errorf("unmarshaling trace: %w", err)
	}
	return &tr, nil
}

func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, e.ID)
	return err
}

func (s *SQLiteStore) ClearUser(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*storage.Entry, error) {
	var e storage.Entry
	var inputs, createdAt string
	err := s.Scan(&e.ID, &e.UserID, &e.Code, &e.Language, &inputs,
		&e.Outcome, &e.Error, &e.StepCount, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(inputs), &e.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshaling inputs: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &e, nil
}
