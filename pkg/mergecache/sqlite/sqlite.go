// Package sqlite provides a SQLite-backed merge cache store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

// Store implements mergecache.Store on the merge_summaries table.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) a store at dbPath. The dbPath can be a file
// path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS merge_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		current_chapter INTEGER NOT NULL,
		merge_factor INTEGER NOT NULL,
		summary_content TEXT NOT NULL,
		summary_length INTEGER NOT NULL,
		merge_levels INTEGER NOT NULL,
		ai_generated_titles TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		UNIQUE(current_chapter, merge_factor)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save replaces any existing row for the entry's key.
func (s *Store) Save(ctx context.Context, entry *mergecache.Entry) error {
	titles, err := json.Marshal(entry.Titles)
	if err != nil {
		return fmt.Errorf("failed to marshal titles: %w", err)
	}

	query := `INSERT OR REPLACE INTO merge_summaries
		(current_chapter, merge_factor, summary_content, summary_length, merge_levels, ai_generated_titles, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		entry.Observation,
		entry.MergeFactor,
		entry.Text,
		entry.TextLength,
		entry.LayerCount,
		string(titles),
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save merge summary: %w", err)
	}

	return nil
}

const selectColumns = `SELECT current_chapter, merge_factor, summary_content, summary_length,
	merge_levels, ai_generated_titles, created_at FROM merge_summaries`

func (s *Store) Load(ctx context.Context, key mergecache.Key) (*mergecache.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE current_chapter = ? AND merge_factor = ?`,
		key.Observation, key.MergeFactor,
	)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mergecache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) Delete(ctx context.Context, key mergecache.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM merge_summaries WHERE current_chapter = ? AND merge_factor = ?`,
		key.Observation, key.MergeFactor,
	)
	if err != nil {
		return fmt.Errorf("failed to delete merge summary: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*mergecache.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY current_chapter, merge_factor`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge summaries: %w", err)
	}
	defer rows.Close()

	var entries []*mergecache.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate merge summaries: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*mergecache.Entry, error) {
	var (
		entry     mergecache.Entry
		titles    string
		createdAt time.Time
	)

	err := row.Scan(
		&entry.Observation,
		&entry.MergeFactor,
		&entry.Text,
		&entry.TextLength,
		&entry.LayerCount,
		&titles,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan merge summary: %w", err)
	}

	if err := json.Unmarshal([]byte(titles), &entry.Titles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal titles: %w", err)
	}
	entry.CreatedAt = createdAt.UTC()

	return &entry, nil
}
