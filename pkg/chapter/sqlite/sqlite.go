// Package sqlite provides a SQLite-backed chapter log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

// Log implements chapter.Log and chapter.Writer on a SQLite database.
type Log struct {
	db *sql.DB
}

// NewLog opens (and migrates) a chapter log at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewLog(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return l, nil
}

// migrate creates the chapters table if it doesn't exist. chapter_number is
// not unique: rewrites of a chapter are stored side by side.
func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chapters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chapter_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		plot_point TEXT NOT NULL DEFAULT '',
		key_events TEXT NOT NULL DEFAULT '',
		character_focus TEXT NOT NULL DEFAULT '',
		setting TEXT NOT NULL DEFAULT '',
		mood TEXT NOT NULL DEFAULT '',
		themes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chapters_number ON chapters(chapter_number);
	`

	_, err := l.db.Exec(schema)
	return err
}

const selectColumns = `chapter_number, title, summary, plot_point, key_events,
	character_focus, setting, mood, themes`

// AddChapter appends a record.
func (l *Log) AddChapter(ctx context.Context, r chapter.Record) error {
	query := `INSERT INTO chapters (chapter_number, title, summary, plot_point, key_events,
		character_focus, setting, mood, themes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.ExecContext(ctx, query,
		r.Number, r.Title, r.Summary, r.PlotPoint, r.KeyEvents,
		r.CharacterFocus, r.Setting, r.Mood, r.Themes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chapter %d: %w", r.Number, err)
	}
	return nil
}

// GetChapter returns the first stored record for number.
func (l *Log) GetChapter(ctx context.Context, number int) (*chapter.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM chapters WHERE chapter_number = ? ORDER BY id LIMIT 1`

	row := l.db.QueryRowContext(ctx, query, number)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", chapter.ErrNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ChaptersByNumber returns every record stored under number in insertion order.
func (l *Log) ChaptersByNumber(ctx context.Context, number int) ([]chapter.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM chapters WHERE chapter_number = ? ORDER BY id`

	rows, err := l.db.QueryContext(ctx, query, number)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// AllChapters returns every record ascending by number, insertion order kept
// within a number.
func (l *Log) AllChapters(ctx context.Context) ([]chapter.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM chapters ORDER BY chapter_number, id`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (chapter.Record, error) {
	var r chapter.Record
	err := s.Scan(
		&r.Number, &r.Title, &r.Summary, &r.PlotPoint, &r.KeyEvents,
		&r.CharacterFocus, &r.Setting, &r.Mood, &r.Themes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan chapter: %w", err)
	}
	return r, nil
}

func scanRecords(rows *sql.Rows) ([]chapter.Record, error) {
	var out []chapter.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapters: %w", err)
	}
	return out, nil
}
