// Package store persists finished session history in a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parlo-dev/parlo/internal/translate"
)

// ErrNotFound means no history entry exists for the requested ID.
var ErrNotFound = errors.New("history entry not found")

// Entry is one persisted session: recording metadata, the assembled
// transcript, and its ordered segments.
type Entry struct {
	ID             string
	Transcript     string
	MIMEType       string
	DurationMS     int64
	SizeBytes      int64
	SourceLanguage string
	TargetLanguage string
	DeviceLost     bool
	CreatedAt      time.Time
	Segments       []translate.Segment
}

// Store provides read/write access to the parlo history database.
type Store struct {
	db *sql.DB
}

// DefaultPath resolves the per-user history database location.
func DefaultPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "parlo", "history.sqlite"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for data: %w", err)
	}
	return filepath.Join(home, ".local", "share", "parlo", "history.sqlite"), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id              TEXT PRIMARY KEY,
	transcript      TEXT NOT NULL,
	mime_type       TEXT NOT NULL,
	duration_ms     INTEGER NOT NULL,
	size_bytes      INTEGER NOT NULL,
	source_language TEXT NOT NULL DEFAULT '',
	target_language TEXT NOT NULL DEFAULT '',
	device_lost     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS segments (
	recording_id    TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	idx             INTEGER NOT NULL,
	text            TEXT NOT NULL,
	translated_text TEXT NOT NULL DEFAULT '',
	start_ms        INTEGER NOT NULL,
	end_ms          INTEGER NOT NULL,
	source_language TEXT NOT NULL DEFAULT '',
	target_language TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (recording_id, idx)
);
CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at DESC);
`

// Open opens (creating if needed) the history database with WAL journaling
// and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	// _pragma is the modernc driver's per-connection pragma syntax, so the
	// settings apply to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one entry and its segments in a single transaction.
func (s *Store) Save(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("entry ID is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings (id, transcript, mime_type, duration_ms, size_bytes,
			source_language, target_language, device_lost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Transcript, entry.MIMEType, entry.DurationMS, entry.SizeBytes,
		entry.SourceLanguage, entry.TargetLanguage, boolToInt(entry.DeviceLost),
		entry.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}

	for _, segment := range entry.Segments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO segments (recording_id, idx, text, translated_text,
				start_ms, end_ms, source_language, target_language)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, segment.Index, segment.Text, segment.TranslatedText,
			segment.StartMS, segment.EndMS, segment.SourceLanguage, segment.TargetLanguage)
		if err != nil {
			return fmt.Errorf("insert segment %d: %w", segment.Index, err)
		}
	}

	return tx.Commit()
}

// List returns the newest entries without their segments, limit <= 0 meaning
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, transcript, mime_type, duration_ms, size_bytes,
			source_language, target_language, device_lost, created_at
		FROM recordings
		ORDER BY created_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns one entry with its segments in index order.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, transcript, mime_type, duration_ms, size_bytes,
			source_language, target_language, device_lost, created_at
		FROM recordings
		WHERE id = ?
	`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Entry{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, text, translated_text, start_ms, end_ms, source_language, target_language
		FROM segments
		WHERE recording_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return Entry{}, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var segment translate.Segment
		if err := rows.Scan(&segment.Index, &segment.Text, &segment.TranslatedText,
			&segment.StartMS, &segment.EndMS, &segment.SourceLanguage, &segment.TargetLanguage); err != nil {
			return Entry{}, fmt.Errorf("scan segment: %w", err)
		}
		entry.Segments = append(entry.Segments, segment)
	}
	return entry, rows.Err()
}

// Delete removes one entry and, via cascade, its segments.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var deviceLost int
	var createdAt int64
	err := row.Scan(&entry.ID, &entry.Transcript, &entry.MIMEType,
		&entry.DurationMS, &entry.SizeBytes, &entry.SourceLanguage,
		&entry.TargetLanguage, &deviceLost, &createdAt)
	if err != nil {
		return Entry{}, err
	}
	entry.DeviceLost = deviceLost != 0
	entry.CreatedAt = time.Unix(createdAt, 0)
	return entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
