package attempts

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
)

// Record is the failure history of one document.
type Record struct {
	DocumentID    int64     `json:"documentId"`
	Title         string    `json:"title"`
	Failures      int       `json:"failures"`
	LastError     string    `json:"lastError"`
	ErrorKind     string    `json:"errorKind"`
	FirstFailedAt time.Time `json:"firstFailedAt"`
	LastFailedAt  time.Time `json:"lastFailedAt"`
}

// Failure describes one failed conversion attempt.
type Failure struct {
	DocumentID int64
	Title      string
	Message    string
	Kind       string
	At         time.Time
}

// Store persists attempt records backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the attempts database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("attempts database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create attempts directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// RecordFailure increments the failure count for a document and returns the
// updated record.
func (s *Store) RecordFailure(ctx context.Context, f Failure) (Record, error) {
	if f.DocumentID <= 0 {
		return Record{}, fmt.Errorf("record failure: invalid document id %d", f.DocumentID)
	}
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	timestamp := at.UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO document_attempts (document_id, title, failures, last_error, error_kind, first_failed_at, last_failed_at)
        VALUES (?, ?, 1, ?, ?, ?, ?)
        ON CONFLICT(document_id) DO UPDATE SET
            title = CASE WHEN excluded.title != '' THEN excluded.title ELSE document_attempts.title END,
            failures = document_attempts.failures + 1,
            last_error = excluded.last_error,
            error_kind = excluded.error_kind,
            last_failed_at = excluded.last_failed_at`,
		f.DocumentID, strings.TrimSpace(f.Title), f.Message, f.Kind, timestamp, timestamp,
	)
	if err != nil {
		return Record{}, fmt.Errorf("record failure for document %d: %w", f.DocumentID, err)
	}

	rec, ok, err := s.Get(ctx, f.DocumentID)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("record failure for document %d: row missing after upsert", f.DocumentID)
	}
	return rec, nil
}

// RecordSuccess forgets the failure history of a document.
func (s *Store) RecordSuccess(ctx context.Context, documentID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM document_attempts WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("record success for document %d: %w", documentID, err)
	}
	return nil
}

// Get returns the record for a document, if any.
func (s *Store) Get(ctx context.Context, documentID int64) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE document_id = ?", documentID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get attempts for document %d: %w", documentID, err)
	}
	return rec, true, nil
}

// List returns every record, most recently failed first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY last_failed_at DESC, document_id")
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return records, nil
}

// Reset deletes the records for the given documents, or every record when no
// IDs are supplied. It returns the number of records removed.
func (s *Store) Reset(ctx context.Context, documentIDs ...int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if len(documentIDs) == 0 {
		res, err = s.db.ExecContext(ctx, "DELETE FROM document_attempts")
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",")
		args := make([]any, 0, len(documentIDs))
		for _, id := range documentIDs {
			args = append(args, id)
		}
		res, err = s.db.ExecContext(ctx, "DELETE FROM document_attempts WHERE document_id IN ("+placeholders+")", args...)
	}
	if err != nil {
		return 0, fmt.Errorf("reset attempts: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset attempts: %w", err)
	}
	return removed, nil
}

const selectColumns = `SELECT document_id, title, failures, last_error, error_kind, first_failed_at, last_failed_at FROM document_attempts`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec         Record
		first, last string
	)
	if err := row.Scan(&rec.DocumentID, &rec.Title, &rec.Failures, &rec.LastError, &rec.ErrorKind, &first, &last); err != nil {
		return Record{}, err
	}
	rec.FirstFailedAt = parseTime(first)
	rec.LastFailedAt = parseTime(last)
	return rec, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
