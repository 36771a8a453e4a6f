// Package history persists finished transcripts in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"voice-scribe/internal/domain"
	"voice-scribe/internal/logging"
)

// Store keeps transcript records. A disabled store has no database and
// every operation is a cheap no-op.
type Store struct {
	db    *sql.DB
	limit int
	log   zerolog.Logger
	clock func() time.Time
}

// Open initializes the transcript store at path, creating the parent
// directory and schema as needed. limit caps how many rows are kept;
// zero or negative keeps everything.
func Open(ctx context.Context, path string, limit int) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, limit: limit, log: logging.WithComponent("history"), clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDisabled returns a store that drops everything it is given.
func OpenDisabled() *Store {
	return &Store{log: logging.WithComponent("history"), clock: time.Now}
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcripts (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    tier TEXT NOT NULL,
    took_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_created ON transcripts(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Enabled reports whether transcripts are being persisted.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// Append stores one finished transcript and prunes rows beyond the
// configured limit. Prune failures are logged, not returned.
func (s *Store) Append(ctx context.Context, text string, tier domain.ModelTier, took time.Duration) (domain.TranscriptRecord, error) {
	record := domain.TranscriptRecord{
		ID:        uuid.NewString(),
		Text:      text,
		Tier:      tier,
		TookMs:    took.Milliseconds(),
		CreatedAt: s.clock().UTC(),
	}
	if s.db == nil {
		return record, nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts(id, text, tier, took_ms, created_at) VALUES(?, ?, ?, ?, ?)`,
		record.ID, record.Text, string(record.Tier), record.TookMs,
		record.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return domain.TranscriptRecord{}, fmt.Errorf("insert transcript: %w", err)
	}

	if err := s.prune(ctx); err != nil {
		s.log.Warn().Err(err).Msg("prune transcript history")
	}
	return record, nil
}

// prune drops the oldest rows past the keep limit. Insertion order is
// what rowid preserves, so it orders the cut.
func (s *Store) prune(ctx context.Context) error {
	if s.limit <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM transcripts WHERE id IN (
		    SELECT id FROM transcripts ORDER BY rowid DESC LIMIT -1 OFFSET ?
		)`, s.limit)
	return err
}

// List returns up to limit transcripts, newest first. limit <= 0 asks
// for the default page of 50.
func (s *Store) List(ctx context.Context, limit int) ([]domain.TranscriptRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, tier, took_ms, created_at FROM transcripts ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var records []domain.TranscriptRecord
	for rows.Next() {
		var r domain.TranscriptRecord
		var tier, created string
		if err := rows.Scan(&r.ID, &r.Text, &tier, &r.TookMs, &created); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		r.Tier = domain.ModelTier(tier)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Clear deletes every stored transcript.
func (s *Store) Clear(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcripts`); err != nil {
		return fmt.Errorf("clear transcripts: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
