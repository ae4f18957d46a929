package hashstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rohmanhakim/crawlkit/pkg/hashutil"
)

/*
Responsibilities
- Keep a cross-run SHA-256 ledger of every body seen
- First-seen semantics: the first writer for a digest owns the row forever
- Map digests back to saved blob paths

Thread safety: a process-wide mutex plus an INSERT OR IGNORE upsert
guarantee first-writer-wins even across goroutines.
*/

const schema = `
CREATE TABLE IF NOT EXISTS content_hashes (
	sha256         TEXT PRIMARY KEY,
	first_seen_url TEXT NOT NULL,
	blob_path      TEXT,
	first_seen_at  TEXT NOT NULL,
	run_id         TEXT
);
CREATE INDEX IF NOT EXISTS idx_first_seen_url ON content_hashes (first_seen_url);
CREATE INDEX IF NOT EXISTS idx_run ON content_hashes (run_id);
`

type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	now     func() time.Time
}

// NewStore opens (creating when needed) the SQLite ledger at dbPath.
// Use ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, *StoreError) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("open %s: %v", dbPath, err),
			Cause:   ErrCauseOpenFailure,
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StoreError{
			Message: fmt.Sprintf("create schema: %v", err),
			Cause:   ErrCauseOpenFailure,
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the ledger digest for a body.
func Hash(body []byte) string {
	return hashutil.SHA256Hex(body)
}

// Record writes the digest with first-seen semantics and reports whether
// this call was the first sighting. An existing row is left unchanged.
func (s *Store) Record(sha256Hex, firstSeenURL, blobPath, runID string) (string, bool, *StoreError) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO content_hashes (sha256, first_seen_url, blob_path, first_seen_at, run_id)
		 VALUES (?, ?, NULLIF(?, ''), ?, NULLIF(?, ''))`,
		sha256Hex, firstSeenURL, blobPath, s.now().UTC().Format(time.RFC3339Nano), runID)
	if err != nil {
		return sha256Hex, false, &StoreError{
			Message: fmt.Sprintf("record %s: %v", sha256Hex, err),
			Cause:   ErrCauseWriteFailure,
		}
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return sha256Hex, false, &StoreError{
			Message: fmt.Sprintf("rows affected for %s: %v", sha256Hex, err),
			Cause:   ErrCauseWriteFailure,
		}
	}
	return sha256Hex, inserted > 0, nil
}

// IsDuplicate reports whether the digest was seen in any run sharing this
// store.
func (s *Store) IsDuplicate(sha256Hex string) (bool, *StoreError) {
	row := s.db.QueryRow(`SELECT 1 FROM content_hashes WHERE sha256 = ?`, sha256Hex)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{
			Message: fmt.Sprintf("lookup %s: %v", sha256Hex, err),
			Cause:   ErrCauseQueryFailure,
		}
	}
	return true, nil
}

// LookupBlobPath returns the saved blob path for a digest, when one was
// recorded.
func (s *Store) LookupBlobPath(sha256Hex string) (string, bool, *StoreError) {
	row := s.db.QueryRow(`SELECT blob_path FROM content_hashes WHERE sha256 = ?`, sha256Hex)
	var blobPath sql.NullString
	err := row.Scan(&blobPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{
			Message: fmt.Sprintf("lookup blob for %s: %v", sha256Hex, err),
			Cause:   ErrCauseQueryFailure,
		}
	}
	return blobPath.String, blobPath.Valid && blobPath.String != "", nil
}

// Lookup returns the full row for a digest.
func (s *Store) Lookup(sha256Hex string) (Record, bool, *StoreError) {
	row := s.db.QueryRow(
		`SELECT sha256, first_seen_url, blob_path, first_seen_at, run_id
		 FROM content_hashes WHERE sha256 = ?`, sha256Hex)

	var rec Record
	var blobPath, runID sql.NullString
	var firstSeenAt string
	err := row.Scan(&rec.SHA256Hex, &rec.FirstSeenURL, &blobPath, &firstSeenAt, &runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, &StoreError{
			Message: fmt.Sprintf("lookup %s: %v", sha256Hex, err),
			Cause:   ErrCauseQueryFailure,
		}
	}
	rec.BlobPath = blobPath.String
	rec.RunID = runID.String
	if parsed, parseErr := time.Parse(time.RFC3339Nano, firstSeenAt); parseErr == nil {
		rec.FirstSeenAt = parsed
	}
	return rec, true, nil
}
