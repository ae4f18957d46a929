package incremental

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
- Persist per-URL validators (ETag, Last-Modified) and content hash across runs
- Decide whether a URL needs re-crawling
- Produce conditional request headers from stored validators

Keyed by canonical URL. Reads are lock-free through database/sql; writes
are serialized by a process-wide mutex (single-writer-per-key is implied by
single-writer-overall, which is plenty at crawl write rates).
*/

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	url           TEXT PRIMARY KEY,
	etag          TEXT,
	last_modified TEXT,
	content_hash  TEXT,
	last_crawled  TEXT NOT NULL,
	crawl_count   INTEGER NOT NULL DEFAULT 0
);
`

type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	now     func() time.Time
}

// NewStore opens (creating when needed) the SQLite-backed page state at
// dbPath. Use ":memory:" for an ephemeral store.
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

// Lookup reads the record for a canonical URL.
func (s *Store) Lookup(url string) (Record, bool, *StoreError) {
	row := s.db.QueryRow(
		`SELECT url, etag, last_modified, content_hash, last_crawled, crawl_count
		 FROM pages WHERE url = ?`, url)

	var rec Record
	var etag, lastModified, contentHash sql.NullString
	var lastCrawled string
	err := row.Scan(&rec.URL, &etag, &lastModified, &contentHash, &lastCrawled, &rec.CrawlCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, &StoreError{
			Message: fmt.Sprintf("lookup %s: %v", url, err),
			Cause:   ErrCauseQueryFailure,
		}
	}
	rec.ETag = etag.String
	rec.LastModified = lastModified.String
	rec.ContentHash = contentHash.String
	if parsed, parseErr := time.Parse(time.RFC3339Nano, lastCrawled); parseErr == nil {
		rec.LastCrawled = parsed
	}
	return rec, true, nil
}

// ShouldCrawl decides whether a URL needs fetching.
// Verdicts: unknown URL → (true, new); forced → (true, forced); a record
// older than MaxAge → (true, expired); within MaxAge → (false, fresh);
// otherwise (true, stale) so validators get revalidated conditionally.
func (s *Store) ShouldCrawl(url string, policy Policy) (bool, Reason) {
	if policy.Force {
		return true, ReasonForced
	}
	rec, found, err := s.Lookup(url)
	if err != nil || !found {
		return true, ReasonNew
	}
	if policy.MaxAge > 0 {
		age := s.now().Sub(rec.LastCrawled)
		if age > policy.MaxAge {
			return true, ReasonExpired
		}
		return false, ReasonFresh
	}
	return true, ReasonStale
}

// ConditionalHeaders returns If-None-Match / If-Modified-Since headers for
// the URL's stored validators; empty when the URL is unknown.
func (s *Store) ConditionalHeaders(url string) map[string]string {
	headers := map[string]string{}
	rec, found, err := s.Lookup(url)
	if err != nil || !found {
		return headers
	}
	if rec.ETag != "" {
		headers["If-None-Match"] = rec.ETag
	}
	if rec.LastModified != "" {
		headers["If-Modified-Since"] = rec.LastModified
	}
	return headers
}

// Record stores the outcome of a fetch. A 200 replaces validators and
// content hash; a 304 only refreshes last_crawled (validators still hold).
// Other statuses leave the row untouched.
func (s *Store) Record(url string, statusCode int, etag, lastModified string, bodyForHash []byte) *StoreError {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now().UTC().Format(time.RFC3339Nano)

	switch {
	case statusCode == 304:
		_, err := s.db.Exec(
			`UPDATE pages SET last_crawled = ? WHERE url = ?`,
			now, url)
		if err != nil {
			return &StoreError{
				Message: fmt.Sprintf("record 304 for %s: %v", url, err),
				Cause:   ErrCauseWriteFailure,
			}
		}
		return nil

	case statusCode >= 200 && statusCode < 300:
		contentHash := ""
		if bodyForHash != nil {
			contentHash = hashutil.SHA256Hex(bodyForHash)
		}
		_, err := s.db.Exec(
			`INSERT INTO pages (url, etag, last_modified, content_hash, last_crawled, crawl_count)
			 VALUES (?, ?, ?, ?, ?, 1)
			 ON CONFLICT(url) DO UPDATE SET
				etag = excluded.etag,
				last_modified = excluded.last_modified,
				content_hash = excluded.content_hash,
				last_crawled = excluded.last_crawled,
				crawl_count = pages.crawl_count + 1`,
			url, etag, lastModified, contentHash, now)
		if err != nil {
			return &StoreError{
				Message: fmt.Sprintf("record %s: %v", url, err),
				Cause:   ErrCauseWriteFailure,
			}
		}
		return nil
	}

	return nil
}

// UnchangedSince reports whether the stored content hash equals the hash of
// body; used to tell sinks the page content did not move.
func (s *Store) UnchangedSince(url string, body []byte) bool {
	rec, found, err := s.Lookup(url)
	if err != nil || !found || rec.ContentHash == "" {
		return false
	}
	return rec.ContentHash == hashutil.SHA256Hex(body)
}
