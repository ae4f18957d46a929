package incremental

import "time"

// Policy controls re-crawl decisions.
type Policy struct {
	// Force bypasses every freshness check.
	Force bool
	// MaxAge re-crawls a URL whose last crawl is older than this. Zero
	// means records never expire by age.
	MaxAge time.Duration
}

// Reason explains a ShouldCrawl verdict.
type Reason string

const (
	ReasonNew     Reason = "new"
	ReasonFresh   Reason = "fresh"
	ReasonStale   Reason = "stale"
	ReasonForced  Reason = "forced"
	ReasonExpired Reason = "expired"
)

// Record is one row of the pages table.
type Record struct {
	URL          string
	ETag         string
	LastModified string
	ContentHash  string
	LastCrawled  time.Time
	CrawlCount   int
}
