package metadata

import "time"

// MetadataSink receives observational events from every pipeline stage.
//
// Metadata emission is observational only and MUST NOT influence
// scheduling, retries, or crawl termination.
type MetadataSink interface {
	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
		crawlDepth int,
	)
	RecordSkip(fetchUrl string, reason SkipReason)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		errorString string,
		attrs []Attribute,
	)
}

// CrawlFinalizer records the terminal summary of a completed crawl,
// exactly once.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalPages int,
		totalBytes uint64,
		totalErrors int,
		crawlDuration time.Duration,
	)
}
