package hashstore

import "time"

// Record is one row of the content_hashes ledger. The primary key is the
// SHA-256 digest; first writer wins, later writers see isNew=false.
type Record struct {
	SHA256Hex    string
	FirstSeenURL string
	BlobPath     string
	FirstSeenAt  time.Time
	RunID        string
}
