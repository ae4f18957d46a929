package robots_test

import (
	"sync"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/metadata"
)

// sinkStub is a no-op MetadataSink that records error counts.
type sinkStub struct {
	mu     sync.Mutex
	errors int
}

var _ metadata.MetadataSink = (*sinkStub)(nil)

func (s *sinkStub) RecordFetch(string, int, time.Duration, string, int, int) {}

func (s *sinkStub) RecordSkip(string, metadata.SkipReason) {}

func (s *sinkStub) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}

func (s *sinkStub) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

func (s *sinkStub) errorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}
