package metadata

import (
	"time"

	"go.uber.org/zap"
)

// Recorder is the zap-backed MetadataSink and CrawlFinalizer used by the
// single-process engine. One Recorder serves all workers; zap handles
// concurrent emission.
type Recorder struct {
	logger *zap.Logger
	label  string
}

var _ MetadataSink = (*Recorder)(nil)
var _ CrawlFinalizer = (*Recorder)(nil)

func NewRecorder(logger *zap.Logger, label string) Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Recorder{
		logger: logger.Named("crawl"),
		label:  label,
	}
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.logger.Info("fetch",
		zap.String("worker", r.label),
		zap.String("url", fetchUrl),
		zap.Int("status", httpStatus),
		zap.Duration("duration", duration),
		zap.String("content_type", contentType),
		zap.Int("retries", retryCount),
		zap.Int("depth", crawlDepth),
	)
}

func (r *Recorder) RecordSkip(fetchUrl string, reason SkipReason) {
	r.logger.Debug("skip",
		zap.String("worker", r.label),
		zap.String("url", fetchUrl),
		zap.String("reason", string(reason)),
	)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	fields := make([]zap.Field, 0, len(attrs)+2)
	fields = append(fields, zap.String("kind", string(kind)), zap.String("path", path))
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Info("artifact", fields...)
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	fields := make([]zap.Field, 0, len(attrs)+4)
	fields = append(fields,
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.String("cause", cause.String()),
	)
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Warn(errorString, fields...)
}

func (r *Recorder) RecordFinalCrawlStats(
	totalPages int,
	totalBytes uint64,
	totalErrors int,
	crawlDuration time.Duration,
) {
	r.logger.Info("crawl finished",
		zap.Int("pages", totalPages),
		zap.Uint64("bytes", totalBytes),
		zap.Int("errors", totalErrors),
		zap.Duration("duration", crawlDuration),
	)
}
