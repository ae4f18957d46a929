package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/mdconvert"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/fileutil"
	"github.com/rohmanhakim/crawlkit/pkg/hashutil"
)

/*
Responsibilities
- Append one JSON line per PageArtifact to the run's artifact log
- Persist markdown payloads as individual files under deterministic names
- Ensure deterministic filenames

Output Characteristics
- Stable directory layout
- Markdown writes are idempotent: a rerun overwrites the same file
- The artifact log is appended to, so a rerun adds its lines after the
  earlier run's

The sink is a downstream collaborator of the engine: it consumes artifacts
and must stay commutative, because workers emit in no global order.
*/

// JSONLSink appends artifacts to <outputDir>/artifacts.jsonl and markdown
// payloads to <outputDir>/md/<urlHash>.md.
type JSONLSink struct {
	metadataSink metadata.MetadataSink
	outputDir    string
	hashAlgo     hashutil.HashAlgo

	mu   sync.Mutex
	file *os.File
}

var _ artifact.Emitter = (*JSONLSink)(nil)

func NewJSONLSink(metadataSink metadata.MetadataSink, outputDir string, hashAlgo hashutil.HashAlgo) (*JSONLSink, failure.ClassifiedError) {
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return nil, err
	}
	logPath := filepath.Join(outputDir, "artifacts.jsonl")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      logPath,
		}
	}
	return &JSONLSink{
		metadataSink: metadataSink,
		outputDir:    outputDir,
		hashAlgo:     hashAlgo,
		file:         file,
	}, nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Emit appends the artifact line and, when the payload is a converted
// markdown document, writes it next to the log.
func (s *JSONLSink) Emit(_ context.Context, page artifact.PageArtifact) failure.ClassifiedError {
	if err := s.appendLine(page); err != nil {
		s.recordError(err, page.URL)
		return err
	}

	if doc, ok := page.Payload.(mdconvert.MarkdownDoc); ok {
		writeResult, err := s.writeMarkdown(doc)
		if err != nil {
			s.recordError(err, page.URL)
			return err
		}
		s.metadataSink.RecordArtifact(
			metadata.ArtifactMarkdown,
			writeResult.Path(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, doc.SourceURL()),
				metadata.NewAttr(metadata.AttrHash, writeResult.ContentHash()),
			},
		)
	}
	return nil
}

func (s *JSONLSink) appendLine(page artifact.PageArtifact) *StorageError {
	line, err := json.Marshal(page)
	if err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseEncodeFailure,
			Path:      s.outputDir,
		}
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      s.file.Name(),
		}
	}
	return nil
}

func (s *JSONLSink) writeMarkdown(doc mdconvert.MarkdownDoc) (WriteResult, *StorageError) {
	// Hash the source URL for the filename (stable across reruns).
	urlHashFull, err := hashutil.HashBytes([]byte(doc.SourceURL()), s.hashAlgo)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	urlHash := urlHashFull[:12]

	content := []byte(doc.Content())
	mdDir := filepath.Join(s.outputDir, "md")
	fullPath, writeErr := fileutil.WriteFile(mdDir, urlHash+".md", content)
	if writeErr != nil {
		return WriteResult{}, &StorageError{
			Message:   writeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			Path:      mdDir,
		}
	}

	contentHash, err := hashutil.HashBytes(content, s.hashAlgo)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}

	return NewWriteResult(urlHash, fullPath, contentHash), nil
}

func (s *JSONLSink) recordError(err *StorageError, pageURL string) {
	s.metadataSink.RecordError(
		time.Now(),
		"storage",
		"JSONLSink.Emit",
		mapStorageErrorToMetadataCause(err),
		err.Message,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, pageURL),
			metadata.NewAttr(metadata.AttrWritePath, err.Path),
		},
	)
}
