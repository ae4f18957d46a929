package storage_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/mdconvert"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/storage"
	"github.com/rohmanhakim/crawlkit/pkg/hashutil"
)

type sinkStub struct{}

var _ metadata.MetadataSink = (*sinkStub)(nil)

func (s *sinkStub) RecordFetch(string, int, time.Duration, string, int, int)           {}
func (s *sinkStub) RecordSkip(string, metadata.SkipReason)                             {}
func (s *sinkStub) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}
func (s *sinkStub) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}

func newSink(t *testing.T) (*storage.JSONLSink, string) {
	t.Helper()
	dir := t.TempDir()
	sink, err := storage.NewJSONLSink(&sinkStub{}, dir, hashutil.HashAlgoSHA256)
	require.Nil(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink, dir
}

func TestEmitAppendsJSONLines(t *testing.T) {
	sink, dir := newSink(t)

	pages := []artifact.PageArtifact{
		{URL: "http://site/a", FinalURL: "http://site/a", HTTPStatus: 200, Depth: 0},
		{URL: "http://site/b", FinalURL: "http://site/b", HTTPStatus: 404, Depth: 1,
			Error: &artifact.ErrorInfo{Kind: "http_error", Message: "client error: 404", Attempts: 1}},
	}
	for _, page := range pages {
		require.Nil(t, sink.Emit(context.Background(), page))
	}

	file, err := os.Open(filepath.Join(dir, "artifacts.jsonl"))
	require.NoError(t, err)
	defer file.Close()

	var lines []artifact.PageArtifact
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded artifact.PageArtifact
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		lines = append(lines, decoded)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "http://site/a", lines[0].URL)
	require.NotNil(t, lines[1].Error)
	assert.Equal(t, "client error: 404", lines[1].Error.Message)
}

func TestEmitWritesMarkdownPayload(t *testing.T) {
	sink, dir := newSink(t)

	doc := mdconvert.NewMarkdownDoc("http://site/page", "# Title\n\nBody.\n", time.Now())
	page := artifact.PageArtifact{URL: "http://site/page", HTTPStatus: 200, Payload: doc}
	require.Nil(t, sink.Emit(context.Background(), page))

	entries, err := os.ReadDir(filepath.Join(dir, "md"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".md", filepath.Ext(entries[0].Name()))

	content, err := os.ReadFile(filepath.Join(dir, "md", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody.\n", string(content))
}

func TestMarkdownFilenamesAreDeterministic(t *testing.T) {
	sink, dir := newSink(t)

	doc := mdconvert.NewMarkdownDoc("http://site/page", "first", time.Now())
	require.Nil(t, sink.Emit(context.Background(), artifact.PageArtifact{URL: "http://site/page", Payload: doc}))

	// A rerun of the same URL overwrites the same file.
	doc = mdconvert.NewMarkdownDoc("http://site/page", "second", time.Now())
	require.Nil(t, sink.Emit(context.Background(), artifact.PageArtifact{URL: "http://site/page", Payload: doc}))

	entries, err := os.ReadDir(filepath.Join(dir, "md"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	content, err := os.ReadFile(filepath.Join(dir, "md", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestBodyIsNotSerialized(t *testing.T) {
	sink, dir := newSink(t)

	page := artifact.PageArtifact{URL: "http://site/a", Body: []byte("giant body")}
	require.Nil(t, sink.Emit(context.Background(), page))

	raw, err := os.ReadFile(filepath.Join(dir, "artifacts.jsonl"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "giant body")
}
