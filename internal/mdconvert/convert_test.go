package mdconvert_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/mdconvert"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
)

type sinkStub struct{}

var _ metadata.MetadataSink = (*sinkStub)(nil)

func (s *sinkStub) RecordFetch(string, int, time.Duration, string, int, int)           {}
func (s *sinkStub) RecordSkip(string, metadata.SkipReason)                             {}
func (s *sinkStub) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}
func (s *sinkStub) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}

func TestConvertHeadingsAndParagraphs(t *testing.T) {
	html := `<html><body><h1>Title</h1><p>Some text.</p><h2>Section</h2></body></html>`

	markdown, err := mdconvert.Convert(html)
	require.Nil(t, err)
	assert.Contains(t, markdown, "# Title")
	assert.Contains(t, markdown, "Some text.")
	assert.Contains(t, markdown, "## Section")
}

func TestConvertIsDeterministic(t *testing.T) {
	html := `<html><body><h1>T</h1><ul><li>a</li><li>b</li></ul></body></html>`

	first, err := mdconvert.Convert(html)
	require.Nil(t, err)
	second, err := mdconvert.Convert(html)
	require.Nil(t, err)
	assert.Equal(t, first, second)
}

func TestValidateStructureSingleH1(t *testing.T) {
	assert.Nil(t, mdconvert.ValidateStructure("# One\n\n## Two\n"))

	err := mdconvert.ValidateStructure("# One\n\n# Another\n")
	require.NotNil(t, err)
	assert.Equal(t, mdconvert.ErrCauseStructureViolation, err.Cause)
}

func TestMarkdownHandler(t *testing.T) {
	u, _ := url.Parse("http://site/page")
	result := fetcher.NewFetchResultForTest(
		*u,
		[]byte(`<html><body><h1>Doc</h1><p>Text.</p></body></html>`),
		200,
		"text/html",
		http.Header{},
		time.Now(),
	)

	output, err := mdconvert.MarkdownHandler(&sinkStub{})(context.Background(), &result)
	require.Nil(t, err)

	doc, ok := output.Payload.(mdconvert.MarkdownDoc)
	require.True(t, ok)
	assert.Equal(t, "http://site/page", doc.SourceURL())
	assert.Contains(t, doc.Content(), "# Doc")
	assert.Empty(t, output.DiscoveredLinks, "markdown handler discovers no links")
}
