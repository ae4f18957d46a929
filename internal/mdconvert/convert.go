package mdconvert

import (
	"context"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/router"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

/*
Design Principles
- Semantic fidelity over visual fidelity
- No inferred structure
- No code reformatting
- GitHub-Flavored Markdown compatibility

Conversion Rules
- Headings map directly (h1-h6 to # - ######)
- Code blocks preserved verbatim
- Tables converted structurally (GFM)
- Links and images preserved as-is (no resolution)
- DOM order preserved

Inline styles and raw HTML are avoided.
*/

// Convert transforms an HTML document into Markdown, deterministically.
func Convert(htmlText string) (string, *ConversionError) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	markdown, err := conv.ConvertString(htmlText)
	if err != nil {
		return "", &ConversionError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}
	return markdown, nil
}

// ValidateStructure parses the converted markdown and enforces the single-H1
// invariant. The check is observational: violations are reported, never
// blocking.
func ValidateStructure(markdownText string) *ConversionError {
	p := parser.New()
	doc := p.Parse([]byte(markdownText))

	h1Count := 0
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if heading, ok := node.(*ast.Heading); ok && entering && heading.Level == 1 {
			h1Count++
		}
		return ast.GoToNext
	})

	if h1Count > 1 {
		return &ConversionError{
			Message:   "document carries more than one H1",
			Retryable: false,
			Cause:     ErrCauseStructureViolation,
		}
	}
	return nil
}

// MarkdownHandler is a router handler converting HTML pages to Markdown
// payloads. Discovered links still come from the plain HTML handler; this
// handler only produces the sink payload.
func MarkdownHandler(metadataSink metadata.MetadataSink) router.Handler {
	return func(_ context.Context, result *fetcher.FetchResult) (router.HandlerOutput, failure.ClassifiedError) {
		if result.Binary() {
			return router.HandlerOutput{}, nil
		}

		resultURL := result.URL()
		markdown, err := Convert(result.Text())
		if err != nil {
			metadataSink.RecordError(
				time.Now(),
				"mdconvert",
				"MarkdownHandler",
				mapConversionErrorToMetadataCause(*err),
				err.Message,
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, resultURL.String()),
				},
			)
			return router.HandlerOutput{}, err
		}

		if structureErr := ValidateStructure(markdown); structureErr != nil {
			metadataSink.RecordError(
				time.Now(),
				"mdconvert",
				"MarkdownHandler",
				mapConversionErrorToMetadataCause(*structureErr),
				structureErr.Message,
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, resultURL.String()),
				},
			)
		}

		u := result.URL()
		doc := NewMarkdownDoc(u.String(), markdown, result.FetchedAt())
		return router.HandlerOutput{Payload: doc}, nil
	}
}
