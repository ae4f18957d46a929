package mdconvert

import "time"

// MarkdownDoc is the payload a markdown conversion handler hands to sinks.
type MarkdownDoc struct {
	sourceURL   string
	content     string
	convertedAt time.Time
}

func NewMarkdownDoc(sourceURL, content string, convertedAt time.Time) MarkdownDoc {
	return MarkdownDoc{
		sourceURL:   sourceURL,
		content:     content,
		convertedAt: convertedAt,
	}
}

func (m MarkdownDoc) SourceURL() string {
	return m.sourceURL
}

func (m MarkdownDoc) Content() string {
	return m.content
}

func (m MarkdownDoc) ConvertedAt() time.Time {
	return m.convertedAt
}
