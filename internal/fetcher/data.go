package fetcher

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/render"
)

// HTTP boundary

// FetchParam describes one page retrieval.
type FetchParam struct {
	fetchUrl  url.URL
	userAgent string
	// conditionalHeaders carries If-None-Match / If-Modified-Since from the
	// incremental store.
	conditionalHeaders map[string]string
	useRenderedDom     bool
	renderOptions      render.Options
}

func NewFetchParam(fetchUrl url.URL, userAgent string) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
	}
}

// WithConditionalHeaders attaches validator headers to the request.
func (p FetchParam) WithConditionalHeaders(headers map[string]string) FetchParam {
	p.conditionalHeaders = headers
	return p
}

// WithRenderedDom routes the fetch through the renderer port.
func (p FetchParam) WithRenderedDom(opts render.Options) FetchParam {
	p.useRenderedDom = true
	p.renderOptions = opts
	return p
}

func (p FetchParam) FetchURL() url.URL {
	return p.fetchUrl
}

func (p FetchParam) UserAgent() string {
	return p.userAgent
}

// FetchResult is the normalized response handed to the pipeline.
// Headers are case-insensitive via http.Header semantics.
type FetchResult struct {
	// url is the final URL after redirects.
	url         url.URL
	body        []byte
	text        string
	charset     string
	contentType string
	binary      bool
	elapsed     time.Duration
	fromCache   bool
	rendered    bool
	attempts    int
	meta        ResponseMeta
	fetchedAt   time.Time
}

// Attempts is how many requests were issued before this result, 1 when the
// first try succeeded.
func (f *FetchResult) Attempts() int {
	if f.attempts < 1 {
		return 1
	}
	return f.attempts
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

// Body returns the raw response bytes.
func (f *FetchResult) Body() []byte {
	return f.body
}

// Text returns the decoded body; empty for binary content.
func (f *FetchResult) Text() string {
	return f.text
}

func (f *FetchResult) Charset() string {
	return f.charset
}

func (f *FetchResult) ContentType() string {
	return f.contentType
}

// Binary reports whether decoding was bypassed for a binary content type.
func (f *FetchResult) Binary() bool {
	return f.binary
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

// Success is true for any 2xx status.
func (f *FetchResult) Success() bool {
	return f.meta.statusCode >= 200 && f.meta.statusCode < 300
}

// NotModified is true for a 304 answer to a conditional request.
func (f *FetchResult) NotModified() bool {
	return f.meta.statusCode == http.StatusNotModified
}

func (f *FetchResult) SizeByte() uint64 {
	return uint64(len(f.body))
}

func (f *FetchResult) Headers() http.Header {
	return f.meta.responseHeaders
}

func (f *FetchResult) Header(key string) string {
	return f.meta.responseHeaders.Get(key)
}

func (f *FetchResult) Elapsed() time.Duration {
	return f.elapsed
}

func (f *FetchResult) FromCache() bool {
	return f.fromCache
}

// Rendered reports whether the body came from the renderer port.
func (f *FetchResult) Rendered() bool {
	return f.rendered
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

type ResponseMeta struct {
	statusCode      int
	responseHeaders http.Header
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	u url.URL,
	body []byte,
	statusCode int,
	contentType string,
	responseHeaders http.Header,
	fetchedAt time.Time,
) FetchResult {
	if responseHeaders == nil {
		responseHeaders = http.Header{}
	}
	return FetchResult{
		url:         u,
		body:        body,
		text:        string(body),
		contentType: contentType,
		fetchedAt:   fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			responseHeaders: responseHeaders,
		},
	}
}
