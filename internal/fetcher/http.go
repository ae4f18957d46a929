package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/render"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
	"github.com/rohmanhakim/crawlkit/pkg/timeutil"
)

/*
Responsibilities

- Perform HTTP requests
- Apply headers, timeouts, and conditional validators
- Handle redirects safely (bounded chain, no silent https→http downgrade)
- Guard response size before and during the body read
- Classify responses and decode text bodies
- Delegate to the renderer port when rendered DOM is requested

The fetcher never parses content; it only returns bytes, text, and metadata.
Retry policy: network transport failures, timeouts, 5xx, and 429 retry with
full-jitter backoff; 4xx (other than 429), redirect violations, oversized
responses, and decode failures are terminal.
*/

var (
	errTooManyRedirects = errors.New("stopped after redirect limit")
	errSchemeDowngrade  = errors.New("refusing https to http downgrade")
)

// retryAfterCeiling caps how long a Retry-After header can stall a worker.
const retryAfterCeiling = 120 * time.Second

type HttpFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	reporter     OutcomeReporter
	renderer     render.Renderer
	options      Options
	sleeper      timeutil.Sleeper
	now          func() time.Time
}

var _ Fetcher = (*HttpFetcher)(nil)

func NewHttpFetcher(metadataSink metadata.MetadataSink, reporter OutcomeReporter, options Options) HttpFetcher {
	f := HttpFetcher{
		metadataSink: metadataSink,
		reporter:     reporter,
		options:      options,
		sleeper:      timeutil.NewRealSleeper(),
		now:          time.Now,
	}
	f.httpClient = f.buildClient()
	return f
}

// WithRenderer attaches the renderer port for rendered-DOM fetches.
func (h HttpFetcher) WithRenderer(renderer render.Renderer) HttpFetcher {
	h.renderer = renderer
	return h
}

// WithClient replaces the HTTP client. This is useful for testing.
func (h HttpFetcher) WithClient(client *http.Client) HttpFetcher {
	h.httpClient = client
	return h
}

// WithSleeper replaces the backoff sleeper. This is useful for testing.
func (h HttpFetcher) WithSleeper(sleeper timeutil.Sleeper) HttpFetcher {
	h.sleeper = sleeper
	return h
}

func (h *HttpFetcher) buildClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 8,
	}
	if h.options.Proxy != nil {
		transport.Proxy = http.ProxyURL(h.options.Proxy)
	}
	if !h.options.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	maxRedirects := h.options.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	allowDowngrade := h.options.AllowSchemeDowngrade
	allowRedirects := h.options.AllowRedirects

	return &http.Client{
		Timeout:   h.options.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !allowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			if !allowDowngrade && via[0].URL.Scheme == "https" && req.URL.Scheme == "http" {
				return errSchemeDowngrade
			}
			return nil
		},
	}
}

func (h *HttpFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HttpFetcher.Fetch"
	startTime := h.now()

	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam)
	}
	outcome := retry.Retry(ctx, retryParam, h.sleeper, fetchTask)
	result, err := outcome.Value(), outcome.Err()

	duration := h.now().Sub(startTime)

	var statusCode int
	var contentType string
	if err == nil {
		statusCode = result.Code()
		contentType = result.ContentType()
	} else {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			statusCode = fetchErr.StatusCode
		}
	}

	retryCount := outcome.Attempts() - 1
	if retryCount < 0 {
		retryCount = 0
	}
	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	)

	if err != nil {
		h.recordError(callerMethod, fetchParam.fetchUrl, err)
		return FetchResult{}, err
	}

	result.elapsed = duration
	result.attempts = outcome.Attempts()
	return result, nil
}

// Attempts exposes the attempt count of the last classified retry error.
func Attempts(err failure.ClassifiedError, retryParam retry.RetryParam) int {
	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) {
		return retryParam.MaxAttempts
	}
	return 1
}

func (h *HttpFetcher) recordError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	attrs := []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
	}

	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		h.metadataSink.RecordError(
			h.now(), "fetcher", callerMethod,
			metadata.CauseRetryFailure, retryError.Error(), attrs,
		)
		return
	}

	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			h.now(), "fetcher", callerMethod,
			mapFetchErrorToMetadataCause(fetchError), fetchError.Message, attrs,
		)
	}
}

func (h *HttpFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	if fetchParam.useRenderedDom {
		return h.performRender(ctx, fetchParam)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchParam.fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(fetchParam.userAgent) {
		req.Header.Set(key, value)
	}
	for key, value := range fetchParam.conditionalHeaders {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, h.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	host := fetchParam.fetchUrl.Host

	switch {
	case resp.StatusCode == http.StatusNotModified:
		// A 304 is a successful conditional round trip, not an error.
		h.report(host, resp.StatusCode, 0)
		return FetchResult{
			url:       finalURL(resp, fetchParam.fetchUrl),
			fetchedAt: h.now(),
			fromCache: true,
			meta: ResponseMeta{
				statusCode:      resp.StatusCode,
				responseHeaders: resp.Header,
			},
		}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return h.readSuccess(resp, fetchParam, host)

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), h.now())
		h.report(host, resp.StatusCode, retryAfter)
		return FetchResult{}, &FetchError{
			Message:    "rate limited (429)",
			Retryable:  true,
			Cause:      ErrCauseRequestTooMany,
			StatusCode: resp.StatusCode,
			retryAfter: retryAfter,
		}

	case resp.StatusCode >= 500:
		h.report(host, resp.StatusCode, 0)
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable:  true,
			Cause:      ErrCauseRequest5xx,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Redirects are followed by the client; landing here means the
		// redirect policy refused to continue.
		h.report(host, resp.StatusCode, 0)
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("unfollowed redirect: %d", resp.StatusCode),
			Retryable:  false,
			Cause:      ErrCauseRedirectLimitExceeded,
			StatusCode: resp.StatusCode,
		}

	default:
		// Remaining 4xx are terminal.
		h.report(host, resp.StatusCode, 0)
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable:  false,
			Cause:      ErrCauseRequestClientError,
			StatusCode: resp.StatusCode,
		}
	}
}

func (h *HttpFetcher) readSuccess(resp *http.Response, fetchParam FetchParam, host string) (FetchResult, failure.ClassifiedError) {
	maxBytes := h.options.MaxResponseBytes

	// Declared-length guard: refuse without reading a byte.
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("content length %d exceeds limit %d", resp.ContentLength, maxBytes),
			Retryable:  false,
			Cause:      ErrCauseResponseTooLarge,
			StatusCode: resp.StatusCode,
		}
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Retryable:  true,
			Cause:      ErrCauseReadResponseBodyError,
			StatusCode: resp.StatusCode,
		}
	}
	// Running-total guard for responses without a declared length.
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("response body exceeds limit %d", maxBytes),
			Retryable:  false,
			Cause:      ErrCauseResponseTooLarge,
			StatusCode: resp.StatusCode,
		}
	}

	h.report(host, resp.StatusCode, 0)

	contentType := resp.Header.Get("Content-Type")
	result := FetchResult{
		url:         finalURL(resp, fetchParam.fetchUrl),
		body:        body,
		contentType: mediaType(contentType),
		fetchedAt:   h.now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: resp.Header,
		},
	}

	if isTextualContentType(contentType) {
		result.text, result.charset = decodeBody(body, contentType)
	} else {
		result.binary = true
	}

	return result, nil
}

func (h *HttpFetcher) performRender(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	if h.renderer == nil {
		return FetchResult{}, &FetchError{
			Message:   "rendered DOM requested but no renderer configured",
			Retryable: false,
			Cause:     ErrCauseRendererFailure,
		}
	}

	page, err := h.renderer.Render(ctx, fetchParam.fetchUrl.String(), fetchParam.renderOptions)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("render failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseRendererFailure,
		}
	}

	finalU := fetchParam.fetchUrl
	if parsed, parseErr := url.Parse(page.FinalURL); parseErr == nil && page.FinalURL != "" {
		finalU = *parsed
	}

	headers := http.Header{}
	for key, value := range page.Headers {
		headers.Set(key, value)
	}
	contentType := headers.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html"
	}

	h.report(fetchParam.fetchUrl.Host, page.StatusCode, 0)

	if page.StatusCode < 200 || page.StatusCode >= 300 {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("renderer answered status %d", page.StatusCode),
			Retryable:  page.StatusCode == 429 || page.StatusCode >= 500,
			Cause:      ErrCauseRendererFailure,
			StatusCode: page.StatusCode,
		}
	}

	return FetchResult{
		url:         finalU,
		body:        []byte(page.HTML),
		text:        page.HTML,
		charset:     "utf-8",
		contentType: mediaType(contentType),
		rendered:    true,
		fetchedAt:   h.now(),
		meta: ResponseMeta{
			statusCode:      page.StatusCode,
			responseHeaders: headers,
		},
	}, nil
}

// classifyTransportError sorts client.Do failures into the retry taxonomy.
func (h *HttpFetcher) classifyTransportError(ctx context.Context, err error) *FetchError {
	if ctx.Err() != nil {
		return &FetchError{
			Message:   ctx.Err().Error(),
			Retryable: false,
			Cause:     ErrCauseCancelled,
		}
	}

	if errors.Is(err, errTooManyRedirects) {
		return &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}
	if errors.Is(err, errSchemeDowngrade) {
		return &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseSchemeDowngrade,
		}
	}

	var certErr *x509.CertificateInvalidError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &hostnameErr) {
		return &FetchError{
			Message:   fmt.Sprintf("tls verification failed: %v", err),
			Retryable: false,
			Cause:     ErrCauseTlsFailure,
		}
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return &FetchError{
			Message:   fmt.Sprintf("tls handshake failed: %v", err),
			Retryable: false,
			Cause:     ErrCauseTlsFailure,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{
			Message:   fmt.Sprintf("request timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}
	}

	// Connection resets, refused connections, and temporary DNS failures
	// are all retryable transport problems.
	return &FetchError{
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
		Cause:     ErrCauseNetworkFailure,
	}
}

func (h *HttpFetcher) report(host string, statusCode int, retryAfter time.Duration) {
	if h.reporter != nil {
		h.reporter.ReportOutcome(host, statusCode, retryAfter)
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms,
// bounded by the ceiling.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && seconds >= 0 {
		return capRetryAfter(time.Duration(seconds * float64(time.Second)))
	}
	if at, err := http.ParseTime(value); err == nil {
		wait := at.Sub(now)
		if wait < 0 {
			return 0
		}
		return capRetryAfter(wait)
	}
	return 0
}

func capRetryAfter(wait time.Duration) time.Duration {
	if wait > retryAfterCeiling {
		return retryAfterCeiling
	}
	return wait
}

func finalURL(resp *http.Response, requested url.URL) url.URL {
	if resp.Request != nil && resp.Request.URL != nil {
		return *resp.Request.URL
	}
	return requested
}

// mediaType strips parameters from a Content-Type value and lower-cases it.
func mediaType(contentType string) string {
	media := contentType
	if idx := strings.Index(media, ";"); idx != -1 {
		media = media[:idx]
	}
	return strings.ToLower(strings.TrimSpace(media))
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Connection":      "keep-alive",
	}
}
