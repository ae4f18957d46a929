package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SidecarRenderer talks to a rendering sidecar over HTTP. The sidecar
// exposes POST /render taking the render request as JSON and answering
// with the rendered page.
type SidecarRenderer struct {
	endpoint   string
	httpClient *http.Client
}

func NewSidecarRenderer(endpoint string, timeout time.Duration) SidecarRenderer {
	return SidecarRenderer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type renderRequest struct {
	URL              string `json:"url"`
	WaitForSelector  string `json:"waitForSelector,omitempty"`
	WaitForTimeoutMs int64  `json:"waitForTimeoutMs,omitempty"`
	BrowserType      string `json:"browserType,omitempty"`
}

type renderResponse struct {
	FinalURL   string            `json:"finalUrl"`
	StatusCode int               `json:"statusCode"`
	HTML       string            `json:"html"`
	Headers    map[string]string `json:"headers"`
}

func (r SidecarRenderer) Render(ctx context.Context, pageURL string, opts Options) (RenderedPage, error) {
	payload, err := json.Marshal(renderRequest{
		URL:              pageURL,
		WaitForSelector:  opts.WaitForSelector,
		WaitForTimeoutMs: opts.WaitForTimeout.Milliseconds(),
		BrowserType:      string(opts.Browser),
	})
	if err != nil {
		return RenderedPage{}, fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/render", bytes.NewReader(payload))
	if err != nil {
		return RenderedPage{}, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RenderedPage{}, fmt.Errorf("render call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return RenderedPage{}, fmt.Errorf("renderer answered %d: %s", resp.StatusCode, string(body))
	}

	var decoded renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return RenderedPage{}, fmt.Errorf("decode render response: %w", err)
	}

	return RenderedPage{
		FinalURL:   decoded.FinalURL,
		StatusCode: decoded.StatusCode,
		HTML:       decoded.HTML,
		Headers:    decoded.Headers,
	}, nil
}
