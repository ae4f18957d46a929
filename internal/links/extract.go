package links

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/router"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

/*
Responsibilities
- Pull raw href references out of an HTML document
- Nothing else: no resolution, no scope checks, no dedup

Resolution and admission belong to the scheduler; this handler only reads
the DOM.
*/

type ExtractError struct {
	Message string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("link extraction error: %s", e.Message)
}

func (e *ExtractError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

// ExtractHrefs returns every non-empty href attribute of <a> elements, in
// document order, duplicates preserved.
func ExtractHrefs(htmlText string) ([]string, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &ExtractError{Message: err.Error()}
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}
		href = strings.TrimSpace(href)
		if href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

// HTMLHandler is the router handler for text/html documents: it discovers
// links and carries no payload.
func HTMLHandler() router.Handler {
	return func(_ context.Context, result *fetcher.FetchResult) (router.HandlerOutput, failure.ClassifiedError) {
		if result.Binary() {
			return router.HandlerOutput{}, nil
		}
		hrefs, err := ExtractHrefs(result.Text())
		if err != nil {
			return router.HandlerOutput{}, err
		}
		return router.HandlerOutput{DiscoveredLinks: hrefs}, nil
	}
}
