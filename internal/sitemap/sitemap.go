package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

/*
Responsibilities
- Parse sitemaps.org XML documents
- Follow sitemap index files one level deep
- Surface per-URL priority for the sitemap frontier strategy

Sitemaps only seed the frontier; every URL still passes scope, robots, and
dedup checks on admission.
*/

// Entry is one <url> element of a sitemap.
type Entry struct {
	Loc      string
	Priority float64
}

// maxSitemapBytes caps how much of a sitemap body is read.
const maxSitemapBytes = 10 * 1024 * 1024

type urlsetXML struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc      string  `xml:"loc"`
		Priority float64 `xml:"priority"`
	} `xml:"url"`
}

type indexXML struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Parse decodes a sitemap document. It returns the contained URL entries
// for a urlset, or the child sitemap locations for a sitemapindex.
func Parse(body []byte) (entries []Entry, children []string, err error) {
	var set urlsetXML
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		entries = make([]Entry, 0, len(set.URLs))
		for _, u := range set.URLs {
			if u.Loc == "" {
				continue
			}
			entries = append(entries, Entry{Loc: u.Loc, Priority: u.Priority})
		}
		return entries, nil, nil
	}

	var index indexXML
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		children = make([]string, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			if s.Loc != "" {
				children = append(children, s.Loc)
			}
		}
		return nil, children, nil
	}

	return nil, nil, fmt.Errorf("not a sitemap or sitemap index document")
}

// Loader fetches sitemap documents over HTTP.
type Loader struct {
	httpClient *http.Client
	userAgent  string
}

func NewLoader(userAgent string, timeout time.Duration) Loader {
	return Loader{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

func NewLoaderWithClient(userAgent string, client *http.Client) Loader {
	return Loader{httpClient: client, userAgent: userAgent}
}

// Load fetches sitemapURL and returns its entries. Index files are followed
// one level: children of an index are fetched, children of children are not.
func (l Loader) Load(ctx context.Context, sitemapURL string) ([]Entry, error) {
	entries, children, err := l.loadOne(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childEntries, _, childErr := l.loadOne(ctx, child)
		if childErr != nil {
			// A broken child sitemap does not invalidate its siblings.
			continue
		}
		entries = append(entries, childEntries...)
	}
	return entries, nil
}

func (l Loader) loadOne(ctx context.Context, sitemapURL string) ([]Entry, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("sitemap fetch %s: status %d", sitemapURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, nil, err
	}

	return parseTolerant(body)
}

// parseTolerant treats an empty urlset as valid.
func parseTolerant(body []byte) ([]Entry, []string, error) {
	entries, children, err := Parse(body)
	if err == nil {
		return entries, children, nil
	}
	var set urlsetXML
	if xmlErr := xml.Unmarshal(body, &set); xmlErr == nil {
		return nil, nil, nil
	}
	return nil, nil, err
}
