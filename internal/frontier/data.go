package frontier

/*
 Frontier - manages crawl state & ordering
*/

import (
	"net/url"
	"time"
)

// CrawlToken
// Frontier-issued, per-URL crawl Token
// It represents: "This URL, at this depth, in this order, is next"
// It contains no semantic policy decisions.
// It represents ordering + discovery metadata only.
type CrawlToken struct {
	url            url.URL
	depth          int
	discoveredFrom string
	priorityScore  float64
}

// NewCrawlToken creates a new CrawlToken with the given URL and depth.
// This constructor is provided for testing and internal use.
func NewCrawlToken(u url.URL, depth int) CrawlToken {
	return CrawlToken{
		url:   u,
		depth: depth,
	}
}

func (c *CrawlToken) URL() url.URL {
	return c.url
}

func (c *CrawlToken) Depth() int {
	return c.depth
}

func (c *CrawlToken) DiscoveredFrom() string {
	return c.discoveredFrom
}

func (c *CrawlToken) PriorityScore() float64 {
	return c.priorityScore
}

// Entry is one pending URL inside the priority queue. Two entries with an
// equal canonical URL are duplicates regardless of every other field.
type Entry struct {
	url            url.URL
	depth          int
	discoveredFrom string
	priorityScore  float64
	insertedAt     time.Time
	// seq is the frontier-assigned insertion counter; it is the stable
	// tie-breaker for every strategy and the LIFO axis for depth-first.
	seq uint64
	// heapIndex is maintained by container/heap.
	heapIndex int
}

func (e *Entry) URL() url.URL {
	return e.url
}

func (e *Entry) Depth() int {
	return e.depth
}

func (e *Entry) DiscoveredFrom() string {
	return e.discoveredFrom
}

func (e *Entry) PriorityScore() float64 {
	return e.priorityScore
}

func (e *Entry) InsertedAt() time.Time {
	return e.insertedAt
}

func (e *Entry) Seq() uint64 {
	return e.seq
}

// CrawlAdmissionCandidate represents a URL that has already been
// admitted by the scheduler.
//
// Invariants:
// - Robots.txt checks have passed
// - Crawl scope and limits have been enforced
// - Frontier MUST treat this as an admitted URL
// - Frontier MUST NOT re-evaluate admission semantics
type CrawlAdmissionCandidate struct {
	// frontier MUST assume this URL is already admitted.
	targetURL url.URL

	// is it seed url or discovered during crawling?
	sourceContext SourceContext

	// additional information about the URL
	discoveryMetadata DiscoveryMetadata
}

func NewCrawlAdmissionCandidate(
	targetUrl url.URL,
	sourceContext SourceContext,
	discoveryMetadata DiscoveryMetadata,
) CrawlAdmissionCandidate {
	return CrawlAdmissionCandidate{
		targetURL:         targetUrl,
		sourceContext:     sourceContext,
		discoveryMetadata: discoveryMetadata,
	}
}

func (c *CrawlAdmissionCandidate) TargetURL() url.URL {
	return c.targetURL
}

func (c *CrawlAdmissionCandidate) SourceContext() SourceContext {
	return c.sourceContext
}

func (c *CrawlAdmissionCandidate) DiscoveryMetadata() DiscoveryMetadata {
	return c.discoveryMetadata
}

type SourceContext string

const (
	SourceSeed    SourceContext = "Seed"
	SourceCrawl   SourceContext = "Crawl"
	SourceSitemap SourceContext = "Sitemap"
)

type DiscoveryMetadata struct {
	// link hops from the seed at which the url was found; the seed and
	// sitemap-seeded URLs have depth 0
	depth          int
	discoveredFrom string
	priorityScore  float64
}

func NewDiscoveryMetadata(
	depth int,
	discoveredFrom string,
	priorityScore float64,
) DiscoveryMetadata {
	return DiscoveryMetadata{
		depth:          depth,
		discoveredFrom: discoveredFrom,
		priorityScore:  priorityScore,
	}
}

func (d DiscoveryMetadata) Depth() int {
	return d.depth
}

func (d DiscoveryMetadata) DiscoveredFrom() string {
	return d.discoveredFrom
}

func (d DiscoveryMetadata) PriorityScore() float64 {
	return d.priorityScore
}
