package robots

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt once per host (single-flight)
- Cache records with a TTL; retry failed fetches after the TTL
- Evaluate allow/disallow rules before a URL enters the frontier
- Surface Crawl-Delay and Sitemap declarations

Failure semantics: never fatal. A host whose robots.txt cannot be fetched
gets a permissive record with a bounded TTL, and the error is logged.
*/

// Robot is the politeness decision port consumed by the scheduler.
type Robot interface {
	Init(userAgent string)
	// Decide evaluates one URL against the host's cached rules.
	Decide(ctx context.Context, u url.URL) Decision
	// Allowed is Decide reduced to its verdict.
	Allowed(ctx context.Context, u url.URL) bool
	// CrawlDelay returns the declared Crawl-Delay for the matched group.
	CrawlDelay(ctx context.Context, scheme, host string) *time.Duration
	// Sitemaps returns sitemap URLs declared by the host's robots.txt.
	Sitemaps(ctx context.Context, scheme, host string) []string
}

var _ Robot = (*CachedRegistry)(nil)

// CachedRegistry caches one Record per host behind a single-flight fetch:
// the first requester performs the HTTP fetch, concurrent requesters for the
// same host await its result.
type CachedRegistry struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher
	cache        cache.Cache
	userAgent    string
	ttl          time.Duration
	now          func() time.Time

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func NewCachedRegistry(metadataSink metadata.MetadataSink, store cache.Cache, fetchTimeout time.Duration) *CachedRegistry {
	return &CachedRegistry{
		metadataSink: metadataSink,
		fetcher:      NewRobotsFetcher("", fetchTimeout),
		cache:        store,
		ttl:          defaultTTL,
		now:          time.Now,
		inflight:     make(map[string]chan struct{}),
	}
}

// NewCachedRegistryWithFetcher injects a fetcher and clock for testing.
func NewCachedRegistryWithFetcher(metadataSink metadata.MetadataSink, store cache.Cache, fetcher *RobotsFetcher, now func() time.Time) *CachedRegistry {
	return &CachedRegistry{
		metadataSink: metadataSink,
		fetcher:      fetcher,
		cache:        store,
		ttl:          defaultTTL,
		now:          now,
		inflight:     make(map[string]chan struct{}),
	}
}

func (c *CachedRegistry) Init(userAgent string) {
	c.userAgent = userAgent
	c.fetcher.userAgent = userAgent
}

func (c *CachedRegistry) Decide(ctx context.Context, u url.URL) Decision {
	record := c.recordFor(ctx, u.Scheme, u.Host)

	if record.FetchFailed {
		return Decision{Url: u, Allowed: true, Reason: FetchFailedOpen}
	}

	rs := MapResponseToRuleSet(record.Response, c.userAgent, record.FetchedAt)
	allowed, reason := rs.Evaluate(u.EscapedPath())
	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: rs.CrawlDelay(),
	}
}

func (c *CachedRegistry) Allowed(ctx context.Context, u url.URL) bool {
	return c.Decide(ctx, u).Allowed
}

func (c *CachedRegistry) CrawlDelay(ctx context.Context, scheme, host string) *time.Duration {
	record := c.recordFor(ctx, scheme, host)
	if record.FetchFailed {
		return nil
	}
	rs := MapResponseToRuleSet(record.Response, c.userAgent, record.FetchedAt)
	return rs.CrawlDelay()
}

func (c *CachedRegistry) Sitemaps(ctx context.Context, scheme, host string) []string {
	record := c.recordFor(ctx, scheme, host)
	return record.Sitemaps
}

// recordFor returns the cached record for host, fetching it when absent or
// expired. Concurrent callers for one host share a single fetch.
func (c *CachedRegistry) recordFor(ctx context.Context, scheme, host string) Record {
	key := recordKey(scheme, host)

	for {
		if record, ok := c.cachedRecord(key); ok && !record.Expired(c.now()) {
			return record
		}

		c.mu.Lock()
		done, flying := c.inflight[key]
		if !flying {
			done = make(chan struct{})
			c.inflight[key] = done
		}
		c.mu.Unlock()

		if flying {
			// Another goroutine is fetching this host; wait and re-read.
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return permissiveRecord(host, c.now(), true)
			}
		}

		record := c.fetchRecord(ctx, scheme, host)
		if serialized, err := json.Marshal(record); err == nil {
			c.cache.Put(key, string(serialized))
		}

		c.mu.Lock()
		delete(c.inflight, key)
		close(done)
		c.mu.Unlock()

		return record
	}
}

func (c *CachedRegistry) cachedRecord(key string) (Record, bool) {
	serialized, ok := c.cache.Get(key)
	if !ok {
		return Record{}, false
	}
	var record Record
	if err := json.Unmarshal([]byte(serialized), &record); err != nil {
		c.cache.Delete(key)
		return Record{}, false
	}
	return record, true
}

func (c *CachedRegistry) fetchRecord(ctx context.Context, scheme, host string) Record {
	result, fetchErr := c.fetcher.Fetch(ctx, scheme, host)
	if fetchErr != nil {
		c.metadataSink.RecordError(
			c.now(),
			"robots",
			"CachedRegistry.fetchRecord",
			mapRobotsErrorToMetadataCause(fetchErr),
			fetchErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, host),
			},
		)
		return permissiveRecord(host, c.now(), true)
	}

	return Record{
		Host:      host,
		FetchedAt: result.FetchedAt,
		TTL:       c.ttl,
		Sitemaps:  result.Response.Sitemaps,
		Response:  result.Response,
	}
}

// permissiveRecord is the fail-open record: no rules, failureTTL.
func permissiveRecord(host string, now time.Time, fetchFailed bool) Record {
	return Record{
		Host:        host,
		FetchedAt:   now,
		TTL:         failureTTL,
		FetchFailed: fetchFailed,
		Sitemaps:    []string{},
		Response: RobotsResponse{
			Host:       host,
			Sitemaps:   []string{},
			UserAgents: []UserAgentGroup{},
		},
	}
}

func recordKey(scheme, hostname string) string {
	return fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)
}
