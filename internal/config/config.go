package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the single configuration object for a crawl run. Fields are
// private; construction goes through Default, the file decoder, or the
// With* modifiers. Only the file decoder validates; Default and the With*
// modifiers do not, so callers using them call Validate themselves.
type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Seed page the crawler begins discovering and traversing from.
	startURL url.URL
	// Maximum number of hyperlink hops from the seed URL.
	maxDepth int
	// Restrict crawling to the seed's host.
	sameHostOnly bool
	// Additionally restrict crawling to the seed's path prefix.
	samePathOnly bool
	// Honor robots.txt rules before admitting URLs.
	respectRobots bool
	// Seed the frontier from robots.txt Sitemap declarations.
	seedFromSitemaps bool
	// Bound on queued frontier entries; 0 means unbounded.
	maxQueueSize int

	//===============
	// Workers
	//===============
	// Number of crawl worker goroutines draining the frontier.
	workers int
	// Per-worker cap on concurrent requests in distributed mode.
	maxConcurrentRequests int

	//===============
	// Fetch
	//===============
	userAgent string
	// maxRetries caps retries; total attempts are 1 + maxRetries.
	maxRetries int
	// Maximum time for a single fetch attempt.
	timeout   time.Duration
	verifyTls bool
	// Optional proxy URL; nil disables proxying.
	proxy *url.URL
	// Reject response bodies larger than this; 0 means unlimited.
	maxResponseBytes int64
	// Controls the random number generator used by retry jitter.
	randomSeed int64

	//===============
	// Rendered DOM
	//===============
	useRenderedDom     bool
	renderEndpoint     string
	renderWaitSelector string
	renderWaitTimeout  time.Duration
	browserType        string

	//===============
	// Politeness
	//===============
	// Minimum fixed waiting time between two requests to the same host.
	baseDelay time.Duration
	// Apply the per-host delay at all (off means best-effort hammering).
	usePerHostDelay bool
	// Honor robots.txt Crawl-Delay when larger than baseDelay.
	respectCrawlDelay bool
	// Grow the per-host delay on 429/5xx pressure and decay it on success.
	adaptive bool

	//===============
	// Budget
	//===============
	maxPages     int64
	maxBytes     int64
	maxWallClock time.Duration

	//===============
	// Priority
	//===============
	// strategy is one of bfs, dfs, sitemap, pattern, composite.
	strategy string
	// patternRules feed the pattern strategy: regex → weight.
	patternRules []PatternRuleConfig

	//===============
	// Incremental state
	//===============
	// Path of the pages SQLite database; empty disables incremental state.
	incrementalDbPath string
	// Re-crawl pages older than this; 0 re-checks every known page on each
	// run, with conditional headers.
	incrementalMaxAge time.Duration
	// Force bypasses every freshness check.
	forceRecrawl bool
	// Path of the content-hash ledger; empty disables cross-run dedup.
	hashStoreDbPath string

	//===============
	// Output
	//===============
	// Root directory for the artifact log and markdown files.
	outputDir string
	// Convert HTML artifacts to Markdown files as they are emitted.
	convertMarkdown bool

	//===============
	// Distributed mode
	//===============
	distributed       bool
	redisAddr         string
	tasksTopic        string
	resultsTopic      string
	visibilityTimeout time.Duration
}

// PatternRuleConfig is one scored URL pattern for the pattern strategy.
type PatternRuleConfig struct {
	Pattern string  `json:"pattern" yaml:"pattern"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// Default returns the configuration for a seed URL with every documented
// default applied.
func Default(startURL url.URL) Config {
	return Config{
		startURL:              startURL,
		maxDepth:              3,
		sameHostOnly:          true,
		respectRobots:         true,
		workers:               1,
		maxConcurrentRequests: 5,
		userAgent:             "crawlkit/1.0",
		maxRetries:            3,
		timeout:               10 * time.Second,
		verifyTls:             true,
		baseDelay:             100 * time.Millisecond,
		usePerHostDelay:       true,
		respectCrawlDelay:     true,
		adaptive:              true,
		strategy:              "bfs",
		tasksTopic:            "crawlkit:tasks",
		resultsTopic:          "crawlkit:results",
		visibilityTimeout:     30 * time.Second,
		outputDir:             "./crawl-output",
	}
}

// Validate enforces cross-field invariants. Construction helpers call it;
// callers composing Config by hand should too.
func (c Config) Validate() *ConfigError {
	if c.startURL.Scheme != "http" && c.startURL.Scheme != "https" {
		return &ConfigError{
			Message: fmt.Sprintf("seed scheme %q is not crawlable", c.startURL.Scheme),
			Cause:   ErrCauseInvalidValue,
			Field:   "startUrl",
		}
	}
	if c.startURL.Host == "" {
		return &ConfigError{
			Message: "seed URL has no host",
			Cause:   ErrCauseMissingSeed,
			Field:   "startUrl",
		}
	}
	if c.maxDepth < 0 {
		return &ConfigError{
			Message: "maxDepth cannot be negative",
			Cause:   ErrCauseInvalidValue,
			Field:   "maxDepth",
		}
	}
	if c.workers < 1 {
		return &ConfigError{
			Message: "workers must be at least 1",
			Cause:   ErrCauseInvalidValue,
			Field:   "workers",
		}
	}
	if c.maxRetries < 0 {
		return &ConfigError{
			Message: "maxRetries cannot be negative",
			Cause:   ErrCauseInvalidValue,
			Field:   "maxRetries",
		}
	}
	switch c.strategy {
	case "bfs", "dfs", "sitemap", "pattern", "composite":
	default:
		return &ConfigError{
			Message: fmt.Sprintf("unknown strategy %q", c.strategy),
			Cause:   ErrCauseInvalidValue,
			Field:   "strategy",
		}
	}
	if c.distributed && c.redisAddr == "" {
		return &ConfigError{
			Message: "distributed mode needs a redis address",
			Cause:   ErrCauseInvalidValue,
			Field:   "redisAddr",
		}
	}
	return nil
}

// Getters

func (c Config) StartURL() url.URL { return c.startURL }
func (c Config) MaxDepth() int { return c.maxDepth }
func (c Config) SameHostOnly() bool { return c.sameHostOnly }
func (c Config) SamePathOnly() bool { return c.samePathOnly }
func (c Config) RespectRobots() bool { return c.respectRobots }
func (c Config) SeedFromSitemaps() bool { return c.seedFromSitemaps }
func (c Config) MaxQueueSize() int { return c.maxQueueSize }
func (c Config) Workers() int { return c.workers }
func (c Config) MaxConcurrentRequests() int { return c.maxConcurrentRequests }
func (c Config) UserAgent() string { return c.userAgent }
func (c Config) MaxRetries() int { return c.maxRetries }
func (c Config) Timeout() time.Duration { return c.timeout }
func (c Config) VerifyTls() bool { return c.verifyTls }
func (c Config) Proxy() *url.URL { return c.proxy }
func (c Config) MaxResponseBytes() int64 { return c.maxResponseBytes }
func (c Config) RandomSeed() int64 { return c.randomSeed }
func (c Config) UseRenderedDom() bool { return c.useRenderedDom }
func (c Config) RenderEndpoint() string { return c.renderEndpoint }
func (c Config) RenderWaitSelector() string { return c.renderWaitSelector }
func (c Config) RenderWaitTimeout() time.Duration { return c.renderWaitTimeout }
func (c Config) BrowserType() string { return c.browserType }
func (c Config) BaseDelay() time.Duration { return c.baseDelay }
func (c Config) UsePerHostDelay() bool { return c.usePerHostDelay }
func (c Config) RespectCrawlDelay() bool { return c.respectCrawlDelay }
func (c Config) Adaptive() bool { return c.adaptive }
func (c Config) MaxPages() int64 { return c.maxPages }
func (c Config) MaxBytes() int64 { return c.maxBytes }
func (c Config) MaxWallClock() time.Duration { return c.maxWallClock }
func (c Config) Strategy() string { return c.strategy }
func (c Config) PatternRules() []PatternRuleConfig { return c.patternRules }
func (c Config) IncrementalDbPath() string { return c.incrementalDbPath }
func (c Config) IncrementalMaxAge() time.Duration { return c.incrementalMaxAge }
func (c Config) ForceRecrawl() bool { return c.forceRecrawl }
func (c Config) HashStoreDbPath() string { return c.hashStoreDbPath }
func (c Config) OutputDir() string { return c.outputDir }
func (c Config) ConvertMarkdown() bool { return c.convertMarkdown }
func (c Config) Distributed() bool { return c.distributed }
func (c Config) RedisAddr() string { return c.redisAddr }
func (c Config) TasksTopic() string { return c.tasksTopic }
func (c Config) ResultsTopic() string { return c.resultsTopic }
func (c Config) VisibilityTimeout() time.Duration { return c.visibilityTimeout }
