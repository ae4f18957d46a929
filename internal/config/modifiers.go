package config

import (
	"net/url"
	"time"
)

// With* modifiers return an adjusted copy; the CLI builds its config from
// flags with these when no config file is given. A config file's values
// are used as loaded; flags are not layered on top of them.

func (c Config) WithMaxDepth(depth int) Config {
	c.maxDepth = depth
	return c
}

func (c Config) WithScope(sameHostOnly, samePathOnly bool) Config {
	c.sameHostOnly = sameHostOnly
	c.samePathOnly = samePathOnly
	return c
}

func (c Config) WithRespectRobots(respect bool) Config {
	c.respectRobots = respect
	return c
}

func (c Config) WithSeedFromSitemaps(seed bool) Config {
	c.seedFromSitemaps = seed
	return c
}

func (c Config) WithMaxQueueSize(size int) Config {
	c.maxQueueSize = size
	return c
}

func (c Config) WithWorkers(workers int) Config {
	c.workers = workers
	return c
}

func (c Config) WithUserAgent(userAgent string) Config {
	c.userAgent = userAgent
	return c
}

func (c Config) WithMaxRetries(retries int) Config {
	c.maxRetries = retries
	return c
}

func (c Config) WithTimeout(timeout time.Duration) Config {
	c.timeout = timeout
	return c
}

func (c Config) WithVerifyTls(verify bool) Config {
	c.verifyTls = verify
	return c
}

func (c Config) WithProxy(proxy *url.URL) Config {
	c.proxy = proxy
	return c
}

func (c Config) WithMaxResponseBytes(limit int64) Config {
	c.maxResponseBytes = limit
	return c
}

func (c Config) WithRandomSeed(seed int64) Config {
	c.randomSeed = seed
	return c
}

func (c Config) WithRenderedDom(endpoint, waitSelector string, waitTimeout time.Duration, browserType string) Config {
	c.useRenderedDom = true
	c.renderEndpoint = endpoint
	c.renderWaitSelector = waitSelector
	c.renderWaitTimeout = waitTimeout
	c.browserType = browserType
	return c
}

func (c Config) WithBaseDelay(delay time.Duration) Config {
	c.baseDelay = delay
	return c
}

func (c Config) WithAdaptive(adaptive bool) Config {
	c.adaptive = adaptive
	return c
}

func (c Config) WithBudget(maxPages, maxBytes int64, maxWallClock time.Duration) Config {
	c.maxPages = maxPages
	c.maxBytes = maxBytes
	c.maxWallClock = maxWallClock
	return c
}

func (c Config) WithStrategy(strategy string, rules []PatternRuleConfig) Config {
	c.strategy = strategy
	c.patternRules = rules
	return c
}

func (c Config) WithIncrementalStore(dbPath string, maxAge time.Duration, force bool) Config {
	c.incrementalDbPath = dbPath
	c.incrementalMaxAge = maxAge
	c.forceRecrawl = force
	return c
}

func (c Config) WithHashStore(dbPath string) Config {
	c.hashStoreDbPath = dbPath
	return c
}

func (c Config) WithOutputDir(dir string) Config {
	c.outputDir = dir
	return c
}

func (c Config) WithConvertMarkdown(convert bool) Config {
	c.convertMarkdown = convert
	return c
}

func (c Config) WithDistributed(redisAddr string) Config {
	c.distributed = true
	c.redisAddr = redisAddr
	return c
}
