package config_test

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/config"
)

func seed(t *testing.T) url.URL {
	t.Helper()
	u, err := url.Parse("https://example.com/docs/")
	require.NoError(t, err)
	return *u
}

func TestDefaults(t *testing.T) {
	cfg := config.Default(seed(t))

	assert.Equal(t, 3, cfg.MaxDepth())
	assert.True(t, cfg.SameHostOnly())
	assert.False(t, cfg.SamePathOnly())
	assert.True(t, cfg.RespectRobots())
	assert.Equal(t, 0, cfg.MaxQueueSize(), "queue is unbounded by default")
	assert.Equal(t, 1, cfg.Workers())
	assert.Equal(t, 5, cfg.MaxConcurrentRequests())
	assert.Equal(t, 3, cfg.MaxRetries())
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.True(t, cfg.VerifyTls())
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay())
	assert.True(t, cfg.UsePerHostDelay())
	assert.True(t, cfg.RespectCrawlDelay())
	assert.True(t, cfg.Adaptive())
	assert.Equal(t, "bfs", cfg.Strategy())
	assert.Nil(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	badScheme, _ := url.Parse("ftp://example.com/")
	assert.NotNil(t, config.Default(*badScheme).Validate())

	noHost, _ := url.Parse("https:///path-only")
	assert.NotNil(t, config.Default(*noHost).Validate())

	assert.NotNil(t, config.Default(seed(t)).WithWorkers(0).Validate())
	assert.NotNil(t, config.Default(seed(t)).WithMaxDepth(-1).Validate())
	assert.NotNil(t, config.Default(seed(t)).WithStrategy("alphabetical", nil).Validate())
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestWithConfigFileJSON(t *testing.T) {
	path := writeConfig(t, "crawl.json", `{
		"startUrl": "https://example.com/docs/",
		"maxDepth": 5,
		"workers": 4,
		"sameHostOnly": false,
		"respectRobots": false,
		"userAgent": "custom/2.0",
		"timeoutSeconds": 2.5,
		"baseDelaySeconds": 0.25,
		"maxPages": 100,
		"strategy": "dfs",
		"incrementalDbPath": "/tmp/pages.db",
		"incrementalMaxAgeHours": 12
	}`)

	cfg, err := config.WithConfigFile(path)
	require.Nil(t, err)

	cfgStartURL := cfg.StartURL()
	assert.Equal(t, "https://example.com/docs/", cfgStartURL.String())
	assert.Equal(t, 5, cfg.MaxDepth())
	assert.Equal(t, 4, cfg.Workers())
	assert.False(t, cfg.SameHostOnly())
	assert.False(t, cfg.RespectRobots())
	assert.Equal(t, "custom/2.0", cfg.UserAgent())
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout())
	assert.Equal(t, 250*time.Millisecond, cfg.BaseDelay())
	assert.Equal(t, int64(100), cfg.MaxPages())
	assert.Equal(t, "dfs", cfg.Strategy())
	assert.Equal(t, "/tmp/pages.db", cfg.IncrementalDbPath())
	assert.Equal(t, 12*time.Hour, cfg.IncrementalMaxAge())
}

func TestWithConfigFileYAML(t *testing.T) {
	path := writeConfig(t, "crawl.yaml", `
startUrl: https://example.com/
strategy: pattern
patternRules:
  - pattern: "/docs/"
    weight: 2.0
maxResponseBytes: 52428800
verifyTls: false
`)

	cfg, err := config.WithConfigFile(path)
	require.Nil(t, err)

	assert.Equal(t, "pattern", cfg.Strategy())
	require.Len(t, cfg.PatternRules(), 1)
	assert.Equal(t, "/docs/", cfg.PatternRules()[0].Pattern)
	assert.Equal(t, 2.0, cfg.PatternRules()[0].Weight)
	assert.Equal(t, int64(52428800), cfg.MaxResponseBytes())
	assert.False(t, cfg.VerifyTls())
}

func TestWithConfigFileKeepsDefaultsForAbsentKeys(t *testing.T) {
	path := writeConfig(t, "crawl.json", `{"startUrl": "https://example.com/"}`)

	cfg, err := config.WithConfigFile(path)
	require.Nil(t, err)

	// Options defaulting to true stay true when the file omits them.
	assert.True(t, cfg.SameHostOnly())
	assert.True(t, cfg.RespectRobots())
	assert.True(t, cfg.VerifyTls())
	assert.Equal(t, 3, cfg.MaxDepth())
}

func TestWithConfigFileErrors(t *testing.T) {
	_, err := config.WithConfigFile("/does/not/exist.json")
	require.NotNil(t, err)
	assert.Equal(t, config.ErrCauseFileUnreadable, err.Cause)

	badJSON := writeConfig(t, "bad.json", `{`)
	_, err = config.WithConfigFile(badJSON)
	require.NotNil(t, err)
	assert.Equal(t, config.ErrCauseDecodeFailure, err.Cause)

	noSeed := writeConfig(t, "noseed.json", `{"maxDepth": 2}`)
	_, err = config.WithConfigFile(noSeed)
	require.NotNil(t, err)
	assert.Equal(t, config.ErrCauseMissingSeed, err.Cause)
}

func TestDistributedNeedsRedis(t *testing.T) {
	cfg := config.Default(seed(t)).WithDistributed("")
	assert.NotNil(t, cfg.Validate())

	cfg = config.Default(seed(t)).WithDistributed("localhost:6379")
	assert.Nil(t, cfg.Validate())
}
