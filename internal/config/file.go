package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// configDTO is the file representation. Pointer fields distinguish "absent"
// from zero for options whose default is true.
type configDTO struct {
	StartURL              string              `json:"startUrl" yaml:"startUrl"`
	MaxDepth              *int                `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	SameHostOnly          *bool               `json:"sameHostOnly,omitempty" yaml:"sameHostOnly,omitempty"`
	SamePathOnly          *bool               `json:"samePathOnly,omitempty" yaml:"samePathOnly,omitempty"`
	RespectRobots         *bool               `json:"respectRobots,omitempty" yaml:"respectRobots,omitempty"`
	SeedFromSitemaps      *bool               `json:"seedFromSitemaps,omitempty" yaml:"seedFromSitemaps,omitempty"`
	MaxQueueSize          *int                `json:"maxQueueSize,omitempty" yaml:"maxQueueSize,omitempty"`
	Workers               *int                `json:"workers,omitempty" yaml:"workers,omitempty"`
	MaxConcurrentRequests *int                `json:"maxConcurrentRequests,omitempty" yaml:"maxConcurrentRequests,omitempty"`
	UserAgent             string              `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	MaxRetries            *int                `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	TimeoutSeconds        *float64            `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
	VerifyTls             *bool               `json:"verifyTls,omitempty" yaml:"verifyTls,omitempty"`
	Proxy                 string              `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	MaxResponseBytes      *int64              `json:"maxResponseBytes,omitempty" yaml:"maxResponseBytes,omitempty"`
	RandomSeed            *int64              `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	UseRenderedDom        *bool               `json:"useRenderedDom,omitempty" yaml:"useRenderedDom,omitempty"`
	RenderEndpoint        string              `json:"renderEndpoint,omitempty" yaml:"renderEndpoint,omitempty"`
	RenderWaitSelector    string              `json:"renderWaitSelector,omitempty" yaml:"renderWaitSelector,omitempty"`
	RenderWaitTimeoutMs   *int64              `json:"renderWaitTimeoutMs,omitempty" yaml:"renderWaitTimeoutMs,omitempty"`
	BrowserType           string              `json:"browserType,omitempty" yaml:"browserType,omitempty"`
	BaseDelaySeconds      *float64            `json:"baseDelaySeconds,omitempty" yaml:"baseDelaySeconds,omitempty"`
	UsePerHostDelay       *bool               `json:"usePerHostDelay,omitempty" yaml:"usePerHostDelay,omitempty"`
	RespectCrawlDelay     *bool               `json:"respectCrawlDelay,omitempty" yaml:"respectCrawlDelay,omitempty"`
	Adaptive              *bool               `json:"adaptive,omitempty" yaml:"adaptive,omitempty"`
	MaxPages              *int64              `json:"maxPages,omitempty" yaml:"maxPages,omitempty"`
	MaxBytes              *int64              `json:"maxBytes,omitempty" yaml:"maxBytes,omitempty"`
	MaxWallClockSeconds   *float64            `json:"maxWallClockSeconds,omitempty" yaml:"maxWallClockSeconds,omitempty"`
	Strategy              string              `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	PatternRules          []PatternRuleConfig `json:"patternRules,omitempty" yaml:"patternRules,omitempty"`
	IncrementalDbPath     string              `json:"incrementalDbPath,omitempty" yaml:"incrementalDbPath,omitempty"`
	IncrementalMaxAgeH    *float64            `json:"incrementalMaxAgeHours,omitempty" yaml:"incrementalMaxAgeHours,omitempty"`
	ForceRecrawl          *bool               `json:"forceRecrawl,omitempty" yaml:"forceRecrawl,omitempty"`
	HashStoreDbPath       string              `json:"hashStoreDbPath,omitempty" yaml:"hashStoreDbPath,omitempty"`
	OutputDir             string              `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	ConvertMarkdown       *bool               `json:"convertMarkdown,omitempty" yaml:"convertMarkdown,omitempty"`
	Distributed           *bool               `json:"distributed,omitempty" yaml:"distributed,omitempty"`
	RedisAddr             string              `json:"redisAddr,omitempty" yaml:"redisAddr,omitempty"`
	TasksTopic            string              `json:"tasksTopic,omitempty" yaml:"tasksTopic,omitempty"`
	ResultsTopic          string              `json:"resultsTopic,omitempty" yaml:"resultsTopic,omitempty"`
	VisibilityTimeoutS    *float64            `json:"visibilityTimeoutSeconds,omitempty" yaml:"visibilityTimeoutSeconds,omitempty"`
}

// WithConfigFile loads a JSON or YAML config file, decided by extension.
func WithConfigFile(path string) (Config, *ConfigError) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{
			Message: fmt.Sprintf("read %s: %v", path, err),
			Cause:   ErrCauseFileUnreadable,
		}
	}

	var dto configDTO
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &dto); err != nil {
			return Config{}, &ConfigError{
				Message: fmt.Sprintf("decode %s: %v", path, err),
				Cause:   ErrCauseDecodeFailure,
			}
		}
	default:
		if err := json.Unmarshal(raw, &dto); err != nil {
			return Config{}, &ConfigError{
				Message: fmt.Sprintf("decode %s: %v", path, err),
				Cause:   ErrCauseDecodeFailure,
			}
		}
	}

	return newConfigFromDTO(dto)
}

func newConfigFromDTO(dto configDTO) (Config, *ConfigError) {
	if dto.StartURL == "" {
		return Config{}, &ConfigError{
			Message: "no startUrl configured",
			Cause:   ErrCauseMissingSeed,
			Field:   "startUrl",
		}
	}
	seed, err := url.Parse(dto.StartURL)
	if err != nil {
		return Config{}, &ConfigError{
			Message: fmt.Sprintf("parse startUrl: %v", err),
			Cause:   ErrCauseInvalidValue,
			Field:   "startUrl",
		}
	}

	cfg := Default(*seed)

	if dto.MaxDepth != nil {
		cfg.maxDepth = *dto.MaxDepth
	}
	if dto.SameHostOnly != nil {
		cfg.sameHostOnly = *dto.SameHostOnly
	}
	if dto.SamePathOnly != nil {
		cfg.samePathOnly = *dto.SamePathOnly
	}
	if dto.RespectRobots != nil {
		cfg.respectRobots = *dto.RespectRobots
	}
	if dto.SeedFromSitemaps != nil {
		cfg.seedFromSitemaps = *dto.SeedFromSitemaps
	}
	if dto.MaxQueueSize != nil {
		cfg.maxQueueSize = *dto.MaxQueueSize
	}
	if dto.Workers != nil {
		cfg.workers = *dto.Workers
	}
	if dto.MaxConcurrentRequests != nil {
		cfg.maxConcurrentRequests = *dto.MaxConcurrentRequests
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.MaxRetries != nil {
		cfg.maxRetries = *dto.MaxRetries
	}
	if dto.TimeoutSeconds != nil {
		cfg.timeout = secondsToDuration(*dto.TimeoutSeconds)
	}
	if dto.VerifyTls != nil {
		cfg.verifyTls = *dto.VerifyTls
	}
	if dto.Proxy != "" {
		proxyURL, proxyErr := url.Parse(dto.Proxy)
		if proxyErr != nil {
			return Config{}, &ConfigError{
				Message: fmt.Sprintf("parse proxy: %v", proxyErr),
				Cause:   ErrCauseInvalidValue,
				Field:   "proxy",
			}
		}
		cfg.proxy = proxyURL
	}
	if dto.MaxResponseBytes != nil {
		cfg.maxResponseBytes = *dto.MaxResponseBytes
	}
	if dto.RandomSeed != nil {
		cfg.randomSeed = *dto.RandomSeed
	}
	if dto.UseRenderedDom != nil {
		cfg.useRenderedDom = *dto.UseRenderedDom
	}
	if dto.RenderEndpoint != "" {
		cfg.renderEndpoint = dto.RenderEndpoint
	}
	if dto.RenderWaitSelector != "" {
		cfg.renderWaitSelector = dto.RenderWaitSelector
	}
	if dto.RenderWaitTimeoutMs != nil {
		cfg.renderWaitTimeout = time.Duration(*dto.RenderWaitTimeoutMs) * time.Millisecond
	}
	if dto.BrowserType != "" {
		cfg.browserType = dto.BrowserType
	}
	if dto.BaseDelaySeconds != nil {
		cfg.baseDelay = secondsToDuration(*dto.BaseDelaySeconds)
	}
	if dto.UsePerHostDelay != nil {
		cfg.usePerHostDelay = *dto.UsePerHostDelay
	}
	if dto.RespectCrawlDelay != nil {
		cfg.respectCrawlDelay = *dto.RespectCrawlDelay
	}
	if dto.Adaptive != nil {
		cfg.adaptive = *dto.Adaptive
	}
	if dto.MaxPages != nil {
		cfg.maxPages = *dto.MaxPages
	}
	if dto.MaxBytes != nil {
		cfg.maxBytes = *dto.MaxBytes
	}
	if dto.MaxWallClockSeconds != nil {
		cfg.maxWallClock = secondsToDuration(*dto.MaxWallClockSeconds)
	}
	if dto.Strategy != "" {
		cfg.strategy = dto.Strategy
	}
	cfg.patternRules = dto.PatternRules
	if dto.IncrementalDbPath != "" {
		cfg.incrementalDbPath = dto.IncrementalDbPath
	}
	if dto.IncrementalMaxAgeH != nil {
		cfg.incrementalMaxAge = time.Duration(*dto.IncrementalMaxAgeH * float64(time.Hour))
	}
	if dto.ForceRecrawl != nil {
		cfg.forceRecrawl = *dto.ForceRecrawl
	}
	if dto.HashStoreDbPath != "" {
		cfg.hashStoreDbPath = dto.HashStoreDbPath
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}
	if dto.ConvertMarkdown != nil {
		cfg.convertMarkdown = *dto.ConvertMarkdown
	}
	if dto.Distributed != nil {
		cfg.distributed = *dto.Distributed
	}
	if dto.RedisAddr != "" {
		cfg.redisAddr = dto.RedisAddr
	}
	if dto.TasksTopic != "" {
		cfg.tasksTopic = dto.TasksTopic
	}
	if dto.ResultsTopic != "" {
		cfg.resultsTopic = dto.ResultsTopic
	}
	if dto.VisibilityTimeoutS != nil {
		cfg.visibilityTimeout = secondsToDuration(*dto.VisibilityTimeoutS)
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return Config{}, validationErr
	}
	return cfg, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
