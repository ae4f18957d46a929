package robots

import (
	"net/url"
	"time"
)

// Permission modeling

type pathRule struct {
	// pattern is the raw rule value; it may contain * and $ wildcards.
	pattern string
	allow   bool
}

// ruleSet is the evaluated policy for one (host, user-agent) pair.
type ruleSet struct {
	host string

	// The user-agent these rules apply to (resolved, not raw)
	userAgent string

	// Path-based rules from the matched group, allow and disallow together;
	// precedence is decided per-lookup by longest match.
	rules []pathRule

	// Optional crawl delay from robots.txt
	crawlDelay *time.Duration

	// Metadata / observability
	fetchedAt time.Time
	sourceURL string

	// matchedGroup indicates if a user-agent group was matched in robots.txt
	matchedGroup bool
}

type DecisionReason string

const (
	AllowedByRobots     DecisionReason = "allowed_by_robots"
	DisallowedByRobots  DecisionReason = "disallowed_by_robots"
	UserAgentNotMatched DecisionReason = "user_agent_not_matched"
	EmptyRuleSet        DecisionReason = "empty_rule_set"
	NoMatchingRules     DecisionReason = "no_matching_rules"
	FetchFailedOpen     DecisionReason = "fetch_failed_open"
)

type Decision struct {
	Url url.URL

	Allowed bool

	// Why this decision was made (for logging/debugging)
	Reason DecisionReason

	// Optional delay override (robots crawl-delay)
	CrawlDelay *time.Duration
}

// Record is the cached per-host robots state. A host with an unfetchable
// robots.txt gets a permissive Record with FetchFailed set and failureTTL
// as its TTL, so the fetch is retried once that expires.
type Record struct {
	Host        string
	FetchedAt   time.Time
	TTL         time.Duration
	FetchFailed bool
	Sitemaps    []string
	Response    RobotsResponse
}

// Expired reports whether the record should be refetched.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.FetchedAt.Add(r.TTL))
}

const (
	// defaultTTL is how long a successfully fetched robots.txt stays cached.
	defaultTTL = time.Hour
	// failureTTL bounds how long a permissive fail-open record is trusted
	// before the fetch is retried.
	failureTTL = time.Hour
)
