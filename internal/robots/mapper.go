package robots

import (
	"strings"
	"time"
)

// MapResponseToRuleSet converts a RobotsResponse to an immutable ruleSet.
// This function selects the most specific user agent group matching the
// provided user agent string and creates a ruleSet from it.
func MapResponseToRuleSet(response RobotsResponse, targetUserAgent string, fetchedAt time.Time) ruleSet {
	rs := ruleSet{
		host:      response.Host,
		userAgent: targetUserAgent,
		fetchedAt: fetchedAt,
		sourceURL: "https://" + response.Host + "/robots.txt",
	}

	group := response.GetGroupForUserAgent(targetUserAgent)
	if group == nil {
		return rs
	}
	rs.matchedGroup = true

	rs.rules = make([]pathRule, 0, len(group.Allows)+len(group.Disallows))
	for _, allow := range group.Allows {
		rs.rules = append(rs.rules, pathRule{pattern: normalizePattern(allow.Path), allow: true})
	}
	for _, disallow := range group.Disallows {
		rs.rules = append(rs.rules, pathRule{pattern: normalizePattern(disallow.Path), allow: false})
	}

	if group.CrawlDelay != nil {
		delay := *group.CrawlDelay
		rs.crawlDelay = &delay
	}

	return rs
}

// Evaluate applies the longest-match rule: among all rules whose pattern
// matches the path, the one with the longest pattern wins; on a tie between
// an allow and a disallow of equal length, allow wins. No matching rule
// means allowed.
func (r ruleSet) Evaluate(path string) (allowed bool, reason DecisionReason) {
	if path == "" {
		path = "/"
	}
	if !r.matchedGroup {
		return true, UserAgentNotMatched
	}
	if len(r.rules) == 0 {
		return true, EmptyRuleSet
	}

	bestLen := -1
	bestAllow := true
	matched := false
	for _, rule := range r.rules {
		if !matchPattern(rule.pattern, path) {
			continue
		}
		matched = true
		l := len(rule.pattern)
		if l > bestLen {
			bestLen = l
			bestAllow = rule.allow
		} else if l == bestLen && rule.allow {
			// tie goes to allow
			bestAllow = true
		}
	}
	if !matched {
		return true, NoMatchingRules
	}
	if bestAllow {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}

// matchPattern matches a robots.txt path pattern against a URL path.
// Patterns are prefix matches with two wildcards: '*' matches any run of
// characters and a trailing '$' anchors the match to the end of the path.
func matchPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	parts := strings.Split(pattern, "*")

	// First segment must match at the start.
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	pos := len(parts[0])

	for _, part := range parts[1:] {
		if part == "" {
			// Trailing or doubled '*' matches anything, including nothing.
			pos = len(path)
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	if anchored {
		// The final literal segment must end exactly at the path's end. With
		// a trailing '*' pos already equals len(path).
		return pos == len(path) || lastSegmentReachesEnd(parts, path, pos)
	}
	return true
}

// lastSegmentReachesEnd retries the final literal at the very end of the
// path; Index found the leftmost occurrence, but '$' only needs some
// occurrence that touches the end.
func lastSegmentReachesEnd(parts []string, path string, pos int) bool {
	if len(parts) == 1 {
		// Without '*' the only literal is pinned to the start of the path.
		return false
	}
	last := parts[len(parts)-1]
	if last == "" {
		return true
	}
	return strings.HasSuffix(path, last) && len(path)-len(last) >= pos-len(last)
}

// normalizePattern ensures the pattern starts with "/" and handles special cases.
func normalizePattern(pattern string) string {
	if pattern == "" {
		return "/"
	}
	if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "*") {
		pattern = "/" + pattern
	}
	return pattern
}

// ruleSet getters for immutability

func (r ruleSet) Host() string {
	return r.host
}

func (r ruleSet) UserAgent() string {
	return r.userAgent
}

func (r ruleSet) FetchedAt() time.Time {
	return r.fetchedAt
}

func (r ruleSet) SourceURL() string {
	return r.sourceURL
}

// CrawlDelay returns the crawl delay if specified, or nil.
func (r ruleSet) CrawlDelay() *time.Duration {
	if r.crawlDelay == nil {
		return nil
	}
	delay := *r.crawlDelay
	return &delay
}
