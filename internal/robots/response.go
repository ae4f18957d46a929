package robots

import (
	"strings"
	"time"
)

// RobotsResponse represents the parsed content of a robots.txt file.
// This struct is used for parsing the fetch response and should not be
// used directly for decision making - instead, map it to ruleSet.
type RobotsResponse struct {
	// The host this robots.txt applies to
	Host string

	// List of sitemap URLs found in the robots.txt
	Sitemaps []string

	// User agent groups, each containing rules for specific user agents
	UserAgents []UserAgentGroup
}

// UserAgentGroup represents a set of rules for one or more user agents.
type UserAgentGroup struct {
	// List of user agent strings this group applies to
	UserAgents []string

	// Allow rules (paths that may be crawled)
	Allows []PathRule

	// Disallow rules (paths that may not be crawled)
	Disallows []PathRule

	// Optional crawl delay
	CrawlDelay *time.Duration
}

// PathRule represents a single allow or disallow rule.
type PathRule struct {
	// The path pattern (may include wildcards * and $)
	Path string
}

// IsEmpty returns true if the response contains no rules or sitemaps.
func (r RobotsResponse) IsEmpty() bool {
	if len(r.Sitemaps) > 0 {
		return false
	}
	for _, group := range r.UserAgents {
		if len(group.Allows) > 0 || len(group.Disallows) > 0 {
			return false
		}
	}
	return true
}

// GetGroupForUserAgent returns the most specific user agent group for the given user agent.
// Returns nil if no matching group is found.
// Matching is case-insensitive:
//  1. Exact matches take precedence over prefix matches
//  2. Longer prefix matches take precedence over shorter ones
//  3. The wildcard (*) matches all user agents, with lowest precedence
func (r RobotsResponse) GetGroupForUserAgent(userAgent string) *UserAgentGroup {
	userAgentLower := strings.ToLower(userAgent)

	var bestMatch *UserAgentGroup
	bestMatchLength := -1

	for i := range r.UserAgents {
		for _, ua := range r.UserAgents[i].UserAgents {
			uaLower := strings.ToLower(ua)

			if uaLower == userAgentLower {
				return &r.UserAgents[i]
			}

			if ua == "*" {
				if bestMatch == nil {
					bestMatch = &r.UserAgents[i]
					bestMatchLength = 0
				}
				continue
			}

			if strings.HasPrefix(userAgentLower, uaLower) && len(uaLower) > bestMatchLength {
				bestMatch = &r.UserAgents[i]
				bestMatchLength = len(uaLower)
			}
		}
	}

	return bestMatch
}
