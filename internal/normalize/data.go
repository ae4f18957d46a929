package normalize

import "net/url"

/*
Responsibilities
- Canonicalize raw and relative URL references
- Decide whether a canonical URL is inside the crawl scope

The normalizer is the only producer of canonical URLs; the canonical string
is the sole deduplication key everywhere downstream.
*/

// Scope is the predicate limiting which URLs may enter the frontier.
type Scope struct {
	// StartHost is the host of the seed URL.
	StartHost string
	// StartPathPrefix is the path of the seed URL, used when SamePathOnly.
	StartPathPrefix string
	// SameHostOnly restricts crawling to StartHost.
	SameHostOnly bool
	// SamePathOnly additionally requires the path to stay under
	// StartPathPrefix with a "/" boundary.
	SamePathOnly bool
}

// NewScope derives the scope predicate from a seed URL.
func NewScope(seed url.URL, sameHostOnly, samePathOnly bool) Scope {
	prefix := seed.Path
	// Directory-like seeds keep their trailing slash for boundary matching;
	// "example.com" and "example.com/" mean the whole host.
	if prefix == "" {
		prefix = "/"
	}
	return Scope{
		StartHost:       seed.Host,
		StartPathPrefix: prefix,
		SameHostOnly:    sameHostOnly,
		SamePathOnly:    samePathOnly,
	}
}

// schemeWhitelist is the set of fetchable schemes.
var schemeWhitelist = map[string]struct{}{
	"http":  {},
	"https": {},
}

// defaultIgnoredExtensions are path extensions skipped by default. The list
// mirrors binary assets the engine never wants to traverse.
var defaultIgnoredExtensions = map[string]struct{}{
	"css": {}, "js": {}, "ico": {}, "png": {}, "jpg": {}, "jpeg": {},
	"gif": {}, "svg": {}, "webp": {}, "woff": {}, "woff2": {}, "ttf": {},
	"mp4": {}, "mp3": {}, "avi": {}, "zip": {}, "tar": {}, "gz": {},
	"exe": {}, "dmg": {}, "iso": {},
}
