package urlutil

import (
	"net/url"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Percent-encoding is normalized to upper-case hex
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - An empty query is stripped; a non-empty query is preserved in order
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Re-encode the path so percent-escapes come out upper-case and stable
	canonical.RawPath = ""
	canonical.Path = normalizeEscapes(canonical.Path)

	// Clean the path: remove trailing slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// Strip an empty query; keep a populated one in declaration order
	if canonical.RawQuery == "" {
		canonical.ForceQuery = false
	}

	return canonical
}

// normalizeEscapes decodes then re-encodes a decoded path, which the url
// package serializes with upper-case hex escapes.
func normalizeEscapes(path string) string {
	if path == "" {
		return path
	}
	u := url.URL{Path: path}
	escaped := u.EscapedPath()
	// Round-trip through EscapedPath already yields %XX in upper case for
	// bytes that must stay encoded; decode back to the semantic path form.
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return path
	}
	return decoded
}

// Resolve turns a possibly relative reference into an absolute URL against
// the given base scheme and host. Protocol-relative references (//host/x)
// inherit only the base scheme and must not escape to a new one.
func Resolve(ref url.URL, baseScheme, baseHost string) url.URL {
	resolved := ref
	if resolved.Scheme == "" {
		resolved.Scheme = baseScheme
	}
	if resolved.Host == "" {
		resolved.Host = baseHost
		if !strings.HasPrefix(resolved.Path, "/") && resolved.Path != "" {
			resolved.Path = "/" + resolved.Path
		}
	}
	return resolved
}

// FilterByHost keeps only URLs whose host matches the given host
// (case-insensitive).
func FilterByHost(host string, urls []url.URL) []url.URL {
	kept := make([]url.URL, 0, len(urls))
	want := lowerASCII(host)
	for _, u := range urls {
		if lowerASCII(u.Host) == want {
			kept = append(kept, u)
		}
	}
	return kept
}

// lowerASCII converts ASCII characters to lowercase, allocating only when
// an upper-case letter is present.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
