package normalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/fileutil"
	"github.com/rohmanhakim/crawlkit/pkg/urlutil"
)

// Normalizer turns raw references (href values, seed strings) into canonical
// URLs, or rejects them.
type Normalizer interface {
	Normalize(raw string, base *url.URL) (url.URL, failure.ClassifiedError)
}

var _ Normalizer = (*URLNormalizer)(nil)

type URLNormalizer struct {
	ignoredExtensions map[string]struct{}
}

func NewURLNormalizer() URLNormalizer {
	return URLNormalizer{ignoredExtensions: defaultIgnoredExtensions}
}

// NewURLNormalizerWithIgnoredExtensions overrides the default extension
// ignore list. Extensions are given without the leading dot.
func NewURLNormalizerWithIgnoredExtensions(exts []string) URLNormalizer {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return URLNormalizer{ignoredExtensions: set}
}

// Normalize resolves raw against base (when base is non-nil) and
// canonicalizes the result. It rejects javascript:, mailto:, tel:, data:,
// fragment-only, malformed, host-less, and ignored-extension references.
//
// Normalize is idempotent: feeding its own output back yields the same
// canonical URL.
func (n URLNormalizer) Normalize(raw string, base *url.URL) (url.URL, failure.ClassifiedError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return url.URL{}, &RejectError{
			Message: fmt.Sprintf("reference %q resolves to nothing", raw),
			Cause:   ErrCauseFragmentOnly,
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return url.URL{}, &RejectError{
			Message: fmt.Sprintf("cannot parse %q: %v", raw, err),
			Cause:   ErrCauseMalformed,
		}
	}

	// Non-fetchable schemes are rejected before resolution so that
	// "javascript:void(0)" never inherits the base scheme.
	if parsed.Scheme != "" {
		if _, ok := schemeWhitelist[strings.ToLower(parsed.Scheme)]; !ok {
			return url.URL{}, &RejectError{
				Message: fmt.Sprintf("scheme %q is not crawlable", parsed.Scheme),
				Cause:   ErrCauseSchemeRejected,
			}
		}
	}

	resolved := *parsed
	if base != nil {
		// ResolveReference handles relative paths and protocol-relative
		// references; the latter inherit only the base scheme.
		resolved = *base.ResolveReference(parsed)
	}

	if resolved.Scheme == "" || resolved.Host == "" {
		cause := ErrCauseNoHost
		if resolved.Scheme == "" {
			cause = ErrCauseMalformed
		}
		return url.URL{}, &RejectError{
			Message: fmt.Sprintf("reference %q has no absolute form", raw),
			Cause:   cause,
		}
	}
	if _, ok := schemeWhitelist[strings.ToLower(resolved.Scheme)]; !ok {
		return url.URL{}, &RejectError{
			Message: fmt.Sprintf("scheme %q is not crawlable", resolved.Scheme),
			Cause:   ErrCauseSchemeRejected,
		}
	}

	if ext := strings.ToLower(fileutil.GetFileExtension(resolved.Path)); ext != "" {
		if _, ignored := n.ignoredExtensions[ext]; ignored {
			return url.URL{}, &RejectError{
				Message: fmt.Sprintf("path extension %q is ignored", ext),
				Cause:   ErrCauseIgnoredExtension,
			}
		}
	}

	return urlutil.Canonicalize(resolved), nil
}

// InScope reports whether a canonical URL satisfies the scope predicate.
func (s Scope) InScope(u url.URL) bool {
	if _, ok := schemeWhitelist[u.Scheme]; !ok {
		return false
	}
	if s.SameHostOnly && !strings.EqualFold(u.Host, s.StartHost) {
		return false
	}
	if s.SamePathOnly {
		return pathWithinPrefix(u.Path, s.StartPathPrefix)
	}
	return true
}

// pathWithinPrefix matches on "/" boundaries so that prefix "/docs" admits
// "/docs" and "/docs/a" but not "/docs-old".
func pathWithinPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	if path == "" {
		path = "/"
	}
	if path == trimmed {
		return true
	}
	return strings.HasPrefix(path, trimmed+"/")
}
