package fetcher

import (
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

/*
Character decoding

The decoder is selected in order:
 1. the charset parameter of the Content-Type header
 2. a <meta charset> / <meta http-equiv> scan of the first 4 KiB of the body
 3. UTF-8 with replacement of invalid sequences

Binary content types bypass decoding entirely.
*/

// metaCharsetScanWindow is how many leading bytes are scanned for meta tags.
const metaCharsetScanWindow = 4096

var (
	metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?\s*([\w-]+)`)
	bareCharsetRe = regexp.MustCompile(`(?i)charset\s*=\s*([\w-]+)`)
)

// textualContentTypes are media type fragments treated as decodable text.
var textualContentTypes = []string{"text/", "html", "xml", "json", "javascript"}

// isTextualContentType reports whether the body should be decoded to text.
func isTextualContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, fragment := range textualContentTypes {
		if strings.Contains(ct, fragment) {
			return true
		}
	}
	return false
}

// charsetFromContentType extracts the charset parameter of a Content-Type
// value, or empty.
func charsetFromContentType(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 8 && strings.EqualFold(part[:8], "charset=") {
			return strings.Trim(part[8:], `"'`)
		}
	}
	return ""
}

// charsetFromMeta scans the first bytes of raw HTML for a declared charset.
func charsetFromMeta(raw []byte) string {
	head := raw
	if len(head) > metaCharsetScanWindow {
		head = head[:metaCharsetScanWindow]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	if m := bareCharsetRe.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return ""
}

// decodeBody turns raw bytes into text using the selection order above.
// It returns the decoded text and the charset label actually used.
func decodeBody(raw []byte, contentType string) (string, string) {
	label := charsetFromContentType(contentType)
	if label == "" {
		label = charsetFromMeta(raw)
	}

	if label != "" {
		if enc, canonical := charset.Lookup(label); enc != nil {
			if decoded, err := decodeWith(enc, raw); err == nil {
				return decoded, canonical
			}
		}
	}

	// Fall back to UTF-8; invalid sequences become replacement runes.
	decoded, err := decodeWith(unicode.UTF8, raw)
	if err != nil {
		return string(raw), "utf-8"
	}
	return decoded, "utf-8"
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
