package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharsetFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{contentType: "text/html; charset=utf-8", want: "utf-8"},
		{contentType: "text/html; charset=\"ISO-8859-1\"", want: "ISO-8859-1"},
		{contentType: "text/html", want: ""},
		{contentType: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, charsetFromContentType(tt.contentType), "content type %q", tt.contentType)
	}
}

func TestCharsetFromMeta(t *testing.T) {
	html5 := []byte(`<html><head><meta charset="iso-8859-1"></head><body></body></html>`)
	assert.Equal(t, "iso-8859-1", charsetFromMeta(html5))

	legacy := []byte(`<html><head><meta http-equiv="content-type" content="text/html; charset=windows-1252"></head></html>`)
	assert.Equal(t, "windows-1252", charsetFromMeta(legacy))

	none := []byte(`<html><head><title>x</title></head></html>`)
	assert.Equal(t, "", charsetFromMeta(none))
}

func TestCharsetFromMetaOnlyScansWindow(t *testing.T) {
	// The declaration sits past the 4 KiB scan window and must be missed.
	padding := make([]byte, metaCharsetScanWindow)
	for i := range padding {
		padding[i] = 'x'
	}
	doc := append(padding, []byte(`<meta charset="iso-8859-1">`)...)
	assert.Equal(t, "", charsetFromMeta(doc))
}

func TestDecodeBodyHeaderCharsetWins(t *testing.T) {
	// "café" in ISO-8859-1: é is 0xE9.
	raw := []byte{'c', 'a', 'f', 0xE9}
	decoded, charsetName := decodeBody(raw, "text/html; charset=iso-8859-1")
	assert.Equal(t, "café", decoded)
	assert.NotEqual(t, "", charsetName)
}

func TestDecodeBodyMetaFallback(t *testing.T) {
	raw := append([]byte(`<meta charset="iso-8859-1"><p>caf`), 0xE9, '<', '/', 'p', '>')
	decoded, _ := decodeBody(raw, "text/html")
	assert.Contains(t, decoded, "café")
}

func TestDecodeBodyUTF8FallbackWithReplacement(t *testing.T) {
	// Invalid UTF-8 byte with no declared charset anywhere.
	raw := []byte{'o', 'k', 0xFF}
	decoded, charsetName := decodeBody(raw, "text/html")
	assert.Equal(t, "utf-8", charsetName)
	assert.Contains(t, decoded, "ok")
	assert.Contains(t, decoded, "�")
}

func TestIsTextualContentType(t *testing.T) {
	assert.True(t, isTextualContentType("text/html; charset=utf-8"))
	assert.True(t, isTextualContentType("application/json"))
	assert.True(t, isTextualContentType("application/xml"))
	assert.False(t, isTextualContentType("image/png"))
	assert.False(t, isTextualContentType("application/octet-stream"))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/html", mediaType("Text/HTML; charset=utf-8"))
	assert.Equal(t, "application/pdf", mediaType("application/pdf"))
	assert.Equal(t, "", mediaType(""))
}
