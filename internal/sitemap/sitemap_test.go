package sitemap_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/sitemap"
)

const urlsetDoc = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://site/a</loc><priority>0.8</priority></url>
  <url><loc>https://site/b</loc></url>
  <url><loc></loc></url>
</urlset>`

func TestParseUrlset(t *testing.T) {
	entries, children, err := sitemap.Parse([]byte(urlsetDoc))
	require.NoError(t, err)
	assert.Nil(t, children)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://site/a", entries[0].Loc)
	assert.Equal(t, 0.8, entries[0].Priority)
	assert.Equal(t, 0.0, entries[1].Priority)
}

func TestParseIndex(t *testing.T) {
	doc := `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://site/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://site/sitemap-2.xml</loc></sitemap>
</sitemapindex>`

	entries, children, err := sitemap.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Equal(t, []string{"https://site/sitemap-1.xml", "https://site/sitemap-2.xml"}, children)
}

func TestParseRejectsNonSitemap(t *testing.T) {
	_, _, err := sitemap.Parse([]byte("<html><body>nope</body></html>"))
	assert.Error(t, err)
}

func TestLoadFollowsIndexOneLevel(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/child.xml</loc></sitemap></sitemapindex>`, server.URL)
	})
	mux.HandleFunc("/child.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://site/from-child</loc><priority>0.5</priority></url></urlset>`)
	})

	loader := sitemap.NewLoaderWithClient("crawlkit/1.0", server.Client())
	entries, err := loader.Load(context.Background(), server.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://site/from-child", entries[0].Loc)
}

func TestLoadSkipsBrokenChildren(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex>
			<sitemap><loc>%s/broken.xml</loc></sitemap>
			<sitemap><loc>%s/good.xml</loc></sitemap>
		</sitemapindex>`, server.URL, server.URL)
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://site/ok</loc></url></urlset>`)
	})

	loader := sitemap.NewLoaderWithClient("crawlkit/1.0", server.Client())
	entries, err := loader.Load(context.Background(), server.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://site/ok", entries[0].Loc)
}

func TestLoaderTimeoutConstructor(t *testing.T) {
	loader := sitemap.NewLoader("crawlkit/1.0", time.Second)
	_, err := loader.Load(context.Background(), "http://127.0.0.1:1/sitemap.xml")
	assert.Error(t, err)
}
