package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/stretchr/testify/require"
)

// countingTransport counts the requests that reach the network
type countingTransport struct {
	next  http.RoundTripper
	count int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.count, 1)
	return c.next.RoundTrip(req)
}

func (c *countingTransport) requests() int {
	return int(atomic.LoadInt32(&c.count))
}

func newTestCache(t *testing.T, srv *httptest.Server) (*Cache, *countingTransport, string) {
	t.Helper()
	dir := t.TempDir()
	rt := &countingTransport{next: srv.Client().Transport}
	return NewCache(Config{Dir: dir, Transport: rt, RequestsPerSecond: -1}), rt, dir
}

func readAll(t *testing.T, e *Entry) []byte {
	t.Helper()
	data, err := io.ReadAll(e.Body)
	require.NoError(t, err)
	require.NoError(t, e.Body.Close())
	return data
}

const productPage = "<html><body><p>Caf\xc3\xa9 parts</p></body></html>"

func TestCache_FetchTwice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Last-Modified", "Mon, 19 Oct 2026 08:00:00 GMT")
		w.Write([]byte(productPage))
	}))
	defer srv.Close()

	cache, rt, _ := newTestCache(t, srv)
	url := srv.URL + "/web/c/connectors/pin-strips/?page=1"

	first, err := cache.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.False(t, first.Cached)
	firstBody := readAll(t, first)

	second, err := cache.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.True(t, second.Cached)
	secondBody := readAll(t, second)

	require.Equal(t, []byte(productPage), firstBody)
	require.Equal(t, firstBody, secondBody)
	require.Equal(t, 1, rt.requests(), "second fetch must not touch the network")

	mediaType, params := second.ContentType()
	require.Equal(t, "text/html", mediaType)
	require.Equal(t, "utf-8", params["charset"])
	require.Equal(t, "Mon, 19 Oct 2026 08:00:00 GMT", second.Header.Get("Last-Modified"))
	require.Empty(t, second.Header.Get("Content-Length"))
}

func TestCache_PartialReadLeavesNoMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("<p>row</p>", 1000)))
	}))
	defer srv.Close()

	cache, rt, root := newTestCache(t, srv)
	url := srv.URL + "/listing"

	entry, err := cache.Fetch(context.Background(), url)
	require.NoError(t, err)
	buf := make([]byte, 10)
	_, err = io.ReadFull(entry.Body, buf)
	require.NoError(t, err)
	require.NoError(t, entry.Body.Close())

	rel, stem, err := Key(url)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, rel, stem+".mime"))
	require.True(t, errors.Is(err, os.ErrNotExist), "metadata must not exist after a partial read")
	_, err = os.Stat(filepath.Join(root, rel, stem+".body"))
	require.True(t, errors.Is(err, os.ErrNotExist), "partial body must be removed")

	entry, err = cache.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.False(t, entry.Cached)
	readAll(t, entry)
	require.Equal(t, 2, rt.requests())
}

func TestCache_OrphanBodyIsReplaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>fresh</html>"))
	}))
	defer srv.Close()

	cache, _, root := newTestCache(t, srv)
	url := srv.URL + "/a/b/page.html"
	rel, stem, err := Key(url)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, rel), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, rel, stem+".body"), []byte("<html>trunc"), 0o644))

	entry, err := cache.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, "<html>fresh</html>", string(readAll(t, entry)))

	entry, err = cache.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.True(t, entry.Cached)
	require.Equal(t, "<html>fresh</html>", string(readAll(t, entry)))
}

func TestCache_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
	}{
		{name: "not found", status: http.StatusNotFound, contentType: "text/html"},
		{name: "wrong content type", status: http.StatusOK, contentType: "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write([]byte("nope"))
			}))
			defer srv.Close()

			cache, _, root := newTestCache(t, srv)
			_, err := cache.Fetch(context.Background(), srv.URL+"/x")
			require.ErrorIs(t, err, sheetfeed.ErrProtocol)

			rel, _, err := Key(srv.URL + "/x")
			require.NoError(t, err)
			entries, err := os.ReadDir(filepath.Join(root, rel))
			require.NoError(t, err)
			require.Empty(t, entries, "failed fetch left files behind")
		})
	}
}

func TestCache_CorruptMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("corrupt metadata must not fall back to the network")
	}))
	defer srv.Close()

	cache, _, root := newTestCache(t, srv)
	url := srv.URL + "/x"
	rel, stem, err := Key(url)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, rel), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, rel, stem+".mime"), []byte("Content-Type: text/html\r\n\r\n\r\n"), 0o644))

	_, err = cache.Fetch(context.Background(), url)
	require.ErrorIs(t, err, sheetfeed.ErrConfig)
}

func TestKey(t *testing.T) {
	dir, stem, err := Key("https://au.example.com/web/c/connectors/pin-strips/")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("https", "au.example.com", "web", "c", "connectors", "pin-strips"), dir)
	require.Len(t, stem, 8)

	_, withPage, err := Key("https://au.example.com/web/c/connectors/pin-strips/?page=2")
	require.NoError(t, err)
	require.NotEqual(t, stem, withPage, "query must change the key")

	dir, stem, err = Key("http://127.0.0.1:8080/a/index.html")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("http", "127.0.0.1_8080", "a"), dir)
	require.True(t, strings.HasPrefix(stem, "index.html."))

	_, _, err = Key("/relative/path")
	require.ErrorIs(t, err, sheetfeed.ErrConfig)
	_, _, err = Key("https://example.com/a/../../etc/passwd")
	require.ErrorIs(t, err, sheetfeed.ErrConfig)
}
