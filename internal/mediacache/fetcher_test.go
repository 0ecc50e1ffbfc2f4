package mediacache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/hangeul/internal/assessment"
)

func newTestFetcher(t *testing.T, maxBytes int64) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(FetcherOptions{
		Dir:      t.TempDir(),
		MaxBytes: maxBytes,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3-audio-bytes"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	path, err := f.Fetch(context.Background(), srv.URL+"/media/hello.mp3", assessment.MediaAudio)
	require.NoError(t, err)

	assert.Equal(t, f.Dir(), filepath.Dir(path))
	assert.Equal(t, ".mp3", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio-bytes", string(data))
	assert.Len(t, listDir(t, f.Dir()), 1, "no temp files left behind")
}

func TestHTTPFetcher_ExtensionFromMediaType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	path, err := f.Fetch(context.Background(), srv.URL+"/blob/42", assessment.MediaVideo)
	require.NoError(t, err)
	assert.Equal(t, ".mp4", filepath.Ext(path))
}

func TestHTTPFetcher_TooLarge(t *testing.T) {
	body := strings.Repeat("a", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked, so the limit is enforced while streaming.
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 16)
	_, err := f.Fetch(context.Background(), srv.URL+"/big.png", assessment.MediaImage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.Empty(t, listDir(t, f.Dir()))
}

func TestHTTPFetcher_ContentLengthTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("b", 64)))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 16)
	_, err := f.Fetch(context.Background(), srv.URL+"/big.png", assessment.MediaImage)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestHTTPFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.png", assessment.MediaImage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, listDir(t, f.Dir()))
}

func TestHTTPFetcher_UnsupportedScheme(t *testing.T) {
	f := newTestFetcher(t, 1024)
	_, err := f.Fetch(context.Background(), "ftp://example.com/a.png", assessment.MediaImage)
	require.Error(t, err)
}

func TestHTTPFetcher_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, 1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL+"/slow.png", assessment.MediaImage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPFetcher_CloseRemovesDir(t *testing.T) {
	f, err := NewHTTPFetcher(FetcherOptions{Dir: t.TempDir(), MaxBytes: 10})
	require.NoError(t, err)
	_, statErr := os.Stat(f.Dir())
	require.NoError(t, statErr)

	require.NoError(t, f.Close())
	_, statErr = os.Stat(f.Dir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestCache_WithHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	c := New(Options{Fetcher: f, MaxConcurrent: 2})

	qs := questionsWithMedia(2)
	qs[0].MediaRefs[0].URL = srv.URL + "/m/a.png"
	qs[1].MediaRefs[0].URL = srv.URL + "/m/b.png"

	c.SetWindow(qs, 0, 0, 1)
	require.Eventually(t, func() bool { return c.Stats().Ready == 2 }, waitFor, tick)

	local := c.Get(qs[0].MediaRefs[0].URL, assessment.MediaImage)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "/m/a.png", string(data))

	require.NoError(t, c.Close())
	_, statErr := os.Stat(f.Dir())
	assert.True(t, os.IsNotExist(statErr))
}
