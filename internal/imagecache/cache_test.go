package imagecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

// newTestCache serves icons from an in-memory map and counts requests.
func newTestCache(t *testing.T, icons map[string][]byte) (*Cache, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/icons/")
		body, ok := icons[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	cache := New(Config{
		Dir:     filepath.Join(t.TempDir(), "icons"),
		BaseURL: server.URL,
		Logger:  logging.NewNoop(),
	})
	return cache, &requests
}

func TestResolveDownloadsOnFirstUse(t *testing.T) {
	cache, requests := newTestCache(t, map[string][]byte{
		"ci.png": []byte("png-bytes"),
	})

	path, ok := cache.Resolve(context.Background(), "ci.png")

	require.True(t, ok)
	require.Equal(t, int64(1), requests.Load())
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), body)
}

func TestResolveServesSecondLookupFromDisk(t *testing.T) {
	cache, requests := newTestCache(t, map[string][]byte{
		"ci.png": []byte("png-bytes"),
	})

	first, ok := cache.Resolve(context.Background(), "ci.png")
	require.True(t, ok)

	second, ok := cache.Resolve(context.Background(), "ci.png")
	require.True(t, ok)

	require.Equal(t, first, second)
	require.Equal(t, int64(1), requests.Load(), "second lookup must not hit the network")
}

func TestResolveMissingIconIsAMiss(t *testing.T) {
	cache, requests := newTestCache(t, nil)

	path, ok := cache.Resolve(context.Background(), "gone.png")

	require.False(t, ok)
	require.Empty(t, path)
	require.Equal(t, int64(1), requests.Load())
	entries, err := os.ReadDir(cache.dir)
	require.NoError(t, err)
	require.Empty(t, entries, "a failed download must not leave files behind")
}

func TestResolveDisabledCacheNeverTouchesNetwork(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	cache := New(Config{Dir: "", BaseURL: server.URL, Logger: logging.NewNoop()})

	path, ok := cache.Resolve(context.Background(), "ci.png")

	require.False(t, ok)
	require.Empty(t, path)
	require.Equal(t, int64(0), requests.Load())
}

func TestResolveStripsDirectoryComponents(t *testing.T) {
	cache, _ := newTestCache(t, map[string][]byte{
		"evil.png": []byte("x"),
	})

	path, ok := cache.Resolve(context.Background(), "../../evil.png")

	require.True(t, ok)
	require.Equal(t, filepath.Join(cache.dir, "evil.png"), path)
}

func TestResolveLeavesNoTempFiles(t *testing.T) {
	cache, _ := newTestCache(t, map[string][]byte{
		"a.png": []byte("a"),
	})

	_, ok := cache.Resolve(context.Background(), "a.png")
	require.True(t, ok)
	_, ok = cache.Resolve(context.Background(), "missing.png")
	require.False(t, ok)

	entries, err := os.ReadDir(cache.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.png", entries[0].Name())
}
