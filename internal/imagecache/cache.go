// Package imagecache downloads notification icons once and serves them
// from disk afterwards.
package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

const defaultTimeout = 15 * time.Second

// Config configures the icon cache.
type Config struct {
	// Dir is the cache directory. Empty disables the cache; Resolve
	// then always reports a miss and never touches the network.
	Dir string
	// BaseURL is the icon host, without a trailing slash.
	BaseURL string
	// Timeout bounds each download.
	Timeout time.Duration
	Logger  logging.Logger
}

// Cache maps icon names to local files, downloading each icon at most
// once. Lookups never fail hard: any problem is logged and reported as
// a miss so the caller can deliver without an icon.
type Cache struct {
	dir        string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// New builds an icon cache from the given config.
func New(cfg Config) *Cache {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobal()
	}
	return &Cache{
		dir:        cfg.Dir,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Resolve returns the local path of the named icon, downloading it on
// first use. The second return is false when the cache is disabled or
// the icon could not be fetched.
func (c *Cache) Resolve(ctx context.Context, name string) (string, bool) {
	if c.dir == "" {
		return "", false
	}
	// Icon names come from the server; never let one escape the cache
	// directory.
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}

	path := filepath.Join(c.dir, name)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("icon cache unavailable", "dir", c.dir, "error", err)
		return "", false
	}
	if err := c.download(ctx, name, path); err != nil {
		c.logger.Warn("icon download failed", "icon", name, "error", err)
		return "", false
	}
	c.logger.Debug("icon cached", "icon", name, "path", path)
	return path, true
}

// download streams one icon into the cache. The body goes through a
// temp file in the same directory so a crash mid-download can never
// leave a truncated icon under the final name.
func (c *Cache) download(ctx context.Context, name, dest string) error {
	endpoint := fmt.Sprintf("%s/icons/%s", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("write icon: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close icon: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename icon: %w", err)
	}
	committed = true
	return nil
}
