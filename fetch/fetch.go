// Package fetch downloads strain data files into a local cache directory,
// verifying content checksums and skipping files already present.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// Client fetches remote files into a cache directory.
type Client struct {
	// CacheDir receives downloaded files. Created on demand.
	CacheDir string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// File describes one remote file.
type File struct {
	URL string
	// Name is the local file name; derived from the URL when empty.
	Name string
	// SHA256 is the expected hex digest; empty skips verification.
	SHA256 string
}

// Fetch downloads f into the cache and returns the local path. A cached copy
// with a matching checksum is reused without touching the network.
func (c *Client) Fetch(ctx context.Context, f File) (string, error) {
	name := f.Name
	if name == "" {
		name = filepath.Base(f.URL)
	}
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("fetch: cannot derive file name from %q", f.URL)
	}
	dest := filepath.Join(c.CacheDir, name)

	if f.SHA256 != "" {
		if ok, err := checksumMatches(dest, f.SHA256); err == nil && ok {
			c.logger().Debug("cache hit", "file", dest)
			return dest, nil
		}
	} else if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: create cache dir: %w", err)
	}

	c.logger().Info("downloading", "url", f.URL, "dest", dest)
	if err := c.download(ctx, f.URL, dest, f.SHA256); err != nil {
		return "", err
	}
	return dest, nil
}

// FetchAll downloads every file, stopping at the first failure.
func (c *Client) FetchAll(ctx context.Context, files []File) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		p, err := c.Fetch(ctx, f)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (c *Client) download(ctx context.Context, url, dest, wantSum string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: get %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: get %q: status %s", url, resp.Status)
	}

	// Download to a temp file so a partial transfer never shadows a
	// complete one.
	tmp, err := os.CreateTemp(c.CacheDir, ".download-*")
	if err != nil {
		return fmt.Errorf("fetch: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("fetch: download %q: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fetch: finish download: %w", err)
	}

	if wantSum != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if got != wantSum {
			return fmt.Errorf("fetch: checksum mismatch for %q: got %s, want %s", url, got, wantSum)
		}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("fetch: move download into place: %w", err)
	}
	return nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func checksumMatches(path, wantSum string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(hash.Sum(nil)) == wantSum, nil
}
