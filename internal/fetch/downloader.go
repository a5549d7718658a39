// Package fetch downloads generated artifacts from remote URLs into
// temporary storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avalls/clipforge/internal/storage"
)

// ErrBadStatus is returned when a download responds with a non-2xx status.
var ErrBadStatus = errors.New("fetch: unexpected response status")

// Downloader streams remote files into temporary storage.
type Downloader struct {
	httpClient *http.Client
	store      storage.Storage
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

// NewDownloader creates a new Downloader writing into the given storage.
// Generated artifacts can be hundreds of megabytes, so the default client
// carries a generous timeout.
func NewDownloader(store storage.Storage, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		store:      store,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches the resource at url and saves it as a temporary file with
// the given name, returning the file path.
func (d *Downloader) Download(ctx context.Context, url, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d from %s", ErrBadStatus, resp.StatusCode, url)
	}

	path, err := d.store.SaveTemp(ctx, name, resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch: save %s: %w", name, err)
	}

	return path, nil
}
