// Package download streams remote files to disk.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tozd/go/errors"
)

// DefaultTimeout bounds a download when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrEmptyBody is returned by a verified download that received no bytes.
	ErrEmptyBody = errors.Base("empty response body")
	// ErrLengthMismatch is returned by a verified download whose size differs
	// from the announced Content-Length.
	ErrLengthMismatch = errors.Base("content length mismatch")
)

// Download describes a completed download.
type Download struct {
	Bytes  int64
	SHA256 string
}

// Option adjusts a single Download call.
type Option func(*callOptions)

type callOptions struct {
	verify bool
}

// Verify rejects empty bodies and bodies whose length does not match the
// Content-Length header.
func Verify(enabled bool) Option {
	return func(o *callOptions) { o.verify = enabled }
}

// Options configures an HTTPDownloader.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// HTTPDownloader fetches URLs with GET requests.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

// New returns an HTTPDownloader.
func New(opts Options) *HTTPDownloader {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPDownloader{client: client, userAgent: opts.UserAgent}
}

// Download writes the body at url to path. The body is streamed to a temp
// file next to path, which replaces path only after the transfer succeeded,
// so a failed download never leaves a partial file behind.
func (d *HTTPDownloader) Download(ctx context.Context, url, path string, opts ...Option) (Download, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Download{}, errors.Errorf("building request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Download{}, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Download{}, errors.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return Download{}, errors.WithStack(err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), resp.Body)
	if err != nil {
		_ = f.Close()
		return Download{}, errors.Errorf("reading body: %w", err)
	}
	if err := f.Close(); err != nil {
		return Download{}, errors.WithStack(err)
	}

	if o.verify {
		if n == 0 {
			return Download{}, errors.WithStack(ErrEmptyBody)
		}
		if resp.ContentLength >= 0 && resp.ContentLength != n {
			return Download{}, errors.Errorf("%w: got %d bytes, expected %d", ErrLengthMismatch, n, resp.ContentLength)
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		return Download{}, errors.WithStack(err)
	}
	return Download{Bytes: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}
