// Package fetch mirrors remote dataset files to local paths. The open-data
// portals publishing listed-building and conservation-area extracts serve
// ETags, so a mirror run only transfers files that actually changed.
package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/heritage-watch/heritage-cli/internal/resilience"
)

// Options configures the HTTP downloader.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             resilience.RetryConfig
}

// Downloader fetches remote dataset files.
type Downloader interface {
	// DownloadToFile fetches the URL and writes it to path. Returns bytes
	// written.
	DownloadToFile(ctx context.Context, url, path string) (int64, error)

	// DownloadIfChanged fetches the URL only if its ETag differs from the
	// given one. Returns the new ETag and whether a body was fetched; when
	// unchanged, body is nil.
	DownloadIfChanged(ctx context.Context, url, etag string) (io.ReadCloser, string, bool, error)
}

// HTTPDownloader implements Downloader over net/http with rate limiting and
// retry on transient failures.
type HTTPDownloader struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewHTTPDownloader creates an HTTPDownloader with the given options.
func NewHTTPDownloader(opts Options) *HTTPDownloader {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "heritage-cli/1.0"
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &HTTPDownloader{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
	}
}

// get performs one rate-limited GET with retry. 429 and 5xx responses are
// transient; anything else non-OK fails immediately.
func (d *HTTPDownloader) get(ctx context.Context, url, etag string) (*http.Response, error) {
	return resilience.DoVal(ctx, d.opts.Retry, func(ctx context.Context) (*http.Response, error) {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: build request")
		}
		req.Header.Set("User-Agent", d.opts.UserAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetch: GET %s", url), 0)
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotModified:
			return resp, nil
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: status %d from %s", resp.StatusCode, url), resp.StatusCode)
		default:
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetch: status %d from %s", resp.StatusCode, url)
		}
	})
}

// DownloadToFile fetches the URL and writes it to path.
func (d *HTTPDownloader) DownloadToFile(ctx context.Context, url, path string) (int64, error) {
	resp, err := d.get(ctx, url, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: create %s", path)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		return n, eris.Wrapf(err, "fetch: write %s", path)
	}

	zap.L().Debug("fetch: downloaded",
		zap.String("url", url), zap.String("path", path), zap.Int64("bytes", n))
	return n, nil
}

// DownloadIfChanged fetches the URL unless the server reports the content
// still matches the given ETag.
func (d *HTTPDownloader) DownloadIfChanged(ctx context.Context, url, etag string) (io.ReadCloser, string, bool, error) {
	resp, err := d.get(ctx, url, etag)
	if err != nil {
		return nil, "", false, err
	}

	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return nil, etag, false, nil
	}

	return resp.Body, resp.Header.Get("ETag"), true, nil
}
