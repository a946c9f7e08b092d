package imageproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// Fetcher downloads images referenced by URL.
type Fetcher struct {
	client        *http.Client
	maxBytes      int64
	allowInsecure bool
	logger        *zap.Logger
}

type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithInsecure permits plain http URLs.
func WithInsecure(allow bool) FetcherOption {
	return func(f *Fetcher) { f.allowInsecure = allow }
}

func NewFetcher(timeout time.Duration, maxBytes int64, logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   common.LoggerOrNop(logger),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads rawURL. Bad URLs, non-2xx answers and oversized bodies are
// fetch_error input errors; ctx expiry is a timeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fetchError("invalid image url", err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !f.allowInsecure {
			return nil, fetchError("plain http image urls are not allowed", nil)
		}
	default:
		return nil, fetchError(fmt.Sprintf("unsupported url scheme %q", u.Scheme), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fetchError("build request", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, common.NewTimeoutError("image download exceeded the item deadline", ctx.Err())
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fetchError("download image", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("imageproc.fetch.body_close_error", zap.Error(err))
		}
	}()

	if resp.StatusCode/100 != 2 {
		return nil, fetchError(fmt.Sprintf("image url answered %d", resp.StatusCode), nil)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fetchError(fmt.Sprintf("image is %d bytes, limit is %d", resp.ContentLength, f.maxBytes), nil)
	}

	r := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, common.NewTimeoutError("image download exceeded the item deadline", ctx.Err())
		}
		return nil, fetchError("read image body", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fetchError(fmt.Sprintf("image exceeds %d bytes", f.maxBytes), nil)
	}

	f.logger.Debug("imageproc.fetch.ok",
		zap.String("host", u.Host),
		zap.Int("bytes", len(data)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return data, nil
}

func fetchError(msg string, cause error) error {
	return common.NewInputError(common.CodeFetchError, msg, cause)
}
