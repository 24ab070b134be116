package storage

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"
)

// ImageFetcher loads and decodes the image behind a URI.
type ImageFetcher interface {
	FetchImage(ctx context.Context, uri string) (image.Image, error)
}

// HTTPOptions tunes the HTTP fetcher.
type HTTPOptions struct {
	Timeout   time.Duration
	Attempts  int
	Backoff   time.Duration
	UserAgent string
}

// DefaultHTTPOptions returns 3 attempts with a linear 1s backoff.
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:   30 * time.Second,
		Attempts:  3,
		Backoff:   time.Second,
		UserAgent: "GreenGuard/1.0",
	}
}

// HTTPImageFetcher fetches http and https images.
type HTTPImageFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPImageFetcher creates an HTTP image fetcher. Zero fields in opts take
// their defaults.
func NewHTTPImageFetcher(opts HTTPOptions) *HTTPImageFetcher {
	def := DefaultHTTPOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	transport := &http.Transport{
		// A handful of previews at a time, usually from the same host.
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		opts: opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, uri string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", h.opts.UserAgent)

	var lastErr error
	for attempt := 0; attempt < h.opts.Attempts; attempt++ {
		if attempt > 0 {
			if err := h.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			defer resp.Body.Close()
			img, _, err := image.Decode(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image: %w", err)
			}
			return img, nil
		}
		resp.Body.Close()

		// 4xx is final, everything else is retried.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		lastErr = &StatusError{StatusCode: resp.StatusCode}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("unknown error")
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.opts.Attempts, lastErr)
}

func (h *HTTPImageFetcher) backoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(attempt) * h.opts.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return fmt.Sprintf("client error: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: status code %d", e.StatusCode)
}
