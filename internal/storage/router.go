package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"sort"
)

// ErrUnsupportedScheme is returned by SchemeRouter for unregistered schemes.
var ErrUnsupportedScheme = errors.New("unsupported URI scheme")

// SchemeRouter dispatches to a fetcher by URI scheme.
type SchemeRouter struct {
	fetchers map[string]ImageFetcher
}

func NewSchemeRouter() *SchemeRouter {
	return &SchemeRouter{fetchers: make(map[string]ImageFetcher)}
}

// Register binds scheme to f, replacing any earlier binding.
func (r *SchemeRouter) Register(scheme string, f ImageFetcher) {
	r.fetchers[scheme] = f
}

// Schemes lists the registered schemes.
func (r *SchemeRouter) Schemes() []string {
	schemes := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

func (r *SchemeRouter) FetchImage(ctx context.Context, uri string) (image.Image, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}
	f, ok := r.fetchers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.FetchImage(ctx, uri)
}
