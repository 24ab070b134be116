package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotExist is returned when a file URI points at nothing.
	ErrNotExist = errors.New("image does not exist")
	// ErrOutsideRoot is returned when a file URI leaves the fetcher's root.
	ErrOutsideRoot = errors.New("image path outside preview root")
)

// FileImageFetcher reads file:// images from the local disk.
type FileImageFetcher struct {
	root     string
	resolved string
}

// NewFileImageFetcher only opens paths under root, after cleaning and
// following symlinks. An empty root opens any path.
func NewFileImageFetcher(root string) *FileImageFetcher {
	if root == "" {
		return &FileImageFetcher{}
	}
	root = filepath.Clean(root)
	resolved := root
	if r, err := filepath.EvalSymlinks(root); err == nil {
		resolved = r
	}
	return &FileImageFetcher{root: root, resolved: resolved}
}

func (f *FileImageFetcher) FetchImage(ctx context.Context, uri string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid file URI: %w", err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return nil, fmt.Errorf("invalid file URI: %q", uri)
	}

	path, err := f.confine(filepath.Clean(u.Path))
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, u.Path)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// confine checks path against the root before anything touches the disk,
// then again once symlinks are resolved.
func (f *FileImageFetcher) confine(path string) (string, error) {
	if f.root == "" {
		return path, nil
	}
	if !within(f.root, path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return "", fmt.Errorf("resolve image path: %w", err)
	}
	if !within(f.resolved, target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return target, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
