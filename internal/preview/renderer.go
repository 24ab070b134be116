// Package preview renders JPEG thumbnails of the images behind result screens.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"

	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/storage"
	"github.com/AkinduIB/GreenGuard/pkg/validation"
)

const (
	DefaultSize = 256
	MaxSize     = 2048
	jpegQuality = 85
)

// Renderer fetches images and scales them down.
type Renderer struct {
	fetcher     storage.ImageFetcher
	validator   *validation.URIValidator
	defaultSize int
}

// NewRenderer creates a renderer. A non-positive defaultSize means DefaultSize.
func NewRenderer(fetcher storage.ImageFetcher, validator *validation.URIValidator, defaultSize int) *Renderer {
	if defaultSize <= 0 || defaultSize > MaxSize {
		defaultSize = DefaultSize
	}
	if validator == nil {
		validator = validation.NewURIValidator()
	}
	return &Renderer{
		fetcher:     fetcher,
		validator:   validator,
		defaultSize: defaultSize,
	}
}

// DefaultSize is the bounding box used when Thumbnail gets no size.
func (r *Renderer) DefaultSize() int { return r.defaultSize }

// Thumbnail returns a JPEG of the image at uri that fits in a maxSide square.
// Images already smaller are re-encoded at their own size.
func (r *Renderer) Thumbnail(ctx context.Context, uri string, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		maxSide = r.defaultSize
	}
	if maxSide > MaxSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("size must be at most %d", MaxSize), nil)
	}
	if err := r.validator.ValidateImageURI(uri); err != nil {
		return nil, err
	}

	img, err := r.fetcher.FetchImage(ctx, uri)
	if err != nil {
		logger.WithError(err).WithField("image_uri", uri).Warn("Preview fetch failed")
		return nil, classify(err)
	}

	thumb := resize.Thumbnail(uint(maxSide), uint(maxSide), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, apperrors.NewInternalError("failed to encode preview", err)
	}

	logger.WithFields(logrus.Fields{
		"image_uri": uri,
		"source":    sizeOf(img),
		"preview":   sizeOf(thumb),
	}).Debug("Rendered preview")
	return buf.Bytes(), nil
}

func classify(err error) error {
	var statusErr *storage.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("timed out fetching image", err)
	case errors.Is(err, storage.ErrUnsupportedScheme):
		return apperrors.NewValidationError("URI scheme not supported", err)
	case errors.Is(err, storage.ErrOutsideRoot):
		return apperrors.NewValidationError("image path not allowed", err)
	case errors.Is(err, storage.ErrNotExist):
		return apperrors.NewNotFoundError("image not found", err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError("image not found", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

func sizeOf(img image.Image) string {
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
}
