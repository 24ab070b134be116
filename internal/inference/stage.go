// Package inference hosts the classification stage of the pipeline.
package inference

import (
	"context"
	"errors"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// ErrClassificationUnresolved is returned when no class can be derived for
// the selected image.
var ErrClassificationUnresolved = errors.New("unable to identify the plant or disease")

// Stage turns a selected image into a predicted label.
type Stage interface {
	// Load prepares the model. It is cheap once the model is ready.
	Load(ctx context.Context) error
	// Ready reports whether Load has completed.
	Ready() bool
	// Predict classifies the image. Load must have succeeded first.
	Predict(ctx context.Context, ref models.ImageRef, key models.DiseaseKey) (models.Label, error)
}
