package inference

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// ErrModelNotLoaded is returned by Predict before Load has succeeded.
var ErrModelNotLoaded = errors.New("model not loaded")

var labelsByKey = map[models.DiseaseKey]models.Label{
	models.KeyPotatoLateBlight:    models.LabelPotatoLateBlight,
	models.KeyPepperHealthy:       models.LabelPepperHealthy,
	models.KeyPepperBacterialSpot: models.LabelPepperBacterialSpot,
	models.KeyPotatoEarlyBlight:   models.LabelPotatoEarlyBlight,
	models.KeyPotatoHealthy:       models.LabelPotatoHealthy,
}

// labelFor returns the label the mock model assigns to a key.
func labelFor(key models.DiseaseKey) (models.Label, bool) {
	label, ok := labelsByKey[key]
	return label, ok
}

// Options configures the simulated delays of the mock stage.
type Options struct {
	ModelPath      string
	ModelLoadDelay time.Duration
	InferenceDelay time.Duration
}

// DefaultOptions returns the delays of the mobile application.
func DefaultOptions() Options {
	return Options{
		ModelPath:      "assets/tfjs_model/model.json",
		ModelLoadDelay: 1 * time.Second,
		InferenceDelay: 5 * time.Second,
	}
}

// mockStage simulates a model by sleeping and reading the key table.
type mockStage struct {
	opts   Options
	ready  atomic.Bool
	loader singleflight.Group
}

// NewMockStage creates a stage that never looks at pixels.
func NewMockStage(opts Options) Stage {
	return &mockStage{opts: opts}
}

func (s *mockStage) Ready() bool {
	return s.ready.Load()
}

func (s *mockStage) Load(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	ch := s.loader.DoChan("model", func() (interface{}, error) {
		if s.ready.Load() {
			return nil, nil
		}
		logger.WithField("model_path", s.opts.ModelPath).Info("Loading model")
		// The shared load is not tied to any single caller.
		if err := sleep(context.Background(), s.opts.ModelLoadDelay); err != nil {
			return nil, err
		}
		s.ready.Store(true)
		logger.WithFields(logrus.Fields{
			"model_path": s.opts.ModelPath,
			"load_time":  s.opts.ModelLoadDelay,
		}).Info("Model loaded")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *mockStage) Predict(ctx context.Context, ref models.ImageRef, key models.DiseaseKey) (models.Label, error) {
	if !s.ready.Load() {
		return "", ErrModelNotLoaded
	}

	logger.WithFields(logrus.Fields{
		"image_uri":   ref.URI,
		"disease_key": key,
	}).Debug("Running inference")

	if err := sleep(ctx, s.opts.InferenceDelay); err != nil {
		return "", err
	}

	label, ok := labelFor(key)
	if !ok {
		return "", ErrClassificationUnresolved
	}
	return label, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
