package container

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/AkinduIB/GreenGuard/internal/config"
	"github.com/AkinduIB/GreenGuard/internal/inference"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/observer"
	"github.com/AkinduIB/GreenGuard/internal/preview"
	"github.com/AkinduIB/GreenGuard/internal/recommendation"
	"github.com/AkinduIB/GreenGuard/internal/screen"
	"github.com/AkinduIB/GreenGuard/internal/session"
	"github.com/AkinduIB/GreenGuard/internal/storage"
	"github.com/AkinduIB/GreenGuard/internal/transport"
	"github.com/AkinduIB/GreenGuard/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	table     *recommendation.Table
	stage     inference.Stage
	pool      *inference.WorkerPool
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
	sessions  *session.Manager
	renderer  *preview.Renderer
	handler   http.Handler

	closeOnce sync.Once
}

// NewContainer builds the dependency graph for cfg.
func NewContainer(cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	table, err := recommendation.Load(cfg.RecommendationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}

	stage := inference.NewMockStage(inference.Options{
		ModelPath:      inference.DefaultOptions().ModelPath,
		ModelLoadDelay: cfg.ModelLoadDelay,
		InferenceDelay: cfg.InferenceDelay,
	})

	pool := inference.NewWorkerPool(cfg.InferenceWorkers, cfg.InferenceQueueSize)
	pool.Start()

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	sessions := session.NewManager(screen.ResultConfig{
		Stage:       stage,
		Table:       table,
		Pool:        pool,
		Events:      publisher,
		RevealDelay: cfg.RevealDelay,
	}, cfg.SessionTTL)

	renderer, err := newRenderer(cfg)
	if err != nil {
		sessions.Close()
		pool.Close()
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	handler := transport.NewHandler(transport.Deps{
		Config:   cfg,
		Sessions: sessions,
		Table:    table,
		Preview:  renderer,
		Events:   publisher,
		Metrics:  metrics,
	})

	return &Container{
		config:    cfg,
		table:     table,
		stage:     stage,
		pool:      pool,
		publisher: publisher,
		metrics:   metrics,
		sessions:  sessions,
		renderer:  renderer,
		handler:   handler,
	}, nil
}

func newRenderer(cfg *config.Config) (*preview.Renderer, error) {
	opts := storage.DefaultHTTPOptions()
	opts.Timeout = cfg.ImageFetchTimeout
	httpFetcher := storage.NewHTTPImageFetcher(opts)

	router := storage.NewSchemeRouter()
	router.Register("http", httpFetcher)
	router.Register("https", httpFetcher)

	validator := validation.NewURIValidator()
	if cfg.FilePreviewsEnabled() {
		router.Register("file", storage.NewFileImageFetcher(cfg.PreviewFileRoot))
		validator.AllowScheme("file")
	}
	if cfg.AzureEnabled() {
		azure, err := storage.NewAzureStorage(cfg.AzureAccount, cfg.AzureKey)
		if err != nil {
			return nil, fmt.Errorf("failed to configure azure storage: %w", err)
		}
		router.Register(storage.AzureScheme, azure)
		validator.AllowScheme(storage.AzureScheme)
	}

	logger.WithField("schemes", router.Schemes()).Debug("Preview fetchers registered")
	return preview.NewRenderer(router, validator, cfg.PreviewSize), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Sessions returns the session manager
func (c *Container) Sessions() *session.Manager {
	return c.sessions
}

// Metrics returns the pipeline metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close tears down live sessions and drains the inference pool.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		c.sessions.Close()
		c.pool.Close()
	})
}
