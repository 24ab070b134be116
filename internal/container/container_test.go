package container

import (
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkinduIB/GreenGuard/internal/config"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.ModelLoadDelay = 0
	cfg.InferenceDelay = time.Millisecond
	cfg.RevealDelay = time.Millisecond
	cfg.InferenceWorkers = 1
	return cfg
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(fastConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Config())
	assert.NotNil(t, c.Sessions())
	assert.NotNil(t, c.Metrics())

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := `{"assets":[{"uri":"file:///photos/potato_early_blight.jpg","fileName":"potato_early_blight.jpg"}]}`
	w = httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, c.Sessions().Len())

	c.Close()
	c.Close()
	assert.Zero(t, c.Sessions().Len())
}

func TestNewContainer_BadRecommendations(t *testing.T) {
	cfg := fastConfig()
	cfg.RecommendationsPath = "/nonexistent/recommendation.json"

	_, err := NewContainer(cfg)
	assert.ErrorContains(t, err, "failed to load recommendations")
}

func TestNewContainer_BadAzureKey(t *testing.T) {
	cfg := fastConfig()
	cfg.AzureAccount = "leaves"
	cfg.AzureKey = "not base64!"

	_, err := NewContainer(cfg)
	assert.ErrorContains(t, err, "azure")
}

func previewStatus(t *testing.T, h http.Handler, uri string) int {
	t.Helper()
	body := `{"assets":[{"uri":"` + uri + `","fileName":"` + filepath.Base(uri) + `"}]}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view models.ScreenView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+view.ID+"/preview", nil))
	return w.Code
}

func TestNewContainer_FilePreviewsOffByDefault(t *testing.T) {
	c, err := NewContainer(fastConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, http.StatusBadRequest, previewStatus(t, c.Handler(), "file:///etc/passwd"))
	assert.Equal(t, http.StatusBadRequest, previewStatus(t, c.Handler(), "file:///etc/does-not-exist"))
}

func TestNewContainer_FilePreviewsUnderRoot(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "potato_healthy.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	require.NoError(t, f.Close())

	cfg := fastConfig()
	cfg.PreviewFileRoot = root
	c, err := NewContainer(cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, http.StatusOK, previewStatus(t, c.Handler(), "file://"+path))
	assert.Equal(t, http.StatusBadRequest, previewStatus(t, c.Handler(), "file:///etc/passwd"))
	assert.Equal(t, http.StatusBadRequest, previewStatus(t, c.Handler(), "file:///etc/does-not-exist"))
	assert.Equal(t, http.StatusBadRequest, previewStatus(t, c.Handler(), "file://"+root+"/../../etc/passwd"))
}
