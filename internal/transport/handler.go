package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AkinduIB/GreenGuard/internal/config"
	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/navigation"
	"github.com/AkinduIB/GreenGuard/internal/observer"
	"github.com/AkinduIB/GreenGuard/internal/picker"
	"github.com/AkinduIB/GreenGuard/internal/preview"
	"github.com/AkinduIB/GreenGuard/internal/recommendation"
	"github.com/AkinduIB/GreenGuard/internal/screen"
	"github.com/AkinduIB/GreenGuard/internal/session"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

const version = "1.0.0"

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	Table    *recommendation.Table
	Preview  *preview.Renderer
	Events   observer.Subject
	Metrics  *observer.MetricsObserver
}

func NewHandler(d Deps) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(d.Config.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)

	r.POST("/sessions", createSession(d))
	r.GET("/sessions/:id", getSession(d))
	r.DELETE("/sessions/:id", deleteSession(d))
	r.GET("/sessions/:id/preview", sessionPreview(d))
	r.POST("/camera", captureImage(d))

	r.GET("/recommendations", listRecommendations(d.Table))
	r.GET("/recommendations/:label", getRecommendation(d.Table))

	r.GET("/metrics", metrics(d))

	return r
}

// createSession plays the selection screen against the picker response
// in the body.
func createSession(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d.Config.RequestTimeout)
		defer cancel()

		var req models.PickerResponse
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, http.StatusRequestEntityTooLarge, "request body too large", err)
				return
			}
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		home := screen.NewHome(d.Sessions, d.Events)
		id, err := home.PickImage(ctx, picker.Static{Result: picker.FromResponse(req)})
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypePicker) {
				logger.WithError(err).WithField("ip", c.ClientIP()).Warn("Image picker reported an error")
				c.JSON(apperrors.GetStatusCode(err), home.View())
				return
			}
			respondError(c, apperrors.GetStatusCode(err), "failed to open result screen", err)
			return
		}
		if id == "" {
			c.JSON(http.StatusOK, home.View())
			return
		}

		r, err := d.Sessions.Get(id)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "session vanished", err)
			return
		}
		c.JSON(http.StatusCreated, r.View())
	}
}

// getSession returns the current view. With ?wait=true it blocks until the
// screen settles or the request times out.
func getSession(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := d.Sessions.Get(c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "unknown session", err)
			return
		}

		wait, _ := strconv.ParseBool(c.Query("wait"))
		if !wait {
			c.JSON(http.StatusOK, r.View())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d.Config.RequestTimeout)
		defer cancel()
		view, _ := r.Wait(ctx)
		c.JSON(http.StatusOK, view)
	}
}

func deleteSession(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		home := screen.NewHome(d.Sessions, d.Events)
		if err := home.ReturnFrom(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "unknown session", err)
			return
		}
		c.JSON(http.StatusOK, home.View())
	}
}

func sessionPreview(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := d.Sessions.Get(c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "unknown session", err)
			return
		}

		size := 0
		if s := c.Query("size"); s != "" {
			size, err = strconv.Atoi(s)
			if err != nil || size <= 0 {
				respondError(c, http.StatusBadRequest, "invalid size",
					apperrors.NewValidationError("size must be a positive integer", err))
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d.Config.ImageFetchTimeout)
		defer cancel()

		data, err := d.Preview.Thumbnail(ctx, r.Params().ImageURI, size)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to render preview", err)
			return
		}
		c.Header("Cache-Control", "private, max-age=300")
		c.Data(http.StatusOK, "image/jpeg", data)
	}
}

func captureImage(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		home := screen.NewHome(d.Sessions, d.Events)
		_, err := home.CaptureImage(c.Request.Context())
		if err == nil {
			err = apperrors.NewInternalError("camera route returned no error", nil)
		}
		respondError(c, apperrors.GetStatusCode(err), "camera capture unavailable", err)
	}
}

func listRecommendations(t *recommendation.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"labels": t.Labels()})
	}
}

func getRecommendation(t *recommendation.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		label := models.Label(c.Param("label"))
		resp := models.RecommendationResponse{
			Label:          label,
			Known:          t.Has(label),
			Recommendation: t.Lookup(label),
		}
		if !resp.Known {
			if s, ok := t.Suggest(label); ok {
				resp.Suggestion = s
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func metrics(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pipeline":        d.Metrics.GetMetrics(),
			"active_sessions": d.Sessions.Len(),
		})
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"route":   navigation.RouteHome,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed")
			return
		}
		entry.Debug("Request completed")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: errorMessage(message, err),
	})
}

func errorMessage(message string, err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return fmt.Sprintf("%s: %s (%s)", message, appErr.Message, appErr.Details)
		}
		return fmt.Sprintf("%s: %s", message, appErr.Message)
	}
	return fmt.Sprintf("%s: %v", message, err)
}
