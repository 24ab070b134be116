// Package screen implements the selection and result screens as state
// machines over the picker, the inference stage and the recommendation table.
package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
	"github.com/AkinduIB/GreenGuard/internal/heuristic"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/navigation"
	"github.com/AkinduIB/GreenGuard/internal/observer"
	"github.com/AkinduIB/GreenGuard/internal/picker"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// Home is the selection screen. It is idle unless the picker is open.
type Home struct {
	nav    navigation.Navigator
	events observer.Subject

	mu     sync.Mutex
	state  models.ScreenState
	notice *models.Notice
}

// NewHome creates an idle selection screen. events may be nil.
func NewHome(nav navigation.Navigator, events observer.Subject) *Home {
	return &Home{
		nav:    nav,
		events: events,
		state:  models.StateIdle,
	}
}

// State returns the current state.
func (h *Home) State() models.ScreenState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Notice returns the blocking alert currently shown, if any.
func (h *Home) Notice() *models.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.notice == nil {
		return nil
	}
	n := *h.notice
	return &n
}

// DismissNotice closes the alert.
func (h *Home) DismissNotice() {
	h.mu.Lock()
	h.notice = nil
	h.mu.Unlock()
}

// View renders the selection screen.
func (h *Home) View() models.HomeView {
	return models.HomeView{
		Route:  string(navigation.RouteHome),
		State:  h.State(),
		Notice: h.Notice(),
	}
}

// PickImage opens the picker and, when a photo is chosen, navigates to the
// result screen. It returns the id of the pushed screen, or "" when the
// user cancelled.
func (h *Home) PickImage(ctx context.Context, p picker.Picker) (string, error) {
	h.mu.Lock()
	if h.state != models.StateIdle {
		h.mu.Unlock()
		return "", apperrors.NewValidationError("image picker is already open", nil)
	}
	h.state = models.StateSelecting
	h.notice = nil
	h.mu.Unlock()

	defer h.setState(models.StateIdle)

	res := p.Pick(ctx, picker.PhotoOptions())
	switch res.Outcome {
	case picker.OutcomeCancelled:
		h.emit(observer.PipelineEvent{EventType: observer.SelectionCancelled})
		return "", nil
	case picker.OutcomeError:
		msg := fmt.Sprintf("ImagePicker Error: %s", res.ErrorMessage)
		h.mu.Lock()
		h.notice = &models.Notice{Title: "Error", Message: msg}
		h.mu.Unlock()
		h.emit(observer.PipelineEvent{EventType: observer.SelectionFailed, Error: msg})
		return "", apperrors.NewPickerError(msg, nil).WithDetails(res.ErrorCode)
	}

	asset, ok := res.First()
	if !ok {
		h.emit(observer.PipelineEvent{EventType: observer.SelectionCancelled})
		return "", nil
	}

	name := heuristic.NormalizedName(asset.FileName, asset.URI)
	key := heuristic.KeyForName(name)
	logger.WithFields(logrus.Fields{
		"image_uri":   asset.URI,
		"file_name":   name,
		"disease_key": key,
	}).Debug("Prepared input label for model")

	params := models.ResultParams{ImageURI: asset.URI, DiseaseKey: key}
	id, err := h.nav.Navigate(ctx, navigation.RouteResult, params)
	if err != nil {
		return "", err
	}

	h.emit(observer.PipelineEvent{
		EventType:  observer.Navigated,
		SessionID:  id,
		ImageURI:   asset.URI,
		DiseaseKey: key,
	})
	return id, nil
}

// CaptureImage would open the camera. The route exists but has no screen.
func (h *Home) CaptureImage(ctx context.Context) (string, error) {
	id, err := h.nav.Navigate(ctx, navigation.RouteCamera, models.ResultParams{})
	if errors.Is(err, navigation.ErrRouteNotImplemented) {
		return "", apperrors.NewNotImplementedError("camera capture is not available", err)
	}
	return id, err
}

// ReturnFrom tears down the given result screen and resets to idle.
func (h *Home) ReturnFrom(ctx context.Context, id string) error {
	err := h.nav.Back(ctx, id)
	h.mu.Lock()
	h.state = models.StateIdle
	h.notice = nil
	h.mu.Unlock()
	return err
}

func (h *Home) setState(state models.ScreenState) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

func (h *Home) emit(event observer.PipelineEvent) {
	if h.events == nil {
		return
	}
	h.events.NotifyObservers(context.Background(), event)
}
