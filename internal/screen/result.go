package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
	"github.com/AkinduIB/GreenGuard/internal/inference"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/navigation"
	"github.com/AkinduIB/GreenGuard/internal/observer"
	"github.com/AkinduIB/GreenGuard/internal/recommendation"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

const (
	LoadingText        = "Processing image with AI model..."
	ProcessingText     = "Processing..."
	TreatmentTitle     = "Treatment Recommendation"
	PreventiveTitle    = "Preventive Measures"
	DefaultRevealDelay = 2 * time.Second

	diseaseLinePrefix = "Disease: "
)

// ResultConfig holds the collaborators of a result screen.
type ResultConfig struct {
	Stage       inference.Stage
	Table       *recommendation.Table
	Pool        *inference.WorkerPool
	Events      observer.Subject
	RevealDelay time.Duration
}

// Result shows the classification of one selected image. It moves from
// navigated to loading on Start, then to resolved and revealed, or to
// failed. Nothing changes after Close.
type Result struct {
	id     string
	params models.ResultParams
	cfg    ResultConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	state       models.ScreenState
	label       models.Label
	rec         *models.Recommendation
	errText     string
	errType     apperrors.ErrorType
	closed      bool
	finished    bool
	revealTimer *time.Timer
	createdAt   time.Time
	updatedAt   time.Time
}

// NewResult creates a result screen in the navigated state.
func NewResult(id string, params models.ResultParams, cfg ResultConfig) *Result {
	if cfg.Table == nil {
		cfg.Table = recommendation.MustDefault()
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Result{
		id:        id,
		params:    params,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     models.StateNavigated,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Result) ID() string { return r.id }

func (r *Result) Params() models.ResultParams { return r.params }

// CreatedAt is when the screen was pushed.
func (r *Result) CreatedAt() time.Time { return r.createdAt }

// State returns the current state.
func (r *Result) State() models.ScreenState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins loading. ctx only bounds the wait for a free inference
// worker; the pipeline itself lives until it finishes or the screen closes.
func (r *Result) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.state != models.StateNavigated {
		r.mu.Unlock()
		return apperrors.NewValidationError("result screen already started", nil)
	}
	r.setState(models.StateLoading)
	r.mu.Unlock()

	if r.cfg.Pool == nil {
		go r.run()
		return nil
	}

	if err := r.cfg.Pool.Submit(ctx, r.run); err != nil {
		r.Close()
		if errors.Is(err, inference.ErrPoolClosed) {
			return apperrors.NewUnavailableError("inference is shutting down", err)
		}
		return apperrors.NewUnavailableError("no inference worker available", err)
	}
	return nil
}

func (r *Result) run() {
	start := time.Now()
	ref := models.ImageRef{URI: r.params.ImageURI}

	if err := r.cfg.Stage.Load(r.ctx); err != nil {
		r.fail(err)
		return
	}

	logger.WithFields(logrus.Fields{
		"session_id": r.id,
		"image_uri":  ref.URI,
	}).Info("Running AI model inference on image")

	label, err := r.cfg.Stage.Predict(r.ctx, ref, r.params.DiseaseKey)
	if err != nil {
		r.fail(err)
		return
	}
	r.resolve(label, time.Since(start))
}

func (r *Result) fail(err error) {
	if errors.Is(err, inference.ErrClassificationUnresolved) {
		err = apperrors.NewUnresolvedError(err.Error(), err)
	}
	text := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		text = appErr.Message
	}

	r.mu.Lock()
	if r.closed || r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.label = models.LabelUnresolved
	r.errText = text
	if appErr != nil {
		r.errType = appErr.Type
	}
	r.setState(models.StateFailed)
	r.mu.Unlock()

	if !apperrors.IsType(err, apperrors.ErrorTypeUnresolved) {
		logger.WithError(err).WithField("session_id", r.id).Error("Prediction error")
	}
	r.emit(observer.PipelineEvent{
		EventType:  observer.PredictionFailed,
		DiseaseKey: r.params.DiseaseKey,
		Label:      models.LabelUnresolved,
		Error:      text,
	})
	r.settle()
}

func (r *Result) resolve(label models.Label, elapsed time.Duration) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	rec := r.cfg.Table.Lookup(label)
	r.label = label
	r.rec = &rec
	r.setState(models.StateResolved)
	r.mu.Unlock()

	r.emit(observer.PipelineEvent{
		EventType:  observer.PredictionResolved,
		DiseaseKey: r.params.DiseaseKey,
		Label:      label,
		Elapsed:    elapsed,
	})

	// Armed after the resolved event so the reveal cannot overtake it.
	r.mu.Lock()
	if !r.closed {
		r.revealTimer = time.AfterFunc(r.revealDelay(), r.reveal)
	}
	r.mu.Unlock()
}

func (r *Result) reveal() {
	r.mu.Lock()
	if r.closed || r.state != models.StateResolved {
		r.mu.Unlock()
		return
	}
	r.setState(models.StateRevealed)
	label := r.label
	r.mu.Unlock()

	r.emit(observer.PipelineEvent{
		EventType: observer.RecommendationsRevealed,
		Label:     label,
	})
	r.settle()
}

func (r *Result) revealDelay() time.Duration {
	if r.cfg.RevealDelay < 0 {
		return 0
	}
	return r.cfg.RevealDelay
}

// Close tears the screen down. Pending work becomes a no-op. It reports
// whether this call closed the screen.
func (r *Result) Close() bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.closed = true
	r.cancel()
	if r.revealTimer != nil {
		r.revealTimer.Stop()
	}
	r.finish()
	r.updatedAt = time.Now()
	state := r.state
	r.mu.Unlock()

	r.emit(observer.PipelineEvent{
		EventType: observer.SessionClosed,
		Error:     closedInState(state),
	})
	return true
}

func closedInState(state models.ScreenState) string {
	if state.Terminal() {
		return ""
	}
	return "closed while " + string(state)
}

// Closed reports whether Close has been called.
func (r *Result) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Wait blocks until the screen is revealed, failed or closed.
func (r *Result) Wait(ctx context.Context) (models.ScreenView, error) {
	select {
	case <-r.done:
		return r.View(), nil
	case <-ctx.Done():
		return r.View(), ctx.Err()
	}
}

// View renders the screen.
func (r *Result) View() models.ScreenView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := models.ScreenView{
		ID:         r.id,
		Route:      string(navigation.RouteResult),
		State:      r.state,
		ImageURI:   r.params.ImageURI,
		DiseaseKey: r.params.DiseaseKey,
		Label:      r.label,
		Error:      r.errText,
		ErrorType:  string(r.errType),
		CreatedAt:  r.createdAt,
		UpdatedAt:  r.updatedAt,
	}

	if r.state == models.StateLoading {
		view.Loading = true
		view.LoadingText = LoadingText
		return view
	}

	switch {
	case r.rec != nil:
		view.DiseaseLine = diseaseLinePrefix + r.rec.DiseaseName
	case r.label != "":
		view.DiseaseLine = diseaseLinePrefix + string(r.label)
	default:
		view.DiseaseLine = diseaseLinePrefix + ProcessingText
	}

	if r.rec != nil && r.state == models.StateRevealed {
		view.Sections = []models.Section{
			{Title: TreatmentTitle, Text: r.rec.Recommendations},
			{Title: PreventiveTitle, Text: r.rec.PreventiveMeasures},
		}
	}
	return view
}

// setState must be called with mu held.
func (r *Result) setState(state models.ScreenState) {
	r.state = state
	r.updatedAt = time.Now()
}

// settle wakes Wait callers once the terminal event is out.
func (r *Result) settle() {
	r.mu.Lock()
	r.finish()
	r.mu.Unlock()
}

// finish must be called with mu held.
func (r *Result) finish() {
	if !r.finished {
		r.finished = true
		close(r.done)
	}
}

func (r *Result) emit(event observer.PipelineEvent) {
	if r.cfg.Events == nil {
		return
	}
	event.SessionID = r.id
	event.ImageURI = r.params.ImageURI
	r.cfg.Events.NotifyObservers(context.Background(), event)
}
