package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
	"github.com/AkinduIB/GreenGuard/internal/inference"
	"github.com/AkinduIB/GreenGuard/internal/navigation"
	"github.com/AkinduIB/GreenGuard/internal/observer"
	"github.com/AkinduIB/GreenGuard/internal/picker"
	"github.com/AkinduIB/GreenGuard/internal/recommendation"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

type fakeNavigator struct {
	cfg ResultConfig

	mu      sync.Mutex
	screens map[string]*Result
	pushed  int
}

func newFakeNavigator(cfg ResultConfig) *fakeNavigator {
	return &fakeNavigator{cfg: cfg, screens: make(map[string]*Result)}
}

func (f *fakeNavigator) Navigate(ctx context.Context, route navigation.Route, params models.ResultParams) (string, error) {
	if route != navigation.RouteResult {
		return "", navigation.ErrRouteNotImplemented
	}
	f.mu.Lock()
	f.pushed++
	id := fmt.Sprintf("screen-%d", f.pushed)
	r := NewResult(id, params, f.cfg)
	f.screens[id] = r
	f.mu.Unlock()
	return id, r.Start(ctx)
}

func (f *fakeNavigator) Back(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.screens[id]
	if !ok {
		return errors.New("no such screen")
	}
	r.Close()
	delete(f.screens, id)
	return nil
}

func (f *fakeNavigator) screen(id string) *Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screens[id]
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observer.EventType
}

func (r *recordingObserver) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	r.mu.Lock()
	r.events = append(r.events, event.EventType)
	r.mu.Unlock()
}

func (r *recordingObserver) GetObserverName() string { return "recording" }

func (r *recordingObserver) types() []observer.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observer.EventType(nil), r.events...)
}

func testConfig(reveal time.Duration) ResultConfig {
	return ResultConfig{
		Stage: inference.NewMockStage(inference.Options{
			ModelLoadDelay: 5 * time.Millisecond,
			InferenceDelay: 20 * time.Millisecond,
		}),
		Table:       recommendation.MustDefault(),
		RevealDelay: reveal,
	}
}

func selected(uri, name string) picker.Picker {
	return picker.Static{Result: picker.Selected(picker.Asset{URI: uri, FileName: name})}
}

func waitView(t *testing.T, r *Result) models.ScreenView {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	view, err := r.Wait(ctx)
	require.NoError(t, err)
	return view
}

func TestHome_LateBlightEndToEnd(t *testing.T) {
	rec := &recordingObserver{}
	pub := observer.NewEventPublisher()
	pub.Subscribe(rec)

	cfg := testConfig(30 * time.Millisecond)
	cfg.Events = pub
	nav := newFakeNavigator(cfg)
	home := NewHome(nav, pub)

	id, err := home.PickImage(context.Background(), selected("file:///photos/leaf_late_blight_03.jpg", "leaf_late_blight_03.jpg"))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, models.StateIdle, home.State())

	result := nav.screen(id)
	require.NotNil(t, result)
	assert.Equal(t, models.KeyPotatoLateBlight, result.Params().DiseaseKey)
	assert.Equal(t, "file:///photos/leaf_late_blight_03.jpg", result.Params().ImageURI)

	loading := result.View()
	assert.Equal(t, models.StateLoading, loading.State)
	assert.True(t, loading.Loading)
	assert.Equal(t, LoadingText, loading.LoadingText)
	assert.Empty(t, loading.DiseaseLine)

	require.Eventually(t, func() bool { return result.State() == models.StateResolved }, time.Second, time.Millisecond)
	resolved := result.View()
	assert.Equal(t, models.LabelPotatoLateBlight, resolved.Label)
	assert.Equal(t, "Disease: Potato Late Blight", resolved.DiseaseLine)
	assert.Empty(t, resolved.Sections, "recommendations stay hidden until the reveal delay")

	view := waitView(t, result)
	assert.Equal(t, models.StateRevealed, view.State)
	require.Len(t, view.Sections, 2)
	want := recommendation.MustDefault().Lookup(models.LabelPotatoLateBlight)
	assert.Equal(t, models.Section{Title: TreatmentTitle, Text: want.Recommendations}, view.Sections[0])
	assert.Equal(t, models.Section{Title: PreventiveTitle, Text: want.PreventiveMeasures}, view.Sections[1])

	assert.Equal(t, []observer.EventType{
		observer.Navigated,
		observer.PredictionResolved,
		observer.RecommendationsRevealed,
	}, filterOut(rec.types(), observer.SessionClosed))
}

// slowResolvedObserver stalls before recording PredictionResolved.
type slowResolvedObserver struct {
	recordingObserver
	stall time.Duration
}

func (s *slowResolvedObserver) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	if event.EventType == observer.PredictionResolved {
		time.Sleep(s.stall)
	}
	s.recordingObserver.OnEvent(ctx, event)
}

func TestResult_ResolvedBeforeRevealWithZeroDelay(t *testing.T) {
	rec := &slowResolvedObserver{stall: 30 * time.Millisecond}
	pub := observer.NewEventPublisher()
	pub.Subscribe(rec)

	cfg := testConfig(0)
	cfg.Events = pub
	r := NewResult("zero-delay", models.ResultParams{
		ImageURI:   "file:///photos/potato_healthy.jpg",
		DiseaseKey: models.KeyPotatoHealthy,
	}, cfg)
	defer r.Close()
	require.NoError(t, r.Start(context.Background()))

	view := waitView(t, r)
	assert.Equal(t, models.StateRevealed, view.State)
	assert.Equal(t, []observer.EventType{
		observer.PredictionResolved,
		observer.RecommendationsRevealed,
	}, rec.types(), "terminal events are published before Wait returns")
}

func filterOut(events []observer.EventType, drop observer.EventType) []observer.EventType {
	out := events[:0]
	for _, e := range events {
		if e != drop {
			out = append(out, e)
		}
	}
	return out
}

func TestHome_UnmatchedNameFails(t *testing.T) {
	nav := newFakeNavigator(testConfig(time.Millisecond))
	home := NewHome(nav, nil)

	id, err := home.PickImage(context.Background(), selected("file:///photos/img1234.jpg", "img1234.jpg"))
	require.NoError(t, err)

	result := nav.screen(id)
	assert.Equal(t, models.KeyUnknown, result.Params().DiseaseKey)

	view := waitView(t, result)
	assert.Equal(t, models.StateFailed, view.State)
	assert.Equal(t, models.LabelUnresolved, view.Label)
	assert.Equal(t, "Disease: Error: Unable to identify the plant or disease", view.DiseaseLine)
	assert.Empty(t, view.Sections)
	assert.Equal(t, inference.ErrClassificationUnresolved.Error(), view.Error)
	assert.Equal(t, string(apperrors.ErrorTypeUnresolved), view.ErrorType)
	assert.False(t, view.Loading)
}

func TestHome_NameFromURI(t *testing.T) {
	nav := newFakeNavigator(testConfig(time.Millisecond))
	home := NewHome(nav, nil)

	id, err := home.PickImage(context.Background(), selected("content://media/Pepper_Bacterial_Spot_2.jpg", ""))
	require.NoError(t, err)
	assert.Equal(t, models.KeyPepperBacterialSpot, nav.screen(id).Params().DiseaseKey)

	view := waitView(t, nav.screen(id))
	assert.Equal(t, models.LabelPepperBacterialSpot, view.Label)
}

func TestHome_Cancelled(t *testing.T) {
	rec := &recordingObserver{}
	pub := observer.NewEventPublisher()
	pub.Subscribe(rec)

	nav := newFakeNavigator(testConfig(time.Millisecond))
	home := NewHome(nav, pub)

	id, err := home.PickImage(context.Background(), picker.Static{Result: picker.Cancelled()})
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, models.StateIdle, home.State())
	assert.Nil(t, home.Notice())
	assert.Zero(t, nav.pushed)
	assert.Equal(t, []observer.EventType{observer.SelectionCancelled}, rec.types())
}

func TestHome_EmptySelectionIsIgnored(t *testing.T) {
	nav := newFakeNavigator(testConfig(time.Millisecond))
	home := NewHome(nav, nil)

	for _, p := range []picker.Picker{
		picker.Static{Result: picker.Selected()},
		selected("", "late_blight.jpg"),
	} {
		id, err := home.PickImage(context.Background(), p)
		assert.NoError(t, err)
		assert.Empty(t, id)
	}
	assert.Zero(t, nav.pushed)
}

func TestHome_PickerError(t *testing.T) {
	nav := newFakeNavigator(testConfig(time.Millisecond))
	home := NewHome(nav, nil)

	id, err := home.PickImage(context.Background(), picker.Static{Result: picker.Failed("permission", "Photo access denied")})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePicker))
	assert.Zero(t, nav.pushed)
	assert.Equal(t, models.StateIdle, home.State())

	notice := home.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, "Error", notice.Title)
	assert.Equal(t, "ImagePicker Error: Photo access denied", notice.Message)
	assert.Equal(t, notice, home.View().Notice)

	home.DismissNotice()
	assert.Nil(t, home.Notice())
}

type blockingPicker struct {
	opened  chan picker.Options
	release chan picker.Result
}

func (b blockingPicker) Pick(ctx context.Context, opts picker.Options) picker.Result {
	b.opened <- opts
	return <-b.release
}

func TestHome_SelectingRejectsSecondPick(t *testing.T) {
	nav := newFakeNavigator(testConfig(time.Millisecond))
	home := NewHome(nav, nil)
	bp := blockingPicker{opened: make(chan picker.Options, 1), release: make(chan picker.Result)}

	done := make(chan error, 1)
	go func() {
		_, err := home.PickImage(context.Background(), bp)
		done <- err
	}()

	opts := <-bp.opened
	assert.Equal(t, picker.PhotoOptions(), opts)
	assert.Equal(t, models.StateSelecting, home.State())

	_, err := home.PickImage(context.Background(), picker.Static{Result: picker.Cancelled()})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	bp.release <- picker.Cancelled()
	assert.NoError(t, <-done)
	assert.Equal(t, models.StateIdle, home.State())
}

func TestHome_Camera(t *testing.T) {
	home := NewHome(newFakeNavigator(testConfig(time.Millisecond)), nil)

	_, err := home.CaptureImage(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotImplemented))
	assert.ErrorIs(t, err, navigation.ErrRouteNotImplemented)
}

func TestHome_ReturnFrom(t *testing.T) {
	cfg := testConfig(time.Hour)
	nav := newFakeNavigator(cfg)
	home := NewHome(nav, nil)

	id, err := home.PickImage(context.Background(), selected("file:///a/potato_healthy.jpg", "potato_healthy.jpg"))
	require.NoError(t, err)
	result := nav.screen(id)

	require.NoError(t, home.ReturnFrom(context.Background(), id))
	assert.True(t, result.Closed())
	assert.Nil(t, nav.screen(id))
	assert.Equal(t, models.StateIdle, home.State())
	assert.Error(t, home.ReturnFrom(context.Background(), id))
}

func TestResult_CloseDuringInference(t *testing.T) {
	cfg := testConfig(time.Millisecond)
	cfg.Stage = inference.NewMockStage(inference.Options{InferenceDelay: time.Hour})
	require.NoError(t, cfg.Stage.Load(context.Background()))

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	result := NewResult("s", models.ResultParams{ImageURI: "file:///a.jpg", DiseaseKey: models.KeyPotatoHealthy}, cfg)
	require.NoError(t, result.Start(context.Background()))
	assert.Equal(t, models.StateLoading, result.State())

	assert.True(t, result.Close())
	assert.False(t, result.Close())

	view := waitView(t, result)
	assert.Equal(t, models.StateLoading, view.State)
	assert.Empty(t, view.Label)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, models.StateLoading, result.State(), "no update after close")
}

func TestResult_CloseBeforeReveal(t *testing.T) {
	cfg := testConfig(50 * time.Millisecond)
	result := NewResult("s", models.ResultParams{ImageURI: "file:///a.jpg", DiseaseKey: models.KeyPepperHealthy}, cfg)
	require.NoError(t, result.Start(context.Background()))

	require.Eventually(t, func() bool { return result.State() == models.StateResolved }, time.Second, time.Millisecond)
	result.Close()

	time.Sleep(100 * time.Millisecond)
	view := result.View()
	assert.Equal(t, models.StateResolved, view.State)
	assert.Empty(t, view.Sections)
}

func TestResult_StartTwice(t *testing.T) {
	result := NewResult("s", models.ResultParams{DiseaseKey: models.KeyUnknown}, testConfig(time.Millisecond))
	defer result.Close()

	navigated := result.View()
	assert.Equal(t, models.StateNavigated, navigated.State)
	assert.Equal(t, "Disease: "+ProcessingText, navigated.DiseaseLine)

	require.NoError(t, result.Start(context.Background()))
	err := result.Start(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestResult_WithPool(t *testing.T) {
	pool := inference.NewWorkerPool(1, 1)
	pool.Start()
	defer pool.Close()

	cfg := testConfig(time.Millisecond)
	cfg.Pool = pool
	result := NewResult("s", models.ResultParams{ImageURI: "file:///a.jpg", DiseaseKey: models.KeyPotatoEarlyBlight}, cfg)
	require.NoError(t, result.Start(context.Background()))

	view := waitView(t, result)
	assert.Equal(t, models.StateRevealed, view.State)
	assert.Equal(t, models.LabelPotatoEarlyBlight, view.Label)
}

func TestResult_ClosedPool(t *testing.T) {
	pool := inference.NewWorkerPool(1, 1)
	pool.Start()
	pool.Close()

	cfg := testConfig(time.Millisecond)
	cfg.Pool = pool
	result := NewResult("s", models.ResultParams{DiseaseKey: models.KeyPotatoEarlyBlight}, cfg)

	err := result.Start(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
	assert.True(t, result.Closed())
}

type brokenStage struct{ inference.Stage }

func (brokenStage) Load(ctx context.Context) error { return errors.New("weights missing") }

func TestResult_LoadFailure(t *testing.T) {
	cfg := testConfig(time.Millisecond)
	cfg.Stage = brokenStage{}
	result := NewResult("s", models.ResultParams{DiseaseKey: models.KeyPotatoHealthy}, cfg)
	require.NoError(t, result.Start(context.Background()))

	view := waitView(t, result)
	assert.Equal(t, models.StateFailed, view.State)
	assert.Equal(t, "weights missing", view.Error)
	assert.Equal(t, "Disease: "+string(models.LabelUnresolved), view.DiseaseLine)
}

func TestResult_WaitContext(t *testing.T) {
	result := NewResult("s", models.ResultParams{DiseaseKey: models.KeyPotatoHealthy}, testConfig(time.Millisecond))
	defer result.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	view, err := result.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.StateNavigated, view.State)
}
