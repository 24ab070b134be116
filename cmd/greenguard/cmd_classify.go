package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AkinduIB/GreenGuard/internal/config"
	"github.com/AkinduIB/GreenGuard/internal/inference"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/observer"
	"github.com/AkinduIB/GreenGuard/internal/picker"
	"github.com/AkinduIB/GreenGuard/internal/recommendation"
	"github.com/AkinduIB/GreenGuard/internal/screen"
	"github.com/AkinduIB/GreenGuard/internal/session"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

var (
	timeScale  float64
	jsonOutput bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Classify a leaf photo and print the advice",
	Long: `Runs the selection screen with the given file, then follows the result
screen through loading, classification and the delayed recommendations.

Delays come from MODEL_LOAD_DELAY, INFERENCE_DELAY and REVEAL_DELAY and are
multiplied by --time-scale.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().Float64Var(&timeScale, "time-scale", 1, "multiplier for the simulated delays")
	classifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the final screen as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if timeScale < 0 {
		return fmt.Errorf("--time-scale must be >= 0 (got %g)", timeScale)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path := recommendationsPath
	if path == "" {
		path = cfg.RecommendationsPath
	}
	table, err := recommendation.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(&progressObserver{w: out, start: time.Now()})

	sessions := session.NewManager(screen.ResultConfig{
		Stage:       inference.NewMockStage(stageOptions(cfg)),
		Table:       table,
		Events:      events,
		RevealDelay: scale(cfg.RevealDelay),
	}, 0)
	defer sessions.Close()

	home := screen.NewHome(sessions, events)
	id, err := home.PickImage(ctx, picker.FilePicker{Path: args[0]})
	if err != nil {
		if n := home.Notice(); n != nil {
			return fmt.Errorf("%s: %s", n.Title, n.Message)
		}
		return err
	}
	if id == "" {
		fmt.Fprintln(out, "Selection cancelled.")
		return nil
	}

	result, err := sessions.Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, screen.LoadingText)

	view, err := result.Wait(ctx)
	if err != nil {
		return fmt.Errorf("interrupted while %s: %w", view.State, err)
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	renderView(out, view)
	return nil
}

// stageOptions keeps the default model path and scales the configured delays.
func stageOptions(cfg *config.Config) inference.Options {
	opts := inference.DefaultOptions()
	opts.ModelLoadDelay = scale(cfg.ModelLoadDelay)
	opts.InferenceDelay = scale(cfg.InferenceDelay)
	return opts
}

func scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * timeScale)
}

func renderView(w io.Writer, view models.ScreenView) {
	fmt.Fprintf(w, "\nImage: %s\n", view.ImageURI)
	fmt.Fprintln(w, view.DiseaseLine)
	for _, s := range view.Sections {
		fmt.Fprintf(w, "\n%s:\n%s\n", s.Title, s.Text)
	}
}

// progressObserver prints pipeline transitions as they happen.
type progressObserver struct {
	w     io.Writer
	start time.Time
}

func (p *progressObserver) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	at := event.Timestamp.Sub(p.start).Seconds()
	switch event.EventType {
	case observer.Navigated:
		fmt.Fprintf(p.w, "[%5.2fs] selected %s (key %s)\n", at, event.ImageURI, event.DiseaseKey)
	case observer.PredictionResolved:
		fmt.Fprintf(p.w, "[%5.2fs] predicted %s\n", at, event.Label)
	case observer.PredictionFailed:
		fmt.Fprintf(p.w, "[%5.2fs] prediction failed: %s\n", at, event.Error)
	case observer.RecommendationsRevealed:
		fmt.Fprintf(p.w, "[%5.2fs] recommendations ready\n", at)
	}
}

func (p *progressObserver) GetObserverName() string {
	return "progress_observer"
}
