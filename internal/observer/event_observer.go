package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// PipelineEvent is emitted by the screens as a selection moves through the
// pipeline.
type PipelineEvent struct {
	EventType  EventType         `json:"event_type"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionID  string            `json:"session_id,omitempty"`
	ImageURI   string            `json:"image_uri,omitempty"`
	DiseaseKey models.DiseaseKey `json:"disease_key,omitempty"`
	Label      models.Label      `json:"label,omitempty"`
	Elapsed    time.Duration     `json:"elapsed,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	SelectionCancelled      EventType = "selection_cancelled"
	SelectionFailed         EventType = "selection_failed"
	Navigated               EventType = "navigated"
	PredictionResolved      EventType = "prediction_resolved"
	PredictionFailed        EventType = "prediction_failed"
	RecommendationsRevealed EventType = "recommendations_revealed"
	SessionClosed           EventType = "session_closed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"session_id": event.SessionID,
	}
	if event.ImageURI != "" {
		fields["image_uri"] = event.ImageURI
	}
	if event.DiseaseKey != "" {
		fields["disease_key"] = event.DiseaseKey
	}
	if event.Label != "" {
		fields["label"] = event.Label
	}
	if event.Elapsed > 0 {
		fields["elapsed_ms"] = event.Elapsed.Milliseconds()
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case SelectionCancelled:
		entry.Info("User cancelled image picker")
	case SelectionFailed:
		entry.Warn("Image picker failed")
	case Navigated:
		entry.Info("Navigated to result screen")
	case PredictionResolved:
		entry.Info("Model predicted class")
	case PredictionFailed:
		entry.Warn("Prediction failed")
	case RecommendationsRevealed:
		entry.Debug("Recommendations revealed")
	case SessionClosed:
		entry.Debug("Result screen closed")
	default:
		entry.Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of MetricsObserver counters.
type Metrics struct {
	Selections       int64            `json:"selections"`
	Cancellations    int64            `json:"cancellations"`
	PickerErrors     int64            `json:"picker_errors"`
	Resolved         int64            `json:"resolved"`
	Unresolved       int64            `json:"unresolved"`
	Revealed         int64            `json:"revealed"`
	Closed           int64            `json:"closed"`
	AvgTimeToLabelMs int64            `json:"avg_time_to_label_ms"`
	LabelCounts      map[string]int64 `json:"label_counts"`
}

// MetricsObserver counts pipeline outcomes
type MetricsObserver struct {
	mu           sync.RWMutex
	m            Metrics
	totalToLabel time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{m: Metrics{LabelCounts: make(map[string]int64)}}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case Navigated:
		o.m.Selections++
	case SelectionCancelled:
		o.m.Cancellations++
	case SelectionFailed:
		o.m.PickerErrors++
	case PredictionResolved:
		o.m.Resolved++
		o.m.LabelCounts[string(event.Label)]++
		o.totalToLabel += event.Elapsed
	case PredictionFailed:
		o.m.Unresolved++
	case RecommendationsRevealed:
		o.m.Revealed++
	case SessionClosed:
		o.m.Closed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := o.m
	out.LabelCounts = make(map[string]int64, len(o.m.LabelCounts))
	for k, v := range o.m.LabelCounts {
		out.LabelCounts[k] = v
	}
	if o.m.Resolved > 0 {
		out.AvgTimeToLabelMs = (o.totalToLabel / time.Duration(o.m.Resolved)).Milliseconds()
	}
	return out
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in order on the
// calling goroutine. A panicking observer does not stop the others.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
