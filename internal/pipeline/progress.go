package pipeline

import (
	"time"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// EventKind identifies one of the five pipeline event kinds.
type EventKind string

const (
	EventStageStart       EventKind = "stage_start"
	EventStageComplete    EventKind = "stage_complete"
	EventPipelineComplete EventKind = "pipeline_complete"
	EventPipelineError    EventKind = "pipeline_error"
	EventProgressUpdate   EventKind = "progress_update"
)

// Event is emitted during pipeline execution. It carries enough payload to
// be relayed verbatim to subscribers; the engine has no opinion on the
// delivery mechanism.
type Event struct {
	Kind       EventKind      `json:"kind"`
	ForecastID string         `json:"forecastId"`
	TaskID     string         `json:"taskId,omitempty"`
	Stage      forecast.Stage `json:"stage,omitempty"`
	Status     string         `json:"status,omitempty"`
	Message    string         `json:"message,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	ElapsedMS  int64          `json:"elapsedMs,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Reporter fans events out to a buffered subscriber channel and any number
// of registered sinks (transport adapters).
type Reporter struct {
	ch    chan Event
	sinks []func(Event)
}

// NewReporter creates a Reporter with a buffered channel of size 64.
func NewReporter() *Reporter {
	return &Reporter{ch: make(chan Event, 64)}
}

// AddSink registers a synchronous event sink. Sinks must not block; slow
// delivery belongs in the adapter, not here. Not safe to call after the
// pipeline has started emitting.
func (r *Reporter) AddSink(sink func(Event)) {
	r.sinks = append(r.sinks, sink)
}

// Emit stamps and delivers an event. Channel delivery is non-blocking: if
// the subscriber is not draining, the event is dropped rather than stalling
// the pipeline.
func (r *Reporter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case r.ch <- event:
	default:
		// Subscriber not keeping up; drop.
	}
	for _, sink := range r.sinks {
		sink(event)
	}
}

// Subscribe returns the read-only event channel.
func (r *Reporter) Subscribe() <-chan Event {
	return r.ch
}

// Close closes the event channel. Call only after the last Emit.
func (r *Reporter) Close() {
	close(r.ch)
}
