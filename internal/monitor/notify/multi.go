package notify

import (
	"context"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, notification monitor.Notification)
}

// MultiSink fans notifications out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink constructs a MultiSink. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &MultiSink{sinks: filtered}
}

// Notify forwards the notification to all sinks.
func (m *MultiSink) Notify(ctx context.Context, notification monitor.Notification) {
	if m == nil {
		return
	}
	for _, sink := range m.sinks {
		sink.Notify(ctx, notification)
	}
}

// Len reports the number of sinks.
func (m *MultiSink) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}
