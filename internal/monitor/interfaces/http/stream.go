package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

const (
	eventNotification = "notification"
	eventTone         = "tone"
)

type streamEvent struct {
	name string
	data []byte
}

type toneCue struct {
	NotificationID string `json:"notificationId"`
	UnitID         string `json:"unitId,omitempty"`
	URL            string `json:"url"`
}

// SSEBroker fans out notifications and tone cues to connected dashboards.
type SSEBroker struct {
	mu                sync.Mutex
	clients           map[chan streamEvent]struct{}
	toneURL           string
	requireSubscriber bool
}

// BrokerOption customizes the broker.
type BrokerOption func(*SSEBroker)

// WithToneURL sets the URL announced with each tone cue.
func WithToneURL(url string) BrokerOption {
	return func(b *SSEBroker) {
		if url != "" {
			b.toneURL = url
		}
	}
}

// WithRequireSubscriber makes permission requests fail while no dashboard is connected.
func WithRequireSubscriber(require bool) BrokerOption {
	return func(b *SSEBroker) {
		b.requireSubscriber = require
	}
}

// NewSSEBroker constructs a broker.
func NewSSEBroker(opts ...BrokerOption) *SSEBroker {
	b := &SSEBroker{
		clients:           make(map[chan streamEvent]struct{}),
		toneURL:           tonePath,
		requireSubscriber: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notify implements the dispatcher notifier.
func (b *SSEBroker) Notify(_ context.Context, notification monitor.Notification) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return
	}
	b.broadcast(streamEvent{name: eventNotification, data: payload})
}

// Play implements the dispatcher audio cue by announcing the tone to clients.
func (b *SSEBroker) Play(_ context.Context, notification monitor.Notification) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(toneCue{
		NotificationID: notification.ID,
		UnitID:         notification.UnitID,
		URL:            b.toneURL,
	})
	if err != nil {
		return
	}
	b.broadcast(streamEvent{name: eventTone, data: payload})
}

// RequestPermission grants notifications when a dashboard is there to show them.
func (b *SSEBroker) RequestPermission(_ context.Context) (bool, error) {
	if b == nil {
		return false, nil
	}
	if !b.requireSubscriber {
		return true, nil
	}
	return b.Subscribers() > 0, nil
}

// Subscribers reports the number of connected clients.
func (b *SSEBroker) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Subscribe registers a new client channel.
func (b *SSEBroker) Subscribe() chan streamEvent {
	if b == nil {
		return nil
	}
	ch := make(chan streamEvent, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel.
func (b *SSEBroker) Unsubscribe(ch chan streamEvent) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *SSEBroker) broadcast(event streamEvent) {
	b.mu.Lock()
	clients := make([]chan streamEvent, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()
	for _, ch := range clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// StreamHandler serves the SSE notification stream.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/notifications/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: " + event.name + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(event.data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}
