package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/dusk-indust/foresight/internal/pipeline"
)

// hub fans pipeline events out to any number of SSE clients. Delivery is
// non-blocking per client: a client that stops draining loses events rather
// than stalling the pipeline.
type hub struct {
	mu      sync.Mutex
	clients map[chan pipeline.Event]struct{}
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[chan pipeline.Event]struct{})}
}

func (h *hub) subscribe() chan pipeline.Event {
	ch := make(chan pipeline.Event, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) broadcast(event pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

// sseWriter writes Server-Sent Events to an http.ResponseWriter. Call init
// once before the first writeEvent.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: f}
}

func (sw *sseWriter) init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// writeEvent serializes the event as a "data: <json>\n\n" frame and flushes
// so the client sees it immediately.
func (sw *sseWriter) writeEvent(event pipeline.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// handleEvents streams pipeline events to the client until it disconnects.
// An optional forecastId query parameter filters to one forecast.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	forecastID := r.URL.Query().Get("forecastId")

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	sw := newSSEWriter(w)
	sw.init()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if forecastID != "" && event.ForecastID != forecastID {
				continue
			}
			if err := sw.writeEvent(event); err != nil {
				return
			}
		}
	}
}
