// ABOUTME: SSE streaming endpoint that forwards bus events to connected viewers
// ABOUTME: Each viewer gets a bus subscription; a shared keepalive ticker feeds all of them

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/pileup-gateway/internal/bus"
)

// frame is the JSON envelope written as SSE data for every event.
type frame struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Streamer serves the viewer event stream over SSE.
type Streamer struct {
	bus               *bus.Bus
	keepaliveInterval time.Duration
	logger            *slog.Logger
}

// New creates a Streamer backed by the given bus.
func New(b *bus.Bus, keepaliveInterval time.Duration, logger *slog.Logger) *Streamer {
	return &Streamer{
		bus:               b,
		keepaliveInterval: keepaliveInterval,
		logger:            logger.With("component", "stream"),
	}
}

// ServeHTTP handles a single viewer connection. It subscribes to the bus,
// sends an initial connected event, and forwards events until the client
// disconnects or a write fails.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := s.bus.Subscribe(r.Context())
	defer s.bus.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	connected := bus.Event{
		Type:      bus.TypeConnected,
		Data:      map[string]any{"server_time": time.Now().UTC()},
		Timestamp: time.Now().UTC(),
	}
	if err := writeSSEEvent(w, connected); err != nil {
		return
	}
	flusher.Flush()

	s.logger.Debug("viewer connected", "subscription_id", sub.ID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("viewer disconnected", "subscription_id", sub.ID)
			return

		case ev, ok := <-sub.C:
			if !ok {
				// Bus dropped us (overflow) or is shutting down
				s.logger.Debug("subscription closed", "subscription_id", sub.ID)
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				s.logger.Debug("write failed, dropping viewer", "subscription_id", sub.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// RunKeepalive publishes keepalive events through the bus at the configured
// interval until ctx is cancelled. All viewers share this one ticker.
func (s *Streamer) RunKeepalive(ctx context.Context) {
	ticker := time.NewTicker(s.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.bus.Publish(bus.Event{
				Type:      bus.TypeKeepalive,
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

// writeSSEEvent writes one event in the standard SSE format:
// event: <type>\ndata: <json frame>\n\n
func writeSSEEvent(w http.ResponseWriter, ev bus.Event) error {
	dataJSON, err := json.Marshal(frame{
		Type:      string(ev.Type),
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, dataJSON); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}
