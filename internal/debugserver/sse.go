package debugserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dhth/agx/internal/logging"
)

const (
	// HeartbeatInterval is how often an idle events stream gets a comment line.
	HeartbeatInterval = 30 * time.Second
	// ClientQueueSize bounds the events waiting to be written to one client.
	// Events arriving while it is full are dropped for that client.
	ClientQueueSize = 256
)

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeData(data []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) writeComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) flush() {
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

// events streams debug events to one client until it disconnects.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	messages, err := s.bridge.Subscribe(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := sse.writeComment("connected"); err != nil {
		return
	}
	logging.Debug().Str("remote", r.RemoteAddr).Msg("debug client connected")

	queue := make(chan []byte, ClientQueueSize)
	go func() {
		if dropped := relay(r.Context(), messages, queue); dropped > 0 {
			logging.Debug().Str("remote", r.RemoteAddr).Int("dropped", dropped).Msg("debug client fell behind")
		}
	}()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logging.Debug().Str("remote", r.RemoteAddr).Msg("debug client disconnected")
			return
		case payload, ok := <-queue:
			if !ok {
				return
			}
			if err := sse.writeData(payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.writeComment("heartbeat"); err != nil {
				return
			}
		}
	}
}

// relay acks every message as soon as it arrives and queues its payload,
// dropping it when queue is full, so a slow client never holds up delivery.
// It closes queue when messages is closed or ctx ends, and returns how many
// payloads were dropped.
func relay(ctx context.Context, messages <-chan *message.Message, queue chan<- []byte) int {
	defer close(queue)

	dropped := 0
	for {
		select {
		case <-ctx.Done():
			return dropped
		case msg, ok := <-messages:
			if !ok {
				return dropped
			}
			payload := msg.Payload
			msg.Ack()

			select {
			case queue <- payload:
			default:
				dropped++
			}
		}
	}
}
