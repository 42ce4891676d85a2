// Package sse streams JSON events to HTTP clients over Server-Sent
// Events. A Hub assigns sequence numbers and fans published events out
// to every connected stream; the handler writes SSE framing with
// periodic heartbeat comments so idle connections stay open through
// proxies.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HeartbeatInterval is the interval between SSE heartbeat comments.
const HeartbeatInterval = 15 * time.Second

// subscriberBuffer is each subscriber's channel capacity. A subscriber
// that falls this far behind is dropped rather than stalling the
// publisher.
const subscriberBuffer = 16

// Event is one message on the stream: a hub-assigned sequence number
// for the SSE id field, an event name, and a JSON-marshalable payload.
type Event struct {
	Seq  uint64
	Name string
	Data any
}

// Hub fans published events out to subscribed streams. All methods are
// safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish numbers the event and delivers it to every subscriber.
// Publishing never blocks; events published after Close are dropped.
func (h *Hub) Publish(name string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.seq++
	evt := Event{Seq: h.seq, Name: name, Data: data}
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers reports the number of connected streams.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects further events. Open
// streams end once their channel drains.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) subscribe() chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// unsubscribe removes ch unless the hub already dropped it.
func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Handler streams hub events to the client.
//
// SSE format:
//
//	id: {seq}
//	event: {name}
//	data: {json}
//
// A heartbeat comment ": ping\n\n" is sent every HeartbeatInterval.
// The stream stays open until the client disconnects or the hub is
// closed.
func Handler(hub *Hub) http.Handler {
	return handlerWithHeartbeat(hub, HeartbeatInterval)
}

func handlerWithHeartbeat(hub *Hub, heartbeat time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := hub.subscribe()
		defer hub.unsubscribe(ch)

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return

			case evt, ok := <-ch:
				if !ok {
					// Hub closed or this subscriber was dropped.
					return
				}
				if err := writeEvent(w, evt); err != nil {
					return
				}
				flusher.Flush()

			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}

// writeEvent writes a single event in SSE framing.
func writeEvent(w http.ResponseWriter, evt Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Name, data)
	return err
}
