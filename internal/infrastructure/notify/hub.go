package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"PostTranslator/internal/ports"
)

// DefaultSubscriberBuffer is the per-subscriber backlog before messages are dropped.
const DefaultSubscriberBuffer = 16

// Message is one published payload, already encoded as JSON.
type Message struct {
	Channel string
	Data    json.RawMessage
}

// Hub is an in-process, channel-keyed pub/sub. Publishing never blocks: a
// subscriber whose buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	logger *slog.Logger
}

type subscription struct {
	ch chan Message
}

var _ ports.Notifier = (*Hub)(nil)

// NewHub builds an empty hub.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: map[string]map[*subscription]struct{}{}, buffer: buffer, logger: logger}
}

// Subscribe registers interest in channel. The returned cancel func must be
// called to release the subscription; it closes the message stream.
func (h *Hub) Subscribe(channel string) (<-chan Message, func()) {
	sub := &subscription{ch: make(chan Message, h.buffer)}

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = map[*subscription]struct{}{}
	}
	h.subs[channel][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[channel], sub)
			if len(h.subs[channel]) == 0 {
				delete(h.subs, channel)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish encodes payload and offers it to every subscriber of channel.
func (h *Hub) Publish(_ context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", channel, err)
	}
	msg := Message{Channel: channel, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[channel] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("dropping message for slow subscriber", "channel", channel)
		}
	}
	return nil
}

// Subscribers reports how many subscriptions channel has.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
