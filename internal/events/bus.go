package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Type discriminates bus messages.
type Type string

const (
	TypeRegimeChange Type = "regime_change"
	TypeWhaleAlert   Type = "whale_alert"
	TypePressure     Type = "pressure"
	TypeSignal       Type = "signal"
)

// Message is one published notification. Payload is the originating
// value (a flow event or a pulse signal) and marshals as-is.
type Message struct {
	Type       Type      `json:"type"`
	Instrument string    `json:"instrument"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// Publisher forwards messages to an external system (Redis, a log
// sink). Implementations must not block the caller for long.
type Publisher interface {
	Publish(msg Message) error
}

const subscriberBuffer = 64

// Bus fans messages out to in-process subscribers and an optional
// external publisher. Sends to subscribers are non-blocking: a slow
// consumer drops messages rather than stalling a poll loop.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]chan Message
	nextID   int
	external Publisher
}

// NewBus creates a bus with no subscribers. external may be nil.
func NewBus(external Publisher) *Bus {
	return &Bus{
		subs:     make(map[int]chan Message),
		external: external,
	}
}

// Subscribe registers a consumer. The returned cancel func must be
// called to release the channel.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Message, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers msg to every subscriber and the external publisher.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			// Slow subscriber; dropping is preferable to blocking
			// the instrument poll loop.
		}
	}
	external := b.external
	b.mu.Unlock()

	if external != nil {
		if err := external.Publish(msg); err != nil {
			log.Warn().Err(err).Str("type", string(msg.Type)).Msg("external publish failed")
		}
	}
}
