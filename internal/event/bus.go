package event

import (
	"sync"
	"sync/atomic"

	"github.com/dhth/agx/internal/logging"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Bus fans events out to any number of subscribers.
//
// Every subscriber owns a bounded queue. Publish never blocks: when a queue
// is full the event is dropped for that subscriber only. A nil *Bus is valid
// and discards everything.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Event
	bufferSize  int
	nextID      uint64
	closed      bool
	dropped     atomic.Uint64
}

// NewBus creates a bus whose subscriber queues hold bufferSize events.
// A non-positive size selects DefaultBufferSize.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subscribers: make(map[uint64]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber. It receives only events published after
// this call. The returned function unsubscribes and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers e to every subscriber with room in its queue.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			logging.Debug().
				Uint64("subscriber", id).
				Str("kind", string(e.Kind)).
				Msg("event dropped for slow subscriber")
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were discarded because a queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close detaches all subscribers. Later publishes are ignored.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	return nil
}
