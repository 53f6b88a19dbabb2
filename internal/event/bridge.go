package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/dhth/agx/internal/logging"
)

// DebugTopic is the watermill topic events are forwarded to.
const DebugTopic = "agx.debug"

// Bridge forwards bus events, JSON-encoded, onto a watermill gochannel so
// that out-of-process style consumers (the debug server) can subscribe with
// ack semantics. The bridge reads from its own bus subscription, so a stalled
// consumer never blocks the bus. Delivery to each watermill subscriber waits
// for its ack; subscribers should ack promptly and buffer on their side, as
// the debug server does with a bounded per-client queue.
type Bridge struct {
	pubsub *gochannel.GoChannel
	unsub  func()
	wg     sync.WaitGroup
}

// NewBridge starts forwarding events from bus.
func NewBridge(bus *Bus) *Bridge {
	b := &Bridge{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: int64(bus.bufferSize),
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}

	events, unsub := bus.Subscribe()
	b.unsub = unsub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for e := range events {
			b.forward(e)
		}
	}()

	return b
}

func (b *Bridge) forward(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		logging.Warn().Err(err).Str("kind", string(e.Kind)).Msg("failed to encode event")
		return
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("kind", string(e.Kind))

	if err := b.pubsub.Publish(DebugTopic, msg); err != nil {
		logging.Debug().Err(err).Msg("failed to forward event")
	}
}

// Subscribe returns a channel of encoded events. Each message must be acked.
func (b *Bridge) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, DebugTopic)
}

// Subscriber exposes the bridge as a watermill subscriber.
func (b *Bridge) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close stops forwarding and closes the underlying pubsub.
func (b *Bridge) Close() error {
	b.unsub()
	b.wg.Wait()
	return b.pubsub.Close()
}
