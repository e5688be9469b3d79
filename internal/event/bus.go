// Package event provides an in-process pub/sub bus built on watermill.
package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type identifies a kind of event.
type Type string

const (
	ConfigUpdate   Type = "config.update"
	SessionCreated Type = "session.created"
	SessionUpdated Type = "session.updated"
	SessionDeleted Type = "session.deleted"
	ToolCalled     Type = "tool.called"
	ToolsRefreshed Type = "tools.refreshed"
)

// Event is a typed payload delivered to subscribers. Data must be
// JSON-serializable; it crosses the bus as a marshalled message.
type Event struct {
	Type Type           `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Bus routes events between publishers and subscribers using a
// watermill gochannel pub/sub, one topic per event type.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
	closed bool
	wg     sync.WaitGroup
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NopLogger{},
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish delivers an event to all subscribers of its type. Delivery is
// asynchronous; Publish never blocks on slow subscribers.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	_ = b.pubsub.Publish(string(evt.Type), msg)
}

// Subscribe registers fn for events of the given type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(t Type, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	subCtx, subCancel := context.WithCancel(b.ctx)
	ch, err := b.pubsub.Subscribe(subCtx, string(t))
	if err != nil {
		subCancel()
		return func() {}
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ch {
			var evt Event
			if err := json.Unmarshal(msg.Payload, &evt); err == nil {
				fn(evt)
			}
			msg.Ack()
		}
	}()

	return subCancel
}

// Close shuts down the bus and waits for subscriber goroutines to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	_ = b.pubsub.Close()
	b.wg.Wait()
}

// defaultBus is the process-wide bus instance.
var defaultBus = NewBus()

// Publish delivers an event on the default bus.
func Publish(evt Event) { defaultBus.Publish(evt) }

// Subscribe registers a subscriber on the default bus.
func Subscribe(t Type, fn func(Event)) func() { return defaultBus.Subscribe(t, fn) }
