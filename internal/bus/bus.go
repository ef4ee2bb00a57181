package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Canonical puppet events use NamespacePuppet, transport observers
// NamespaceWA and the session state machine NamespaceSession.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Int64
	logger  *zap.Logger
}

type subscription struct {
	namespace string
	ch        chan Event
	fn        func(Event)
}

// New creates a new event bus. A nil logger discards drop reports.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Emit publishes payload under kind, stamped with the current time.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
// Channel subscribers that are full miss the event; func subscribers are
// called synchronously.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !evt.In(sub.namespace) {
			continue
		}
		if sub.fn != nil {
			sub.fn(evt)
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
			b.logger.Warn("bus subscriber full, event dropped",
				zap.String("kind", evt.Kind), zap.String("namespace", sub.namespace))
		}
	}
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	return ch, b.add(&subscription{namespace: namespace, ch: ch})
}

// SubscribeFunc calls fn for every matching event on the publisher's
// goroutine. fn must not subscribe or unsubscribe.
func (b *Bus) SubscribeFunc(namespace string, fn func(Event)) func() {
	return b.add(&subscription{namespace: namespace, fn: fn})
}

// Dropped returns how many channel deliveries were skipped so far.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) add(sub *subscription) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
