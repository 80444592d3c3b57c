package arm

import (
	"sync"
	"sync/atomic"
)

// EventBus broadcasts safety events to any number of subscribers without
// ever blocking the publisher. Each subscriber gets its own bounded
// channel; when a subscriber falls behind, events for that subscriber are
// dropped and counted rather than stalling the monitor's processing path.
type EventBus struct {
	mu      sync.Mutex
	subs    map[int]chan SafetyEvent
	nextID  int
	dropped atomic.Uint64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan SafetyEvent)}
}

// Subscribe registers a new subscriber with the given channel buffer size
// (minimum 1). It returns the receive channel and a cancel function that
// unregisters the subscriber and closes the channel. The cancel function
// is safe to call more than once.
func (b *EventBus) Subscribe(buffer int) (<-chan SafetyEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan SafetyEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber whose buffer has room.
// Full subscribers are skipped and the drop counter incremented; Publish
// never blocks.
func (b *EventBus) Publish(ev SafetyEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the total number of events dropped across all
// subscribers since the bus was created.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers.
func (b *EventBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
