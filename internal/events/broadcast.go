package events

import (
	"sync"
	"sync/atomic"
)

// Broadcaster fans events out to observer channels. It sits beside the bus,
// never in front of it: observers see events after dispatch and a slow
// observer loses events instead of stalling the publisher.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[EventType][]chan Event
	dropped atomic.Uint64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[EventType][]chan Event)}
}

// Subscribe registers a listener for the given event types and returns the
// channel and an unsubscribe function.
func (b *Broadcaster) Subscribe(buffer int, types ...EventType) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	for _, t := range types {
		b.subs[t] = append(b.subs[t], ch)
	}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range types {
				subs := b.subs[t]
				for i, c := range subs {
					if c == ch {
						b.subs[t] = append(subs[:i:i], subs[i+1:]...)
						break
					}
				}
			}
			close(ch)
		})
	}

	return ch, unsub
}

// Broadcast delivers e to every subscriber of its type without blocking.
func (b *Broadcaster) Broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e.Type] {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
