package bus

import (
	"errors"
	"fmt"
	"strings"

	"trading-engine/internal/events"
)

var ErrQueueFull = errors.New("event queue full")

// OverflowPolicy decides what Publish does when the queue is at capacity.
type OverflowPolicy string

const (
	// OverflowBlock makes the producer wait for space. A handler publishing
	// into a full queue under this policy waits on itself.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest evicts the oldest queued event to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowReject returns ErrQueueFull to the producer.
	OverflowReject OverflowPolicy = "reject"
)

// ParseOverflowPolicy maps a config string onto a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OverflowBlock, OverflowDropOldest, OverflowReject:
		return p, nil
	case "":
		return OverflowReject, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Queue is a bounded multi-producer, single-consumer FIFO of events.
type Queue struct {
	ch     chan events.Event
	policy OverflowPolicy
}

// NewQueue allocates a queue with the given capacity and overflow policy.
func NewQueue(size int, policy OverflowPolicy) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if policy == "" {
		policy = OverflowReject
	}
	return &Queue{ch: make(chan events.Event, size), policy: policy}
}

// Enqueue appends e according to the queue policy. evicted reports how many
// older events were discarded to make room.
func (q *Queue) Enqueue(e events.Event) (evicted int, err error) {
	switch q.policy {
	case OverflowBlock:
		q.ch <- e
		return 0, nil
	case OverflowDropOldest:
		for {
			select {
			case q.ch <- e:
				return evicted, nil
			default:
			}
			select {
			case <-q.ch:
				evicted++
			default:
			}
		}
	default:
		return 0, q.TryEnqueue(e)
	}
}

// TryEnqueue appends e only if there is room, regardless of policy.
func (q *Queue) TryEnqueue(e events.Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Chan exposes the receive side to the single consumer.
func (q *Queue) Chan() <-chan events.Event {
	return q.ch
}

func (q *Queue) Len() int               { return len(q.ch) }
func (q *Queue) Cap() int               { return cap(q.ch) }
func (q *Queue) Policy() OverflowPolicy { return q.policy }
