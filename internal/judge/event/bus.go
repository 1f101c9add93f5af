// Package event is the in-process broadcast bus for judging announcements.
// Publishing never blocks: a subscriber that cannot keep up loses events
// rather than stalling the judge loop.
package event

import (
	"sync"
)

// Topic names an event stream.
type Topic string

// Topics published by the judge loop.
const (
	TopicJudge    Topic = "judge"
	TopicCongrats Topic = "congrats"
)

// Subscription is one subscriber's buffered feed. C is closed on
// Unsubscribe and on bus Close.
type Subscription struct {
	C <-chan any

	topic Topic
	ch    chan any
}

// Bus fans events out to subscribers per topic. Delivery is at most once.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic]map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer.
func (b *Bus) Subscribe(topic Topic, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan any, buffer)
	sub := &Subscription{C: ch, topic: topic, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.topic]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
}

// Publish delivers payload to every subscriber of topic, skipping any whose
// buffer is full.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- payload:
		default:
		}
	}
}

// Close closes every subscription channel and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			close(sub.ch)
		}
	}
	b.subs = nil
}
