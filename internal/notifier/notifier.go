// Package notifier provides a keyed broadcast mechanism for change propagation.
package notifier

import "sync"

// Notifier broadcasts values to listeners subscribed to a topic.
// Each listener holds a one-slot buffer: when a listener falls behind,
// the pending value is replaced by the newer one, so a listener never
// observes a value older than the last broadcast.
type Notifier[T any] struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription[T]]struct{}
	closed bool
}

// New creates a new Notifier instance.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		topics: make(map[string]map[*Subscription[T]]struct{}),
	}
}

// Subscription is a single listener on a topic.
type Subscription[T any] struct {
	topic string
	ch    chan T
	n     *Notifier[T]
	once  sync.Once
}

// C returns the channel values are delivered on. It is closed on Unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Topic returns the topic the subscription listens on.
func (s *Subscription[T]) Topic() string {
	return s.topic
}

// Unsubscribe removes the listener and closes its channel.
// Safe to call multiple times.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.n.remove(s)
	})
}

// Subscribe returns a listener for topic.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
// Subscribing to a closed notifier returns an already-closed subscription.
func (n *Notifier[T]) Subscribe(topic string) *Subscription[T] {
	sub := &Subscription[T]{topic: topic, ch: make(chan T, 1), n: n}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	listeners, ok := n.topics[topic]
	if !ok {
		listeners = make(map[*Subscription[T]]struct{})
		n.topics[topic] = listeners
	}
	listeners[sub] = struct{}{}
	return sub
}

// Publish delivers v to every listener of topic without blocking.
func (n *Notifier[T]) Publish(topic string, v T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for sub := range n.topics[topic] {
		select {
		case sub.ch <- v:
			continue
		default:
		}
		// Listener is behind: drop the stale value and keep the newest.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- v:
		default:
		}
	}
}

// Listeners returns the number of listeners on topic.
func (n *Notifier[T]) Listeners(topic string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.topics[topic])
}

// Close unsubscribes every listener. Later subscriptions are closed immediately.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	subs := make([]*Subscription[T], 0)
	for _, listeners := range n.topics {
		for sub := range listeners {
			subs = append(subs, sub)
		}
	}
	n.closed = true
	n.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (n *Notifier[T]) remove(sub *Subscription[T]) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if listeners, ok := n.topics[sub.topic]; ok {
		delete(listeners, sub)
		if len(listeners) == 0 {
			delete(n.topics, sub.topic)
		}
	}
	close(sub.ch)
}
