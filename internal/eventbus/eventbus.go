package eventbus

import (
	"context"
	"log"
	"sync"
	"time"

	"ares_api/internal/concurrency"
)

// Bus interface for event publication and subscription.
type Bus interface {
	Publish(topic string, data interface{})
	Subscribe(topic string) *Subscription
	Close() error
	GetSubscriberCount(topic string) int
	Health() map[string]interface{}
}

// defaultHistoryCapacity is the ring buffer size per topic (§4.4).
const defaultHistoryCapacity = 1024

// EventBus is the single process-wide broadcast primitive. Producers
// never block on consumers: a subscriber whose channel is full has its
// delivery dropped and its lagged counter incremented, never the
// publisher stalled waiting on it.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	history     map[string]*concurrency.LockFreeRingBuffer[Envelope]
	historyCap  int
	ctx         context.Context
	cancel      context.CancelFunc
}

// Subscription is one consumer's live channel plus its lag counter.
type Subscription struct {
	Topic   string
	C       <-chan Envelope
	ch      chan Envelope
	lagged  int64
	lagMu   sync.Mutex
}

// Lagged reports how many events this subscription has dropped since it
// was created.
func (s *Subscription) Lagged() int64 {
	s.lagMu.Lock()
	defer s.lagMu.Unlock()
	return s.lagged
}

func (s *Subscription) incrLagged() {
	s.lagMu.Lock()
	s.lagged++
	s.lagMu.Unlock()
}

func NewEventBus() *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	log.Println("[eventbus] initialized in-memory bus")
	return &EventBus{
		subscribers: make(map[string][]*Subscription),
		history:     make(map[string]*concurrency.LockFreeRingBuffer[Envelope]),
		historyCap:  defaultHistoryCapacity,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Publish fans Envelope{topic, data} out to every live subscriber of
// topic and records it in the topic's bounded history. Never blocks: a
// full subscriber channel is skipped, not waited on.
func (eb *EventBus) Publish(topic string, data interface{}) {
	env := NewEnvelope(topic, data)

	eb.mu.Lock()
	buf, ok := eb.history[topic]
	if !ok {
		buf = concurrency.NewLockFreeRingBuffer[Envelope](eb.historyCap)
		eb.history[topic] = buf
	}
	subs := append([]*Subscription(nil), eb.subscribers[topic]...)
	eb.mu.Unlock()

	pushLatest(buf, env)

	for _, sub := range subs {
		select {
		case sub.ch <- env:
		default:
			sub.incrLagged()
		}
	}
}

// pushLatest evicts the oldest entry when the ring is full so the buffer
// always holds the most recent historyCap events rather than rejecting
// new ones.
func pushLatest(buf *concurrency.LockFreeRingBuffer[Envelope], env Envelope) {
	for !buf.Push(env) {
		if _, ok := buf.Pop(); !ok {
			break
		}
	}
}

// Subscribe registers a new consumer for topic. The subscription's
// channel is buffered (100); delivery past that buffer is dropped and
// counted, never blocked on. Subscribe takes no history snapshot; a new
// consumer that wants to catch up on the ring buffer's contents calls
// Snapshot.
func (eb *EventBus) Subscribe(topic string) *Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Envelope, 100)
	sub := &Subscription{Topic: topic, C: ch, ch: ch}
	eb.subscribers[topic] = append(eb.subscribers[topic], sub)
	return sub
}

// Snapshot returns the topic's current bounded history, oldest first,
// without draining it — used by a resubscribing consumer to catch up on
// events it may have missed.
func (eb *EventBus) Snapshot(topic string) []Envelope {
	eb.mu.RLock()
	buf, ok := eb.history[topic]
	eb.mu.RUnlock()
	if !ok {
		return nil
	}

	var out []Envelope
	for {
		item, ok := buf.Pop()
		if !ok {
			break
		}
		out = append(out, item)
	}
	for _, item := range out {
		buf.Push(item)
	}
	return out
}

func (eb *EventBus) Close() error {
	eb.cancel()

	eb.mu.Lock()
	defer eb.mu.Unlock()
	for topic, subs := range eb.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(eb.subscribers, topic)
	}
	return nil
}

func (eb *EventBus) GetSubscriberCount(topic string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[topic])
}

func (eb *EventBus) Health() map[string]interface{} {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	total := 0
	var lagged int64
	for _, subs := range eb.subscribers {
		total += len(subs)
		for _, s := range subs {
			lagged += s.Lagged()
		}
	}

	return map[string]interface{}{
		"status":            "healthy",
		"type":              "in-memory",
		"topics":            len(eb.subscribers),
		"total_subscribers": total,
		"total_lagged":      lagged,
		"checked_at":        time.Now().UTC(),
	}
}
