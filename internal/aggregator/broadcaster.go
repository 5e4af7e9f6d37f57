package aggregator

import (
	"sync"
	"sync/atomic"

	"github.com/avenlake/hazardwatch/internal/models"
)

// Broadcaster fans the current alert list out to subscribers. Every
// notification carries a fresh snapshot copy, never a live reference
// into aggregator state.
type Broadcaster struct {
	subscribers map[uint64]chan []models.Alert
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan []models.Alert),
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan []models.Alert) {
	id := b.nextID.Add(1)
	ch := make(chan []models.Alert, 4)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

// Unsubscribe is idempotent; unknown or already-removed ids are a no-op.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(alerts []models.Alert) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- alerts:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing consumers to exit
// gracefully.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
