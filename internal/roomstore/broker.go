package roomstore

import (
	"sync"

	"github.com/playperu/partyroom/internal/game"
)

// Snapshot is one frame of a room subscription. Found is false when the room
// does not exist or was removed. Room is shared between subscribers and must
// not be modified.
type Snapshot struct {
	Room  game.Room
	Found bool
}

// mailbox holds at most one undelivered snapshot. A newer snapshot replaces
// an unread one, so a slow reader skips intermediate states but always ends
// up with the latest.
type mailbox struct {
	mu sync.Mutex
	ch chan Snapshot
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan Snapshot, 1)}
}

func (m *mailbox) put(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.ch:
	default:
	}
	m.ch <- s
}

// broker is an in-process pub/sub of room snapshots keyed by PIN.
type broker struct {
	mu   sync.RWMutex
	subs map[string]map[*mailbox]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[*mailbox]struct{})}
}

func (b *broker) subscribe(pin string) *mailbox {
	m := newMailbox()
	b.mu.Lock()
	if b.subs[pin] == nil {
		b.subs[pin] = make(map[*mailbox]struct{})
	}
	b.subs[pin][m] = struct{}{}
	b.mu.Unlock()
	return m
}

func (b *broker) unsubscribe(pin string, m *mailbox) {
	b.mu.Lock()
	delete(b.subs[pin], m)
	if len(b.subs[pin]) == 0 {
		delete(b.subs, pin)
	}
	b.mu.Unlock()
}

func (b *broker) publish(pin string, s Snapshot) {
	b.mu.RLock()
	for m := range b.subs[pin] {
		m.put(s)
	}
	b.mu.RUnlock()
}

func (b *broker) count(pin string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[pin])
}
