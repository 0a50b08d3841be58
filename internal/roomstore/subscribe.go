package roomstore

import (
	"context"
	"errors"
	"sync"
)

// Subscription delivers room snapshots. The first one is the state at
// subscription time; later ones follow every committed change.
type Subscription struct {
	C     <-chan Snapshot
	close func()
}

// Close stops delivery. It is safe to call more than once.
func (sub *Subscription) Close() { sub.close() }

// Subscribe registers for snapshots of pin. A room that does not exist yet
// yields a not-found first snapshot; if it is created later, the
// subscription sees it.
func (s *Store) Subscribe(ctx context.Context, pin string) (*Subscription, error) {
	e, err := s.entry(ctx, pin)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var m *mailbox
	if e == nil {
		// The not-found frame goes in under the store lock so a later
		// Create, which reserves its entry under the same lock, publishes
		// after it.
		s.mu.Lock()
		m = s.broker.subscribe(pin)
		live := s.rooms[pin]
		if live == nil {
			m.put(Snapshot{})
		}
		s.mu.Unlock()
		if live != nil {
			live.mu.Lock()
			m.put(Snapshot{Room: live.room, Found: !live.gone})
			live.mu.Unlock()
		}
	} else {
		e.mu.Lock()
		m = s.broker.subscribe(pin)
		m.put(Snapshot{Room: e.room, Found: !e.gone})
		e.mu.Unlock()
	}

	return &Subscription{
		C:     m.ch,
		close: sync.OnceFunc(func() { s.broker.unsubscribe(pin, m) }),
	}, nil
}

// Watch calls fn with every snapshot of pin until ctx is done or fn returns
// an error.
func (s *Store) Watch(ctx context.Context, pin string, fn func(Snapshot) error) error {
	sub, err := s.Subscribe(ctx, pin)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-sub.C:
			if err := fn(snap); err != nil {
				return err
			}
		}
	}
}

// Subscribers reports how many subscriptions are open for pin.
func (s *Store) Subscribers(pin string) int {
	return s.broker.count(pin)
}
