// Package roomstore owns the live room documents. Each PIN has a single
// writer: mutations of one room run one at a time under that room's lock,
// are written through to the persister and only then published to
// subscribers. Different rooms never contend.
package roomstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playperu/partyroom/internal/game"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrExists   = errors.New("room already exists")
)

// Persister is the durable copy of every room.
type Persister interface {
	Load(ctx context.Context, pin string) (game.Room, error)
	Insert(ctx context.Context, r game.Room, at time.Time) error
	Save(ctx context.Context, r game.Room, at time.Time) error
	Delete(ctx context.Context, pin string) error
	Pins(ctx context.Context, status game.Status) ([]string, error)
	IdleSince(ctx context.Context, before time.Time) ([]string, error)
}

type Store struct {
	db     Persister
	log    *slog.Logger
	tracer trace.Tracer
	broker *broker

	// Now is the store clock. Tests replace it.
	Now func() time.Time

	mu    sync.Mutex
	rooms map[string]*entry
}

// entry is one cached room. A new entry is put in the map with mu held
// while its document is read or inserted, so other rooms never wait on that
// I/O and callers of this room wait on mu.
type entry struct {
	mu      sync.Mutex
	room    game.Room
	touched time.Time
	gone    bool
	err     error // why a gone entry never became live
}

func (e *entry) goneErr() error {
	if e.err != nil {
		return e.err
	}
	return ErrNotFound
}

func New(db Persister, log *slog.Logger) *Store {
	return &Store{
		db:     db,
		log:    log,
		tracer: otel.Tracer("github.com/playperu/partyroom/internal/roomstore"),
		broker: newBroker(),
		Now:    time.Now,
		rooms:  make(map[string]*entry),
	}
}

// Create stores a new room. It fails with ErrExists if the PIN is live.
func (s *Store) Create(ctx context.Context, r game.Room) error {
	e := &entry{}
	e.mu.Lock()
	s.mu.Lock()
	if _, ok := s.rooms[r.Pin]; ok {
		s.mu.Unlock()
		return ErrExists
	}
	s.rooms[r.Pin] = e
	s.mu.Unlock()

	now := s.Now()
	err := s.db.Insert(ctx, r, now)
	if errors.Is(err, ErrExists) {
		s.abandon(r.Pin, e, ErrExists)
		return ErrExists
	}
	if err != nil {
		err = fmt.Errorf("inserting room %s: %w", r.Pin, err)
		s.abandon(r.Pin, e, err)
		return err
	}
	e.room, e.touched = r.Clone(), now
	s.broker.publish(r.Pin, Snapshot{Room: e.room, Found: true})
	e.mu.Unlock()
	return nil
}

// Read returns a copy of the current room.
func (s *Store) Read(ctx context.Context, pin string) (game.Room, error) {
	e, err := s.entry(ctx, pin)
	if err != nil {
		return game.Room{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return game.Room{}, e.goneErr()
	}
	return e.room.Clone(), nil
}

// Apply commits ops as one atomic batch.
func (s *Store) Apply(ctx context.Context, pin string, ops ...game.Op) (game.Room, error) {
	ctx, span := s.tracer.Start(ctx, "roomstore.apply",
		trace.WithAttributes(attribute.String("room.pin", pin), attribute.Int("room.ops", len(ops))))
	defer span.End()

	r, err := s.update(ctx, pin, func(game.Room) ([]game.Op, error) { return ops, nil })
	return r, traced(span, err)
}

// Update runs fn against the latest room and commits the ops it returns as
// one batch. No other mutation of the room can interleave between fn's read
// and the commit. fn may return no ops, in which case nothing is written.
func (s *Store) Update(ctx context.Context, pin string, fn func(game.Room) ([]game.Op, error)) (game.Room, error) {
	ctx, span := s.tracer.Start(ctx, "roomstore.update",
		trace.WithAttributes(attribute.String("room.pin", pin)))
	defer span.End()

	r, err := s.update(ctx, pin, fn)
	return r, traced(span, err)
}

func (s *Store) update(ctx context.Context, pin string, fn func(game.Room) ([]game.Op, error)) (game.Room, error) {
	e, err := s.entry(ctx, pin)
	if err != nil {
		return game.Room{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return game.Room{}, e.goneErr()
	}

	ops, err := fn(e.room.Clone())
	if err != nil {
		return game.Room{}, err
	}
	if len(ops) == 0 {
		return e.room.Clone(), nil
	}
	next, err := game.Apply(e.room, ops...)
	if err != nil {
		return game.Room{}, err
	}

	now := s.Now()
	if err := s.db.Save(ctx, next, now); err != nil {
		return game.Room{}, fmt.Errorf("saving room %s: %w", pin, err)
	}
	e.room, e.touched = next, now
	s.broker.publish(pin, Snapshot{Room: next, Found: true})
	return next.Clone(), nil
}

// Delete drops a room from memory and storage. Subscribers receive a
// not-found snapshot.
func (s *Store) Delete(ctx context.Context, pin string) error {
	s.mu.Lock()
	e, ok := s.rooms[pin]
	delete(s.rooms, pin)
	s.mu.Unlock()

	if ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.gone = true
	}
	if err := s.db.Delete(ctx, pin); err != nil {
		return fmt.Errorf("deleting room %s: %w", pin, err)
	}
	s.broker.publish(pin, Snapshot{})
	return nil
}

// Reap deletes rooms untouched for longer than idle and returns their PINs.
func (s *Store) Reap(ctx context.Context, idle time.Duration) ([]string, error) {
	cutoff := s.Now().Add(-idle)

	s.mu.Lock()
	cached := make(map[string]*entry, len(s.rooms))
	maps.Copy(cached, s.rooms)
	s.mu.Unlock()

	stale := map[string]bool{}
	for pin, e := range cached {
		e.mu.Lock()
		if !e.gone && e.touched.Before(cutoff) {
			stale[pin] = true
		}
		e.mu.Unlock()
	}

	pins, err := s.db.IdleSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing idle rooms: %w", err)
	}
	// Cached rooms were judged by their in-memory clock above.
	s.mu.Lock()
	for _, pin := range pins {
		if _, cached := s.rooms[pin]; !cached {
			stale[pin] = true
		}
	}
	s.mu.Unlock()

	var reaped []string
	for pin := range stale {
		if err := s.Delete(ctx, pin); err != nil {
			return reaped, err
		}
		s.log.Info("reaped idle room", "pin", pin)
		reaped = append(reaped, pin)
	}
	slices.Sort(reaped)
	return reaped, nil
}

// List returns the PINs of stored rooms with the given status.
func (s *Store) List(ctx context.Context, status game.Status) ([]string, error) {
	return s.db.Pins(ctx, status)
}

// entry returns the cached room, loading it from the persister on first
// use.
func (s *Store) entry(ctx context.Context, pin string) (*entry, error) {
	s.mu.Lock()
	if e, ok := s.rooms[pin]; ok {
		s.mu.Unlock()
		return e, nil
	}
	e := &entry{}
	e.mu.Lock()
	s.rooms[pin] = e
	s.mu.Unlock()

	r, err := s.db.Load(ctx, pin)
	if errors.Is(err, ErrNotFound) {
		s.abandon(pin, e, ErrNotFound)
		return nil, ErrNotFound
	}
	if err != nil {
		err = fmt.Errorf("loading room %s: %w", pin, err)
		s.abandon(pin, e, err)
		return nil, err
	}
	e.room, e.touched = r, s.Now()
	e.mu.Unlock()
	return e, nil
}

// abandon marks a reserved entry that never became live and drops it from
// the map. The caller holds e.mu; abandon releases it.
func (s *Store) abandon(pin string, e *entry, err error) {
	e.gone, e.err = true, err
	e.mu.Unlock()

	s.mu.Lock()
	if s.rooms[pin] == e {
		delete(s.rooms, pin)
	}
	s.mu.Unlock()
}

func traced(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
