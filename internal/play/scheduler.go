package play

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/roomstore"
)

// Scheduler drives the timed parts of every playing room: catalog events,
// the mission round, and the quiz, duel and mission countdowns. Each tick
// recomputes elapsed time from the room's startTime, so a late or skipped
// tick never shifts the schedule.
type Scheduler struct {
	svc  *Service
	log  *slog.Logger
	tick time.Duration

	mu    sync.Mutex
	rooms map[string]*schedule
}

type schedule struct {
	eventsFired int
}

func NewScheduler(svc *Service, log *slog.Logger, tick time.Duration) *Scheduler {
	return &Scheduler{
		svc:   svc,
		log:   log,
		tick:  tick,
		rooms: make(map[string]*schedule),
	}
}

// Attach starts scheduling a playing room. Events that fell due before now
// are skipped rather than replayed.
func (s *Scheduler) Attach(pin string, r game.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[pin]; ok {
		return
	}
	s.rooms[pin] = &schedule{eventsFired: game.EventsDue(game.Elapsed(r, s.svc.Now()))}
	s.log.Info("scheduler attached", "pin", pin)
}

// Resume attaches every stored room that is still playing. It is called once
// at startup.
func (s *Scheduler) Resume(ctx context.Context) error {
	pins, err := s.svc.store.List(ctx, game.StatusPlaying)
	if err != nil {
		return err
	}
	for _, pin := range pins {
		r, err := s.svc.store.Read(ctx, pin)
		if err != nil {
			s.log.Warn("resuming room", "pin", pin, "error", err)
			continue
		}
		s.Attach(pin, r)
	}
	return nil
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Step(ctx, s.svc.Now())
		}
	}
}

// Step runs one tick at now.
func (s *Scheduler) Step(ctx context.Context, now time.Time) {
	s.svc.ExpireQuizzes(ctx, now)

	s.mu.Lock()
	pins := make([]string, 0, len(s.rooms))
	for pin := range s.rooms {
		pins = append(pins, pin)
	}
	s.mu.Unlock()

	for _, pin := range pins {
		done, err := s.step(ctx, pin, now)
		if err != nil {
			s.log.Warn("scheduler tick", "pin", pin, "error", err)
		}
		if done {
			s.detach(pin)
		}
	}
}

func (s *Scheduler) step(ctx context.Context, pin string, now time.Time) (done bool, err error) {
	r, err := s.svc.store.Read(ctx, pin)
	if errors.Is(err, roomstore.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if r.Status != game.StatusPlaying {
		return true, nil
	}

	// Countdowns still resolve after the game ends so nothing is left
	// hanging in the final snapshot.
	// A failed expiry must not hold back the rest of the timeline.
	if err := s.svc.ExpireDuels(ctx, pin, now); err != nil {
		s.log.Warn("expiring duels", "pin", pin, "error", err)
	}
	if err := s.svc.ExpireMissions(ctx, pin, now); err != nil {
		s.log.Warn("expiring missions", "pin", pin, "error", err)
	}
	if game.Ended(r, now) {
		return !pending(r), nil
	}

	elapsed := game.Elapsed(r, now)
	s.mu.Lock()
	sc := s.rooms[pin]
	due := sc != nil && game.EventsDue(elapsed) > sc.eventsFired
	if due {
		sc.eventsFired = game.EventsDue(elapsed)
	}
	s.mu.Unlock()
	if due {
		if _, err := s.svc.TriggerRandomEvent(ctx, pin); err != nil {
			return false, err
		}
	}

	if elapsed >= game.MissionsAfter && !game.MissionsStarted(r) {
		if err := s.svc.StartMissions(ctx, pin); err != nil && !errors.Is(err, game.ErrInvalidTransition) {
			return false, err
		}
	}
	return false, nil
}

// pending reports whether a room still has an unresolved duel or mission.
func pending(r game.Room) bool {
	for _, d := range r.CurrentDuels {
		if d.Status != game.DuelCompleted {
			return true
		}
	}
	for _, m := range r.TeamMissions {
		if m.Status == game.MissionActive {
			return true
		}
	}
	return false
}

func (s *Scheduler) detach(pin string) {
	s.mu.Lock()
	delete(s.rooms, pin)
	s.mu.Unlock()
	s.log.Info("scheduler detached", "pin", pin)
}

// Attached reports whether pin is being scheduled.
func (s *Scheduler) Attached(pin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[pin]
	return ok
}
