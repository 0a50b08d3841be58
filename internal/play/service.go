// Package play turns player and host intents into room mutations. Every
// intent that branches on current state runs through roomstore.Update, so it
// observes the latest room and commits atomically.
package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/roomstore"
)

var (
	ErrUnknownQuiz = errors.New("unknown quiz")
	ErrCooldown    = errors.New("cooling down")
)

const (
	// DuelCooldown spaces out host-triggered duels per room.
	DuelCooldown = 10 * time.Second

	pinAttempts = 20
)

type Service struct {
	store   *roomstore.Store
	bank    *game.Bank
	rng     game.Rand
	log     *slog.Logger
	quizzes *QuizTracker

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string

	mu        sync.Mutex
	lastDuel  map[string]time.Time
	onStarted []func(pin string, r game.Room)
}

func NewService(store *roomstore.Store, bank *game.Bank, rng game.Rand, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		bank:     bank,
		rng:      rng,
		log:      log,
		quizzes:  NewQuizTracker(),
		Now:      time.Now,
		NewID:    uuid.NewString,
		lastDuel: make(map[string]time.Time),
	}
}

// OnStarted registers fn to run after a room starts playing.
func (s *Service) OnStarted(fn func(pin string, r game.Room)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStarted = append(s.onStarted, fn)
}

// CreateRoom allocates a free 4-digit PIN and stores an empty waiting room.
func (s *Service) CreateRoom(ctx context.Context) (string, error) {
	for range pinAttempts {
		pin := fmt.Sprintf("%04d", 1000+s.rng.IntN(9000))
		err := s.store.Create(ctx, game.NewRoom(pin))
		if errors.Is(err, roomstore.ErrExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		s.log.Info("room created", "pin", pin)
		return pin, nil
	}
	return "", fmt.Errorf("no free pin after %d attempts: %w", pinAttempts, roomstore.ErrExists)
}

func (s *Service) JoinRoom(ctx context.Context, pin, name string) (game.Player, error) {
	id := "player_" + s.NewID()
	var p game.Player
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		var ops []game.Op
		var err error
		p, ops, err = game.JoinOps(r, id, name, s.Now())
		return ops, err
	})
	if err != nil {
		return game.Player{}, err
	}
	s.log.Info("player joined", "pin", pin, "player", id)
	return p, nil
}

// StartGame forms teams and starts the clock in one commit.
func (s *Service) StartGame(ctx context.Context, pin string) (game.Room, error) {
	r, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		return game.StartOps(r, s.rng, s.Now())
	})
	if err != nil {
		return game.Room{}, err
	}
	s.log.Info("game started", "pin", pin, "players", len(r.Players), "teams", len(r.Teams))

	s.mu.Lock()
	hooks := s.onStarted
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(pin, r)
	}
	return r, nil
}

// QuizView is a started quiz as shown to its player.
type QuizView struct {
	ID          string      `json:"id"`
	PlayerID    string      `json:"playerId"`
	Question    game.Prompt `json:"question"`
	StartedAt   int64       `json:"startedAt"`
	Deadline    int64       `json:"deadline"`
	RemainingMs int64       `json:"remainingMs"`
}

func (s *Service) StartQuiz(ctx context.Context, pin, playerID string) (QuizView, error) {
	r, err := s.store.Read(ctx, pin)
	if err != nil {
		return QuizView{}, err
	}
	if r.Status != game.StatusPlaying {
		return QuizView{}, fmt.Errorf("%w: room is %s", game.ErrInvalidTransition, r.Status)
	}
	if _, ok := r.TeamOf(playerID); !ok {
		if _, known := r.Players[playerID]; !known {
			return QuizView{}, fmt.Errorf("%w: %s", game.ErrUnknownPlayer, playerID)
		}
		return QuizView{}, fmt.Errorf("%w: player %s has no team", game.ErrUnknownTeam, playerID)
	}

	now := s.Now()
	question := s.bank.Random(s.rng)
	q := game.NewQuiz(s.NewID(), playerID, question.ID, now)
	s.quizzes.Add(pin, q)
	return QuizView{
		ID:          q.ID,
		PlayerID:    playerID,
		Question:    question.Prompt(),
		StartedAt:   game.Millis(now),
		Deadline:    game.Millis(q.Deadline()),
		RemainingMs: q.Remaining(now).Milliseconds(),
	}, nil
}

// QuizAnswer is the outcome of a quiz submission.
type QuizAnswer struct {
	game.QuizResult
	CorrectAnswer int         `json:"correctAnswer"`
	Explanation   string      `json:"explanation,omitempty"`
	Award         *game.Award `json:"award,omitempty"`
}

// AnswerQuiz submits a player's answer. Only the first submission is
// scored; later ones report the recorded result and change nothing.
func (s *Service) AnswerQuiz(ctx context.Context, pin, playerID, quizID string, answer int) (QuizAnswer, error) {
	quiz, ok := s.quizzes.Get(pin, quizID)
	if !ok {
		return QuizAnswer{}, ErrUnknownQuiz
	}
	question, ok := s.bank.Lookup(quiz.QuestionID)
	if !ok {
		return QuizAnswer{}, fmt.Errorf("quiz %s references unknown question %s", quizID, quiz.QuestionID)
	}

	res, _, err := s.quizzes.Submit(pin, playerID, quizID, answer, question.CorrectAnswer, s.Now())
	if err != nil {
		return QuizAnswer{}, err
	}
	out := QuizAnswer{QuizResult: res, CorrectAnswer: question.CorrectAnswer, Explanation: question.Explanation}
	if !res.Resolved {
		return out, nil
	}

	if !res.Correct {
		return out, s.miss(ctx, pin, playerID)
	}
	var award game.Award
	_, err = s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		var ops []game.Op
		var err error
		award, ops, err = game.CorrectAnswer(r, playerID, s.Now())
		return ops, err
	})
	if err != nil {
		return out, err
	}
	out.Award = &award
	return out, nil
}

func (s *Service) miss(ctx context.Context, pin, playerID string) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		return game.MissedAnswer(r, playerID)
	})
	return err
}

// ExpireQuizzes scores every quiz whose countdown ran out as a miss.
func (s *Service) ExpireQuizzes(ctx context.Context, now time.Time) {
	for _, q := range s.quizzes.Expire(now) {
		if err := s.miss(ctx, q.pin, q.playerID); err != nil {
			s.log.Warn("scoring timed out quiz", "pin", q.pin, "quiz", q.quizID, "error", err)
		}
	}
}

// AnswerDuel records one side's answer. The commit that records the second
// answer also resolves the duel and pays the winner.
func (s *Service) AnswerDuel(ctx context.Context, pin, duelID, playerID string, answer int) (game.DuelOutcome, error) {
	var out game.DuelOutcome
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		d, ok := r.CurrentDuels[duelID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", game.ErrUnknownDuel, duelID)
		}
		correct, err := s.correctAnswer(d.QuestionID)
		if err != nil {
			return nil, err
		}
		var ops []game.Op
		out, ops, err = game.AnswerDuel(r, duelID, playerID, answer, correct, s.Now())
		return ops, err
	})
	if err == nil && out.Completed {
		s.log.Info("duel completed", "pin", pin, "duel", duelID, "winner", out.WinnerID)
	}
	return out, err
}

func (s *Service) correctAnswer(questionID string) (int, error) {
	q, ok := s.bank.Lookup(questionID)
	if !ok {
		return 0, fmt.Errorf("%w: unknown question %s", game.ErrInvalidOp, questionID)
	}
	return q.CorrectAnswer, nil
}

// DuelQuestion returns the prompt a duel is played on.
func (s *Service) DuelQuestion(ctx context.Context, pin, duelID string) (game.Prompt, error) {
	r, err := s.store.Read(ctx, pin)
	if err != nil {
		return game.Prompt{}, err
	}
	d, ok := r.CurrentDuels[duelID]
	if !ok {
		return game.Prompt{}, fmt.Errorf("%w: %s", game.ErrUnknownDuel, duelID)
	}
	q, ok := s.bank.Lookup(d.QuestionID)
	if !ok {
		return game.Prompt{}, fmt.Errorf("%w: unknown question %s", game.ErrInvalidOp, d.QuestionID)
	}
	return q.Prompt(), nil
}

// ExpireDuels forfeits unanswered duel sides whose countdown ran out. A duel
// that cannot be resolved, such as one whose question left the bank, is
// closed as a draw so the other duels still expire.
func (s *Service) ExpireDuels(ctx context.Context, pin string, now time.Time) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		var all []game.Op
		for _, id := range sortedDuels(r) {
			d := r.CurrentDuels[id]
			sides := game.ExpiredDuelSides(d, now)
			if len(sides) == 0 {
				continue
			}
			next, ops, err := s.expireDuel(r, id, sides, now)
			if err != nil {
				s.log.Warn("closing unresolvable duel", "pin", pin, "duel", id, "error", err)
				ops = []game.Op{
					game.Set(game.DuelPath(id, "status"), game.DuelCompleted),
					game.Log("🤝 Duel ended in a draw", game.EventDuel, now),
				}
				if next, err = game.Apply(r, ops...); err != nil {
					s.log.Error("skipping duel", "pin", pin, "duel", id, "error", err)
					continue
				}
			}
			r = next
			all = append(all, ops...)
		}
		return all, nil
	})
	return err
}

// expireDuel answers every side in sides with a timeout. It returns the room
// with the answers applied; r is left alone on error.
func (s *Service) expireDuel(r game.Room, id string, sides []string, now time.Time) (game.Room, []game.Op, error) {
	correct, err := s.correctAnswer(r.CurrentDuels[id].QuestionID)
	if err != nil {
		return r, nil, err
	}
	var all []game.Op
	for _, playerID := range sides {
		_, ops, err := game.AnswerDuel(r, id, playerID, game.TimeoutAnswer, correct, now)
		if err != nil {
			return r, nil, err
		}
		if r, err = game.Apply(r, ops...); err != nil {
			return r, nil, err
		}
		all = append(all, ops...)
	}
	return r, all, nil
}

func (s *Service) Steal(ctx context.Context, pin, playerID, targetTeamID string) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		return game.StealOps(r, playerID, targetTeamID, s.Now())
	})
	return err
}

func (s *Service) React(ctx context.Context, pin, playerID, emoji string) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		return game.ReactionOps(r, playerID, emoji, s.Now())
	})
	return err
}

func (s *Service) Announce(ctx context.Context, pin, message string) error {
	ops, err := game.AnnounceOps(message, s.Now())
	if err != nil {
		return err
	}
	_, err = s.store.Apply(ctx, pin, ops...)
	return err
}

// TriggerRandomEvent draws an event from the catalog and applies it.
func (s *Service) TriggerRandomEvent(ctx context.Context, pin string) (game.CatalogEvent, error) {
	e := game.PickEvent(s.rng)
	return e, s.fireEvent(ctx, pin, e)
}

// TriggerEvent applies the catalog event of the given kind.
func (s *Service) TriggerEvent(ctx context.Context, pin string, kind game.EventKind) (game.CatalogEvent, error) {
	e, ok := game.LookupEvent(kind)
	if !ok {
		return game.CatalogEvent{}, fmt.Errorf("%w: unknown event %q", game.ErrInvalidOp, kind)
	}
	return e, s.fireEvent(ctx, pin, e)
}

func (s *Service) fireEvent(ctx context.Context, pin string, e game.CatalogEvent) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		now := s.Now()
		ops, err := game.EventOps(r, e, s.rng, now)
		if err != nil || e.Kind != game.KindFlashDuel {
			return ops, err
		}
		_, duelOps, err := game.RandomDuel(r, s.rng, "duel_"+s.NewID(), s.bank.Random(s.rng).ID, now)
		if errors.Is(err, game.ErrNotEnoughTeams) {
			return ops, nil
		}
		return append(ops, duelOps...), err
	})
	if err == nil {
		s.log.Info("event fired", "pin", pin, "kind", e.Kind)
	}
	return err
}

// TriggerDuel starts a random duel at the host's request. Requests within
// DuelCooldown of the previous one for the same room fail with ErrCooldown.
func (s *Service) TriggerDuel(ctx context.Context, pin string) (game.Duel, error) {
	now := s.Now()
	s.mu.Lock()
	if last, ok := s.lastDuel[pin]; ok && now.Sub(last) < DuelCooldown {
		s.mu.Unlock()
		return game.Duel{}, ErrCooldown
	}
	s.lastDuel[pin] = now
	s.mu.Unlock()

	var d game.Duel
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		if r.Status != game.StatusPlaying {
			return nil, fmt.Errorf("%w: room is %s", game.ErrInvalidTransition, r.Status)
		}
		if game.Ended(r, now) {
			return nil, fmt.Errorf("%w: game has ended", game.ErrInvalidTransition)
		}
		var ops []game.Op
		var err error
		d, ops, err = game.RandomDuel(r, s.rng, "duel_"+s.NewID(), s.bank.Random(s.rng).ID, now)
		return ops, err
	})
	if err != nil {
		return game.Duel{}, err
	}
	return d, nil
}

// StartMissions gives every team its mission. It runs at most once per room.
func (s *Service) StartMissions(ctx context.Context, pin string) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		if game.MissionsStarted(r) {
			return nil, fmt.Errorf("%w: missions already started", game.ErrInvalidTransition)
		}
		return game.StartMissionOps(r, func() string { return "mission_" + s.NewID() }, s.Now())
	})
	return err
}

// ExpireMissions fails missions whose time limit ran out.
func (s *Service) ExpireMissions(ctx context.Context, pin string, now time.Time) error {
	_, err := s.store.Update(ctx, pin, func(r game.Room) ([]game.Op, error) {
		return game.ExpireMissions(r, now), nil
	})
	return err
}

// Apply is the raw mutation contract: ops are committed as sent.
func (s *Service) Apply(ctx context.Context, pin string, ops []game.Op) (game.Room, error) {
	if len(ops) == 0 {
		return game.Room{}, fmt.Errorf("%w: no ops", game.ErrInvalidOp)
	}
	return s.store.Apply(ctx, pin, ops...)
}

// Snapshot returns the room with its derived view.
func (s *Service) Snapshot(ctx context.Context, pin string) (game.Room, game.View, error) {
	r, err := s.store.Read(ctx, pin)
	if err != nil {
		return game.Room{}, game.View{}, err
	}
	return r, game.Derive(r, s.Now()), nil
}

// Summary is the host console's overview of a room.
type Summary struct {
	Pin         string      `json:"pin"`
	Status      game.Status `json:"status"`
	Players     int         `json:"players"`
	Teams       int         `json:"teams"`
	RemainingMs int64       `json:"remainingMs"`
	GameEnded   bool        `json:"gameEnded"`
	Standings   []game.Team `json:"standings"`
	Canned      []string    `json:"cannedAnnouncements"`
}

func (s *Service) Summary(ctx context.Context, pin string) (Summary, error) {
	r, v, err := s.Snapshot(ctx, pin)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Pin:         r.Pin,
		Status:      r.Status,
		Players:     len(r.Players),
		Teams:       len(r.Teams),
		RemainingMs: v.RemainingMs,
		GameEnded:   v.GameEnded,
		Standings:   v.Standings,
		Canned:      game.CannedAnnouncements,
	}, nil
}

// Forget drops the transient state kept for a room.
func (s *Service) Forget(pin string) {
	s.quizzes.Drop(pin)
	s.mu.Lock()
	delete(s.lastDuel, pin)
	s.mu.Unlock()
}

func sortedDuels(r game.Room) []string {
	ids := make([]string, 0, len(r.CurrentDuels))
	for id := range r.CurrentDuels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Reap removes rooms idle for longer than idle along with their transient
// state.
func (s *Service) Reap(ctx context.Context, idle time.Duration) error {
	pins, err := s.store.Reap(ctx, idle)
	for _, pin := range pins {
		s.Forget(pin)
	}
	return err
}

// RunReaper calls Reap every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, interval, idle time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.Reap(ctx, idle); err != nil {
				s.log.Error("reaping rooms", "error", err)
			}
		}
	}
}
