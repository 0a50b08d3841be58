package play

import (
	"sync"
	"time"

	"github.com/playperu/partyroom/internal/game"
)

// QuizTracker holds the open quiz challenges of every room. Quizzes are
// transient: they are not part of the room document and do not survive a
// restart.
type QuizTracker struct {
	mu      sync.Mutex
	quizzes map[string]*trackedQuiz
}

type trackedQuiz struct {
	pin  string
	quiz *game.Quiz
}

// expiredQuiz is a quiz that just timed out and must be scored as a miss.
type expiredQuiz struct {
	pin      string
	playerID string
	quizID   string
}

func NewQuizTracker() *QuizTracker {
	return &QuizTracker{quizzes: make(map[string]*trackedQuiz)}
}

func (t *QuizTracker) Add(pin string, q *game.Quiz) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quizzes[q.ID] = &trackedQuiz{pin: pin, quiz: q}
}

// Submit resolves the quiz under the tracker lock so that concurrent
// submissions see exactly one Resolved result between them.
func (t *QuizTracker) Submit(pin, playerID, quizID string, answer, correct int, now time.Time) (game.QuizResult, game.Quiz, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tq, ok := t.quizzes[quizID]
	if !ok || tq.pin != pin || tq.quiz.PlayerID != playerID {
		return game.QuizResult{}, game.Quiz{}, ErrUnknownQuiz
	}
	res := tq.quiz.Submit(answer, correct, now)
	return res, *tq.quiz, nil
}

func (t *QuizTracker) Get(pin, quizID string) (game.Quiz, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tq, ok := t.quizzes[quizID]
	if !ok || tq.pin != pin {
		return game.Quiz{}, false
	}
	return *tq.quiz, true
}

// Expire times out every quiz past its deadline and forgets quizzes that
// have closed.
func (t *QuizTracker) Expire(now time.Time) []expiredQuiz {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []expiredQuiz
	for id, tq := range t.quizzes {
		if res := tq.quiz.Expire(now); res.Resolved {
			out = append(out, expiredQuiz{pin: tq.pin, playerID: tq.quiz.PlayerID, quizID: id})
			continue
		}
		if tq.quiz.StateAt(now) == game.QuizClosed {
			delete(t.quizzes, id)
		}
	}
	return out
}

// Drop forgets every quiz of a room.
func (t *QuizTracker) Drop(pin string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tq := range t.quizzes {
		if tq.pin == pin {
			delete(t.quizzes, id)
		}
	}
}

func (t *QuizTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.quizzes)
}
