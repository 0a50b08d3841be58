package game

import "time"

type QuizState string

const (
	QuizShown    QuizState = "question_shown"
	QuizAnswered QuizState = "answered"
	QuizTimedOut QuizState = "timed_out"
	QuizClosed   QuizState = "closed"
)

const (
	QuizTimeLimit  = 20 * time.Second
	QuizCloseDelay = 3 * time.Second
)

// Quiz is one player's single-question challenge. It lives outside the room
// document; only its scoring consequences are written to the room.
type Quiz struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	QuestionID string    `json:"questionId"`
	StartedAt  time.Time `json:"startedAt"`
	Answer     *int      `json:"answer,omitempty"`
	Correct    bool      `json:"correct"`
	ResolvedAt time.Time `json:"resolvedAt,omitzero"`

	resolution QuizState
}

func NewQuiz(id, playerID, questionID string, now time.Time) *Quiz {
	return &Quiz{ID: id, PlayerID: playerID, QuestionID: questionID, StartedAt: now}
}

func (q *Quiz) Deadline() time.Time {
	return q.StartedAt.Add(QuizTimeLimit)
}

// Remaining is recomputed from the start instant on every call.
func (q *Quiz) Remaining(now time.Time) time.Duration {
	return max(q.Deadline().Sub(now), 0)
}

// QuizResult reports what a Submit or Expire call did. Resolved is true only
// for the call that moved the quiz out of question_shown; the caller scores
// exactly those.
type QuizResult struct {
	State    QuizState `json:"state"`
	Resolved bool      `json:"resolved"`
	Correct  bool      `json:"correct"`
}

// Submit records the player's answer. Only the first submission counts and
// a submission at or after the deadline resolves the quiz as timed out.
func (q *Quiz) Submit(answer, correct int, now time.Time) QuizResult {
	if q.resolution != "" {
		return QuizResult{State: q.StateAt(now), Correct: q.Correct}
	}
	if !now.Before(q.Deadline()) {
		return q.Expire(now)
	}
	q.Answer = &answer
	q.Correct = answer == correct
	q.resolution = QuizAnswered
	q.ResolvedAt = now
	return QuizResult{State: QuizAnswered, Resolved: true, Correct: q.Correct}
}

// Expire times the quiz out once its deadline has passed. Calling it early
// or on a resolved quiz does nothing.
func (q *Quiz) Expire(now time.Time) QuizResult {
	if q.resolution != "" || now.Before(q.Deadline()) {
		return QuizResult{State: q.StateAt(now), Correct: q.Correct}
	}
	q.resolution = QuizTimedOut
	q.ResolvedAt = now
	return QuizResult{State: QuizTimedOut, Resolved: true}
}

func (q *Quiz) StateAt(now time.Time) QuizState {
	switch {
	case q.resolution == "" && now.Before(q.Deadline()):
		return QuizShown
	case q.resolution == "":
		return QuizTimedOut
	case !now.Before(q.ResolvedAt.Add(QuizCloseDelay)):
		return QuizClosed
	}
	return q.resolution
}
