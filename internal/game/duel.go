package game

import (
	"fmt"
	"slices"
	"time"
)

type DuelStatus string

const (
	DuelWaiting   DuelStatus = "waiting"
	DuelAnswered  DuelStatus = "answered"
	DuelCompleted DuelStatus = "completed"
)

const (
	DuelTimeout = 20 * time.Second
	// TimeoutAnswer is submitted on behalf of a side that let the clock run
	// out. No question has an option at this index.
	TimeoutAnswer = -1
	DuelReward    = 1
)

type Duel struct {
	ID            string     `json:"id"`
	Player1ID     string     `json:"player1Id"`
	Player2ID     string     `json:"player2Id"`
	QuestionID    string     `json:"questionId"`
	Player1Answer *int       `json:"player1Answer"`
	Player2Answer *int       `json:"player2Answer"`
	WinnerID      *string    `json:"winnerId"`
	Timestamp     int64      `json:"timestamp"`
	Status        DuelStatus `json:"status"`
}

func NewDuel(id, player1ID, player2ID, questionID string, now time.Time) Duel {
	return Duel{
		ID:         id,
		Player1ID:  player1ID,
		Player2ID:  player2ID,
		QuestionID: questionID,
		Timestamp:  Millis(now),
		Status:     DuelWaiting,
	}
}

func (d Duel) clone() Duel {
	d.Player1Answer = clonePtr(d.Player1Answer)
	d.Player2Answer = clonePtr(d.Player2Answer)
	d.WinnerID = clonePtr(d.WinnerID)
	return d
}

// Deadline is the instant after which unanswered sides are forfeited.
func (d Duel) Deadline() time.Time {
	return time.UnixMilli(d.Timestamp).Add(DuelTimeout)
}

type DuelOutcome struct {
	// Ignored is set when the answer arrived for a side that already
	// answered or for a duel that is already completed.
	Ignored   bool    `json:"ignored"`
	Completed bool    `json:"completed"`
	WinnerID  *string `json:"winnerId,omitempty"`
}

// AnswerDuel records playerID's answer. The call that records the second
// answer also resolves the duel and carries the reward ops; every later call
// is ignored, so the reward is granted at most once.
func AnswerDuel(r Room, duelID, playerID string, answer, correct int, now time.Time) (DuelOutcome, []Op, error) {
	d, ok := r.CurrentDuels[duelID]
	if !ok {
		return DuelOutcome{}, nil, fmt.Errorf("%w: %s", ErrUnknownDuel, duelID)
	}

	var field string
	var mine, theirs *int
	switch playerID {
	case d.Player1ID:
		field, mine, theirs = "player1Answer", d.Player1Answer, d.Player2Answer
	case d.Player2ID:
		field, mine, theirs = "player2Answer", d.Player2Answer, d.Player1Answer
	default:
		return DuelOutcome{}, nil, fmt.Errorf("%w: %s is not in duel %s", ErrUnknownPlayer, playerID, duelID)
	}
	if d.Status == DuelCompleted || mine != nil {
		return DuelOutcome{Ignored: true}, nil, nil
	}

	ops := []Op{Set(DuelPath(duelID, field), answer)}
	if theirs == nil {
		ops = append(ops, Set(DuelPath(duelID, "status"), DuelAnswered))
		return DuelOutcome{}, ops, nil
	}

	p1, p2 := answer, *theirs
	if playerID == d.Player2ID {
		p1, p2 = *theirs, answer
	}
	var winner *string
	switch {
	case p1 == correct && p2 != correct:
		winner = ptr(d.Player1ID)
	case p2 == correct && p1 != correct:
		winner = ptr(d.Player2ID)
	}

	ops = append(ops,
		Set(DuelPath(duelID, "winnerId"), winner),
		Set(DuelPath(duelID, "status"), DuelCompleted),
	)
	if winner == nil {
		ops = append(ops, Log("🤝 Duel ended in a draw", EventDuel, now))
		return DuelOutcome{Completed: true}, ops, nil
	}

	w := r.Players[*winner]
	if w.TeamID != nil {
		if _, ok := r.Teams[*w.TeamID]; ok {
			ops = append(ops, Increment(TeamPath(*w.TeamID, "fund"), DuelReward))
		}
	}
	ops = append(ops,
		Increment(PlayerPath(*winner, "score"), DuelReward),
		Log(fmt.Sprintf("🏆 %s wins the duel!", w.Name), EventDuel, now),
	)
	return DuelOutcome{Completed: true, WinnerID: winner}, ops, nil
}

// RandomDuel pairs one random member from each of two distinct random teams.
func RandomDuel(r Room, rng Rand, id, questionID string, now time.Time) (Duel, []Op, error) {
	var teams []Team
	for _, id := range sortedKeys(r.Teams) {
		if t := r.Teams[id]; len(t.Members) > 0 {
			teams = append(teams, t)
		}
	}
	if len(teams) < 2 {
		return Duel{}, nil, ErrNotEnoughTeams
	}

	i := rng.IntN(len(teams))
	j := rng.IntN(len(teams) - 1)
	if j >= i {
		j++
	}
	t1, t2 := teams[i], teams[j]
	p1 := t1.Members[rng.IntN(len(t1.Members))]
	p2 := t2.Members[rng.IntN(len(t2.Members))]

	d := NewDuel(id, p1, p2, questionID, now)
	msg := fmt.Sprintf("⚔️ DUEL: %s vs %s!", r.Players[p1].Name, r.Players[p2].Name)
	return d, []Op{Set(DuelPath(id, ""), d), Log(msg, EventDuel, now)}, nil
}

// ExpiredDuelSides lists the players of an unfinished duel whose answer
// window closed without a submission.
func ExpiredDuelSides(d Duel, now time.Time) []string {
	if d.Status == DuelCompleted || now.Before(d.Deadline()) {
		return nil
	}
	var sides []string
	if d.Player1Answer == nil {
		sides = append(sides, d.Player1ID)
	}
	if d.Player2Answer == nil {
		sides = append(sides, d.Player2ID)
	}
	return sides
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
