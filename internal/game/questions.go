package game

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
)

//go:embed questions.json
var questionsJSON []byte

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Explanation   string     `json:"explanation,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
}

// Prompt is what a player sees: the question without its answer.
type Prompt struct {
	ID         string     `json:"id"`
	Text       string     `json:"question"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
}

func (q Question) Prompt() Prompt {
	return Prompt{ID: q.ID, Text: q.Text, Options: slices.Clone(q.Options), Difficulty: q.Difficulty}
}

// Bank is an immutable set of questions. Option order is shuffled once when
// the bank is built.
type Bank struct {
	questions []Question
	byID      map[string]int
}

type rawQuestion struct {
	Q string     `json:"q"`
	O []string   `json:"o"` // correct option first
	E string     `json:"e"`
	D Difficulty `json:"d"`
}

// LoadBank builds the embedded question bank.
func LoadBank(rng Rand) (*Bank, error) {
	return ParseBank(questionsJSON, rng)
}

func ParseBank(data []byte, rng Rand) (*Bank, error) {
	var raw []rawQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding question bank: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}

	b := &Bank{byID: make(map[string]int, len(raw))}
	for i, rq := range raw {
		if len(rq.O) < 2 {
			return nil, fmt.Errorf("question %d has fewer than two options", i+1)
		}
		opts := slices.Clone(rq.O)
		rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		q := Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Text:          rq.Q,
			Options:       opts,
			CorrectAnswer: slices.Index(opts, rq.O[0]),
			Explanation:   rq.E,
			Difficulty:    rq.D,
		}
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
	}
	return b, nil
}

// Random draws a question uniformly. Repeats within a session are allowed.
func (b *Bank) Random(rng Rand) Question {
	return b.questions[rng.IntN(len(b.questions))]
}

func (b *Bank) Lookup(id string) (Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

func (b *Bank) Len() int { return len(b.questions) }
