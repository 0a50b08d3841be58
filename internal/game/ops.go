package game

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

type OpKind string

const (
	OpSet       OpKind = "set"
	OpIncrement OpKind = "increment"
	OpAppend    OpKind = "append"
)

// Op is one field-scoped mutation of a room document. Paths are dotted,
// e.g. "teams.team_1.fund" or "players.<id>.streak". Increments are
// relative, so concurrent increments on the same path commute.
type Op struct {
	Kind  OpKind `json:"kind"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	Delta int64  `json:"delta,omitempty"`
}

func Set(path string, value any) Op {
	return Op{Kind: OpSet, Path: path, Value: value}
}

func Increment(path string, delta int) Op {
	return Op{Kind: OpIncrement, Path: path, Delta: int64(delta)}
}

func Append(path string, value any) Op {
	return Op{Kind: OpAppend, Path: path, Value: value}
}

// Log appends an entry to the room's event log.
func Log(message, typ string, now time.Time) Op {
	return Append("events", Event{Message: message, Timestamp: Millis(now), Type: typ})
}

// UnmarshalJSON keeps the value undecoded until the target path is known.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  OpKind          `json:"kind"`
		Path  string          `json:"path"`
		Value json.RawMessage `json:"value"`
		Delta int64           `json:"delta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Op{Kind: raw.Kind, Path: raw.Path, Delta: raw.Delta}
	if len(raw.Value) > 0 && string(raw.Value) != "null" {
		o.Value = raw.Value
	}
	return nil
}

func PlayerPath(id, field string) string  { return joinPath("players", id, field) }
func TeamPath(id, field string) string    { return joinPath("teams", id, field) }
func DuelPath(id, field string) string    { return joinPath("currentDuels", id, field) }
func MissionPath(id, field string) string { return joinPath("teamMissions", id, field) }

func joinPath(root, id, field string) string {
	if field == "" {
		return root + "." + id
	}
	return root + "." + id + "." + field
}

// Apply applies ops in order to a copy of r. Either every op applies or r is
// returned unchanged together with the first error.
func Apply(r Room, ops ...Op) (Room, error) {
	next := r.Clone()
	for i, op := range ops {
		if err := next.apply(op); err != nil {
			return r, fmt.Errorf("op %d (%s %s): %w", i, op.Kind, op.Path, err)
		}
	}
	return next, nil
}

func (r *Room) apply(op Op) error {
	segs := strings.Split(op.Path, ".")
	if len(segs) > 3 || slices.Contains(segs, "") {
		return fmt.Errorf("%w: malformed path", ErrInvalidOp)
	}

	switch segs[0] {
	case "status":
		if len(segs) != 1 || op.Kind != OpSet {
			return errKind
		}
		s, err := valueAs[Status](op.Value)
		if err != nil {
			return err
		}
		switch s {
		case StatusWaiting, StatusPlaying, StatusFinished:
		default:
			return fmt.Errorf("%w: unknown status %q", ErrInvalidOp, s)
		}
		r.Status = s
		return nil
	case "startTime":
		return applyInstant(&r.StartTime, segs, op)
	case "endTime":
		return applyInstant(&r.EndTime, segs, op)
	case "doublePointsUntil":
		return applyInstant(&r.DoublePointsUntil, segs, op)
	case "firstCorrectBonus":
		if len(segs) != 1 {
			return errPath
		}
		return applyInt(&r.FirstCorrectBonus, op)
	case "events":
		if len(segs) != 1 || op.Kind != OpAppend {
			return errKind
		}
		e, err := valueAs[Event](op.Value)
		if err != nil {
			return err
		}
		r.Events = append(r.Events, e)
		return nil
	case "players":
		return r.applyPlayer(segs[1:], op)
	case "teams":
		return r.applyTeam(segs[1:], op)
	case "currentDuels":
		return r.applyDuel(segs[1:], op)
	case "teamMissions":
		return r.applyMission(segs[1:], op)
	}
	return errPath
}

var (
	errPath = fmt.Errorf("%w: unknown path", ErrInvalidOp)
	errKind = fmt.Errorf("%w: kind not allowed on path", ErrInvalidOp)
)

func (r *Room) applyPlayer(segs []string, op Op) error {
	switch len(segs) {
	case 0:
		if op.Kind != OpSet {
			return errKind
		}
		m, err := valueAs[map[string]Player](op.Value)
		if err != nil {
			return err
		}
		r.Players = make(map[string]Player, len(m))
		for id, p := range m {
			r.Players[id] = p.clone()
		}
		return nil
	case 1:
		if op.Kind != OpSet {
			return errKind
		}
		p, err := valueAs[Player](op.Value)
		if err != nil {
			return err
		}
		p = p.clone()
		p.ID = segs[0]
		if r.Players == nil {
			r.Players = map[string]Player{}
		}
		r.Players[segs[0]] = p
		return nil
	}

	id, field := segs[0], segs[1]
	p, ok := r.Players[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	var err error
	switch field {
	case "name":
		err = setOnly(&p.Name, op)
	case "role":
		err = setOnly(&p.Role, op)
	case "teamId":
		err = setNullable(&p.TeamID, op)
	case "score":
		err = applyInt(&p.Score, op)
	case "streak":
		err = applyInt(&p.Streak, op)
	case "canSteal":
		err = setOnly(&p.CanSteal, op)
	case "lastStealTime":
		err = applyInt64(&p.LastStealTime, op)
	case "badges":
		err = applySet(&p.Badges, op)
	default:
		err = errPath
	}
	if err != nil {
		return err
	}
	r.Players[id] = p
	return nil
}

func (r *Room) applyTeam(segs []string, op Op) error {
	switch len(segs) {
	case 0:
		if op.Kind != OpSet {
			return errKind
		}
		m, err := valueAs[map[string]Team](op.Value)
		if err != nil {
			return err
		}
		r.Teams = make(map[string]Team, len(m))
		for id, t := range m {
			t.Members = slices.Clone(t.Members)
			r.Teams[id] = t
		}
		return nil
	case 1:
		if op.Kind != OpSet {
			return errKind
		}
		t, err := valueAs[Team](op.Value)
		if err != nil {
			return err
		}
		t.ID = segs[0]
		t.Members = slices.Clone(t.Members)
		if r.Teams == nil {
			r.Teams = map[string]Team{}
		}
		r.Teams[segs[0]] = t
		return nil
	}

	id, field := segs[0], segs[1]
	t, ok := r.Teams[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, id)
	}
	var err error
	switch field {
	case "name":
		err = setOnly(&t.Name, op)
	case "fund":
		err = applyInt(&t.Fund, op)
	case "members":
		err = applySet(&t.Members, op)
	default:
		err = errPath
	}
	if err != nil {
		return err
	}
	r.Teams[id] = t
	return nil
}

func (r *Room) applyDuel(segs []string, op Op) error {
	switch len(segs) {
	case 0:
		if op.Kind != OpSet {
			return errKind
		}
		m, err := valueAs[map[string]Duel](op.Value)
		if err != nil {
			return err
		}
		r.CurrentDuels = make(map[string]Duel, len(m))
		for id, d := range m {
			r.CurrentDuels[id] = d.clone()
		}
		return nil
	case 1:
		if op.Kind != OpSet {
			return errKind
		}
		d, err := valueAs[Duel](op.Value)
		if err != nil {
			return err
		}
		d = d.clone()
		d.ID = segs[0]
		if r.CurrentDuels == nil {
			r.CurrentDuels = map[string]Duel{}
		}
		r.CurrentDuels[segs[0]] = d
		return nil
	}

	id, field := segs[0], segs[1]
	d, ok := r.CurrentDuels[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDuel, id)
	}
	var err error
	switch field {
	case "player1Answer":
		err = setNullable(&d.Player1Answer, op)
	case "player2Answer":
		err = setNullable(&d.Player2Answer, op)
	case "winnerId":
		err = setNullable(&d.WinnerID, op)
	case "status":
		err = setOnly(&d.Status, op)
	default:
		err = errPath
	}
	if err != nil {
		return err
	}
	r.CurrentDuels[id] = d
	return nil
}

func (r *Room) applyMission(segs []string, op Op) error {
	switch len(segs) {
	case 0:
		if op.Kind != OpSet {
			return errKind
		}
		m, err := valueAs[map[string]TeamMission](op.Value)
		if err != nil {
			return err
		}
		r.TeamMissions = maps.Clone(m)
		return nil
	case 1:
		if op.Kind != OpSet {
			return errKind
		}
		m, err := valueAs[TeamMission](op.Value)
		if err != nil {
			return err
		}
		m.ID = segs[0]
		if r.TeamMissions == nil {
			r.TeamMissions = map[string]TeamMission{}
		}
		r.TeamMissions[segs[0]] = m
		return nil
	}

	id, field := segs[0], segs[1]
	m, ok := r.TeamMissions[id]
	if !ok {
		return fmt.Errorf("%w: unknown mission %s", ErrInvalidOp, id)
	}
	var err error
	switch field {
	case "progress":
		err = applyInt(&m.Progress, op)
	case "status":
		err = setOnly(&m.Status, op)
	default:
		err = errPath
	}
	if err != nil {
		return err
	}
	r.TeamMissions[id] = m
	return nil
}

func applyInt(dst *int, op Op) error {
	switch op.Kind {
	case OpSet:
		v, err := valueAs[int](op.Value)
		if err != nil {
			return err
		}
		*dst = v
	case OpIncrement:
		*dst += int(op.Delta)
	default:
		return errKind
	}
	return nil
}

func applyInt64(dst *int64, op Op) error {
	switch op.Kind {
	case OpSet:
		v, err := valueAs[int64](op.Value)
		if err != nil {
			return err
		}
		*dst = v
	case OpIncrement:
		*dst += op.Delta
	default:
		return errKind
	}
	return nil
}

func applyInstant(dst **int64, segs []string, op Op) error {
	if len(segs) != 1 {
		return errPath
	}
	switch op.Kind {
	case OpSet:
		return setNullable(dst, op)
	case OpIncrement:
		var v int64
		if *dst != nil {
			v = **dst
		}
		v += op.Delta
		*dst = &v
		return nil
	}
	return errKind
}

// applySet treats a string list as a set: append adds a missing element,
// set replaces the whole list.
func applySet(dst *[]string, op Op) error {
	switch op.Kind {
	case OpSet:
		v, err := valueAs[[]string](op.Value)
		if err != nil {
			return err
		}
		*dst = slices.Clone(v)
	case OpAppend:
		v, err := valueAs[string](op.Value)
		if err != nil {
			return err
		}
		if !slices.Contains(*dst, v) {
			*dst = append(*dst, v)
		}
	default:
		return errKind
	}
	return nil
}

func setOnly[T any](dst *T, op Op) error {
	if op.Kind != OpSet {
		return errKind
	}
	v, err := valueAs[T](op.Value)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func setNullable[T any](dst **T, op Op) error {
	if op.Kind != OpSet {
		return errKind
	}
	if op.Value == nil {
		*dst = nil
		return nil
	}
	switch v := op.Value.(type) {
	case *T:
		*dst = clonePtr(v)
		return nil
	}
	v, err := valueAs[T](op.Value)
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}

// valueAs converts an op value to T. Values built in Go arrive typed; values
// decoded from the wire arrive as json.RawMessage.
func valueAs[T any](v any) (T, error) {
	var out T
	switch x := v.(type) {
	case nil:
		return out, fmt.Errorf("%w: missing value", ErrInvalidOp)
	case T:
		return x, nil
	case json.RawMessage:
		if err := json.Unmarshal(x, &out); err != nil {
			return out, fmt.Errorf("%w: %v", ErrInvalidOp, err)
		}
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidOp, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidOp, err)
	}
	return out, nil
}
