package game

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApplySetThenRead(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})

	tests := []struct {
		name  string
		op    Op
		check func(Room) any
		want  any
	}{
		{"fund", Set(TeamPath("team_1", "fund"), 42), func(r Room) any { return r.Teams["team_1"].Fund }, 42},
		{"team name", Set(TeamPath("team_1", "name"), "Reds"), func(r Room) any { return r.Teams["team_1"].Name }, "Reds"},
		{"streak", Set(PlayerPath("a", "streak"), 7), func(r Room) any { return r.Players["a"].Streak }, 7},
		{"canSteal", Set(PlayerPath("a", "canSteal"), true), func(r Room) any { return r.Players["a"].CanSteal }, true},
		{"role", Set(PlayerPath("a", "role"), RoleFarmer), func(r Room) any { return r.Players["a"].Role }, RoleFarmer},
		{"bonus", Set("firstCorrectBonus", 10), func(r Room) any { return r.FirstCorrectBonus }, 10},
		{"double points", Set("doublePointsUntil", int64(99)), func(r Room) any { return *r.DoublePointsUntil }, int64(99)},
		{"status", Set("status", StatusFinished), func(r Room) any { return r.Status }, StatusFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.check(mustApply(t, r, tt.op))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyIncrementRoundTrip(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})
	r.Teams["team_1"] = Team{ID: "team_1", Name: "T", Fund: 13, Members: []string{"a"}}

	next := mustApply(t, r,
		Increment(TeamPath("team_1", "fund"), 8),
		Increment(TeamPath("team_1", "fund"), -8),
	)
	if diff := cmp.Diff(r, next); diff != "" {
		t.Errorf("increment(k) then increment(-k) changed the room (-want +got):\n%s", diff)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})

	got, err := Apply(r,
		Increment(TeamPath("team_1", "fund"), 5),
		Set(TeamPath("team_1", "nope"), 1),
	)
	if !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("err = %v, want ErrInvalidOp", err)
	}
	if got.Teams["team_1"].Fund != 0 || r.Teams["team_1"].Fund != 0 {
		t.Error("failed batch was partially applied")
	}
}

func TestApplyRejects(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})

	tests := []struct {
		name string
		op   Op
		want error
	}{
		{"unknown root", Set("nope", 1), ErrInvalidOp},
		{"empty segment", Set("teams..fund", 1), ErrInvalidOp},
		{"too deep", Set("teams.team_1.fund.x", 1), ErrInvalidOp},
		{"increment string", Increment(TeamPath("team_1", "name"), 1), ErrInvalidOp},
		{"append to fund", Append(TeamPath("team_1", "fund"), 1), ErrInvalidOp},
		{"set events", Set("events", []Event{}), ErrInvalidOp},
		{"bad status", Set("status", "paused"), ErrInvalidOp},
		{"wrong type", Set(TeamPath("team_1", "fund"), "ten"), ErrInvalidOp},
		{"missing value", Set(TeamPath("team_1", "fund"), nil), ErrInvalidOp},
		{"unknown player", Increment(PlayerPath("ghost", "score"), 1), ErrUnknownPlayer},
		{"unknown team", Increment(TeamPath("team_9", "fund"), 1), ErrUnknownTeam},
		{"unknown duel", Set(DuelPath("d", "status"), DuelCompleted), ErrUnknownDuel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Apply(r, tt.op); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApplyAppend(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})

	next := mustApply(t, r,
		Append(PlayerPath("a", "badges"), BadgeCombo3),
		Append(PlayerPath("a", "badges"), BadgeCombo3),
		Append(PlayerPath("a", "badges"), BadgeCombo5),
		Log("one", EventJoin, t0),
		Log("two", EventJoin, t0),
	)
	if diff := cmp.Diff([]string{BadgeCombo3, BadgeCombo5}, next.Players["a"].Badges); diff != "" {
		t.Errorf("badges (-want +got):\n%s", diff)
	}
	if len(next.Events) != 2 || next.Events[0].Message != "one" || next.Events[1].Message != "two" {
		t.Errorf("events = %+v", next.Events)
	}
}

func TestApplyNullableFields(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}, "team_2": {"b"}})
	r.CurrentDuels["d"] = NewDuel("d", "a", "b", "q1", t0)

	next := mustApply(t, r,
		Set(DuelPath("d", "player1Answer"), 2),
		Set(DuelPath("d", "winnerId"), ptr("a")),
	)
	d := next.CurrentDuels["d"]
	if d.Player1Answer == nil || *d.Player1Answer != 2 || d.WinnerID == nil || *d.WinnerID != "a" {
		t.Fatalf("duel = %+v", d)
	}

	var none *string
	next = mustApply(t, next, Set(DuelPath("d", "winnerId"), none))
	if next.CurrentDuels["d"].WinnerID != nil {
		t.Error("winnerId not cleared")
	}
}

func TestOpJSONDecodesIntoLeafType(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})

	var ops []Op
	body := `[
		{"kind":"increment","path":"teams.team_1.fund","delta":3},
		{"kind":"set","path":"players.a.canSteal","value":true},
		{"kind":"append","path":"players.a.badges","value":"combo_3"},
		{"kind":"append","path":"events","value":{"message":"hi","timestamp":5,"type":"reaction"}},
		{"kind":"set","path":"players.new","value":{"name":"Ann","role":"worker","teamId":null}}
	]`
	if err := json.Unmarshal([]byte(body), &ops); err != nil {
		t.Fatal(err)
	}
	next := mustApply(t, r, ops...)

	if next.Teams["team_1"].Fund != 3 {
		t.Errorf("fund = %d", next.Teams["team_1"].Fund)
	}
	if a := next.Players["a"]; !a.CanSteal || !a.HasBadge(BadgeCombo3) {
		t.Errorf("player a = %+v", a)
	}
	want := Player{ID: "new", Name: "Ann", Role: RoleWorker, Badges: []string{}}
	if diff := cmp.Diff(want, next.Players["new"]); diff != "" {
		t.Errorf("new player (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Event{{Message: "hi", Timestamp: 5, Type: EventReaction}}, next.Events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestApplyDoesNotAliasValues(t *testing.T) {
	r := NewRoom("1234")
	members := []string{"a"}
	next := mustApply(t, r, Set(TeamPath("team_1", ""), Team{Name: "T", Members: members}))
	members[0] = "changed"
	if next.Teams["team_1"].Members[0] != "a" {
		t.Error("team members alias the op value")
	}
	if next.Teams["team_1"].ID != "team_1" {
		t.Errorf("team id = %q", next.Teams["team_1"].ID)
	}
}
