package game

import (
	"errors"
	"testing"
	"time"
)

func TestEventsDue(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{59 * time.Second, 0},
		{60 * time.Second, 1},
		{149 * time.Second, 1},
		{150 * time.Second, 2},
		{240 * time.Second, 3},
		{299 * time.Second, 3},
	}
	for _, tt := range tests {
		if got := EventsDue(tt.elapsed); got != tt.want {
			t.Errorf("EventsDue(%v) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
}

func TestEventOps(t *testing.T) {
	now := t0.Add(2 * time.Minute)
	teams := map[string][]string{"team_1": {"a"}, "team_2": {"b"}}

	tests := []struct {
		kind  EventKind
		rng   []int
		check func(t *testing.T, r Room)
	}{
		{KindFundBonus, nil, func(t *testing.T, r Room) {
			if r.Teams["team_1"].Fund != FundBonus || r.Teams["team_2"].Fund != FundBonus {
				t.Errorf("funds = %d/%d", r.Teams["team_1"].Fund, r.Teams["team_2"].Fund)
			}
		}},
		{KindDoublePoints, nil, func(t *testing.T, r Room) {
			if *r.DoublePointsUntil != Millis(now.Add(DoublePointsWindow)) {
				t.Errorf("doublePointsUntil = %d", *r.DoublePointsUntil)
			}
		}},
		{KindFirstCorrect, nil, func(t *testing.T, r Room) {
			if r.FirstCorrectBonus != FirstCorrectValue {
				t.Errorf("bonus = %d", r.FirstCorrectBonus)
			}
		}},
		{KindChaos, []int{0, 3}, func(t *testing.T, r Room) {
			if r.Teams["team_1"].Fund != -5 || r.Teams["team_2"].Fund != 10 {
				t.Errorf("funds = %d/%d", r.Teams["team_1"].Fund, r.Teams["team_2"].Fund)
			}
		}},
		{KindFlashDuel, nil, func(t *testing.T, r Room) {
			if len(r.CurrentDuels) != 0 {
				t.Error("flash duel created a duel by itself")
			}
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			r := playingRoom(t, teams)
			e, ok := LookupEvent(tt.kind)
			if !ok {
				t.Fatalf("%s not in catalog", tt.kind)
			}
			ops, err := EventOps(r, e, &scripted{ints: tt.rng}, now)
			if err != nil {
				t.Fatal(err)
			}
			r = mustApply(t, r, ops...)
			tt.check(t, r)
			last := r.Events[len(r.Events)-1]
			if last.Message != e.Message || last.Type != e.Type {
				t.Errorf("last event = %+v", last)
			}
		})
	}
}

func TestPickEventCoversCatalog(t *testing.T) {
	seen := map[EventKind]bool{}
	for i := range Catalog {
		seen[PickEvent(&scripted{ints: []int{i}}).Kind] = true
	}
	if len(seen) != len(Catalog) {
		t.Errorf("picked %d distinct events", len(seen))
	}
}

func TestEventOpsRequiresPlaying(t *testing.T) {
	_, err := EventOps(NewRoom("1"), Catalog[0], &scripted{}, t0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v", err)
	}
}

func TestStealOps(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}, "team_2": {"b"}})
	r = mustApply(t, r,
		Set(PlayerPath("a", "canSteal"), true),
		Increment(TeamPath("team_2", "fund"), 20),
	)

	ops, err := StealOps(r, "a", "team_2", t0)
	if err != nil {
		t.Fatal(err)
	}
	r = mustApply(t, r, ops...)
	if r.Teams["team_1"].Fund != StealAmount || r.Teams["team_2"].Fund != 20-StealAmount {
		t.Errorf("funds = %d/%d", r.Teams["team_1"].Fund, r.Teams["team_2"].Fund)
	}
	if p := r.Players["a"]; p.CanSteal || p.LastStealTime != Millis(t0) {
		t.Errorf("stealer = %+v", p)
	}

	if _, err := StealOps(r, "a", "team_2", t0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("steal without capability: %v", err)
	}
	r = mustApply(t, r, Set(PlayerPath("a", "canSteal"), true))
	if _, err := StealOps(r, "a", "team_1", t0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("steal from own team: %v", err)
	}
	if _, err := StealOps(r, "a", "team_9", t0); !errors.Is(err, ErrUnknownTeam) {
		t.Errorf("steal from unknown team: %v", err)
	}
}

func TestMissionRound(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}, "team_2": {"b"}})
	if MissionsStarted(r) {
		t.Fatal("missions started before the round")
	}
	n := 0
	ops, err := StartMissionOps(r, func() string { n++; return "m" + string(rune('0'+n)) }, t0)
	if err != nil {
		t.Fatal(err)
	}
	r = mustApply(t, r, ops...)
	if !MissionsStarted(r) || len(r.TeamMissions) != 2 {
		t.Fatalf("missions = %+v", r.TeamMissions)
	}
	for _, m := range r.TeamMissions {
		if m.Status != MissionActive || m.Target != MissionTarget || m.Reward != MissionReward || m.TimeLimit != 60 {
			t.Errorf("mission = %+v", m)
		}
	}
}

func TestReactionAndAnnounce(t *testing.T) {
	r := playingRoom(t, map[string][]string{"team_1": {"a"}})
	ops, err := ReactionOps(r, "a", "🎉", t0)
	if err != nil {
		t.Fatal(err)
	}
	r = mustApply(t, r, ops...)
	if got := r.Events[len(r.Events)-1]; got.Message != "🎉 name-a" || got.Type != EventReaction {
		t.Errorf("event = %+v", got)
	}
	if _, err := AnnounceOps("", t0); !errors.Is(err, ErrInvalidOp) {
		t.Errorf("empty announcement: %v", err)
	}
}
