package game

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// JoinOps admits a new player to a waiting room. The role is a placeholder
// until the game starts.
func JoinOps(r Room, playerID, name string, now time.Time) (Player, []Op, error) {
	if r.Status != StatusWaiting {
		return Player{}, nil, fmt.Errorf("%w: room is %s", ErrInvalidTransition, r.Status)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, nil, fmt.Errorf("%w: empty name", ErrInvalidOp)
	}
	p := Player{
		ID:     playerID,
		Name:   name,
		Role:   RoleJournalist,
		Badges: []string{},
	}
	return p, []Op{
		Set(PlayerPath(playerID, ""), p),
		Log(fmt.Sprintf("👋 %s joined", name), EventJoin, now),
	}, nil
}

// StartOps builds the single batch that starts the game: teams of TeamSize
// from a shuffled player list, cyclic role assignment, status and timing.
// Applying it is the only way a room becomes playing.
func StartOps(r Room, rng Rand, now time.Time) ([]Op, error) {
	if r.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: room is %s", ErrInvalidTransition, r.Status)
	}

	ids := sortedKeys(r.Players)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	players := make(map[string]Player, len(ids))
	teams := map[string]Team{}
	for n, chunk := range chunks(ids, TeamSize) {
		team := Team{
			ID:      fmt.Sprintf("team_%d", n+1),
			Name:    fmt.Sprintf("Team %d", n+1),
			Members: chunk,
		}
		teams[team.ID] = team
		for i, id := range chunk {
			p := r.Players[id].clone()
			p.TeamID = ptr(team.ID)
			p.Role = Roles[i%len(Roles)]
			players[id] = p
		}
	}

	start := Millis(now)
	return []Op{
		Set("players", players),
		Set("teams", teams),
		Set("status", StatusPlaying),
		Set("startTime", start),
		Set("endTime", start+SessionDuration.Milliseconds()),
		Log(fmt.Sprintf("🚀 The game has started with %d teams!", len(teams)), EventStart, now),
	}, nil
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for c := range slices.Chunk(ids, size) {
		out = append(out, slices.Clone(c))
	}
	return out
}

// Ended derives the end of the game: the clock ran out or a team reached the
// target fund. It is never stored.
func Ended(r Room, now time.Time) bool {
	if r.EndTime != nil && Millis(now) >= *r.EndTime {
		return true
	}
	for _, t := range r.Teams {
		if t.Fund >= TargetFund {
			return true
		}
	}
	return false
}

// Remaining is the time left on the game clock, zero before start or after
// the end.
func Remaining(r Room, now time.Time) time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return max(time.UnixMilli(*r.EndTime).Sub(now), 0)
}

// Elapsed is the wall-clock time since the game started.
func Elapsed(r Room, now time.Time) time.Duration {
	if r.StartTime == nil {
		return 0
	}
	return now.Sub(time.UnixMilli(*r.StartTime))
}

// Standings ranks teams by fund, highest first. Ties keep team id order.
func Standings(r Room) []Team {
	teams := make([]Team, 0, len(r.Teams))
	for _, id := range sortedKeys(r.Teams) {
		t := r.Teams[id]
		t.Members = slices.Clone(t.Members)
		teams = append(teams, t)
	}
	slices.SortStableFunc(teams, func(a, b Team) int {
		return cmp.Compare(b.Fund, a.Fund)
	})
	return teams
}

// View is the part of a room every client derives from a snapshot.
type View struct {
	GameEnded          bool   `json:"gameEnded"`
	RemainingMs        int64  `json:"remainingMs"`
	DoublePointsActive bool   `json:"doublePointsActive"`
	Standings          []Team `json:"standings"`
}

func Derive(r Room, now time.Time) View {
	return View{
		GameEnded:          r.Status == StatusPlaying && Ended(r, now),
		RemainingMs:        Remaining(r, now).Milliseconds(),
		DoublePointsActive: r.DoublePointsUntil != nil && Millis(now) < *r.DoublePointsUntil,
		Standings:          Standings(r),
	}
}
