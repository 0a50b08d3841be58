package game

import (
	"fmt"
	"time"
)

const StealAmount = 5

// StealOps moves StealAmount fund points from targetTeamID to the stealer's
// team and consumes the stealer's capability.
func StealOps(r Room, playerID, targetTeamID string, now time.Time) ([]Op, error) {
	if r.Status != StatusPlaying {
		return nil, fmt.Errorf("%w: room is %s", ErrInvalidTransition, r.Status)
	}
	p, ok := r.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if !p.CanSteal {
		return nil, fmt.Errorf("%w: %s cannot steal", ErrInvalidTransition, p.Name)
	}
	own, ok := r.TeamOf(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: player %s has no team", ErrUnknownTeam, playerID)
	}
	target, ok := r.Teams[targetTeamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTeam, targetTeamID)
	}
	if target.ID == own.ID {
		return nil, fmt.Errorf("%w: cannot steal from own team", ErrInvalidTransition)
	}

	msg := fmt.Sprintf("⚔️ %s (%s) stole %d points from %s!", p.Name, own.Name, StealAmount, target.Name)
	return []Op{
		Increment(TeamPath(target.ID, "fund"), -StealAmount),
		Increment(TeamPath(own.ID, "fund"), StealAmount),
		Set(PlayerPath(playerID, "canSteal"), false),
		Set(PlayerPath(playerID, "lastStealTime"), Millis(now)),
		Log(msg, EventSteal, now),
	}, nil
}
