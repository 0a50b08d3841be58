package game

import (
	"fmt"
	"time"
)

const (
	BadgeCombo3  = "combo_3"
	BadgeCombo5  = "combo_5"
	BadgeCombo7  = "combo_7"
	BadgeCombo10 = "combo_10"

	// Combo7TeamBonus is added to the team fund on top of the answer points.
	Combo7TeamBonus = 5
)

type milestone struct {
	streak  int
	badge   string
	message string
}

var milestones = []milestone{
	{3, BadgeCombo3, "🎖️ %s reached Combo 3! Steal unlocked!"},
	{5, BadgeCombo5, "🔥 %s reached Combo 5!"},
	{7, BadgeCombo7, "⭐ %s reached Combo 7! Team +5 bonus points!"},
	{10, BadgeCombo10, "👑 %s is a LEGEND!"},
}

// PointsForStreak is the base value of a correct answer that brings the
// player's streak to streak.
func PointsForStreak(streak int) int {
	switch {
	case streak >= 10:
		return 5
	case streak >= 7:
		return 4
	case streak >= 5:
		return 3
	case streak >= 3:
		return 2
	default:
		return 1
	}
}

// Award describes what one correct answer earned.
type Award struct {
	Points            int      `json:"points"`
	Streak            int      `json:"streak"`
	Bonus             int      `json:"bonus,omitempty"`
	Doubled           bool     `json:"doubled,omitempty"`
	Badges            []string `json:"badges,omitempty"`
	MissionsCompleted []string `json:"missionsCompleted,omitempty"`
}

// CorrectAnswer scores a correct quiz answer by playerID against r. Points
// are expressed as increments; the first-correct bonus is claimed by setting
// it to zero in the same batch, so only one answer observes it as pending.
func CorrectAnswer(r Room, playerID string, now time.Time) (Award, []Op, error) {
	p, teamID, err := scoringPlayer(r, playerID)
	if err != nil {
		return Award{}, nil, err
	}

	streak := p.Streak + 1
	a := Award{Streak: streak, Points: PointsForStreak(streak)}
	if r.DoublePointsUntil != nil && Millis(now) < *r.DoublePointsUntil {
		a.Points *= 2
		a.Doubled = true
	}

	var ops []Op
	if r.FirstCorrectBonus > 0 {
		a.Bonus = r.FirstCorrectBonus
		a.Points += a.Bonus
		ops = append(ops, Set("firstCorrectBonus", 0))
	}
	ops = append(ops,
		Increment(TeamPath(teamID, "fund"), a.Points),
		Increment(PlayerPath(playerID, "score"), a.Points),
		Increment(PlayerPath(playerID, "streak"), 1),
	)

	for _, m := range milestones {
		if p.Streak >= m.streak || streak < m.streak {
			continue
		}
		if m.streak == 3 {
			ops = append(ops, Set(PlayerPath(playerID, "canSteal"), true))
		}
		if p.HasBadge(m.badge) {
			continue
		}
		a.Badges = append(a.Badges, m.badge)
		ops = append(ops, Append(PlayerPath(playerID, "badges"), m.badge))
		if m.streak == 7 {
			ops = append(ops, Increment(TeamPath(teamID, "fund"), Combo7TeamBonus))
		}
		ops = append(ops, Log(fmt.Sprintf(m.message, p.Name), EventAchievement, now))
	}

	completed, missionOps := missionProgressOps(r, teamID, now)
	a.MissionsCompleted = completed
	return a, append(ops, missionOps...), nil
}

// MissedAnswer resets the streak and revokes the steal capability. Badges
// are kept.
func MissedAnswer(r Room, playerID string) ([]Op, error) {
	if _, ok := r.Players[playerID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	return []Op{
		Set(PlayerPath(playerID, "streak"), 0),
		Set(PlayerPath(playerID, "canSteal"), false),
	}, nil
}

func scoringPlayer(r Room, playerID string) (Player, string, error) {
	if r.Status != StatusPlaying {
		return Player{}, "", fmt.Errorf("%w: room is %s", ErrInvalidTransition, r.Status)
	}
	p, ok := r.Players[playerID]
	if !ok {
		return Player{}, "", fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if p.TeamID == nil {
		return Player{}, "", fmt.Errorf("%w: player %s has no team", ErrUnknownTeam, playerID)
	}
	if _, ok := r.Teams[*p.TeamID]; !ok {
		return Player{}, "", fmt.Errorf("%w: %s", ErrUnknownTeam, *p.TeamID)
	}
	return p, *p.TeamID, nil
}
