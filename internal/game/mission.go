package game

import (
	"fmt"
	"time"
)

type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
)

const (
	MissionTarget    = 5
	MissionTimeLimit = 60 * time.Second
	MissionReward    = 20
	// MissionsAfter is the elapsed game time at which every team gets its
	// mission.
	MissionsAfter = 150 * time.Second
)

type TeamMission struct {
	ID          string        `json:"id"`
	TeamID      string        `json:"teamId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Target      int           `json:"target"`
	Progress    int           `json:"progress"`
	TimeLimit   int           `json:"timeLimit"` // seconds
	StartTime   int64         `json:"startTime"`
	Reward      int           `json:"reward"`
	Status      MissionStatus `json:"status"`
}

func NewMission(id, teamID string, now time.Time) TeamMission {
	return TeamMission{
		ID:          id,
		TeamID:      teamID,
		Title:       "Hold the May Day rally",
		Description: fmt.Sprintf("Answer %d questions correctly as a team within %d seconds", MissionTarget, int(MissionTimeLimit.Seconds())),
		Target:      MissionTarget,
		TimeLimit:   int(MissionTimeLimit.Seconds()),
		StartTime:   Millis(now),
		Reward:      MissionReward,
		Status:      MissionActive,
	}
}

func (m TeamMission) Deadline() time.Time {
	return time.UnixMilli(m.StartTime).Add(time.Duration(m.TimeLimit) * time.Second)
}

// MissionsStarted reports whether the one-off mission round already ran for
// this room. It is derived from the document so a restarted scheduler does
// not fire it twice.
func MissionsStarted(r Room) bool {
	return len(r.TeamMissions) > 0
}

// StartMissionOps creates one active mission for every team. newID is called
// once per team.
func StartMissionOps(r Room, newID func() string, now time.Time) ([]Op, error) {
	if r.Status != StatusPlaying {
		return nil, fmt.Errorf("%w: room is %s", ErrInvalidTransition, r.Status)
	}
	if len(r.Teams) == 0 {
		return nil, ErrNotEnoughTeams
	}
	var ops []Op
	for _, teamID := range sortedKeys(r.Teams) {
		m := NewMission(newID(), teamID, now)
		ops = append(ops,
			Set(MissionPath(m.ID, ""), m),
			Log(fmt.Sprintf("🎯 TEAM MISSION! %s - %s", r.Teams[teamID].Name, m.Description), EventMission, now),
		)
	}
	return ops, nil
}

// ExpireMissions fails every active mission whose time limit has elapsed.
func ExpireMissions(r Room, now time.Time) []Op {
	var ops []Op
	for _, id := range sortedKeys(r.TeamMissions) {
		m := r.TeamMissions[id]
		if m.Status != MissionActive || now.Before(m.Deadline()) {
			continue
		}
		ops = append(ops,
			Set(MissionPath(id, "status"), MissionFailed),
			Log(fmt.Sprintf("❌ Mission failed: %s", r.Teams[m.TeamID].Name), EventMission, now),
		)
	}
	return ops
}

// missionProgressOps advances every active mission of teamID by one and
// completes those that reach their target. Missions past their deadline are
// left for ExpireMissions.
func missionProgressOps(r Room, teamID string, now time.Time) (completed []string, ops []Op) {
	for _, id := range sortedKeys(r.TeamMissions) {
		m := r.TeamMissions[id]
		if m.TeamID != teamID || m.Status != MissionActive || !now.Before(m.Deadline()) {
			continue
		}
		ops = append(ops, Increment(MissionPath(id, "progress"), 1))
		if m.Progress+1 < m.Target {
			continue
		}
		completed = append(completed, id)
		ops = append(ops,
			Set(MissionPath(id, "status"), MissionCompleted),
			Increment(TeamPath(teamID, "fund"), m.Reward),
			Log(fmt.Sprintf("✅ Mission complete! %s +%d points!", r.Teams[teamID].Name, m.Reward), EventMission, now),
		)
	}
	return completed, ops
}
