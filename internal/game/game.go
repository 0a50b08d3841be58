// Package game defines the room document and the rules that change it.
// Everything here is a pure function of a Room value plus an action; it has
// no storage, network or clock dependencies of its own.
package game

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidOp         = errors.New("invalid op")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrUnknownTeam       = errors.New("unknown team")
	ErrUnknownDuel       = errors.New("unknown duel")
	ErrNotEnoughTeams    = errors.New("not enough teams")
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Role string

const (
	RoleJournalist Role = "journalist"
	RoleWorker     Role = "worker"
	RoleFarmer     Role = "farmer"
	RoleMerchant   Role = "merchant"
)

// Roles is the in-team assignment order: member i gets Roles[i%len(Roles)].
var Roles = []Role{RoleJournalist, RoleWorker, RoleFarmer, RoleMerchant}

const (
	TeamSize        = 4
	SessionDuration = 5 * time.Minute
	TargetFund      = 100
)

// Event types written to the room log.
const (
	EventAchievement  = "achievement"
	EventSteal        = "steal"
	EventReaction     = "reaction"
	EventMission      = "mission"
	EventDuel         = "duel"
	EventPositive     = "positive"
	EventChallenge    = "challenge"
	EventChaos        = "chaos"
	EventAnnouncement = "announcement"
	EventJoin         = "join"
	EventStart        = "start"
)

type Room struct {
	Pin               string                 `json:"pin"`
	Status            Status                 `json:"status"`
	Players           map[string]Player      `json:"players"`
	Teams             map[string]Team        `json:"teams"`
	Events            []Event                `json:"events"`
	StartTime         *int64                 `json:"startTime,omitempty"`
	EndTime           *int64                 `json:"endTime,omitempty"`
	CurrentDuels      map[string]Duel        `json:"currentDuels,omitempty"`
	TeamMissions      map[string]TeamMission `json:"teamMissions,omitempty"`
	DoublePointsUntil *int64                 `json:"doublePointsUntil,omitempty"`
	FirstCorrectBonus int                    `json:"firstCorrectBonus,omitempty"`
}

type Player struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          Role     `json:"role"`
	TeamID        *string  `json:"teamId"`
	Score         int      `json:"score"`
	Streak        int      `json:"streak"`
	Badges        []string `json:"badges"`
	CanSteal      bool     `json:"canSteal"`
	LastStealTime int64    `json:"lastStealTime"`
}

type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Fund    int      `json:"fund"`
	Members []string `json:"members"`
}

type Event struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type,omitempty"`
}

// NewRoom returns an empty room in the waiting state.
func NewRoom(pin string) Room {
	return Room{
		Pin:          pin,
		Status:       StatusWaiting,
		Players:      map[string]Player{},
		Teams:        map[string]Team{},
		Events:       []Event{},
		CurrentDuels: map[string]Duel{},
	}
}

// Clone returns a deep copy that shares no maps or slices with r. Players,
// teams, events and duels are never nil in the copy.
func (r Room) Clone() Room {
	c := r
	c.Players = make(map[string]Player, len(r.Players))
	for id, p := range r.Players {
		c.Players[id] = p.clone()
	}
	c.Teams = make(map[string]Team, len(r.Teams))
	for id, t := range r.Teams {
		t.Members = slices.Clone(t.Members)
		c.Teams[id] = t
	}
	c.Events = slices.Clone(r.Events)
	if c.Events == nil {
		c.Events = []Event{}
	}
	c.StartTime = clonePtr(r.StartTime)
	c.EndTime = clonePtr(r.EndTime)
	c.DoublePointsUntil = clonePtr(r.DoublePointsUntil)
	c.CurrentDuels = make(map[string]Duel, len(r.CurrentDuels))
	for id, d := range r.CurrentDuels {
		c.CurrentDuels[id] = d.clone()
	}
	if r.TeamMissions != nil {
		c.TeamMissions = make(map[string]TeamMission, len(r.TeamMissions))
		for id, m := range r.TeamMissions {
			c.TeamMissions[id] = m
		}
	}
	return c
}

func (p Player) clone() Player {
	p.TeamID = clonePtr(p.TeamID)
	p.Badges = slices.Clone(p.Badges)
	if p.Badges == nil {
		p.Badges = []string{}
	}
	return p
}

// HasBadge reports whether the player already earned badge.
func (p Player) HasBadge(badge string) bool {
	return slices.Contains(p.Badges, badge)
}

// TeamOf returns the team a player belongs to.
func (r Room) TeamOf(playerID string) (Team, bool) {
	p, ok := r.Players[playerID]
	if !ok || p.TeamID == nil {
		return Team{}, false
	}
	t, ok := r.Teams[*p.TeamID]
	return t, ok
}

// Consistent reports whether every player's teamId names an existing team
// that lists the player among its members.
func (r Room) Consistent() bool {
	for id, p := range r.Players {
		if p.TeamID == nil {
			continue
		}
		t, ok := r.Teams[*p.TeamID]
		if !ok || !slices.Contains(t.Members, id) {
			return false
		}
	}
	return true
}

// Millis converts t to the Unix millisecond instants used in the document.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T {
	return &v
}
