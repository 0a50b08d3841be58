package game

import (
	"fmt"
	"time"
)

type EventKind string

const (
	KindFundBonus    EventKind = "fund_bonus"
	KindDoublePoints EventKind = "double_points"
	KindFlashDuel    EventKind = "flash_duel"
	KindFirstCorrect EventKind = "first_correct"
	KindChaos        EventKind = "chaos"
)

const (
	FirstEventAfter    = 60 * time.Second
	EventInterval      = 90 * time.Second
	FundBonus          = 5
	DoublePointsWindow = 20 * time.Second
	FirstCorrectValue  = 10
)

// ChaosDeltas are the fund changes a chaos event can deal each team.
var ChaosDeltas = []int{-5, 0, 5, 10}

type CatalogEvent struct {
	Kind    EventKind `json:"kind"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}

var Catalog = []CatalogEvent{
	{KindFundBonus, EventPositive, "📢 The movement spreads! All teams +5 points"},
	{KindDoublePoints, EventPositive, "🔥 Golden hour! Double points for 20 seconds"},
	{KindFlashDuel, EventChallenge, "⚔️ Flash duel!"},
	{KindFirstCorrect, EventChallenge, "🎯 Who is fastest? The first correct answer gets +10 points"},
	{KindChaos, EventChaos, "🎰 Wheel of fortune! Every team gets a random score"},
}

// CannedAnnouncements are the one-click messages offered on the host console.
var CannedAnnouncements = []string{
	"📰 Breaking news: the colonial authorities have eased press censorship!",
	"✊ Workers across the city have joined the strike!",
	"🌾 Farmers are sending petitions from the provinces!",
}

func PickEvent(rng Rand) CatalogEvent {
	return Catalog[rng.IntN(len(Catalog))]
}

func LookupEvent(kind EventKind) (CatalogEvent, bool) {
	for _, e := range Catalog {
		if e.Kind == kind {
			return e, true
		}
	}
	return CatalogEvent{}, false
}

// EventOps applies a catalog event to r and logs its message. A flash duel
// only logs here; pairing players needs a question and is done with
// RandomDuel by the caller.
func EventOps(r Room, e CatalogEvent, rng Rand, now time.Time) ([]Op, error) {
	if r.Status != StatusPlaying {
		return nil, fmt.Errorf("%w: room is %s", ErrInvalidTransition, r.Status)
	}
	var ops []Op
	switch e.Kind {
	case KindFundBonus:
		for _, id := range sortedKeys(r.Teams) {
			ops = append(ops, Increment(TeamPath(id, "fund"), FundBonus))
		}
	case KindDoublePoints:
		ops = append(ops, Set("doublePointsUntil", Millis(now.Add(DoublePointsWindow))))
	case KindFirstCorrect:
		ops = append(ops, Set("firstCorrectBonus", FirstCorrectValue))
	case KindChaos:
		for _, id := range sortedKeys(r.Teams) {
			ops = append(ops, Increment(TeamPath(id, "fund"), ChaosDeltas[rng.IntN(len(ChaosDeltas))]))
		}
	case KindFlashDuel:
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidOp, e.Kind)
	}
	return append(ops, Log(e.Message, e.Type, now)), nil
}

// EventsDue is how many scheduled events should have fired after elapsed
// game time: the first at FirstEventAfter, then one every EventInterval.
func EventsDue(elapsed time.Duration) int {
	if elapsed < FirstEventAfter {
		return 0
	}
	return 1 + int((elapsed-FirstEventAfter)/EventInterval)
}

// AnnounceOps logs a host message.
func AnnounceOps(message string, now time.Time) ([]Op, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: empty announcement", ErrInvalidOp)
	}
	return []Op{Log(message, EventAnnouncement, now)}, nil
}

// ReactionOps logs an emoji reaction from a player.
func ReactionOps(r Room, playerID, emoji string, now time.Time) ([]Op, error) {
	p, ok := r.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if emoji == "" {
		return nil, fmt.Errorf("%w: empty reaction", ErrInvalidOp)
	}
	return []Op{Log(fmt.Sprintf("%s %s", emoji, p.Name), EventReaction, now)}, nil
}
