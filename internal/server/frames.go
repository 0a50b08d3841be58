package server

import (
	"time"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/roomstore"
)

const (
	frameSnapshot = "snapshot"
	frameNotFound = "not_found"
	frameError    = "error"
)

// Frame is one message on a sync channel, SSE or WebSocket.
type Frame struct {
	Type  string     `json:"type"`
	Room  *game.Room `json:"room,omitempty"`
	View  *game.View `json:"view,omitempty"`
	Error string     `json:"error,omitempty"`
}

func snapshotFrame(snap roomstore.Snapshot, now time.Time) Frame {
	if !snap.Found {
		return Frame{Type: frameNotFound}
	}
	view := game.Derive(snap.Room, now)
	return Frame{Type: frameSnapshot, Room: &snap.Room, View: &view}
}
