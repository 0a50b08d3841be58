package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/partyroom/internal/game"
)

func readEvent(t *testing.T, br *bufio.Reader) (event string, frame Frame) {
	t.Helper()
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				t.Fatalf("decoding frame: %v", err)
			}
		case line == "" && event != "":
			return event, frame
		}
	}
}

func TestEventStream(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 4)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/rooms/"+pin+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}
	br := bufio.NewReader(resp.Body)

	event, frame := readEvent(t, br)
	if event != frameSnapshot || frame.Room == nil || frame.Room.Pin != pin || frame.View == nil {
		t.Fatalf("first event = %s %+v", event, frame)
	}

	if _, err := e.store.Apply(ctx, pin, game.Increment(game.TeamPath("team_1", "fund"), 3)); err != nil {
		t.Fatal(err)
	}
	_, frame = readEvent(t, br)
	if frame.Room.Teams["team_1"].Fund != 3 {
		t.Errorf("fund after commit = %d", frame.Room.Teams["team_1"].Fund)
	}
}

func TestEventStreamMissingRoom(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/rooms/4321/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if event, _ := readEvent(t, bufio.NewReader(resp.Body)); event != frameNotFound {
		t.Errorf("first event = %q", event)
	}
}

func dialRoom(t *testing.T, ctx context.Context, srv *httptest.Server, pin string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[len("http"):] + "/api/rooms/" + pin + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) Frame {
	t.Helper()
	var f Frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func TestWebSocketIntents(t *testing.T) {
	e := newTestEnv(t)
	pin, room := e.startedRoom(t, 4)
	player := room.Teams["team_1"].Members[0]
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialRoom(t, ctx, srv, pin)

	if f := readFrame(t, ctx, conn); f.Type != frameSnapshot || f.Room.Pin != pin {
		t.Fatalf("first frame = %+v", f)
	}

	if err := wsjson.Write(ctx, conn, Intent{Type: "react", PlayerID: player, Emoji: "👏"}); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, ctx, conn)
	last := f.Room.Events[len(f.Room.Events)-1]
	if f.Type != frameSnapshot || last.Type != game.EventReaction {
		t.Errorf("after reaction: %s, last event %+v", f.Type, last)
	}

	if err := wsjson.Write(ctx, conn, Intent{Type: "dance"}); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, ctx, conn); f.Type != frameError || !strings.Contains(f.Error, "unknown intent") {
		t.Errorf("unknown intent reply = %+v", f)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("{")); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, ctx, conn); f.Type != frameError {
		t.Errorf("malformed frame reply = %+v", f)
	}

	ops := Intent{Type: "ops", Ops: []game.Op{game.Increment(game.TeamPath("team_1", "fund"), 2)}}
	if err := wsjson.Write(ctx, conn, ops); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, ctx, conn); f.Room == nil || f.Room.Teams["team_1"].Fund != 2 {
		t.Errorf("after ops: %+v", f)
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

func TestWebSocketMissingRoom(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialRoom(t, ctx, srv, "4321")

	if f := readFrame(t, ctx, conn); f.Type != frameNotFound {
		t.Errorf("first frame = %+v", f)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 1)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialRoom(t, ctx, srv, pin)
	readFrame(t, ctx, conn)

	const sent = 3 * intentBurst
	for range sent {
		if err := wsjson.Write(ctx, conn, Intent{Type: "dance"}); err != nil {
			t.Fatal(err)
		}
	}
	limited := 0
	for range sent {
		if f := readFrame(t, ctx, conn); f.Error == errRateLimited.Error() {
			limited++
		}
	}
	if limited == 0 {
		t.Error("no intent was rate limited")
	}
}
