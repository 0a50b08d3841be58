package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/play"
)

func TestGetRoom(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 8)

	w := e.do(http.MethodGet, "/api/rooms/"+pin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[RoomResponse](t, w)
	if resp.Room.Status != game.StatusPlaying || len(resp.Room.Teams) != 2 || len(resp.Room.Players) != 8 {
		t.Errorf("room: status=%s teams=%d players=%d", resp.Room.Status, len(resp.Room.Teams), len(resp.Room.Players))
	}
	if resp.View.GameEnded || resp.View.RemainingMs <= 0 || len(resp.View.Standings) != 2 {
		t.Errorf("view = %+v", resp.View)
	}

	if w := e.do(http.MethodGet, "/api/rooms/0000", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown pin: expected 404, got %d", w.Code)
	}
}

func TestJoinErrors(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 2)

	if w := e.do(http.MethodPost, "/api/rooms/"+pin+"/join", JoinRequest{Name: "Late"}); w.Code != http.StatusConflict {
		t.Errorf("join after start: expected 409, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, "/api/rooms/0000/join", JoinRequest{Name: "Lost"}); w.Code != http.StatusNotFound {
		t.Errorf("join missing room: expected 404, got %d", w.Code)
	}

	cookie := e.login(t)
	created := decode[CreateRoomResponse](t, e.do(http.MethodPost, "/api/rooms", nil, cookie))
	if w := e.do(http.MethodPost, "/api/rooms/"+created.Pin+"/join", JoinRequest{Name: "   "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank name: expected 400, got %d", w.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	e := newTestEnv(t)
	pin, room := e.startedRoom(t, 4)
	player := room.Teams["team_1"].Members[0]
	base := "/api/rooms/" + pin + "/players/" + player

	w := e.do(http.MethodPost, base+"/quiz", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start quiz: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	quiz := decode[play.QuizView](t, w)
	if len(quiz.Question.Options) < 2 || quiz.RemainingMs != game.QuizTimeLimit.Milliseconds() {
		t.Errorf("quiz = %+v", quiz)
	}
	if strings.Contains(w.Body.String(), "correctAnswer") {
		t.Error("quiz prompt leaks the answer")
	}

	answer := 0
	w = e.do(http.MethodPost, base+"/quiz/"+quiz.ID+"/answer", AnswerRequest{Answer: &answer})
	if w.Code != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[play.QuizAnswer](t, w)
	if !res.Resolved || !res.Correct || res.Award == nil || res.Award.Points != 1 {
		t.Errorf("answer = %+v", res)
	}

	w = e.do(http.MethodPost, base+"/quiz/"+quiz.ID+"/answer", AnswerRequest{Answer: &answer})
	if res := decode[play.QuizAnswer](t, w); res.Resolved || res.Award != nil {
		t.Errorf("second answer scored: %+v", res)
	}

	if w := e.do(http.MethodPost, base+"/quiz/"+quiz.ID+"/answer", AnswerRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing answer: expected 400, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, base+"/quiz/nope/answer", AnswerRequest{Answer: &answer}); w.Code != http.StatusNotFound {
		t.Errorf("unknown quiz: expected 404, got %d", w.Code)
	}

	r, _ := e.store.Read(t.Context(), pin)
	if r.Teams["team_1"].Fund != 1 {
		t.Errorf("fund = %d", r.Teams["team_1"].Fund)
	}
}

func TestDuelFlow(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 8)
	cookie := e.login(t)

	w := e.do(http.MethodPost, "/api/host/rooms/"+pin+"/duel", nil, cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("duel: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	d := decode[game.Duel](t, w)
	if w := e.do(http.MethodPost, "/api/host/rooms/"+pin+"/duel", nil, cookie); w.Code != http.StatusTooManyRequests {
		t.Errorf("second duel: expected 429, got %d", w.Code)
	}

	path := "/api/rooms/" + pin + "/duels/" + d.ID + "/answer"
	right, wrong := 0, 1
	w = e.do(http.MethodPost, path, DuelAnswerRequest{PlayerID: d.Player1ID, Answer: &right})
	if out := decode[game.DuelOutcome](t, w); out.Completed {
		t.Fatalf("first answer completed the duel: %+v", out)
	}
	w = e.do(http.MethodPost, path, DuelAnswerRequest{PlayerID: d.Player2ID, Answer: &wrong})
	out := decode[game.DuelOutcome](t, w)
	if !out.Completed || out.WinnerID == nil || *out.WinnerID != d.Player1ID {
		t.Errorf("second answer = %+v", out)
	}

	if w := e.do(http.MethodPost, "/api/rooms/"+pin+"/duels/nope/answer", DuelAnswerRequest{PlayerID: d.Player1ID, Answer: &right}); w.Code != http.StatusNotFound {
		t.Errorf("unknown duel: expected 404, got %d", w.Code)
	}
}

func TestStealAndReactions(t *testing.T) {
	e := newTestEnv(t)
	pin, room := e.startedRoom(t, 8)
	thief := room.Teams["team_1"].Members[0]
	base := "/api/rooms/" + pin + "/players/" + thief

	if w := e.do(http.MethodPost, base+"/steal", StealRequest{TargetTeamID: "team_2"}); w.Code != http.StatusConflict {
		t.Errorf("steal without capability: expected 409, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, base+"/steal", StealRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("steal without target: expected 400, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, base+"/reactions", ReactionRequest{Emoji: "🎉"}); w.Code != http.StatusOK {
		t.Errorf("reaction: expected 200, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, base+"/reactions", ReactionRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty reaction: expected 400, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, "/api/rooms/"+pin+"/players/ghost/reactions", ReactionRequest{Emoji: "🎉"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown player: expected 404, got %d", w.Code)
	}
}

func TestOps(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 4)
	path := "/api/rooms/" + pin + "/ops"

	w := e.do(http.MethodPost, path, OpsRequest{Ops: []game.Op{
		game.Increment(game.TeamPath("team_1", "fund"), 7),
		game.Set("firstCorrectBonus", 10),
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("ops: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[RoomResponse](t, w)
	if resp.Room.Teams["team_1"].Fund != 7 || resp.Room.FirstCorrectBonus != 10 {
		t.Errorf("room after ops: fund=%d bonus=%d", resp.Room.Teams["team_1"].Fund, resp.Room.FirstCorrectBonus)
	}

	// A bad op rejects the whole batch.
	w = e.do(http.MethodPost, path, OpsRequest{Ops: []game.Op{
		game.Increment(game.TeamPath("team_1", "fund"), 1),
		game.Set("nope", 1),
	}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad op: expected 400, got %d", w.Code)
	}
	if r, _ := e.store.Read(t.Context(), pin); r.Teams["team_1"].Fund != 7 {
		t.Errorf("partial batch committed: fund = %d", r.Teams["team_1"].Fund)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestHostConsole(t *testing.T) {
	e := newTestEnv(t)
	pin, _ := e.startedRoom(t, 8)
	cookie := e.login(t)
	base := "/api/host/rooms/" + pin

	w := e.do(http.MethodGet, base, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if sum := decode[play.Summary](t, w); sum.Players != 8 || sum.Teams != 2 || len(sum.Canned) == 0 {
		t.Errorf("summary = %+v", sum)
	}

	if w := e.do(http.MethodPost, base+"/announce", AnnounceRequest{Message: game.CannedAnnouncements[1]}, cookie); w.Code != http.StatusOK {
		t.Errorf("announce: expected 200, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, base+"/announce", AnnounceRequest{}, cookie); w.Code != http.StatusBadRequest {
		t.Errorf("empty announce: expected 400, got %d", w.Code)
	}

	w = e.do(http.MethodPost, base+"/random-event", RandomEventRequest{Kind: game.KindDoublePoints}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("event: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ev := decode[game.CatalogEvent](t, w); ev.Kind != game.KindDoublePoints {
		t.Errorf("event = %+v", ev)
	}
	if w := e.do(http.MethodPost, base+"/random-event", RandomEventRequest{Kind: "meteor"}, cookie); w.Code != http.StatusBadRequest {
		t.Errorf("unknown event: expected 400, got %d", w.Code)
	}
	// No body draws from the catalog.
	if w := e.do(http.MethodPost, base+"/random-event", nil, cookie); w.Code != http.StatusOK {
		t.Errorf("random event: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := e.do(http.MethodPost, base+"/missions", nil, cookie); w.Code != http.StatusOK {
		t.Errorf("missions: expected 200, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, base+"/missions", nil, cookie); w.Code != http.StatusConflict {
		t.Errorf("second missions: expected 409, got %d", w.Code)
	}

	r, _ := e.store.Read(t.Context(), pin)
	if r.DoublePointsUntil == nil || len(r.TeamMissions) != 2 {
		t.Errorf("room: doublePointsUntil=%v missions=%d", r.DoublePointsUntil, len(r.TeamMissions))
	}
}

func TestQR(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/rooms/1234/qr", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name  string
		proto string
		want  string
	}{
		{"direct", "", "http://party.example/join/1234"},
		{"behind tls proxy", "https", "https://party.example/join/1234"},
		{"plain proxy", "http", "http://party.example/join/1234"},
		{"bogus scheme", "javascript", "http://party.example/join/1234"},
		{"header injection", "https://evil.example/x?", "http://party.example/join/1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://party.example/api/rooms/1234/qr", nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if got := joinURL(req, "1234"); got != tt.want {
				t.Errorf("joinURL = %q, want %q", got, tt.want)
			}
		})
	}
}
