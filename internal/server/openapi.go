package server

import (
	"encoding/json"
	"net/http"
	"strings"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/play"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each dependency to its check result.
type HealthResponse map[string]struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

type apiResponse struct {
	status      int
	body        any
	contentType string
}

type apiOperation struct {
	method, path         string
	summary, description string
	req                  any
	resps                []apiResponse
}

func okResp(body any) apiResponse { return apiResponse{status: http.StatusOK, body: body} }
func createdResp(body any) apiResponse { return apiResponse{status: http.StatusCreated, body: body} }
func failure(status int) apiResponse { return apiResponse{status: status, body: ErrorResponse{}} }

var (
	unauthorized = failure(http.StatusUnauthorized)
	notFound     = failure(http.StatusNotFound)
	conflict     = failure(http.StatusConflict)
	badRequest   = failure(http.StatusBadRequest)
)

var apiOperations = []apiOperation{
	{http.MethodGet, "/healthz", "Health check", "Returns the health status of backend dependencies.", nil,
		[]apiResponse{okResp(HealthResponse{}), {status: http.StatusServiceUnavailable, body: HealthResponse{}}}},

	{http.MethodPost, "/api/host/login", "Host login", "Authenticate with the host credential pair. Sets the host_session cookie.", HostLoginRequest{},
		[]apiResponse{okResp(HostMeResponse{}), badRequest, unauthorized}},
	{http.MethodPost, "/api/host/logout", "Host logout", "Clears the host session and cookie.", nil,
		[]apiResponse{okResp(okResponse{})}},
	{http.MethodGet, "/api/host/me", "Current host", "Returns the authenticated host.", nil,
		[]apiResponse{okResp(HostMeResponse{}), unauthorized}},

	{http.MethodPost, "/api/rooms", "Create room", "Allocates a 4-digit PIN and stores an empty waiting room. Host only.", nil,
		[]apiResponse{createdResp(CreateRoomResponse{}), unauthorized}},
	{http.MethodGet, "/api/rooms/{pin}", "Get room", "Returns the room snapshot and its derived view.", nil,
		[]apiResponse{okResp(RoomResponse{}), notFound}},
	{http.MethodPost, "/api/rooms/{pin}/join", "Join room", "Adds a player to a waiting room.", JoinRequest{},
		[]apiResponse{createdResp(game.Player{}), badRequest, notFound, conflict}},
	{http.MethodPost, "/api/rooms/{pin}/start", "Start game", "Forms teams, assigns roles and starts the clock. Host only.", nil,
		[]apiResponse{okResp(RoomResponse{}), unauthorized, notFound, conflict}},
	{http.MethodPost, "/api/rooms/{pin}/ops", "Apply ops", "Commits a batch of field operations atomically.", OpsRequest{},
		[]apiResponse{okResp(RoomResponse{}), badRequest, notFound}},
	{http.MethodGet, "/api/rooms/{pin}/events", "Snapshot stream", "Server-Sent Events stream of room snapshots. The first event is the current state.", nil,
		[]apiResponse{{status: http.StatusOK, contentType: "text/event-stream"}}},
	{http.MethodGet, "/api/rooms/{pin}/ws", "WebSocket sync", "Upgrades to a WebSocket that sends snapshots and accepts intents.", nil,
		[]apiResponse{{status: http.StatusSwitchingProtocols, contentType: "text/plain"}}},
	{http.MethodGet, "/api/rooms/{pin}/qr", "Join QR code", "PNG QR code of the join URL.", nil,
		[]apiResponse{{status: http.StatusOK, contentType: "image/png"}}},

	{http.MethodPost, "/api/rooms/{pin}/players/{playerID}/quiz", "Start quiz", "Draws a question with a 20 second countdown.", nil,
		[]apiResponse{createdResp(play.QuizView{}), notFound, conflict}},
	{http.MethodPost, "/api/rooms/{pin}/players/{playerID}/quiz/{quizID}/answer", "Answer quiz", "Only the first submission is scored.", AnswerRequest{},
		[]apiResponse{okResp(play.QuizAnswer{}), badRequest, notFound}},
	{http.MethodPost, "/api/rooms/{pin}/players/{playerID}/steal", "Steal", "Spends the steal capability to take points from another team.", StealRequest{},
		[]apiResponse{okResp(okResponse{}), badRequest, notFound, conflict}},
	{http.MethodPost, "/api/rooms/{pin}/players/{playerID}/reactions", "React", "Logs an emoji reaction.", ReactionRequest{},
		[]apiResponse{okResp(okResponse{}), badRequest, notFound}},
	{http.MethodPost, "/api/rooms/{pin}/duels/{duelID}/answer", "Answer duel", "Records one side's answer. The second answer resolves the duel.", DuelAnswerRequest{},
		[]apiResponse{okResp(game.DuelOutcome{}), badRequest, notFound}},

	{http.MethodGet, "/api/host/rooms/{pin}", "Room summary", "Host overview of a room.", nil,
		[]apiResponse{okResp(play.Summary{}), unauthorized, notFound}},
	{http.MethodPost, "/api/host/rooms/{pin}/announce", "Announce", "Logs a host announcement.", AnnounceRequest{},
		[]apiResponse{okResp(okResponse{}), badRequest, unauthorized, notFound}},
	{http.MethodPost, "/api/host/rooms/{pin}/random-event", "Fire event", "Fires a catalog event, random unless kind is given.", RandomEventRequest{},
		[]apiResponse{okResp(game.CatalogEvent{}), badRequest, unauthorized, notFound, conflict}},
	{http.MethodPost, "/api/host/rooms/{pin}/duel", "Trigger duel", "Pairs two players from different teams.", nil,
		[]apiResponse{createdResp(game.Duel{}), unauthorized, notFound, conflict, failure(http.StatusTooManyRequests)}},
	{http.MethodPost, "/api/host/rooms/{pin}/missions", "Start missions", "Gives every team its mission. Runs once per room.", nil,
		[]apiResponse{okResp(okResponse{}), unauthorized, notFound, conflict}},
}

type roomParams struct {
	Pin string `path:"pin"`
}

type playerParams struct {
	Pin      string `path:"pin"`
	PlayerID string `path:"playerID"`
}

type quizParams struct {
	Pin      string `path:"pin"`
	PlayerID string `path:"playerID"`
	QuizID   string `path:"quizID"`
}

type duelParams struct {
	Pin    string `path:"pin"`
	DuelID string `path:"duelID"`
}

func pathParams(path string) any {
	switch {
	case strings.Contains(path, "{quizID}"):
		return quizParams{}
	case strings.Contains(path, "{playerID}"):
		return playerParams{}
	case strings.Contains(path, "{duelID}"):
		return duelParams{}
	case strings.Contains(path, "{pin}"):
		return roomParams{}
	}
	return nil
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Party Room API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the live party quiz.")

	for _, op := range apiOperations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if params := pathParams(op.path); params != nil {
			oc.AddReqStructure(params)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		for _, resp := range op.resps {
			opts := []openapi.ContentOption{openapi.WithHTTPStatus(resp.status)}
			if resp.contentType != "" {
				opts = append(opts, openapi.WithContentType(resp.contentType))
			}
			oc.AddRespStructure(resp.body, opts...)
		}
		_ = r.AddOperation(oc)
	}
	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
