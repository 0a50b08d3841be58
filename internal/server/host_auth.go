package server

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	hostCookieName = "host_session"
	sessionTTL     = 7 * 24 * time.Hour
)

var errNoHostSession = errors.New("no valid host session")

type hostSession struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"createdAt"`
}

// HostAuth checks the host console credential pair and keeps host sessions
// in the host_sessions table.
type HostAuth struct {
	db           *sql.DB
	username     string
	passwordHash []byte

	// Now is replaced in tests.
	Now func() time.Time
}

// NewHostAuth hashes password once so logins compare against a bcrypt hash
// rather than the plain configured value.
func NewHostAuth(db *sql.DB, username, password string, cost int) (*HostAuth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hashing host password: %w", err)
	}
	return &HostAuth{db: db, username: username, passwordHash: hash, Now: time.Now}, nil
}

// Login returns a new session id for a valid credential pair.
func (h *HostAuth) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", errNoHostSession
	}

	sess := hostSession{ID: uuid.NewString(), Username: h.username, CreatedAt: h.Now().UnixMilli()}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	if _, err := h.db.ExecContext(ctx,
		`INSERT INTO host_sessions (id, data, created_at) VALUES (?, jsonb(?), ?)`,
		sess.ID, string(data), sess.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("storing host session: %w", err)
	}
	return sess.ID, nil
}

func (h *HostAuth) Logout(ctx context.Context, sessionID string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM host_sessions WHERE id = ?`, sessionID)
	return err
}

// Session looks up a live session. Expired sessions are deleted on sight.
func (h *HostAuth) Session(ctx context.Context, sessionID string) (hostSession, error) {
	var data string
	err := h.db.QueryRowContext(ctx,
		`SELECT json(data) FROM host_sessions WHERE id = ?`, sessionID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return hostSession{}, errNoHostSession
	}
	if err != nil {
		return hostSession{}, err
	}
	var sess hostSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return hostSession{}, err
	}
	if h.Now().Sub(time.UnixMilli(sess.CreatedAt)) > sessionTTL {
		h.Logout(ctx, sessionID)
		return hostSession{}, errNoHostSession
	}
	return sess, nil
}

func (h *HostAuth) fromRequest(r *http.Request) (hostSession, error) {
	cookie, err := r.Cookie(hostCookieName)
	if err != nil || cookie.Value == "" {
		return hostSession{}, errNoHostSession
	}
	return h.Session(r.Context(), cookie.Value)
}

// HostLoginRequest is the request body for POST /api/host/login.
type HostLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HostMeResponse is the response for GET /api/host/me.
type HostMeResponse struct {
	Username string `json:"username"`
}

func handleHostLogin(host *HostAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HostLoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		sessionID, err := host.Login(r.Context(), req.Username, req.Password)
		if errors.Is(err, errNoHostSession) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     hostCookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(sessionTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, HostMeResponse{Username: req.Username})
	}
}

func handleHostLogout(host *HostAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(hostCookieName)
		if err == nil && cookie.Value != "" {
			host.Logout(r.Context(), cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     hostCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleHostMe(host *HostAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := host.fromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, HostMeResponse{Username: sess.Username})
	}
}
