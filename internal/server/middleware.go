package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func hostAuthMiddleware(host *HostAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := host.fromRequest(r); err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// pinMiddleware turns away anything that cannot be a room PIN before it
// reaches the store.
func pinMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validPin(chi.URLParam(r, "pin")) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validPin(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
