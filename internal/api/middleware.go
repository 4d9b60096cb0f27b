package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Authenticate verifies the Bearer session token and checks that it was
// issued for the player addressed by the route. The wallet core never sees
// credentials; this boundary is where identity is established.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.respondError(w, http.StatusUnauthorized, "Missing bearer token", r.Method, r.URL.Path)
			return
		}

		playerID, err := h.auth.VerifyToken(token)
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, "Invalid session token", r.Method, r.URL.Path)
			return
		}

		if vars := mux.Vars(r); vars["id"] != playerID {
			h.respondError(w, http.StatusForbidden, "Token does not match player", r.Method, r.URL.Path)
			return
		}

		next.ServeHTTP(w, r)
	})
}
