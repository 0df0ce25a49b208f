// Package http provides the HTTP handlers and routing for the auth, forum,
// and purchase APIs.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rmadden/backroom/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its taxonomy status and a JSON {"error": ...}
// body. Internal failures are not echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// bearerToken extracts the bearer token from the Authorization header.
// The second return is false when the header is missing or malformed.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" {
		return "", false
	}
	return token, true
}

// heuristicUsername guesses a username from a token's prefix before its
// first dash. This backs the degraded validation path used when the session
// directory has not yet seen a replicated session; it assumes a correlation
// between token shape and username that uuid tokens rarely satisfy.
func heuristicUsername(token string) string {
	return strings.SplitN(token, "-", 2)[0]
}
