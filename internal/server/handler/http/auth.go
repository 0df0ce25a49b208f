package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/models"
)

// AuthService defines the credential-store operations required by the HTTP
// handlers.
type AuthService interface {
	// Register creates a user record; the invite code must match the
	// process-wide secret.
	Register(ctx context.Context, email, username, password, inviteCode string) error
	// Login authenticates and issues a fresh session.
	Login(ctx context.Context, login, password string) (*models.Session, *models.UserRecord, error)
	// Validate checks token against the session stored under username.
	Validate(ctx context.Context, username, token string) (*models.UserRecord, error)
	// Logout deletes the stored session when its token matches.
	Logout(ctx context.Context, username, token string) error
}

// SessionDirectory is the forum-side fast path for token validation and the
// primary target for logout.
type SessionDirectory interface {
	ValidateRequest(ctx context.Context, token string) (string, error)
	RemoveSessionByToken(ctx context.Context, token string) error
}

// AuthHandler handles HTTP requests for registration, login, token
// validation, and logout.
type AuthHandler struct {
	AuthService AuthService
	Directory   SessionDirectory
	Log         *zap.Logger
}

// RegisterRequest represents the JSON payload for user registration.
type RegisterRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

// LoginRequest represents the JSON payload for login. Username also accepts
// the registered email address.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles user registration requests. All four fields are required;
// store-level checks (invite code, username pattern, duplicates) run after.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" || req.InviteCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Email, username, password, and invite code are required",
		})
		return
	}

	if err := h.AuthService.Register(r.Context(), req.Email, req.Username, req.Password, req.InviteCode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User registered successfully",
	})
}

// Login handles login requests and returns the issued token with the public
// user fields.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Username and password are required",
		})
		return
	}

	session, record, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   session.Token,
		"user": map[string]string{
			"email":    record.Email,
			"username": record.Username,
		},
	})
}

// Validate checks the bearer token. The session directory is consulted
// first; when it cannot resolve the token (for instance inside the
// replication window), a single fallback attempt asks the credential store
// addressed by the token's prefix.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		return
	}

	username, err := h.Directory.ValidateRequest(r.Context(), token)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": true,
			"user":  map[string]string{"username": username},
		})
		return
	}
	h.Log.Debug("directory validation failed, trying per-user fallback", zap.Error(err))

	if candidate := heuristicUsername(token); candidate != "" {
		record, err := h.AuthService.Validate(r.Context(), candidate, token)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"valid": true,
				"user": map[string]string{
					"username": record.Username,
					"email":    record.Email,
				},
			})
			return
		}
	}

	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"valid": false,
		"error": "Invalid token",
	})
}

// Logout invalidates the token against both stores, best effort: failures
// are logged and the client always gets success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "No valid token provided",
		})
		return
	}

	if err := h.Directory.RemoveSessionByToken(r.Context(), token); err != nil {
		h.Log.Warn("directory logout failed", zap.Error(err))
	}
	if candidate := heuristicUsername(token); candidate != "" {
		if err := h.AuthService.Logout(r.Context(), candidate, token); err != nil {
			h.Log.Warn("credential-store logout failed",
				zap.String("username", candidate), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
