package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/models"
	"github.com/rmadden/backroom/internal/service"
)

// ForumService defines the thread-store operations required by the HTTP
// handlers. Every operation validates the token against the session
// directory itself.
type ForumService interface {
	ListThreads(ctx context.Context, token string) ([]models.Thread, error)
	CreateThread(ctx context.Context, token string, input service.PostInput) (*models.Thread, error)
	CreateReply(ctx context.Context, token, threadID string, input service.PostInput) (*models.Reply, error)
	DeleteThread(ctx context.Context, token, threadID string) error
	DeleteReply(ctx context.Context, token, threadID, replyID string) error
	PurgeAll(ctx context.Context, token string) error
}

// ForumHandler handles HTTP requests for forum threads and replies.
type ForumHandler struct {
	ForumService ForumService
	Log          *zap.Logger
}

// ListThreads returns the full thread collection for an authenticated caller.
func (h *ForumHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	threads, err := h.ForumService.ListThreads(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

// CreateThread accepts a JSON or multipart body and creates a new thread.
func (h *ForumHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	input, err := resolvePayload(r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	thread, err := h.ForumService.CreateThread(r.Context(), token, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"thread":  thread,
	})
}

// CreateReply appends a reply to the thread named in the URL.
func (h *ForumHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}
	threadID := chi.URLParam(r, "threadID")

	input, err := resolvePayload(r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	reply, err := h.ForumService.CreateReply(r.Context(), token, threadID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"reply":   reply,
	})
}

// DeleteThread removes a thread and its replies. Admin only.
func (h *ForumHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}
	threadID := chi.URLParam(r, "threadID")

	if err := h.ForumService.DeleteThread(r.Context(), token, threadID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thread deleted successfully",
	})
}

// DeleteReply removes a single reply. Admin only.
func (h *ForumHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}
	threadID := chi.URLParam(r, "threadID")
	replyID := chi.URLParam(r, "replyID")

	if err := h.ForumService.DeleteReply(r.Context(), token, threadID, replyID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Reply deleted successfully",
	})
}

// PurgeAll deletes the entire thread collection. Admin only.
func (h *ForumHandler) PurgeAll(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	if err := h.ForumService.PurgeAll(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All threads purged successfully",
	})
}
