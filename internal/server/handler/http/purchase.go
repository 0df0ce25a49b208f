package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/models"
	"github.com/rmadden/backroom/internal/service"
)

// PurchaseService defines the purchase-ledger operations required by the
// HTTP handlers.
type PurchaseService interface {
	Record(ctx context.Context, username string, input service.PurchaseInput, userAgent string) (*models.Purchase, error)
	List(ctx context.Context, username string) ([]models.Purchase, error)
}

// PurchaseHandler records and lists purchases for the authenticated user.
// Unlike /api/validate there is no heuristic fallback here: the token must
// resolve through the session directory.
type PurchaseHandler struct {
	PurchaseService PurchaseService
	Directory       SessionDirectory
	Log             *zap.Logger
}

func (h *PurchaseHandler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "Authorization required",
		})
		return "", false
	}
	username, err := h.Directory.ValidateRequest(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "Invalid or expired authentication",
		})
		return "", false
	}
	return username, true
}

// Record stores a purchase posted by the client after payment capture.
func (h *PurchaseHandler) Record(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var input service.PurchaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid purchase data",
		})
		return
	}

	purchase, err := h.PurchaseService.Record(r.Context(), username, input, r.UserAgent())
	if err != nil {
		h.Log.Error("failed to record purchase",
			zap.String("username", username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to record purchase",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"purchaseId":  purchase.ID,
		"message":     "Purchase recorded successfully",
		"environment": purchase.Environment,
	})
}

// List returns the authenticated user's purchase history.
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	purchases, err := h.PurchaseService.List(r.Context(), username)
	if err != nil {
		h.Log.Error("failed to list purchases",
			zap.String("username", username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to retrieve purchases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"purchases": purchases,
	})
}
