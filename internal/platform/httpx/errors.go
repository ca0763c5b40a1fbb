package httpx

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

// RespondError maps pipeline and domain errors onto the API envelope.
// Collaborator failures fall through to a detail-free 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Fail(w, http.StatusUnauthorized, "authentication required", nil)
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Fail(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, shared.ErrAccountLocked):
		var locked *shared.AccountLockedError
		if errors.As(err, &locked) {
			Fail(w, http.StatusLocked, "account temporarily locked", map[string]any{
				"lockUntil":  locked.Until.UTC().Format(time.RFC3339),
				"retryAfter": int(math.Ceil(locked.Remaining.Seconds())),
			})
			return
		}
		Fail(w, http.StatusLocked, "account temporarily locked", nil)
	case errors.Is(err, shared.ErrRateLimited):
		Fail(w, http.StatusTooManyRequests, "too many requests", nil)
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, "resource not found", nil)
	default:
		Fail(w, http.StatusInternalServerError, "internal error", nil)
	}
}
