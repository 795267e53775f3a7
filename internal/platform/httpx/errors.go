// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/harvestlink/harvestlink/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain and access-control errors to HTTP responses using
// RFC7807. Access-control failures carry their stable kind (and reason, for
// unauthenticated ones) so clients can decide between re-login, a permissions
// error, or reporting a bug. Configuration and internal failures are never
// presented with the forbidden shape.
func RespondError(w http.ResponseWriter, err error) {
	var ae *shared.AuthError
	if errors.As(err, &ae) {
		respondAuthError(w, ae)
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error(), "")
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error(), "")
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), "")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "", string(shared.KindInternal))
	}
}

func respondAuthError(w http.ResponseWriter, ae *shared.AuthError) {
	kind := string(ae.Kind)
	if ae.Reason != "" {
		kind = kind + ":" + string(ae.Reason)
	}
	switch ae.Kind {
	case shared.KindUnauthenticated:
		Problem(w, http.StatusUnauthorized, "Unauthorized", ae.Message, kind)
	case shared.KindForbidden:
		Problem(w, http.StatusForbidden, "Forbidden", ae.Message, kind)
	case shared.KindSecondFactorRequired:
		Problem(w, http.StatusUnauthorized, "Second Factor Required", ae.Message, kind)
	case shared.KindSecondFactorInvalid:
		Problem(w, http.StatusUnauthorized, "Second Factor Invalid", ae.Message, kind)
	case shared.KindConfiguration:
		// Server misconfiguration, not the caller's fault.
		Problem(w, http.StatusInternalServerError, "Configuration Error", ae.Message, kind)
	default:
		// Internal causes stay server-side; the client only sees the kind.
		Problem(w, http.StatusInternalServerError, "Internal Error", "", kind)
	}
}
