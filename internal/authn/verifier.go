// Package authn resolves bearer credentials into live identity projections.
// Verification is stateless and CPU-only apart from the identity lookup; the
// middleware never mutates state.
package authn

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/platform/httpx"
	"github.com/harvestlink/harvestlink/internal/shared"
	"github.com/harvestlink/harvestlink/internal/token"
)

// Observer records verification outcomes for metrics. Implementations must
// be cheap; the middleware calls it on every request.
type Observer interface {
	TokenVerification(outcome string)
}

// Verifier turns an Authorization header into a resolved identity. The
// identity record is re-fetched on every request rather than trusted from
// token claims, so role downgrades and deletions apply immediately at the
// cost of one lookup per request.
type Verifier struct {
	tokens     *token.Issuer
	identities *identity.Service
	logger     *slog.Logger
	observer   Observer
}

// NewVerifier constructs a Verifier. The observer may be nil.
func NewVerifier(tokens *token.Issuer, identities *identity.Service, logger *slog.Logger, observer Observer) *Verifier {
	return &Verifier{tokens: tokens, identities: identities, logger: logger, observer: observer}
}

// Middleware enforces a valid bearer token and threads the resolved profile
// through the request context. It must run before any role or permission
// check.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, err := v.Resolve(r)
		if err != nil {
			if shared.KindOf(err) == shared.KindInternal && v.logger != nil {
				v.logger.Error("credential verification", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.ContextWithProfile(r.Context(), profile)))
	})
}

// Resolve extracts and verifies the bearer token, then re-fetches the live
// identity. Failure cases are distinguished so clients can react correctly:
// a missing header is not an invalid token, an expired token is not garbage,
// and a store outage is never reported as unauthenticated.
func (v *Verifier) Resolve(r *http.Request) (identity.Profile, error) {
	raw, err := bearerToken(r)
	if err != nil {
		v.observe("missing")
		return identity.Profile{}, err
	}
	subject, scope, err := v.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			v.observe("expired")
			return identity.Profile{}, shared.Unauthenticated(shared.ReasonTokenExpired, "token expired")
		}
		v.observe("invalid")
		return identity.Profile{}, shared.Unauthenticated(shared.ReasonTokenInvalid, "token invalid")
	}
	if scope != token.ScopeAccess {
		// Challenge tokens only open the 2FA completion endpoint.
		v.observe("invalid")
		return identity.Profile{}, shared.Unauthenticated(shared.ReasonTokenInvalid, "token invalid")
	}
	profile, err := v.identities.Resolve(r.Context(), subject)
	if err != nil {
		if shared.KindOf(err) == shared.KindInternal {
			v.observe("error")
		} else {
			v.observe("user_not_found")
		}
		return identity.Profile{}, err
	}
	v.observe("ok")
	return profile, nil
}

func (v *Verifier) observe(outcome string) {
	if v.observer != nil {
		v.observer.TokenVerification(outcome)
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", shared.Unauthenticated(shared.ReasonTokenMissing, "authorization header missing")
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(rest) == "" {
		return "", shared.Unauthenticated(shared.ReasonTokenMissing, "authorization header malformed")
	}
	return strings.TrimSpace(rest), nil
}
