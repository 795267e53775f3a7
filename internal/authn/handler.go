package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/platform/httpx"
	"github.com/harvestlink/harvestlink/internal/shared"
	"github.com/harvestlink/harvestlink/internal/token"
	"github.com/harvestlink/harvestlink/internal/twofactor"
)

// Notifier receives security-relevant login events.
type Notifier interface {
	SecurityEvent(ctx context.Context, identityID uuid.UUID, event string)
}

// Handler wires HTTP endpoints for registration and the token-issuing login
// flow, including the second-factor challenge step.
type Handler struct {
	logger     *slog.Logger
	identities *identity.Service
	tokens     *token.Issuer
	secondFac  *twofactor.Service
	notifier   Notifier
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance. The notifier may be nil.
func NewHandler(logger *slog.Logger, identities *identity.Service, tokens *token.Issuer, secondFac *twofactor.Service, notifier Notifier) *Handler {
	return &Handler{
		logger:     logger,
		identities: identities,
		tokens:     tokens,
		secondFac:  secondFac,
		notifier:   notifier,
		validator:  validator.New(),
	}
}

// MountRoutes registers the unauthenticated auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/login/second-factor", h.completeSecondFactor)
}

// MountProtectedRoutes registers routes that require a resolved identity.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Put("/profile", h.updateProfile)
	r.Put("/password", h.changePassword)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=buyer farmer"`
	Phone    string `json:"phone"`
	FarmName string `json:"farm_name"`
	Location string `json:"location"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	profile, err := h.identities.Register(r.Context(), identity.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     identity.Role(req.Role),
		Phone:    req.Phone,
		FarmName: req.FarmName,
		Location: req.Location,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			httpx.RespondError(w, httpx.ErrDuplicate)
			return
		}
		h.logger.Error("register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Profile   identity.Profile `json:"profile"`
}

type challengeResponse struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	ChallengeToken string `json:"challenge_token"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	account, err := h.identities.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login", slog.Any("error", err))
			httpx.RespondError(w, shared.Internal("login failed", err))
			return
		}
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}

	enabled, err := h.secondFac.Enabled(r.Context(), account.ID)
	if err != nil {
		h.logger.Error("second-factor status at login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if enabled {
		challenge, _, err := h.tokens.IssueChallenge(account.ID)
		if err != nil {
			h.logger.Error("issue challenge token", slog.Any("error", err))
			httpx.RespondError(w, shared.Internal("token signing failed", err))
			return
		}
		httpx.JSON(w, http.StatusUnauthorized, challengeResponse{
			Kind:           string(shared.KindSecondFactorRequired),
			Message:        "second factor required",
			ChallengeToken: challenge,
		})
		return
	}

	h.issueAccess(w, r, account)
}

type secondFactorRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required"`
}

func (h *Handler) completeSecondFactor(w http.ResponseWriter, r *http.Request) {
	var req secondFactorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	subject, scope, err := h.tokens.Verify(req.ChallengeToken)
	if err != nil || scope != token.ScopeSecondFactor {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenInvalid, "challenge token invalid"))
		return
	}
	if err := h.secondFac.Verify(r.Context(), subject, req.Code); err != nil {
		if shared.KindOf(err) == shared.KindInternal {
			h.logger.Error("second-factor login", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	account, err := h.identities.Get(r.Context(), subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, shared.Unauthenticated(shared.ReasonUserNotFound, "user not found"))
			return
		}
		h.logger.Error("resolve after second factor", slog.Any("error", err))
		httpx.RespondError(w, shared.Internal("login failed", err))
		return
	}
	h.issueAccessProfile(w, r, account)
}

func (h *Handler) issueAccess(w http.ResponseWriter, r *http.Request, account identity.Identity) {
	h.issueAccessProfile(w, r, identity.ProfileOf(account))
}

func (h *Handler) issueAccessProfile(w http.ResponseWriter, r *http.Request, profile identity.Profile) {
	signed, expiresAt, err := h.tokens.Issue(profile.ID)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, shared.Internal("token signing failed", err))
		return
	}
	if h.notifier != nil && profile.Role != identity.RoleBuyer && profile.Role != identity.RoleFarmer {
		h.notifier.SecurityEvent(r.Context(), profile.ID, "elevated_login")
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{Token: signed, ExpiresAt: expiresAt, Profile: profile})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone"`
	FarmName string `json:"farm_name"`
	Location string `json:"location"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.identities.UpdateProfile(r.Context(), profile.ID, req.Name, req.Phone, req.FarmName, req.Location); err != nil {
		h.logger.Error("update profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.identities.ChangePassword(r.Context(), profile.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.RespondError(w, shared.ErrInvalidCredentials)
			return
		}
		h.logger.Error("change password", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.notifier != nil {
		h.notifier.SecurityEvent(r.Context(), profile.ID, "password_changed")
	}
	w.WriteHeader(http.StatusNoContent)
}
