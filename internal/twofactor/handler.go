package twofactor

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/platform/httpx"
	"github.com/harvestlink/harvestlink/internal/shared"
)

// Handler wires HTTP endpoints for second-factor management. All routes are
// mounted behind the request gate, so a resolved identity is always present.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers second-factor routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.status)
	r.Post("/enroll", h.enroll)
	r.Post("/verify", h.verify)
	r.Post("/disable", h.disable)
	r.Post("/backup-codes/regenerate", h.regenerate)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	status, err := h.service.Status(r.Context(), profile.ID)
	if err != nil {
		h.logger.Error("second-factor status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	enrollment, err := h.service.Enroll(r.Context(), profile.ID, profile.Email)
	if err != nil {
		if errors.Is(err, ErrAlreadyEnabled) {
			httpx.Problem(w, http.StatusConflict, "Already Enabled", "two-factor authentication is already enabled", "")
			return
		}
		h.logger.Error("second-factor enroll", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, enrollment)
}

type verifyRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Verify(r.Context(), profile.ID, req.Code); err != nil {
		if shared.KindOf(err) == shared.KindInternal {
			h.logger.Error("second-factor verify", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type disableRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	var req disableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Disable(r.Context(), profile.ID, req.Password); err != nil {
		if errors.Is(err, ErrNotEnabled) {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		if shared.KindOf(err) == shared.KindInternal {
			h.logger.Error("second-factor disable", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	profile, ok := identity.ProfileFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
		return
	}
	codes, err := h.service.RegenerateBackupCodes(r.Context(), profile.ID)
	if err != nil {
		if errors.Is(err, ErrNotEnabled) {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		h.logger.Error("backup code regenerate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"backup_codes": codes})
}
