package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-accounts/atlas-accounts/internal/platform/httpx"
	"github.com/atlas-accounts/atlas-accounts/internal/shared"
)

// Handler wires HTTP endpoints for registration flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers registration routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/activate", h.handleActivate)
	r.Post("/resend-activation", h.handleResend)
	r.Get("/health", h.handleHealth)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type activateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Code     string `json:"code" validate:"required,len=4,numeric"`
}

type resendRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userResponse struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	Status      Status     `json:"status"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrMalformedRequest.WithCause(err))
		return
	}
	if err := h.validate(req); err != nil {
		httpx.Error(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}

	httpx.Success(w, http.StatusCreated, userResponse{
		UserID: user.ID.String(),
		Email:  user.Email,
		Status: user.Status,
	})
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrMalformedRequest.WithCause(err))
		return
	}
	if err := h.validate(req); err != nil {
		httpx.Error(w, err)
		return
	}

	user, err := h.service.Activate(r.Context(), req.Email, req.Password, req.Code)
	if err != nil {
		h.fail(w, r, "activate", err)
		return
	}

	httpx.Success(w, http.StatusOK, userResponse{
		UserID:      user.ID.String(),
		Email:       user.Email,
		Status:      user.Status,
		ActivatedAt: user.ActivatedAt,
	})
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrMalformedRequest.WithCause(err))
		return
	}
	if err := h.validate(req); err != nil {
		httpx.Error(w, err)
		return
	}

	if err := h.service.ResendActivation(r.Context(), req.Email, req.Password); err != nil {
		h.fail(w, r, "resend activation", err)
		return
	}

	httpx.Success(w, http.StatusOK, map[string]string{
		"message": "Activation code sent successfully",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.Success(w, http.StatusOK, map[string]string{
		"service": "user_registration",
		"status":  "healthy",
	})
}

// validate maps request validation failures onto the field-specific error
// codes of the taxonomy.
func (h *Handler) validate(req any) error {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return shared.ErrUnexpected.WithCause(err)
	}
	switch fieldErrs[0].Field() {
	case "Email":
		return shared.ErrInvalidEmail
	case "Password":
		return shared.ErrInvalidPassword
	case "Code":
		return shared.ErrInvalidActivationCode
	default:
		return shared.ErrInvalidEmail
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	se := shared.AsServiceError(err)
	if se.Status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	} else {
		h.logger.Info(op+" rejected", slog.String("err_code", se.Code))
	}
	httpx.Error(w, se)
}
