package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	OrgName  string `json:"orgName" binding:"required,min=2"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	OrgID    *uuid.UUID `json:"orgId"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SignupResponse is the success body for POST /auth/signup.
type SignupResponse struct {
	Organization OrgSummary  `json:"organization"`
	Role         models.Role `json:"role"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// OrgSummary is the organization slice of auth responses.
type OrgSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// LoginResponse is the success body for POST /auth/login.
type LoginResponse struct {
	OrganizationID uuid.UUID   `json:"organizationId"`
	Role           models.Role `json:"role"`
	AccessToken    string      `json:"accessToken"`
	RefreshToken   string      `json:"refreshToken"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc         *Service
	audit       *audit.Recorder
	allowSignup bool
	logger      *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, recorder *audit.Recorder, allowSignup bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, audit: recorder, allowSignup: allowSignup, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	if !h.allowSignup {
		response.Forbidden(c, "signup_disabled")
		return
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}

	account, pair, err := h.svc.Signup(c.Request.Context(), req.Email, req.Password, req.OrgName)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Conflict(c, "email_taken")
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		response.Internal(c, "signup_failed")
		return
	}

	// No authenticated context exists yet; attribute the entry explicitly.
	h.audit.RecordFor(c, account.User.ID, account.Organization.ID, audit.Entry{
		Action:     "auth.signup",
		EntityType: "Organization",
		EntityID:   account.Organization.ID.String(),
	})

	response.OK(c, SignupResponse{
		Organization: OrgSummary{ID: account.Organization.ID, Name: account.Organization.Name},
		Role:         account.Membership.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}

	user, membership, pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, req.OrgID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Unauthorized(c, "invalid_credentials")
		case errors.Is(err, ErrNoMembership):
			response.Forbidden(c, "no_membership")
		default:
			h.logger.Error("login failed", zap.Error(err))
			response.Internal(c, "login_failed")
		}
		return
	}

	h.audit.RecordFor(c, user.ID, membership.OrganizationID, audit.Entry{Action: "auth.login"})

	response.OK(c, LoginResponse{
		OrganizationID: membership.OrganizationID,
		Role:           membership.Role,
		AccessToken:    pair.AccessToken,
		RefreshToken:   pair.RefreshToken,
	})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.BadRequest(c, "missing_refresh")
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRefresh):
			response.Unauthorized(c, "invalid_refresh")
		case errors.Is(err, ErrRefreshNotRecognized):
			response.Unauthorized(c, "refresh_not_recognized")
		case errors.Is(err, ErrNoMembership):
			response.Forbidden(c, "no_membership")
		default:
			h.logger.Error("refresh failed", zap.Error(err))
			response.Internal(c, "refresh_failed")
		}
		return
	}

	response.OK(c, pair)
}
