package subscriptions

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

// SetPlanRequest is the body for POST /subscription/set-plan.
type SetPlanRequest struct {
	Plan models.Plan `json:"plan" binding:"required"`
}

// Handler handles subscription HTTP endpoints.
type Handler struct {
	repo   *Repository
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewHandler creates a subscriptions handler.
func NewHandler(repo *Repository, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, audit: recorder, logger: logger}
}

// Get handles GET /subscription.
func (h *Handler) Get(c *gin.Context) {
	ac, _ := authctx.From(c)

	sub, err := h.repo.GetByOrganization(c.Request.Context(), ac.Org.OrganizationID)
	if err != nil {
		h.logger.Error("get subscription", zap.Error(err))
		response.Internal(c, "subscription_failed")
		return
	}
	if sub == nil {
		response.NotFound(c, "subscription_missing")
		return
	}
	response.OK(c, sub)
}

// SetPlan handles POST /subscription/set-plan. Changes the plan directly
// without going through checkout; the route is gated to OWNER.
func (h *Handler) SetPlan(c *gin.Context) {
	var req SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}
	if !models.ValidPlan(req.Plan) {
		response.BadRequest(c, "invalid_plan")
		return
	}
	ac, _ := authctx.From(c)

	before, err := h.repo.GetByOrganization(c.Request.Context(), ac.Org.OrganizationID)
	if err != nil {
		h.logger.Error("load subscription", zap.Error(err))
		response.Internal(c, "subscription_failed")
		return
	}
	if before == nil {
		response.NotFound(c, "subscription_missing")
		return
	}

	sub, err := h.repo.SetPlan(c.Request.Context(), ac.Org.OrganizationID, req.Plan)
	if err != nil {
		h.logger.Error("set plan", zap.Error(err))
		response.Internal(c, "subscription_failed")
		return
	}
	if sub == nil {
		response.NotFound(c, "subscription_missing")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "subscription.set_plan", EntityType: "Subscription", EntityID: sub.ID.String(), Before: before, After: sub})
	response.OK(c, sub)
}
