package orgs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

// SubscriptionSource reads the tenant's subscription for GET /org/me.
type SubscriptionSource interface {
	GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error)
}

// Handler handles the org surface.
type Handler struct {
	repo *Repository
	subs SubscriptionSource
}

// NewHandler creates an orgs handler.
func NewHandler(repo *Repository, subs SubscriptionSource) *Handler {
	return &Handler{repo: repo, subs: subs}
}

// Me handles GET /org/me: the caller's identity, current org, role and the
// org's subscription.
func (h *Handler) Me(c *gin.Context) {
	ac, ok := authctx.From(c)
	if !ok {
		response.Forbidden(c, "missing_org_context")
		return
	}

	org, err := h.repo.GetByID(c.Request.Context(), ac.Org.OrganizationID)
	if err != nil || org == nil {
		response.NotFound(c, "not_found")
		return
	}
	sub, err := h.subs.GetByOrganization(c.Request.Context(), ac.Org.OrganizationID)
	if err != nil {
		response.Internal(c, "subscription_lookup_failed")
		return
	}

	response.OK(c, gin.H{
		"user":         gin.H{"id": ac.User.UserID, "email": ac.User.Email},
		"org":          gin.H{"id": org.ID, "name": org.Name},
		"role":         ac.Org.Role,
		"subscription": sub,
	})
}

// Memberships handles GET /org/memberships: every org the caller belongs to.
func (h *Handler) Memberships(c *gin.Context) {
	ac, ok := authctx.From(c)
	if !ok {
		response.Forbidden(c, "missing_org_context")
		return
	}
	list, err := h.repo.ListMembershipsForUser(c.Request.Context(), ac.User.UserID)
	if err != nil {
		response.Internal(c, "memberships_lookup_failed")
		return
	}
	if list == nil {
		list = []MembershipInfo{}
	}
	response.OK(c, list)
}
