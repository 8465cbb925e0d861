package billing

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

// SubscriptionStore is the subscription persistence billing needs.
type SubscriptionStore interface {
	GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error)
	SetStripeCustomer(ctx context.Context, orgID uuid.UUID, customerID string) error
	Upsert(ctx context.Context, s *models.Subscription) error
	OrganizationIDByStripeCustomer(ctx context.Context, customerID string) (uuid.UUID, error)
}

// OrgSource looks up organizations for customer creation.
type OrgSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// Prices maps plans to processor price ids and back.
type Prices struct {
	Classic    string
	Pro        string
	Enterprise string
}

// ForPlan returns the price id for a plan, or "" when not configured.
func (p Prices) ForPlan(plan models.Plan) string {
	switch plan {
	case models.PlanClassic:
		return p.Classic
	case models.PlanPro:
		return p.Pro
	case models.PlanEnterprise:
		return p.Enterprise
	}
	return ""
}

// PlanForPrice resolves a price id back to a plan.
func (p Prices) PlanForPrice(priceID string) (models.Plan, bool) {
	switch priceID {
	case "":
		return "", false
	case p.Classic:
		return models.PlanClassic, true
	case p.Pro:
		return models.PlanPro, true
	case p.Enterprise:
		return models.PlanEnterprise, true
	}
	return "", false
}

// CheckoutRequest is the body for POST /billing/checkout. The client sends
// the processor price id; it must be one of the configured plan prices.
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// Handler handles billing HTTP endpoints.
type Handler struct {
	store    SubscriptionStore
	orgs     OrgSource
	provider Provider
	prices   Prices
	appURL   string
	audit    *audit.Recorder
	logger   *zap.Logger
}

// NewHandler creates a billing handler.
func NewHandler(store SubscriptionStore, orgs OrgSource, provider Provider, prices Prices, appURL string, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, orgs: orgs, provider: provider, prices: prices, appURL: appURL, audit: recorder, logger: logger}
}

// Checkout handles POST /billing/checkout. Creates a hosted checkout
// session for the requested plan, lazily creating the processor customer.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}
	plan, known := h.prices.PlanForPrice(req.PriceID)
	if req.PriceID == "" {
		response.BadRequest(c, "missing_priceId")
		return
	}
	if !known {
		response.BadRequest(c, "invalid_plan")
		return
	}
	ac, _ := authctx.From(c)
	ctx := c.Request.Context()

	sub, err := h.store.GetByOrganization(ctx, ac.Org.OrganizationID)
	if err != nil {
		h.logger.Error("load subscription", zap.Error(err))
		response.Internal(c, "checkout_failed")
		return
	}
	if sub == nil {
		response.NotFound(c, "subscription_missing")
		return
	}

	customerID := sub.StripeCustomerID
	if customerID == "" {
		customerID, err = h.createCustomer(ctx, ac.Org.OrganizationID, ac.User.Email)
		if err != nil {
			h.logger.Error("create billing customer", zap.Error(err))
			response.Internal(c, "checkout_failed")
			return
		}
	}

	url, err := h.provider.CheckoutURL(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    req.PriceID,
		OrgID:      ac.Org.OrganizationID,
		SuccessURL: h.appURL + "/settings/billing?checkout=success",
		CancelURL:  h.appURL + "/settings/billing?checkout=cancelled",
	})
	if err != nil {
		h.logger.Error("create checkout session", zap.Error(err))
		response.Internal(c, "checkout_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "billing.checkout", EntityType: "Subscription", EntityID: sub.ID.String(), After: gin.H{"plan": plan, "priceId": req.PriceID}})
	response.OK(c, gin.H{"url": url})
}

// Portal handles POST /billing/portal. Requires an existing processor
// customer, which only exists after a first checkout.
func (h *Handler) Portal(c *gin.Context) {
	ac, _ := authctx.From(c)
	ctx := c.Request.Context()

	sub, err := h.store.GetByOrganization(ctx, ac.Org.OrganizationID)
	if err != nil {
		h.logger.Error("load subscription", zap.Error(err))
		response.Internal(c, "portal_failed")
		return
	}
	if sub == nil {
		response.NotFound(c, "subscription_missing")
		return
	}
	if sub.StripeCustomerID == "" {
		response.BadRequest(c, "missing_stripe_customer")
		return
	}

	url, err := h.provider.PortalURL(ctx, sub.StripeCustomerID, h.appURL+"/settings/billing")
	if err != nil {
		h.logger.Error("create portal session", zap.Error(err))
		response.Internal(c, "portal_failed")
		return
	}
	response.OK(c, gin.H{"url": url})
}

func (h *Handler) createCustomer(ctx context.Context, orgID uuid.UUID, email string) (string, error) {
	orgName := ""
	if org, err := h.orgs.GetByID(ctx, orgID); err == nil && org != nil {
		orgName = org.Name
	}
	customerID, err := h.provider.EnsureCustomer(ctx, orgID, email, orgName)
	if err != nil {
		return "", err
	}
	if err := h.store.SetStripeCustomer(ctx, orgID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}
