package billing

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/redis"
	"github.com/nexentia/backend/pkg/response"
)

// EventDeduper tracks processed webhook event ids. Stripe retries
// deliveries, so handlers must tolerate duplicates.
type EventDeduper interface {
	// FirstSeen marks the event id and reports whether this is its first delivery.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

const dedupTTL = 24 * time.Hour

// RedisDeduper deduplicates webhook events with SETNX keys.
type RedisDeduper struct {
	client *redis.Client
}

// NewRedisDeduper creates a Redis-backed event deduper.
func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, "stripe:event:"+eventID, 1, dedupTTL).Result()
}

// WebhookHandler processes payment processor webhooks.
type WebhookHandler struct {
	provider Provider
	store    SubscriptionStore
	dedup    EventDeduper
	prices   Prices
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(provider Provider, store SubscriptionStore, dedup EventDeduper, prices Prices, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{provider: provider, store: store, dedup: dedup, prices: prices, logger: logger}
}

// Handle handles POST /webhooks/stripe. The route is unauthenticated;
// trust comes from the signature check.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "invalid_webhook")
		return
	}

	ev, err := h.provider.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		response.BadRequest(c, "invalid_webhook")
		return
	}

	ctx := c.Request.Context()
	first, err := h.dedup.FirstSeen(ctx, ev.ID)
	if err != nil {
		// Dedup is best-effort; process anyway rather than drop the event.
		h.logger.Warn("webhook dedup check failed", zap.Error(err), zap.String("event_id", ev.ID))
	} else if !first {
		response.OK(c, gin.H{"received": true})
		return
	}

	switch ev.Type {
	case "checkout.session.completed":
		err = h.checkoutCompleted(ctx, ev)
	case "customer.subscription.updated":
		err = h.subscriptionChanged(ctx, ev, "")
	case "customer.subscription.deleted":
		err = h.subscriptionChanged(ctx, ev, "canceled")
	default:
		h.logger.Debug("webhook ignored", zap.String("type", ev.Type))
	}
	if err != nil {
		h.logger.Error("webhook processing failed", zap.String("type", ev.Type), zap.String("event_id", ev.ID), zap.Error(err))
		response.Internal(c, "webhook_failed")
		return
	}
	response.OK(c, gin.H{"received": true})
}

func (h *WebhookHandler) checkoutCompleted(ctx context.Context, ev *Event) error {
	if ev.OrgID == uuid.Nil {
		h.logger.Warn("checkout completed without org reference", zap.String("event_id", ev.ID))
		return nil
	}
	state := ev.Subscription
	if state == nil && ev.SubscriptionID != "" {
		var err error
		state, err = h.provider.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
	}
	if state == nil {
		// Session without a subscription; just remember the customer id.
		if ev.CustomerID != "" {
			return h.store.SetStripeCustomer(ctx, ev.OrgID, ev.CustomerID)
		}
		return nil
	}
	sub := &models.Subscription{OrganizationID: ev.OrgID, StripeCustomerID: ev.CustomerID}
	h.applyState(sub, state)
	return h.store.Upsert(ctx, sub)
}

func (h *WebhookHandler) subscriptionChanged(ctx context.Context, ev *Event, forceStatus string) error {
	if ev.Subscription == nil {
		return nil
	}
	orgID, err := h.store.OrganizationIDByStripeCustomer(ctx, ev.CustomerID)
	if err != nil {
		return err
	}
	if orgID == uuid.Nil {
		h.logger.Warn("webhook for unknown customer", zap.String("customer_id", ev.CustomerID), zap.String("event_id", ev.ID))
		return nil
	}
	sub := &models.Subscription{OrganizationID: orgID, StripeCustomerID: ev.CustomerID}
	h.applyState(sub, ev.Subscription)
	if forceStatus != "" {
		sub.Status = forceStatus
	}
	return h.store.Upsert(ctx, sub)
}

// applyState copies processor state onto the record. An unrecognized price
// id keeps the stored plan; Upsert treats empty plan/status as no change.
func (h *WebhookHandler) applyState(sub *models.Subscription, state *SubscriptionState) {
	if state == nil {
		return
	}
	sub.Status = state.Status
	sub.CurrentPeriodStart = state.PeriodStart
	sub.CurrentPeriodEnd = state.PeriodEnd
	sub.StripeSubscriptionID = state.ID
	sub.StripePriceID = state.PriceID
	sub.StripeProductID = state.ProductID
	if state.CustomerID != "" {
		sub.StripeCustomerID = state.CustomerID
	}
	if plan, ok := h.prices.PlanForPrice(state.PriceID); ok {
		sub.Plan = plan
	}
}
