package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexentia/backend/internal/models"
)

// Repository handles subscription persistence. One subscription per
// organization, created at signup and synced from billing webhooks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a subscriptions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subscriptionColumns = `id, organization_id, plan, status, current_period_start, current_period_end,
	COALESCE(stripe_customer_id,''), COALESCE(stripe_subscription_id,''), COALESCE(stripe_price_id,''), COALESCE(stripe_product_id,''),
	created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Plan, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.StripeCustomerID, &s.StripeSubscriptionID, &s.StripePriceID, &s.StripeProductID,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByOrganization returns the org's subscription, or nil.
func (r *Repository) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE organization_id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SetPlan updates the org's plan and marks the subscription active.
func (r *Repository) SetPlan(ctx context.Context, orgID uuid.UUID, plan models.Plan) (*models.Subscription, error) {
	const q = `UPDATE subscriptions SET plan = $2, status = 'active', updated_at = NOW()
		WHERE organization_id = $1
		RETURNING ` + subscriptionColumns
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, orgID, plan))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OrganizationIDByStripeCustomer resolves the org owning a processor
// customer id. Returns uuid.Nil when no subscription references it.
func (r *Repository) OrganizationIDByStripeCustomer(ctx context.Context, customerID string) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT organization_id FROM subscriptions WHERE stripe_customer_id = $1`,
		customerID).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return orgID, nil
}

// SetStripeCustomer stores the payment processor's customer id for the org.
func (r *Repository) SetStripeCustomer(ctx context.Context, orgID uuid.UUID, customerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET stripe_customer_id = $2, updated_at = NOW() WHERE organization_id = $1`,
		orgID, customerID)
	return err
}

// Upsert creates or replaces the org's subscription from processor state.
// Empty plan/status fields keep their stored values.
func (r *Repository) Upsert(ctx context.Context, s *models.Subscription) error {
	const q = `INSERT INTO subscriptions
		(organization_id, plan, status, current_period_start, current_period_end,
		 stripe_customer_id, stripe_subscription_id, stripe_price_id, stripe_product_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''))
		ON CONFLICT (organization_id) DO UPDATE SET
			plan = CASE WHEN EXCLUDED.plan = '' THEN subscriptions.plan ELSE EXCLUDED.plan END,
			status = CASE WHEN EXCLUDED.status = '' THEN subscriptions.status ELSE EXCLUDED.status END,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscriptions.stripe_customer_id),
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			stripe_price_id = COALESCE(EXCLUDED.stripe_price_id, subscriptions.stripe_price_id),
			stripe_product_id = COALESCE(EXCLUDED.stripe_product_id, subscriptions.stripe_product_id),
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q,
		s.OrganizationID, s.Plan, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.StripeCustomerID, s.StripeSubscriptionID, s.StripePriceID, s.StripeProductID)
	return err
}
