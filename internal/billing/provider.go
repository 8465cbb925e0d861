package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	OrgID      uuid.UUID
	SuccessURL string
	CancelURL  string
}

// SubscriptionState is the processor-side view of a subscription.
type SubscriptionState struct {
	ID          string
	CustomerID  string
	PriceID     string
	ProductID   string
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Event is a verified, normalized webhook event. OrgID is only set for
// checkout completions (carried in the session's client reference);
// subscription events are resolved to an org via the stored customer id.
type Event struct {
	ID             string
	Type           string
	OrgID          uuid.UUID
	CustomerID     string
	SubscriptionID string
	Subscription   *SubscriptionState
}

// Provider abstracts the payment processor.
type Provider interface {
	// EnsureCustomer creates a processor customer for the org and returns its id.
	EnsureCustomer(ctx context.Context, orgID uuid.UUID, email, orgName string) (string, error)
	// CheckoutURL creates a hosted checkout session and returns its URL.
	CheckoutURL(ctx context.Context, p CheckoutParams) (string, error)
	// PortalURL creates a billing portal session for an existing customer.
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	// ParseWebhook verifies the signature and normalizes the event payload.
	ParseWebhook(payload []byte, signature string) (*Event, error)
	// GetSubscription fetches current subscription state from the processor.
	GetSubscription(ctx context.Context, id string) (*SubscriptionState, error)
}
