package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testPrices = Prices{Classic: "price_classic", Pro: "price_pro", Enterprise: "price_ent"}

type fakeSubStore struct {
	subs              map[uuid.UUID]*models.Subscription
	byStripeCustomer  map[string]uuid.UUID
	upserted          []*models.Subscription
	setCustomerCalls  int
	getErr, upsertErr error
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{
		subs:             make(map[uuid.UUID]*models.Subscription),
		byStripeCustomer: make(map[string]uuid.UUID),
	}
}

func (f *fakeSubStore) addSub(orgID uuid.UUID, stripeCustomerID string) *models.Subscription {
	s := &models.Subscription{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		Plan:             models.PlanClassic,
		Status:           "trialing",
		StripeCustomerID: stripeCustomerID,
	}
	f.subs[orgID] = s
	if stripeCustomerID != "" {
		f.byStripeCustomer[stripeCustomerID] = orgID
	}
	return s
}

func (f *fakeSubStore) GetByOrganization(_ context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	return f.subs[orgID], f.getErr
}

func (f *fakeSubStore) SetStripeCustomer(_ context.Context, orgID uuid.UUID, customerID string) error {
	f.setCustomerCalls++
	if s := f.subs[orgID]; s != nil {
		s.StripeCustomerID = customerID
	}
	f.byStripeCustomer[customerID] = orgID
	return nil
}

func (f *fakeSubStore) Upsert(_ context.Context, s *models.Subscription) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, s)
	return nil
}

func (f *fakeSubStore) OrganizationIDByStripeCustomer(_ context.Context, customerID string) (uuid.UUID, error) {
	return f.byStripeCustomer[customerID], nil
}

type fakeOrgSource struct{ name string }

func (f fakeOrgSource) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return &models.Organization{ID: id, Name: f.name}, nil
}

type fakeProvider struct {
	customerID      string
	checkoutURL     string
	portalURL       string
	event           *Event
	parseErr        error
	subscription    *SubscriptionState
	ensureCalls     int
	lastCheckout    CheckoutParams
	lastPortalRetrn string
}

func (f *fakeProvider) EnsureCustomer(context.Context, uuid.UUID, string, string) (string, error) {
	f.ensureCalls++
	if f.customerID == "" {
		return "", errors.New("no customer configured")
	}
	return f.customerID, nil
}

func (f *fakeProvider) CheckoutURL(_ context.Context, p CheckoutParams) (string, error) {
	f.lastCheckout = p
	return f.checkoutURL, nil
}

func (f *fakeProvider) PortalURL(_ context.Context, _, returnURL string) (string, error) {
	f.lastPortalRetrn = returnURL
	return f.portalURL, nil
}

func (f *fakeProvider) ParseWebhook([]byte, string) (*Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeProvider) GetSubscription(context.Context, string) (*SubscriptionState, error) {
	if f.subscription == nil {
		return nil, errors.New("no subscription configured")
	}
	return f.subscription, nil
}

type fakeDeduper struct{ seen map[string]bool }

func (f *fakeDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

type nopPublisher struct{}

func (nopPublisher) EnqueueAuditWrite(context.Context, queue.AuditWritePayload) error { return nil }

func billingRouter(h *Handler, orgID uuid.UUID) *gin.Engine {
	r := gin.New()
	authed := func(c *gin.Context) {
		authctx.Set(c, authctx.AuthContext{
			User: authctx.Identity{UserID: uuid.New(), Email: "owner@example.com"},
			Org:  authctx.OrgContext{OrganizationID: orgID, Role: models.RoleOwner},
		})
	}
	r.POST("/billing/checkout", authed, h.Checkout)
	r.POST("/billing/portal", authed, h.Portal)
	return r
}

func postBody(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newBillingHandler(store *fakeSubStore, provider *fakeProvider) *Handler {
	recorder := audit.NewRecorder(nopPublisher{}, nil, nil)
	return NewHandler(store, fakeOrgSource{name: "Acme"}, provider, testPrices, "https://app.example.com", recorder, nil)
}

func TestCheckout_MissingPriceID(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "")
	router := billingRouter(newBillingHandler(store, &fakeProvider{}), orgID)

	w := postBody(router, "/billing/checkout", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte("missing_priceId")) {
		t.Errorf("body = %s, want missing_priceId", body)
	}
}

func TestCheckout_UnknownPriceID(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "")
	router := billingRouter(newBillingHandler(store, &fakeProvider{}), orgID)

	w := postBody(router, "/billing/checkout", gin.H{"priceId": "price_unknown"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte("invalid_plan")) {
		t.Errorf("body = %s, want invalid_plan", body)
	}
}

func TestCheckout_SubscriptionMissing(t *testing.T) {
	router := billingRouter(newBillingHandler(newFakeSubStore(), &fakeProvider{}), uuid.New())

	w := postBody(router, "/billing/checkout", gin.H{"priceId": "price_pro"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCheckout_CreatesCustomerOnFirstUse(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "")
	provider := &fakeProvider{customerID: "cus_123", checkoutURL: "https://checkout.example/s1"}
	router := billingRouter(newBillingHandler(store, provider), orgID)

	w := postBody(router, "/billing/checkout", gin.H{"priceId": "price_pro"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if provider.ensureCalls != 1 {
		t.Errorf("EnsureCustomer calls = %d, want 1", provider.ensureCalls)
	}
	if store.setCustomerCalls != 1 {
		t.Errorf("SetStripeCustomer calls = %d, want 1", store.setCustomerCalls)
	}
	if provider.lastCheckout.PriceID != "price_pro" || provider.lastCheckout.OrgID != orgID {
		t.Errorf("checkout params = %+v", provider.lastCheckout)
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte("https://checkout.example/s1")) {
		t.Errorf("body = %s, want checkout url", body)
	}
}

func TestCheckout_ReusesExistingCustomer(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "cus_existing")
	provider := &fakeProvider{checkoutURL: "https://checkout.example/s2"}
	router := billingRouter(newBillingHandler(store, provider), orgID)

	w := postBody(router, "/billing/checkout", gin.H{"priceId": "price_classic"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if provider.ensureCalls != 0 {
		t.Errorf("EnsureCustomer calls = %d, want 0", provider.ensureCalls)
	}
	if provider.lastCheckout.CustomerID != "cus_existing" {
		t.Errorf("CustomerID = %q, want %q", provider.lastCheckout.CustomerID, "cus_existing")
	}
}

func TestPortal_MissingStripeCustomer(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "")
	router := billingRouter(newBillingHandler(store, &fakeProvider{}), orgID)

	w := postBody(router, "/billing/portal", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte("missing_stripe_customer")) {
		t.Errorf("body = %s, want missing_stripe_customer", body)
	}
}

func TestPortal_ReturnsURL(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "cus_existing")
	provider := &fakeProvider{portalURL: "https://portal.example/p1"}
	router := billingRouter(newBillingHandler(store, provider), orgID)

	w := postBody(router, "/billing/portal", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if provider.lastPortalRetrn != "https://app.example.com/settings/billing" {
		t.Errorf("return url = %q", provider.lastPortalRetrn)
	}
}

func webhookRouter(h *WebhookHandler) *gin.Engine {
	r := gin.New()
	r.POST("/webhooks/stripe", h.Handle)
	return r
}

func postRaw(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_BadSignature(t *testing.T) {
	provider := &fakeProvider{parseErr: errors.New("signature mismatch")}
	h := NewWebhookHandler(provider, newFakeSubStore(), &fakeDeduper{}, testPrices, nil)

	w := postRaw(webhookRouter(h), "/webhooks/stripe")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestWebhook_DuplicateEventSkipsProcessing(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "cus_123")
	provider := &fakeProvider{event: &Event{
		ID:         "evt_1",
		Type:       "customer.subscription.updated",
		CustomerID: "cus_123",
		Subscription: &SubscriptionState{
			ID: "sub_1", CustomerID: "cus_123", PriceID: "price_pro", Status: "active",
			PeriodStart: time.Now(), PeriodEnd: time.Now().AddDate(0, 1, 0),
		},
	}}
	router := webhookRouter(NewWebhookHandler(provider, store, &fakeDeduper{}, testPrices, nil))

	if w := postRaw(router, "/webhooks/stripe"); w.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", w.Code)
	}
	if w := postRaw(router, "/webhooks/stripe"); w.Code != http.StatusOK {
		t.Fatalf("second delivery status = %d", w.Code)
	}
	if len(store.upserted) != 1 {
		t.Errorf("upserts = %d, want 1 (duplicate processed)", len(store.upserted))
	}
}

func TestWebhook_CheckoutCompletedMapsPlan(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "")
	provider := &fakeProvider{
		event: &Event{
			ID:             "evt_2",
			Type:           "checkout.session.completed",
			OrgID:          orgID,
			CustomerID:     "cus_456",
			SubscriptionID: "sub_2",
		},
		subscription: &SubscriptionState{
			ID: "sub_2", CustomerID: "cus_456", PriceID: "price_ent", ProductID: "prod_1",
			Status: "active", PeriodStart: time.Now(), PeriodEnd: time.Now().AddDate(0, 1, 0),
		},
	}
	router := webhookRouter(NewWebhookHandler(provider, store, &fakeDeduper{}, testPrices, nil))

	w := postRaw(router, "/webhooks/stripe")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if len(store.upserted) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserted))
	}
	got := store.upserted[0]
	if got.OrganizationID != orgID {
		t.Errorf("OrganizationID = %v, want %v", got.OrganizationID, orgID)
	}
	if got.Plan != models.PlanEnterprise {
		t.Errorf("Plan = %v, want %v", got.Plan, models.PlanEnterprise)
	}
	if got.Status != "active" || got.StripeSubscriptionID != "sub_2" {
		t.Errorf("synced record = %+v", got)
	}
}

func TestWebhook_SubscriptionDeletedCancels(t *testing.T) {
	orgID := uuid.New()
	store := newFakeSubStore()
	store.addSub(orgID, "cus_123")
	provider := &fakeProvider{event: &Event{
		ID:         "evt_3",
		Type:       "customer.subscription.deleted",
		CustomerID: "cus_123",
		Subscription: &SubscriptionState{
			ID: "sub_1", CustomerID: "cus_123", Status: "canceled",
			PeriodStart: time.Now(), PeriodEnd: time.Now(),
		},
	}}
	router := webhookRouter(NewWebhookHandler(provider, store, &fakeDeduper{}, testPrices, nil))

	w := postRaw(router, "/webhooks/stripe")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if len(store.upserted) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserted))
	}
	if store.upserted[0].Status != "canceled" {
		t.Errorf("Status = %q, want %q", store.upserted[0].Status, "canceled")
	}
}

func TestWebhook_UnknownCustomerIgnored(t *testing.T) {
	store := newFakeSubStore()
	provider := &fakeProvider{event: &Event{
		ID:         "evt_4",
		Type:       "customer.subscription.updated",
		CustomerID: "cus_unknown",
		Subscription: &SubscriptionState{
			ID: "sub_9", CustomerID: "cus_unknown", Status: "active",
			PeriodStart: time.Now(), PeriodEnd: time.Now(),
		},
	}}
	router := webhookRouter(NewWebhookHandler(provider, store, &fakeDeduper{}, testPrices, nil))

	w := postRaw(router, "/webhooks/stripe")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(store.upserted) != 0 {
		t.Errorf("upserts = %d, want 0 for unknown customer", len(store.upserted))
	}
}
