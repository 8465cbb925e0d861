package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/utils"
)

type fakeStore struct {
	users       map[uuid.UUID]*models.User
	byEmail     map[string]*models.User
	memberships []models.Membership
	tokens      []*models.RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (f *fakeStore) addUser(email, password string) *models.User {
	hash, _ := utils.HashPassword(password, bcrypt.MinCost)
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: hash}
	f.users[u.ID] = u
	f.byEmail[email] = u
	return u
}

func (f *fakeStore) addMembership(userID, orgID uuid.UUID, role models.Role) {
	f.memberships = append(f.memberships, models.Membership{
		ID: uuid.New(), UserID: userID, OrganizationID: orgID, Role: role,
	})
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) ListMemberships(_ context.Context, userID uuid.UUID) ([]models.Membership, error) {
	var out []models.Membership
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMembership(_ context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	for i := range f.memberships {
		if f.memberships[i].UserID == userID && f.memberships[i].OrganizationID == orgID {
			m := f.memberships[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, email, passwordHash, orgName string) (*Account, error) {
	if f.byEmail[email] != nil {
		return nil, ErrEmailTaken
	}
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: passwordHash}
	f.users[u.ID] = u
	f.byEmail[email] = u

	org := models.Organization{ID: uuid.New(), Name: orgName}
	membership := models.Membership{ID: uuid.New(), UserID: u.ID, OrganizationID: org.ID, Role: models.RoleOwner}
	f.memberships = append(f.memberships, membership)

	sub := models.Subscription{
		ID:               uuid.New(),
		OrganizationID:   org.ID,
		Plan:             models.PlanClassic,
		Status:           "trialing",
		CurrentPeriodEnd: time.Now().AddDate(0, 0, models.TrialDays),
	}
	return &Account{User: *u, Organization: org, Membership: membership, Subscription: sub}, nil
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, rec *models.RefreshToken) error {
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	f.tokens = append(f.tokens, rec)
	return nil
}

func (f *fakeStore) ListActiveRefreshTokens(_ context.Context, userID uuid.UUID, limit int) ([]models.RefreshToken, error) {
	var out []models.RefreshToken
	// Newest first: stored in insertion order, walk backwards.
	for i := len(f.tokens) - 1; i >= 0 && len(out) < limit; i-- {
		rec := f.tokens[i]
		if rec.UserID == userID && rec.Active(time.Now()) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, revokeID uuid.UUID, rec *models.RefreshToken) error {
	for _, stored := range f.tokens {
		if stored.ID == revokeID {
			now := time.Now()
			stored.RevokedAt = &now
		}
	}
	return f.CreateRefreshToken(context.Background(), rec)
}

func newTestService(store Store) *Service {
	return NewService(store, newTestTokenService(), bcrypt.MinCost, bcrypt.MinCost, nil)
}

func TestSignup_CreatesAccountAndIssuesTokens(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	account, pair, err := svc.Signup(context.Background(), "founder@example.com", "password123", "Acme")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if account.Membership.Role != models.RoleOwner {
		t.Errorf("Role = %v, want %v", account.Membership.Role, models.RoleOwner)
	}
	if account.Subscription.Plan != models.PlanClassic || account.Subscription.Status != "trialing" {
		t.Errorf("Subscription = %v/%v, want CLASSIC/trialing", account.Subscription.Plan, account.Subscription.Status)
	}

	claims, err := svc.tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.OrgID != account.Organization.ID {
		t.Errorf("access OrgID = %v, want %v", claims.OrgID, account.Organization.ID)
	}
	if len(store.tokens) != 1 {
		t.Errorf("stored refresh records = %d, want 1", len(store.tokens))
	}
	if store.tokens[0].TokenHash == pair.RefreshToken {
		t.Error("refresh token stored in plaintext")
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	store := newFakeStore()
	store.addUser("taken@example.com", "password123")
	svc := newTestService(store)

	_, _, err := svc.Signup(context.Background(), "taken@example.com", "password123", "Acme")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Signup() error = %v, want ErrEmailTaken", err)
	}
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("known@example.com", "password123")
	store.addMembership(u.ID, uuid.New(), models.RoleOwner)
	svc := newTestService(store)
	ctx := context.Background()

	_, _, _, errUnknown := svc.Login(ctx, "nobody@example.com", "password123", nil)
	_, _, _, errWrong := svc.Login(ctx, "known@example.com", "wrong-password", nil)

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", errWrong)
	}
}

func TestLogin_SelectsRequestedOrg(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("multi@example.com", "password123")
	firstOrg := uuid.New()
	secondOrg := uuid.New()
	store.addMembership(u.ID, firstOrg, models.RoleOwner)
	store.addMembership(u.ID, secondOrg, models.RoleViewer)
	svc := newTestService(store)

	_, membership, pair, err := svc.Login(context.Background(), "multi@example.com", "password123", &secondOrg)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if membership.OrganizationID != secondOrg {
		t.Errorf("OrganizationID = %v, want %v", membership.OrganizationID, secondOrg)
	}
	claims, err := svc.tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.Role != models.RoleViewer {
		t.Errorf("token Role = %v, want %v", claims.Role, models.RoleViewer)
	}
}

func TestLogin_FallsBackToFirstMembership(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("multi@example.com", "password123")
	firstOrg := uuid.New()
	store.addMembership(u.ID, firstOrg, models.RoleAdmin)
	store.addMembership(u.ID, uuid.New(), models.RoleViewer)
	svc := newTestService(store)

	otherOrg := uuid.New() // not a member there
	_, membership, _, err := svc.Login(context.Background(), "multi@example.com", "password123", &otherOrg)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if membership.OrganizationID != firstOrg {
		t.Errorf("OrganizationID = %v, want first membership %v", membership.OrganizationID, firstOrg)
	}
}

func TestLogin_NoMembership(t *testing.T) {
	store := newFakeStore()
	store.addUser("orphan@example.com", "password123")
	svc := newTestService(store)

	_, _, _, err := svc.Login(context.Background(), "orphan@example.com", "password123", nil)
	if !errors.Is(err, ErrNoMembership) {
		t.Errorf("Login() error = %v, want ErrNoMembership", err)
	}
}

func TestRefresh_RotatesAndRevokesOld(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("user@example.com", "password123")
	orgID := uuid.New()
	store.addMembership(u.ID, orgID, models.RoleOwner)
	svc := newTestService(store)
	ctx := context.Background()

	_, _, pair, err := svc.Login(ctx, "user@example.com", "password123", nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("rotated refresh token equals the presented one")
	}

	// Replaying the consumed token must fail.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshNotRecognized) {
		t.Errorf("replay error = %v, want ErrRefreshNotRecognized", err)
	}

	// The rotated token keeps working.
	if _, err := svc.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Errorf("Refresh(rotated) error = %v", err)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidRefresh) {
		t.Errorf("Refresh() error = %v, want ErrInvalidRefresh", err)
	}
}

func TestRefresh_ValidJWTWithoutStoredRecord(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("user@example.com", "password123")
	orgID := uuid.New()
	store.addMembership(u.ID, orgID, models.RoleOwner)
	svc := newTestService(store)

	// Well-signed token that was never persisted server-side.
	token, err := svc.tokens.SignRefresh(u.ID, orgID)
	if err != nil {
		t.Fatalf("SignRefresh() error = %v", err)
	}
	_, err = svc.Refresh(context.Background(), token)
	if !errors.Is(err, ErrRefreshNotRecognized) {
		t.Errorf("Refresh() error = %v, want ErrRefreshNotRecognized", err)
	}
}

func TestRefresh_MembershipRevoked(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("user@example.com", "password123")
	orgID := uuid.New()
	store.addMembership(u.ID, orgID, models.RoleOwner)
	svc := newTestService(store)
	ctx := context.Background()

	_, _, pair, err := svc.Login(ctx, "user@example.com", "password123", nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	store.memberships = nil
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrNoMembership) {
		t.Errorf("Refresh() error = %v, want ErrNoMembership", err)
	}
}
