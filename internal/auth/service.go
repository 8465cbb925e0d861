package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/utils"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNoMembership         = errors.New("user has no membership")
	ErrInvalidRefresh       = errors.New("refresh token invalid")
	ErrRefreshNotRecognized = errors.New("refresh token not recognized")
)

// refreshScanLimit bounds how many stored refresh-token records are checked
// against a presented token, newest first.
const refreshScanLimit = 25

// Store is the persistence surface the session lifecycle needs. Lookups
// return (nil, nil) when the row does not exist.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)

	// CreateAccount creates user, organization, OWNER membership and trial
	// subscription in one transaction. All-or-nothing: a failure leaves no
	// partial records. Returns ErrEmailTaken on an email uniqueness conflict.
	CreateAccount(ctx context.Context, email, passwordHash, orgName string) (*Account, error)

	CreateRefreshToken(ctx context.Context, rec *models.RefreshToken) error
	// ListActiveRefreshTokens returns non-revoked, non-expired records for
	// the user, newest first, at most limit.
	ListActiveRefreshTokens(ctx context.Context, userID uuid.UUID, limit int) ([]models.RefreshToken, error)
	// RotateRefreshToken revokes the matched record and inserts the new one
	// in a single transaction, closing the replay window on the old token.
	RotateRefreshToken(ctx context.Context, revokeID uuid.UUID, rec *models.RefreshToken) error
}

// Account is the result of a signup: the four records created together.
type Account struct {
	User         models.User
	Organization models.Organization
	Membership   models.Membership
	Subscription models.Subscription
}

// TokenPair is one access token and its companion refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service orchestrates signup, login and refresh-rotation flows.
type Service struct {
	store        Store
	tokens       *TokenService
	passwordCost int
	tokenCost    int
	dummyHash    string
	logger       *zap.Logger
}

// NewService creates the session lifecycle service.
func NewService(store Store, tokens *TokenService, passwordCost, tokenCost int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Hashed once so login can burn comparable time when the email is
	// unknown, keeping the two invalid_credentials paths indistinguishable.
	dummy, _ := utils.HashPassword(uuid.New().String(), passwordCost)
	return &Service{
		store:        store,
		tokens:       tokens,
		passwordCost: passwordCost,
		tokenCost:    tokenCost,
		dummyHash:    dummy,
		logger:       logger,
	}
}

// Signup creates a user with a fresh organization, OWNER membership and
// trial subscription, then issues a token pair for the new membership.
func (s *Service) Signup(ctx context.Context, email, password, orgName string) (*Account, TokenPair, error) {
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if existing != nil {
		return nil, TokenPair{}, ErrEmailTaken
	}

	passwordHash, err := utils.HashPassword(password, s.passwordCost)
	if err != nil {
		return nil, TokenPair{}, err
	}

	account, err := s.store.CreateAccount(ctx, email, passwordHash, orgName)
	if err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issue(ctx, &account.User, &account.Membership)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return account, pair, nil
}

// Login verifies credentials and issues a token pair for one membership.
// Unknown email and wrong password return the same ErrInvalidCredentials.
// If orgID is set and the user is a member there, that membership is used;
// otherwise the user's first membership (stored order). A user with no
// memberships cannot log in.
func (s *Service) Login(ctx context.Context, email, password string, orgID *uuid.UUID) (*models.User, *models.Membership, TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	if user == nil {
		utils.CheckPassword(password, s.dummyHash)
		return nil, nil, TokenPair{}, ErrInvalidCredentials
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, nil, TokenPair{}, ErrInvalidCredentials
	}

	memberships, err := s.store.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}

	var membership *models.Membership
	if orgID != nil {
		for i := range memberships {
			if memberships[i].OrganizationID == *orgID {
				membership = &memberships[i]
				break
			}
		}
	}
	if membership == nil && len(memberships) > 0 {
		membership = &memberships[0]
	}
	if membership == nil {
		return nil, nil, TokenPair{}, ErrNoMembership
	}

	pair, err := s.issue(ctx, user, membership)
	if err != nil {
		return nil, nil, TokenPair{}, err
	}
	return user, membership, pair, nil
}

// Refresh validates a presented refresh token, matches it against stored
// hashes (newest first, bounded scan), re-resolves the membership and
// rotates: the matched record is revoked in the same transaction that
// persists the replacement, so a replayed old token stops working.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		return TokenPair{}, ErrInvalidRefresh
	}

	stored, err := s.store.ListActiveRefreshTokens(ctx, claims.UserID, refreshScanLimit)
	if err != nil {
		return TokenPair{}, err
	}
	var matched *models.RefreshToken
	for i := range stored {
		if utils.CheckToken(presented, stored[i].TokenHash) {
			matched = &stored[i]
			break
		}
	}
	if matched == nil {
		return TokenPair{}, ErrRefreshNotRecognized
	}

	// Membership loss after issuance acts as revocation.
	membership, err := s.store.GetMembership(ctx, claims.UserID, claims.OrgID)
	if err != nil {
		return TokenPair{}, err
	}
	if membership == nil {
		return TokenPair{}, ErrNoMembership
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	if user == nil {
		return TokenPair{}, ErrRefreshNotRecognized
	}

	access, err := s.tokens.SignAccess(user.ID, user.Email, membership.OrganizationID, membership.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.SignRefresh(user.ID, membership.OrganizationID)
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := s.newRecord(user.ID, refresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RotateRefreshToken(ctx, matched.ID, rec); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// issue mints an access+refresh pair bound to the membership's tenant
// context and persists the refresh-token record.
func (s *Service) issue(ctx context.Context, user *models.User, membership *models.Membership) (TokenPair, error) {
	access, err := s.tokens.SignAccess(user.ID, user.Email, membership.OrganizationID, membership.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.SignRefresh(user.ID, membership.OrganizationID)
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := s.newRecord(user.ID, refresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.CreateRefreshToken(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) newRecord(userID uuid.UUID, refresh string) (*models.RefreshToken, error) {
	hash, err := utils.HashToken(refresh, s.tokenCost)
	if err != nil {
		return nil, err
	}
	return &models.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	}, nil
}
