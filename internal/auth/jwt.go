package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims are the claims embedded in a short-lived access token. The
// tenant context (org + role) is baked in so protected requests need no
// database lookup; a role change only takes effect once the token expires.
type AccessClaims struct {
	UserID uuid.UUID   `json:"user_id"`
	Email  string      `json:"email"`
	OrgID  uuid.UUID   `json:"org_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims embedded in a refresh token. Only identity
// and org; the role is re-resolved from the membership at refresh time.
type RefreshClaims struct {
	UserID uuid.UUID `json:"user_id"`
	OrgID  uuid.UUID `json:"org_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens. The two token
// kinds use independent secrets and TTLs: a leaked access token stays
// short-lived and either secret can be rotated without touching the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a token service with distinct access/refresh
// secrets and validity windows.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// RefreshTTL returns the refresh token validity window.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// SignAccess creates an access token bound to the user and one membership's
// tenant context.
func (s *TokenService) SignAccess(userID uuid.UUID, email string, orgID uuid.UUID, role models.Role) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		OrgID:  orgID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.accessSecret)
}

// SignRefresh creates a refresh token for the user scoped to one org. Each
// call embeds a fresh jti, so a rotated token is never equal to the one it
// replaces.
func (s *TokenService) SignRefresh(userID, orgID uuid.UUID) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID: userID,
		OrgID:  orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.refreshSecret)
}

// VerifyAccess parses and validates an access token, returning claims or
// ErrInvalidToken on bad signature, malformed structure, or expiry.
func (s *TokenService) VerifyAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, s.keyFunc(s.accessSecret))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token against the refresh
// secret. Access tokens never verify here and vice versa.
func (s *TokenService) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, s.keyFunc(s.refreshSecret))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}
}
