package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexentia/backend/internal/models"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if none exists.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListMemberships returns the user's memberships in stored (creation) order.
func (r *Repository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	const q = `SELECT id, user_id, organization_id, role, created_at
		FROM memberships WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// GetMembership returns the user's membership in the org, or nil.
func (r *Repository) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	const q = `SELECT id, user_id, organization_id, role, created_at
		FROM memberships WHERE user_id = $1 AND organization_id = $2`
	var m models.Membership
	err := r.pool.QueryRow(ctx, q, userID, orgID).Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateAccount creates user, organization, OWNER membership and a 14-day
// CLASSIC trial subscription in one transaction.
func (r *Repository) CreateAccount(ctx context.Context, email, passwordHash, orgName string) (*Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var a Account
	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, email, password_hash, created_at, updated_at`,
		email, passwordHash,
	).Scan(&a.User.ID, &a.User.Email, &a.User.PasswordHash, &a.User.CreatedAt, &a.User.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO organizations (name) VALUES ($1)
		RETURNING id, name, created_at, updated_at`,
		orgName,
	).Scan(&a.Organization.ID, &a.Organization.Name, &a.Organization.CreatedAt, &a.Organization.UpdatedAt)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO memberships (user_id, organization_id, role) VALUES ($1, $2, $3)
		RETURNING id, user_id, organization_id, role, created_at`,
		a.User.ID, a.Organization.ID, models.RoleOwner,
	).Scan(&a.Membership.ID, &a.Membership.UserID, &a.Membership.OrganizationID, &a.Membership.Role, &a.Membership.CreatedAt)
	if err != nil {
		return nil, err
	}

	trialEnd := time.Now().Add(models.TrialDays * 24 * time.Hour)
	err = tx.QueryRow(ctx,
		`INSERT INTO subscriptions (organization_id, plan, status, current_period_start, current_period_end)
		VALUES ($1, $2, 'trialing', NOW(), $3)
		RETURNING id, organization_id, plan, status, current_period_start, current_period_end, created_at, updated_at`,
		a.Organization.ID, models.PlanClassic, trialEnd,
	).Scan(&a.Subscription.ID, &a.Subscription.OrganizationID, &a.Subscription.Plan, &a.Subscription.Status,
		&a.Subscription.CurrentPeriodStart, &a.Subscription.CurrentPeriodEnd, &a.Subscription.CreatedAt, &a.Subscription.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateRefreshToken inserts a refresh-token record.
func (r *Repository) CreateRefreshToken(ctx context.Context, rec *models.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rec.UserID, rec.TokenHash, rec.ExpiresAt).
		Scan(&rec.ID, &rec.CreatedAt)
}

// ListActiveRefreshTokens returns non-revoked, non-expired records for the
// user, newest first, at most limit.
func (r *Repository) ListActiveRefreshTokens(ctx context.Context, userID uuid.UUID, limit int) ([]models.RefreshToken, error) {
	const q = `SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RefreshToken
	for rows.Next() {
		var t models.RefreshToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// RotateRefreshToken revokes the matched record and inserts its replacement
// in one transaction.
func (r *Repository) RotateRefreshToken(ctx context.Context, revokeID uuid.UUID, rec *models.RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		revokeID,
	); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		rec.UserID, rec.TokenHash, rec.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
