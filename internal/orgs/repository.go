package orgs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexentia/backend/internal/models"
)

// Repository handles organization reads for the org surface.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an orgs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an organization by ID, or nil if none exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, created_at, updated_at FROM organizations WHERE id = $1`
	var org models.Organization
	err := r.pool.QueryRow(ctx, q, id).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// MembershipInfo is one membership joined with its organization's name.
type MembershipInfo struct {
	OrganizationID   uuid.UUID   `json:"organizationId"`
	OrganizationName string      `json:"organizationName"`
	Role             models.Role `json:"role"`
}

// ListMembershipsForUser returns the user's memberships with organization
// names, in stored order.
func (r *Repository) ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]MembershipInfo, error) {
	const q = `SELECT m.organization_id, o.name, m.role
		FROM memberships m
		INNER JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY m.created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []MembershipInfo
	for rows.Next() {
		var m MembershipInfo
		if err := rows.Scan(&m.OrganizationID, &m.OrganizationName, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
