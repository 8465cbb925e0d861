package customers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexentia/backend/internal/models"
)

// Repository handles tenant-scoped customer persistence. Every query is
// filtered by organization; a customer outside the caller's org behaves as
// if it does not exist.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a customers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, organization_id, name, COALESCE(email,''), COALESCE(phone,''), tags, created_at, updated_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var cu models.Customer
	err := row.Scan(&cu.ID, &cu.OrganizationID, &cu.Name, &cu.Email, &cu.Phone, &cu.Tags, &cu.CreatedAt, &cu.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if cu.Tags == nil {
		cu.Tags = []string{}
	}
	return &cu, nil
}

// List returns the org's customers, newest first, optionally filtered by a
// case-insensitive name fragment.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, nameQuery string) ([]models.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE organization_id = $1`
	args := []interface{}{orgID}
	if nameQuery != "" {
		q += ` AND name ILIKE '%' || $2 || '%'`
		args = append(args, nameQuery)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Customer
	for rows.Next() {
		cu, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *cu)
	}
	return list, rows.Err()
}

// Get returns one customer within the org, or nil.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Customer, error) {
	const q = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND organization_id = $2`
	cu, err := scanCustomer(r.pool.QueryRow(ctx, q, id, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cu, nil
}

// Create inserts a customer into the org.
func (r *Repository) Create(ctx context.Context, cu *models.Customer) error {
	const q = `INSERT INTO customers (organization_id, name, email, phone, tags)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5)
		RETURNING id, created_at, updated_at`
	if cu.Tags == nil {
		cu.Tags = []string{}
	}
	return r.pool.QueryRow(ctx, q, cu.OrganizationID, cu.Name, cu.Email, cu.Phone, cu.Tags).
		Scan(&cu.ID, &cu.CreatedAt, &cu.UpdatedAt)
}

// Update replaces the mutable fields of a customer within the org.
func (r *Repository) Update(ctx context.Context, cu *models.Customer) error {
	const q = `UPDATE customers
		SET name = $3, email = NULLIF($4,''), phone = NULLIF($5,''), tags = $6, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING updated_at`
	if cu.Tags == nil {
		cu.Tags = []string{}
	}
	return r.pool.QueryRow(ctx, q, cu.ID, cu.OrganizationID, cu.Name, cu.Email, cu.Phone, cu.Tags).
		Scan(&cu.UpdatedAt)
}

// Delete removes a customer within the org.
func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1 AND organization_id = $2`, id, orgID)
	return err
}

// HasInvoices reports whether any invoice in the org references the customer.
func (r *Repository) HasInvoices(ctx context.Context, orgID, id uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM invoices WHERE organization_id = $1 AND customer_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, orgID, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
