package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexentia/backend/internal/models"
)

// ErrNumberConflict reports a duplicate invoice number within the org.
var ErrNumberConflict = errors.New("invoice number conflict")

// Repository handles tenant-scoped invoice persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invoices repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, organization_id, customer_id, number, date, due_date, total_cents, currency, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.CustomerID, &inv.Number, &inv.Date, &inv.DueDate,
		&inv.TotalCents, &inv.Currency, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// List returns the org's invoices, date descending, joined with customer
// names. A missing customer name renders as an em dash placeholder.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]models.InvoiceWithCustomer, error) {
	const q = `SELECT i.id, i.organization_id, i.customer_id, i.number, i.date, i.due_date,
		i.total_cents, i.currency, i.status, i.created_at, i.updated_at,
		COALESCE(c.name, '—')
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id
		WHERE i.organization_id = $1
		ORDER BY i.date DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.InvoiceWithCustomer
	for rows.Next() {
		var inv models.InvoiceWithCustomer
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.CustomerID, &inv.Number, &inv.Date, &inv.DueDate,
			&inv.TotalCents, &inv.Currency, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt, &inv.CustomerName); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// Get returns one invoice within the org, or nil.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND organization_id = $2`
	inv, err := scanInvoice(r.pool.QueryRow(ctx, q, id, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts an invoice. Returns ErrNumberConflict when (org, number)
// already exists.
func (r *Repository) Create(ctx context.Context, inv *models.Invoice) error {
	const q = `INSERT INTO invoices (organization_id, customer_id, number, date, due_date, total_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, inv.OrganizationID, inv.CustomerID, inv.Number, inv.Date, inv.DueDate,
		inv.TotalCents, inv.Currency, inv.Status).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrNumberConflict
	}
	return err
}

// Update replaces the mutable fields of an invoice within the org. The
// invoice number is locked once created and never updated here.
func (r *Repository) Update(ctx context.Context, inv *models.Invoice) error {
	const q = `UPDATE invoices
		SET customer_id = $3, date = $4, due_date = $5, total_cents = $6, currency = $7, status = $8, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, inv.ID, inv.OrganizationID, inv.CustomerID, inv.Date, inv.DueDate,
		inv.TotalCents, inv.Currency, inv.Status).
		Scan(&inv.UpdatedAt)
}

// SetStatus updates only the invoice status within the org.
func (r *Repository) SetStatus(ctx context.Context, orgID, id uuid.UUID, status models.InvoiceStatus) (*models.Invoice, error) {
	const q = `UPDATE invoices SET status = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING ` + invoiceColumns
	inv, err := scanInvoice(r.pool.QueryRow(ctx, q, id, orgID, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Delete removes an invoice within the org.
func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND organization_id = $2`, id, orgID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
