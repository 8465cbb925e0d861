package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/queue"
)

// Repository persists audit log entries. Entries are append-only; nothing
// here updates or deletes them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit log entry.
func (r *Repository) Insert(ctx context.Context, entry *models.AuditLog) error {
	const q = `INSERT INTO audit_logs (organization_id, user_id, action, entity_type, entity_id, before, after, ip, user_agent, created_at)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6, $7, NULLIF($8,''), NULLIF($9,''), $10)`
	_, err := r.pool.Exec(ctx, q,
		entry.OrganizationID, entry.UserID, entry.Action,
		entry.EntityType, entry.EntityID,
		entry.Before, entry.After,
		entry.IP, entry.UserAgent, entry.CreatedAt,
	)
	return err
}

// LogFromPayload converts a queued audit payload into the entry to persist.
func LogFromPayload(p queue.AuditWritePayload) *models.AuditLog {
	return &models.AuditLog{
		OrganizationID: p.OrganizationID,
		UserID:         p.UserID,
		Action:         p.Action,
		EntityType:     p.EntityType,
		EntityID:       p.EntityID,
		Before:         p.Before,
		After:          p.After,
		IP:             p.IP,
		UserAgent:      p.UserAgent,
		CreatedAt:      p.RecordedAt,
	}
}
