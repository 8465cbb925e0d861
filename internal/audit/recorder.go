package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/queue"
)

// Entry describes one mutation to record. Before/After are opaque snapshots
// captured by the caller; they are serialized as-is.
type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	Before     interface{}
	After      interface{}
}

// Publisher hands audit payloads to the background writer.
type Publisher interface {
	EnqueueAuditWrite(ctx context.Context, payload queue.AuditWritePayload) error
}

// Inserter writes audit entries directly (fallback path and worker path).
type Inserter interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// Recorder records audit entries best-effort. Entries are enqueued to the
// background writer; if enqueueing fails, a direct fire-and-forget insert is
// attempted. Failures are logged and swallowed; the triggering business
// operation never sees them.
type Recorder struct {
	publisher Publisher
	fallback  Inserter
	logger    *zap.Logger
}

// NewRecorder creates a recorder. fallback may be nil to disable the direct
// insert path.
func NewRecorder(publisher Publisher, fallback Inserter, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{publisher: publisher, fallback: fallback, logger: logger}
}

// Record records an entry under the request's tenant context. A request
// without tenant context produces no entry: audit logs always have an
// owning organization.
func (r *Recorder) Record(c *gin.Context, e Entry) {
	ac, ok := authctx.From(c)
	if !ok || ac.Org.OrganizationID == uuid.Nil {
		return
	}
	userID := ac.User.UserID
	r.record(c, ac.Org.OrganizationID, &userID, e)
}

// RecordFor records an entry under an explicitly supplied identity and
// organization. Used where no authenticated context exists yet, e.g. the
// tail of signup.
func (r *Recorder) RecordFor(c *gin.Context, userID, orgID uuid.UUID, e Entry) {
	if orgID == uuid.Nil {
		return
	}
	r.record(c, orgID, &userID, e)
}

func (r *Recorder) record(c *gin.Context, orgID uuid.UUID, userID *uuid.UUID, e Entry) {
	payload := queue.AuditWritePayload{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Before:         marshalSnapshot(r.logger, e.Action, "before", e.Before),
		After:          marshalSnapshot(r.logger, e.Action, "after", e.After),
		IP:             c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		RecordedAt:     time.Now(),
	}

	// Detached from the request context: the response may already be on the
	// wire when this runs.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := r.publisher.EnqueueAuditWrite(ctx, payload)
	if err == nil {
		return
	}
	r.logger.Warn("audit enqueue failed", zap.Error(err), zap.String("action", e.Action))
	if r.fallback == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.fallback.Insert(ctx, LogFromPayload(payload)); err != nil {
			r.logger.Error("audit write failed", zap.Error(err), zap.String("action", e.Action))
		}
	}()
}

func marshalSnapshot(logger *zap.Logger, action, kind string, v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn("audit snapshot marshal failed",
			zap.String("action", action), zap.String("kind", kind), zap.Error(err))
		return nil
	}
	return raw
}
