package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/pkg/queue"
)

// AuditProcessor drains audit write jobs from the queue into the audit log
// store. Failed jobs are retried and eventually parked on the DLQ.
type AuditProcessor struct {
	store  audit.Inserter
	queue  *queue.Queue
	logger *zap.Logger
}

// NewAuditProcessor creates an audit write processor.
func NewAuditProcessor(store audit.Inserter, q *queue.Queue, logger *zap.Logger) *AuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditProcessor{store: store, queue: q, logger: logger}
}

// Process executes one audit write job.
func (p *AuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAuditWrite {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AuditWritePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.store.Insert(ctx, audit.LogFromPayload(payload)); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Run dequeues and processes jobs until ctx is canceled.
func (p *AuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("audit job failed", zap.Error(err), zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
			if err := p.queue.Retry(ctx, job); err != nil {
				p.logger.Error("retry failed", zap.Error(err), zap.String("job_id", job.ID))
			}
		}
	}
}
