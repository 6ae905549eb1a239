// Package audit persists auth events consumed from Kafka into the audit_logs
// table. cmd/worker drives the Recorder; the HTTP service never writes audit
// rows directly.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mixmaster/backend/internal/audit/domain"
	auditrepo "mixmaster/backend/internal/audit/repository"
	"mixmaster/backend/internal/events"
)

// Recorder writes consumed auth events as audit log rows.
type Recorder struct {
	repo auditrepo.Repository
	log  *zap.Logger
}

// NewRecorder returns a Recorder persisting to repo. log may be nil.
func NewRecorder(repo auditrepo.Repository, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, log: log}
}

// Record persists one event. Best-effort: failures are logged and returned so
// the caller can decide whether to retry or skip.
func (r *Recorder) Record(ctx context.Context, ev *events.Event) error {
	if ev == nil {
		return nil
	}
	entry := &domain.AuditLog{
		ID:        ev.ID,
		UserID:    ev.UserID,
		Action:    ev.Type,
		IP:        ev.IP,
		Metadata:  ev.Metadata,
		CreatedAt: ev.CreatedAt,
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.log.Warn("audit record failed", zap.String("action", entry.Action), zap.Error(err))
		return err
	}
	return nil
}
