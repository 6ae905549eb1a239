package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mixmaster/backend/internal/audit/domain"
	"mixmaster/backend/internal/events"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	fail    bool
}

func (r *memAuditRepo) GetByID(_ context.Context, id string) (*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memAuditRepo) ListByUser(_ context.Context, userID string, _, _ int32) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for _, e := range r.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAuditRepo) Create(_ context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("db down")
	}
	cp := *a
	r.entries = append(r.entries, &cp)
	return nil
}

func TestRecord(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, nil)

	ev := &events.Event{
		ID:        "ev-1",
		Type:      events.TypeUserLogin,
		UserID:    "user-1",
		IP:        "10.0.0.1",
		Metadata:  map[string]string{"device_id": "phone-1"},
		CreatedAt: time.Now().UTC(),
	}
	if err := rec.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := repo.GetByID(context.Background(), "ev-1")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v, %v", got, err)
	}
	if got.Action != events.TypeUserLogin {
		t.Errorf("action = %q", got.Action)
	}
	if got.Metadata["device_id"] != "phone-1" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestRecord_FillsMissingIDAndTime(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, nil)

	if err := rec.Record(context.Background(), &events.Event{Type: events.TypeSessionRevoked}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d", len(repo.entries))
	}
	if repo.entries[0].ID == "" {
		t.Error("id should be generated")
	}
	if repo.entries[0].CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestRecord_NilEventIsNoop(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, nil)
	if err := rec.Record(context.Background(), nil); err != nil {
		t.Fatalf("Record(nil): %v", err)
	}
	if len(repo.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(repo.entries))
	}
}

func TestRecord_RepoFailure(t *testing.T) {
	repo := &memAuditRepo{fail: true}
	rec := NewRecorder(repo, nil)
	if err := rec.Record(context.Background(), &events.Event{Type: events.TypeUserLogin}); err == nil {
		t.Fatal("expected error from failing repo")
	}
}
