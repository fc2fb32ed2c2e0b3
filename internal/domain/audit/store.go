package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/leanifi/emar/internal/platform/middleware"
)

// insertTimeout bounds write-behind audit inserts so a slow database cannot
// hold request goroutines.
const insertTimeout = 5 * time.Second

// Store persists audit entries. It satisfies both the middleware's
// AuditRecorder (per-request rows) and the user service's ChangeRecorder
// (before/after snapshots).
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// RecordChange persists one row for a mutating API request.
func (s *Store) RecordChange(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	e := &Entry{
		UserRole:   entry.UserRole,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		RequestID:  entry.RequestID,
		StatusCode: entry.StatusCode,
	}
	if id, err := uuid.Parse(entry.UserID); err == nil && id != uuid.Nil {
		e.UserID = &id
	}
	return s.repo.Insert(ctx, e)
}

// RecordValues persists a before/after snapshot of a changed resource.
func (s *Store) RecordValues(ctx context.Context, actorID uuid.UUID, resource, resourceID string, oldValues, newValues interface{}) error {
	oldJSON, err := json.Marshal(oldValues)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(newValues)
	if err != nil {
		return err
	}

	e := &Entry{
		Action:     "update",
		Resource:   resource,
		ResourceID: resourceID,
		OldValues:  oldJSON,
		NewValues:  newJSON,
	}
	if actorID != uuid.Nil {
		e.UserID = &actorID
	}
	return s.repo.Insert(ctx, e)
}
