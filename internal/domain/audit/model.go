package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the audit trail: who did what to which resource.
// OldValues/NewValues hold before/after snapshots for value-level audits
// (patient record updates); plain request audits leave them nil.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	UserID     *uuid.UUID      `json:"userId,omitempty"`
	UserRole   string          `json:"userRole,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resourceId,omitempty"`
	OldValues  json.RawMessage `json:"oldValues,omitempty"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	IPAddress  string          `json:"ipAddress,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
