package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/leanifi/emar/internal/platform/auth"
)

// AuditEntry captures who changed what: the authenticated user, the resource
// acted on, and where the request came from. Request bodies are never
// recorded here; value-level diffs are written by the services that own them.
type AuditEntry struct {
	UserID     string
	UserRole   string
	Action     string // create, update, delete
	Resource   string
	ResourceID string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries. The middleware stays decoupled from
// the storage-backed implementation so tests can substitute their own.
type AuditRecorder interface {
	RecordChange(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordChange(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that records every mutating API request
// (POST/PUT/PATCH/DELETE under /api/) as an audit entry. Recording is
// write-behind: a recorder failure is logged and never fails the request.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMutating(req.Method) || !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			// Run the handler first so the response status is known.
			err := next(c)

			resource, resourceID := splitResourcePath(req.URL.Path)
			ctx := req.Context()
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx).String(),
				UserRole:   auth.RoleFromContext(ctx),
				Action:     httpMethodToAction(req.Method),
				Resource:   resource,
				ResourceID: resourceID,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordChange(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("user_role", entry.UserRole).
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_change")

			return err
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResourcePath extracts the resource name and optional id from an API
// path. "/api/admin/patients/123" yields ("patients", "123"); the role
// namespace segment is skipped.
func splitResourcePath(path string) (string, string) {
	segments := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	// First segment is the role namespace (admin, clinician, patient, auth).
	if len(segments) < 2 || segments[1] == "" {
		if len(segments) == 1 {
			return segments[0], ""
		}
		return "", ""
	}
	resource := segments[1]
	if len(segments) > 2 {
		return resource, segments[2]
	}
	return resource, ""
}
