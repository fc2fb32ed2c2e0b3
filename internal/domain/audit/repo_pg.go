package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leanifi/emar/pkg/pagination"
)

type auditRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &auditRepoPG{pool: pool}
}

func (r *auditRepoPG) Insert(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, user_id, user_role, action, resource,
			resource_id, old_values, new_values, ip_address, user_agent,
			request_id, status_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.UserID, e.UserRole, e.Action, e.Resource,
		e.ResourceID, e.OldValues, e.NewValues, e.IPAddress, e.UserAgent,
		e.RequestID, e.StatusCode)
	return err
}

func (r *auditRepoPG) ListRecent(ctx context.Context, page pagination.Params) ([]*Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, user_role, action, resource, resource_id,
			old_values, new_values, ip_address, user_agent, request_id,
			status_code, created_at
		FROM audit_log ORDER BY created_at DESC `+page.SQL())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserRole, &e.Action,
			&e.Resource, &e.ResourceID, &e.OldValues, &e.NewValues,
			&e.IPAddress, &e.UserAgent, &e.RequestID, &e.StatusCode,
			&e.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
