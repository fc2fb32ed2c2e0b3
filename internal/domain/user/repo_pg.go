package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leanifi/emar/internal/platform/db"
	"github.com/leanifi/emar/pkg/pagination"
)

// ErrDuplicateLeanifiID is returned when a create collides with an existing
// leanifi id. The uq_users_leanifi_id constraint is authoritative.
var ErrDuplicateLeanifiID = errors.New("leanifi id already exists")

type userRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, leanifi_id, password_hash, role, name, age, gender,
	weight_kg, treatment_start_date, allergies, medical_history,
	family_history, medications, social_history, is_active,
	created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.LeanifiID, &u.PasswordHash, &u.Role, &u.Name,
		&u.Age, &u.Gender, &u.WeightKG, &u.TreatmentStartDate,
		&u.Allergies, &u.MedicalHistory, &u.FamilyHistory,
		&u.Medications, &u.SocialHistory, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, leanifi_id, password_hash, role, name, age, gender,
			weight_kg, treatment_start_date, allergies, medical_history,
			family_history, medications, social_history, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		u.ID, u.LeanifiID, u.PasswordHash, u.Role, u.Name, u.Age, u.Gender,
		u.WeightKG, u.TreatmentStartDate, u.Allergies, u.MedicalHistory,
		u.FamilyHistory, u.Medications, u.SocialHistory, u.IsActive)
	if db.IsUniqueViolation(err, "uq_users_leanifi_id") {
		return ErrDuplicateLeanifiID
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByLeanifiID(ctx context.Context, leanifiID string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE leanifi_id = $1`, leanifiID))
}

func (r *userRepoPG) ListByRole(ctx context.Context, role string, page pagination.Params) ([]*User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users WHERE role = $1
		ORDER BY created_at DESC `+page.SQL(), role)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET name=$2, age=$3, gender=$4, weight_kg=$5,
			treatment_start_date=$6, allergies=$7, medical_history=$8,
			family_history=$9, medications=$10, social_history=$11,
			is_active=$12, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.Age, u.Gender, u.WeightKG,
		u.TreatmentStartDate, u.Allergies, u.MedicalHistory,
		u.FamilyHistory, u.Medications, u.SocialHistory, u.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) CountPatients(ctx context.Context) (int, int, error) {
	var total, active int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
		FROM users WHERE role = $1`, RolePatient).Scan(&total, &active)
	return total, active, err
}
