package dose

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leanifi/emar/internal/platform/db"
)

// ErrDuplicateDate is returned when a dose already exists for the date a
// patient is trying to log. The uq_doses_patient_date partial index backstops
// the self-log race; the service's broader any-dose pre-check produces the
// friendly failure.
var ErrDuplicateDate = errors.New("dose already logged for this date")

type doseRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &doseRepoPG{pool: pool}
}

const doseCols = `id, patient_id, dose_date, dose_time, dosage, injection_site,
	status, batch_number, clinician_id, clinician_initials, side_effects,
	side_effects_notes, photo_url, notes, is_patient_logged,
	missed_reason, missed_reason_notes, created_at, updated_at`

func scanDose(row pgx.Row) (*Dose, error) {
	var d Dose
	err := row.Scan(&d.ID, &d.PatientID, &d.DoseDate, &d.DoseTime, &d.Dosage,
		&d.InjectionSite, &d.Status, &d.BatchNumber, &d.ClinicianID,
		&d.ClinicianInitials, &d.SideEffects, &d.SideEffectsNotes,
		&d.PhotoURL, &d.Notes, &d.IsPatientLogged,
		&d.MissedReason, &d.MissedReasonNotes, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	return &d, err
}

func (r *doseRepoPG) Create(ctx context.Context, d *Dose) error {
	d.ID = uuid.New()
	if d.SideEffects == nil {
		d.SideEffects = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doses (id, patient_id, dose_date, dose_time, dosage,
			injection_site, status, batch_number, clinician_id,
			clinician_initials, side_effects, side_effects_notes, photo_url,
			notes, is_patient_logged, missed_reason, missed_reason_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		d.ID, d.PatientID, d.DoseDate, d.DoseTime, d.Dosage,
		d.InjectionSite, d.Status, d.BatchNumber, d.ClinicianID,
		d.ClinicianInitials, d.SideEffects, d.SideEffectsNotes, d.PhotoURL,
		d.Notes, d.IsPatientLogged, d.MissedReason, d.MissedReasonNotes)
	if db.IsUniqueViolation(err, "uq_doses_patient_date") {
		return ErrDuplicateDate
	}
	return err
}

func (r *doseRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Dose, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doseCols+` FROM doses
		WHERE patient_id = $1
		ORDER BY dose_date DESC, created_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Dose
	for rows.Next() {
		d, err := scanDose(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doseRepoPG) LatestByPatient(ctx context.Context, patientID uuid.UUID) (*Dose, error) {
	return scanDose(r.pool.QueryRow(ctx, `SELECT `+doseCols+` FROM doses
		WHERE patient_id = $1
		ORDER BY dose_date DESC, created_at DESC LIMIT 1`, patientID))
}

func (r *doseRepoPG) ExistsForDate(ctx context.Context, patientID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM doses
		WHERE patient_id = $1 AND dose_date = $2)`,
		patientID, date).Scan(&exists)
	return exists, err
}

func (r *doseRepoPG) CountMissed(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM doses WHERE status = $1`,
		StatusMissed).Scan(&n)
	return n, err
}

func (r *doseRepoPG) CountLoggedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM doses WHERE created_at >= $1`,
		since).Scan(&n)
	return n, err
}
