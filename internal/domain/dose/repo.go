package dose

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Dose) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Dose, error)
	LatestByPatient(ctx context.Context, patientID uuid.UUID) (*Dose, error)
	ExistsForDate(ctx context.Context, patientID uuid.UUID, date time.Time) (bool, error)
	CountMissed(ctx context.Context) (int, error)
	CountLoggedSince(ctx context.Context, since time.Time) (int, error)
}
