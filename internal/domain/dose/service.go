package dose

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leanifi/emar/internal/domain/user"
	"github.com/leanifi/emar/internal/platform/db"
)

// recentDoseLimit caps the history list on patient and clinician dashboards.
const recentDoseLimit = 10

type Service struct {
	doses Repository
	users user.Repository
}

func NewService(doses Repository, users user.Repository) *Service {
	return &Service{doses: doses, users: users}
}

// ClinicianDoseInput is a dose as recorded at the clinic.
type ClinicianDoseInput struct {
	PatientID         uuid.UUID
	Date              string
	Time              string
	Dosage            string
	InjectionSite     string
	Status            string
	BatchNumber       string
	ClinicianInitials string
	SideEffects       []string
	SideEffectsNotes  string
	PhotoURL          string
	Notes             string
	MissedReason      string
	MissedReasonNotes string
}

// LogClinicianDose records a dose administered (or missed/refused) at the
// clinic. The target must be an existing patient account.
func (s *Service) LogClinicianDose(ctx context.Context, clinicianID uuid.UUID, in ClinicianDoseInput) (*Dose, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patientId is required")
	}
	if in.Date == "" || in.Time == "" {
		return nil, fmt.Errorf("date and time are required")
	}
	if !ValidDosage(in.Dosage) {
		return nil, fmt.Errorf("invalid dosage: %s", in.Dosage)
	}
	if !ValidInjectionSite(in.InjectionSite) {
		return nil, fmt.Errorf("invalid injection site: %s", in.InjectionSite)
	}
	if !ValidStatus(in.Status) {
		return nil, fmt.Errorf("invalid status: %s", in.Status)
	}
	if in.MissedReason != "" && !ValidMissedReason(in.MissedReason) {
		return nil, fmt.Errorf("invalid missed reason: %s", in.MissedReason)
	}
	date, err := user.ParseDate(in.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", in.Date)
	}

	// The dose must belong to a real patient; staff accounts are off limits.
	target, err := s.users.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if target.Role != user.RolePatient {
		return nil, db.ErrNotFound
	}

	d := &Dose{
		PatientID:         in.PatientID,
		DoseDate:          date,
		DoseTime:          in.Time,
		Dosage:            in.Dosage,
		InjectionSite:     in.InjectionSite,
		Status:            in.Status,
		BatchNumber:       in.BatchNumber,
		ClinicianID:       &clinicianID,
		ClinicianInitials: in.ClinicianInitials,
		SideEffects:       in.SideEffects,
		SideEffectsNotes:  in.SideEffectsNotes,
		PhotoURL:          in.PhotoURL,
		Notes:             in.Notes,
		IsPatientLogged:   false,
		MissedReason:      in.MissedReason,
		MissedReasonNotes: in.MissedReasonNotes,
	}
	if err := s.doses.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// PatientDoseInput is a self-administered dose logged from home.
type PatientDoseInput struct {
	Date             string
	Time             string
	Dosage           string
	InjectionSite    string
	SideEffects      []string
	SideEffectsNotes string
	PhotoURL         string
	Notes            string
}

// LogPatientDose records a self-administered dose. A patient may not log a
// dose on a date that already carries any record, their own or the clinic's.
func (s *Service) LogPatientDose(ctx context.Context, patientID uuid.UUID, in PatientDoseInput) (*Dose, error) {
	if in.Date == "" || in.Time == "" {
		return nil, fmt.Errorf("date and time are required")
	}
	if !ValidDosage(in.Dosage) {
		return nil, fmt.Errorf("invalid dosage: %s", in.Dosage)
	}
	if !ValidInjectionSite(in.InjectionSite) {
		return nil, fmt.Errorf("invalid injection site: %s", in.InjectionSite)
	}
	date, err := user.ParseDate(in.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", in.Date)
	}

	if exists, err := s.doses.ExistsForDate(ctx, patientID, date); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateDate
	}

	d := &Dose{
		PatientID:        patientID,
		DoseDate:         date,
		DoseTime:         in.Time,
		Dosage:           in.Dosage,
		InjectionSite:    in.InjectionSite,
		Status:           StatusAdministered,
		SideEffects:      in.SideEffects,
		SideEffectsNotes: in.SideEffectsNotes,
		PhotoURL:         in.PhotoURL,
		Notes:            in.Notes,
		IsPatientLogged:  true,
	}
	if err := s.doses.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// MissedDoseInput is a patient's report of a dose they did not take.
type MissedDoseInput struct {
	Date              string
	MissedReason      string
	MissedReasonNotes string
}

// ReportMissedDose records a missed dose. The record carries the schedule's
// starting dosage and a nominal site since nothing was injected.
func (s *Service) ReportMissedDose(ctx context.Context, patientID uuid.UUID, in MissedDoseInput) (*Dose, error) {
	if in.Date == "" {
		return nil, fmt.Errorf("date is required")
	}
	if !ValidMissedReason(in.MissedReason) {
		return nil, fmt.Errorf("invalid missed reason: %s", in.MissedReason)
	}
	date, err := user.ParseDate(in.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", in.Date)
	}

	if exists, err := s.doses.ExistsForDate(ctx, patientID, date); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateDate
	}

	d := &Dose{
		PatientID:         patientID,
		DoseDate:          date,
		DoseTime:          MissedDoseTime,
		Dosage:            MissedDoseDosage,
		InjectionSite:     MissedDoseSite,
		Status:            StatusMissed,
		IsPatientLogged:   true,
		MissedReason:      in.MissedReason,
		MissedReasonNotes: in.MissedReasonNotes,
	}
	if err := s.doses.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListForPatient returns the patient's most recent doses, newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Dose, error) {
	return s.doses.ListByPatient(ctx, patientID, recentDoseLimit)
}

// Profile assembles the patient dashboard summary: identity fields plus the
// current treatment week and the most recent dose.
func (s *Service) Profile(ctx context.Context, patientID uuid.UUID) (*Profile, error) {
	u, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if u.Role != user.RolePatient {
		return nil, db.ErrNotFound
	}

	p := &Profile{
		ID:                 u.ID.String(),
		Name:               u.Name,
		LeanifiID:          u.LeanifiID,
		Weight:             u.WeightKG,
		TreatmentStartDate: u.TreatmentStartDate,
		LastDoseStatus:     "pending",
	}
	if u.TreatmentStartDate != nil {
		week := TreatmentWeek(*u.TreatmentStartDate, time.Now().UTC())
		p.CurrentWeek = &week
	}

	last, err := s.doses.LatestByPatient(ctx, patientID)
	if err != nil {
		if db.IsNoRows(err) {
			return p, nil
		}
		return nil, err
	}
	lastDate := last.DoseDate.Format("2006-01-02")
	p.LastDoseDate = &lastDate
	p.LastDoseStatus = last.Status
	return p, nil
}

// CountMissed reports the number of missed doses across all patients.
func (s *Service) CountMissed(ctx context.Context) (int, error) {
	return s.doses.CountMissed(ctx)
}

// CountLoggedSince reports how many doses were logged at or after since.
func (s *Service) CountLoggedSince(ctx context.Context, since time.Time) (int, error) {
	return s.doses.CountLoggedSince(ctx, since)
}
