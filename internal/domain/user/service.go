package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leanifi/emar/internal/platform/auth"
	"github.com/leanifi/emar/internal/platform/db"
	"github.com/leanifi/emar/pkg/pagination"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords so
	// login failures are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWrongPassword is returned by ChangePassword when the current
	// password does not verify.
	ErrWrongPassword = errors.New("current password is incorrect")
)

// ChangeRecorder persists before/after snapshots of patient records.
// Implemented by the audit store; nil disables value-level auditing.
type ChangeRecorder interface {
	RecordValues(ctx context.Context, actorID uuid.UUID, resource, resourceID string, oldValues, newValues interface{}) error
}

type Service struct {
	users   Repository
	tokens  *auth.Tokens
	changes ChangeRecorder
}

func NewService(users Repository, tokens *auth.Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// SetChangeRecorder attaches an optional ChangeRecorder to the service.
func (s *Service) SetChangeRecorder(cr ChangeRecorder) { s.changes = cr }

// Login authenticates by leanifi id and password and issues a session token.
// Inactive accounts cannot log in.
func (s *Service) Login(ctx context.Context, leanifiID, password string) (*User, string, error) {
	u, err := s.users.GetByLeanifiID(ctx, leanifiID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !u.IsActive {
		return nil, "", ErrInvalidCredentials
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// CreatePatient registers a new patient account. Role is always patient and
// the account starts active regardless of input.
func (s *Service) CreatePatient(ctx context.Context, u *User, password string) error {
	if u.LeanifiID == "" {
		return fmt.Errorf("leanifiId is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if u.Name == "" {
		return fmt.Errorf("name is required")
	}
	if u.Age == nil {
		return fmt.Errorf("age is required")
	}
	if u.Gender == "" {
		return fmt.Errorf("gender is required")
	}
	if !validGenders[u.Gender] {
		return fmt.Errorf("invalid gender: %s", u.Gender)
	}
	if u.WeightKG == nil {
		return fmt.Errorf("weight is required")
	}
	if u.TreatmentStartDate == nil {
		return fmt.Errorf("treatmentStartDate is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Role = RolePatient
	u.IsActive = true

	return s.users.Create(ctx, u)
}

// GetPatient returns a patient by id. Users with other roles are reported as
// not found so the patient endpoints never leak staff accounts.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RolePatient {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (s *Service) ListPatients(ctx context.Context, page pagination.Params) ([]*User, int, error) {
	return s.users.ListByRole(ctx, RolePatient, page)
}

// UpdatePatient applies a partial update. Old and new values are recorded
// when a ChangeRecorder is attached.
func (s *Service) UpdatePatient(ctx context.Context, actorID, id uuid.UUID, upd PatientUpdate) (*User, error) {
	u, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *u

	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Age != nil {
		u.Age = upd.Age
	}
	if upd.Gender != nil {
		if !validGenders[*upd.Gender] {
			return nil, fmt.Errorf("invalid gender: %s", *upd.Gender)
		}
		u.Gender = *upd.Gender
	}
	if upd.Weight != nil {
		u.WeightKG = upd.Weight
	}
	if upd.TreatmentStartDate != nil {
		u.TreatmentStartDate = upd.TreatmentStartDate
	}
	if upd.Allergies != nil {
		u.Allergies = *upd.Allergies
	}
	if upd.MedicalHistory != nil {
		u.MedicalHistory = *upd.MedicalHistory
	}
	if upd.FamilyHistory != nil {
		u.FamilyHistory = *upd.FamilyHistory
	}
	if upd.Medications != nil {
		u.Medications = *upd.Medications
	}
	if upd.SocialHistory != nil {
		u.SocialHistory = *upd.SocialHistory
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	if s.changes != nil {
		_ = s.changes.RecordValues(ctx, actorID, "patients", u.ID.String(), &old, u)
	}
	return u, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetPatient(ctx, id); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

// ChangePassword verifies the caller's current password before storing a new
// one. The new password must be at least 6 characters.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("currentPassword and newPassword are required")
	}
	if len(next) < 6 {
		return fmt.Errorf("new password must be at least 6 characters")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(current, u.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// PatientCounts returns the total and active patient counts for the admin
// dashboard.
func (s *Service) PatientCounts(ctx context.Context) (total int, active int, err error) {
	return s.users.CountPatients(ctx)
}
