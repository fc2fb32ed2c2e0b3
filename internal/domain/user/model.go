package user

import (
	"time"

	"github.com/google/uuid"
)

// Roles are a closed set, stored lowercase.
const (
	RoleAdmin     = "admin"
	RoleClinician = "clinician"
	RolePatient   = "patient"
)

var validRoles = map[string]bool{
	RoleAdmin: true, RoleClinician: true, RolePatient: true,
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool { return validRoles[role] }

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true,
}

// User maps to the users table. The password hash never serializes.
type User struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	LeanifiID          string     `db:"leanifi_id" json:"leanifiId"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	Role               string     `db:"role" json:"role"`
	Name               string     `db:"name" json:"name"`
	Age                *int       `db:"age" json:"age,omitempty"`
	Gender             string     `db:"gender" json:"gender,omitempty"`
	WeightKG           *float64   `db:"weight_kg" json:"weight,omitempty"`
	TreatmentStartDate *time.Time `db:"treatment_start_date" json:"treatmentStartDate,omitempty"`
	Allergies          string     `db:"allergies" json:"allergies"`
	MedicalHistory     string     `db:"medical_history" json:"medicalHistory"`
	FamilyHistory      string     `db:"family_history" json:"familyHistory"`
	Medications        string     `db:"medications" json:"medications"`
	SocialHistory      string     `db:"social_history" json:"socialHistory"`
	IsActive           bool       `db:"is_active" json:"isActive"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// Summary is the trimmed user shape returned by login.
type Summary struct {
	ID                 string     `json:"id"`
	LeanifiID          string     `json:"leanifiId"`
	Name               string     `json:"name"`
	Role               string     `json:"role"`
	Age                *int       `json:"age,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	Weight             *float64   `json:"weight,omitempty"`
	TreatmentStartDate *time.Time `json:"treatmentStartDate,omitempty"`
	Allergies          string     `json:"allergies"`
}

// Summary returns the login response shape for the user.
func (u *User) Summary() Summary {
	return Summary{
		ID:                 u.ID.String(),
		LeanifiID:          u.LeanifiID,
		Name:               u.Name,
		Role:               u.Role,
		Age:                u.Age,
		Gender:             u.Gender,
		Weight:             u.WeightKG,
		TreatmentStartDate: u.TreatmentStartDate,
		Allergies:          u.Allergies,
	}
}

// PatientUpdate carries a partial update of a patient record. Nil fields are
// left untouched. Role, leanifi id, and password are never updatable here.
type PatientUpdate struct {
	Name               *string    `json:"name"`
	Age                *int       `json:"age"`
	Gender             *string    `json:"gender"`
	Weight             *float64   `json:"weight"`
	TreatmentStartDate *time.Time `json:"treatmentStartDate"`
	Allergies          *string    `json:"allergies"`
	MedicalHistory     *string    `json:"medicalHistory"`
	FamilyHistory      *string    `json:"familyHistory"`
	Medications        *string    `json:"medications"`
	SocialHistory      *string    `json:"socialHistory"`
	IsActive           *bool      `json:"isActive"`
}
