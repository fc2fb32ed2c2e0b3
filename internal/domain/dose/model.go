package dose

import (
	"time"

	"github.com/google/uuid"
)

// Dosage strengths follow the semaglutide titration schedule.
var validDosages = map[string]bool{
	"0.25mg": true, "0.5mg": true, "1mg": true, "1.7mg": true, "2.4mg": true,
}

var validInjectionSites = map[string]bool{
	"left_arm": true, "right_arm": true,
	"left_thigh": true, "right_thigh": true,
	"left_abdomen": true, "right_abdomen": true,
}

const (
	StatusAdministered = "administered"
	StatusMissed       = "missed"
	StatusRefused      = "refused"
)

var validStatuses = map[string]bool{
	StatusAdministered: true, StatusMissed: true, StatusRefused: true,
}

var validMissedReasons = map[string]bool{
	"forgot": true, "unwell": true, "no_supply": true, "other": true,
}

func ValidDosage(s string) bool        { return validDosages[s] }
func ValidInjectionSite(s string) bool { return validInjectionSites[s] }
func ValidStatus(s string) bool        { return validStatuses[s] }
func ValidMissedReason(s string) bool  { return validMissedReasons[s] }

// Defaults applied to missed-dose reports, which carry no real dosage or
// site but the record still requires both.
const (
	MissedDoseDosage = "0.25mg"
	MissedDoseSite   = "left_arm"
	MissedDoseTime   = "00:00"
)

// Dose maps to the doses table. DoseDate is the calendar date of the
// injection; DoseTime is the clock time as entered ("HH:MM").
type Dose struct {
	ID                uuid.UUID  `db:"id"`
	PatientID         uuid.UUID  `db:"patient_id"`
	DoseDate          time.Time  `db:"dose_date"`
	DoseTime          string     `db:"dose_time"`
	Dosage            string     `db:"dosage"`
	InjectionSite     string     `db:"injection_site"`
	Status            string     `db:"status"`
	BatchNumber       string     `db:"batch_number"`
	ClinicianID       *uuid.UUID `db:"clinician_id"`
	ClinicianInitials string     `db:"clinician_initials"`
	SideEffects       []string   `db:"side_effects"`
	SideEffectsNotes  string     `db:"side_effects_notes"`
	PhotoURL          string     `db:"photo_url"`
	Notes             string     `db:"notes"`
	IsPatientLogged   bool       `db:"is_patient_logged"`
	MissedReason      string     `db:"missed_reason"`
	MissedReasonNotes string     `db:"missed_reason_notes"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// View is the wire representation of a dose record.
type View struct {
	ID                string    `json:"id"`
	PatientID         string    `json:"patientId"`
	Date              string    `json:"date"`
	Time              string    `json:"time"`
	Dosage            string    `json:"dosage"`
	InjectionSite     string    `json:"injectionSite"`
	Status            string    `json:"status"`
	BatchNumber       string    `json:"batchNumber,omitempty"`
	ClinicianID       string    `json:"clinicianId,omitempty"`
	ClinicianInitials string    `json:"clinicianInitials,omitempty"`
	SideEffects       []string  `json:"sideEffects"`
	SideEffectsNotes  string    `json:"sideEffectsNotes,omitempty"`
	PhotoURL          string    `json:"photoUrl,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	IsPatientLogged   bool      `json:"isPatientLogged"`
	MissedReason      string    `json:"missedReason,omitempty"`
	MissedReasonNotes string    `json:"missedReasonNotes,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// View returns the JSON shape for the dose.
func (d *Dose) View() View {
	v := View{
		ID:                d.ID.String(),
		PatientID:         d.PatientID.String(),
		Date:              d.DoseDate.Format("2006-01-02"),
		Time:              d.DoseTime,
		Dosage:            d.Dosage,
		InjectionSite:     d.InjectionSite,
		Status:            d.Status,
		BatchNumber:       d.BatchNumber,
		ClinicianInitials: d.ClinicianInitials,
		SideEffects:       d.SideEffects,
		SideEffectsNotes:  d.SideEffectsNotes,
		PhotoURL:          d.PhotoURL,
		Notes:             d.Notes,
		IsPatientLogged:   d.IsPatientLogged,
		MissedReason:      d.MissedReason,
		MissedReasonNotes: d.MissedReasonNotes,
		CreatedAt:         d.CreatedAt,
	}
	if d.ClinicianID != nil {
		v.ClinicianID = d.ClinicianID.String()
	}
	if v.SideEffects == nil {
		v.SideEffects = []string{}
	}
	return v
}

// Views maps a dose slice to its wire representation, never nil.
func Views(doses []*Dose) []View {
	out := make([]View, 0, len(doses))
	for _, d := range doses {
		out = append(out, d.View())
	}
	return out
}

// Profile is the patient dashboard summary served by /api/patient/me.
// NextDoseDate and WeightChange are reserved: scheduling and weight-trend
// tracking are not implemented, so clients always receive null.
type Profile struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	LeanifiID          string     `json:"leanifiId"`
	Weight             *float64   `json:"weight"`
	TreatmentStartDate *time.Time `json:"treatmentStartDate"`
	CurrentWeek        *int       `json:"currentWeek"`
	LastDoseDate       *string    `json:"lastDoseDate"`
	LastDoseStatus     string     `json:"lastDoseStatus"`
	NextDoseDate       *string    `json:"nextDoseDate"`
	WeightChange       *float64   `json:"weightChange"`
}

// TreatmentWeek computes the 1-based week of treatment at now. Week 1 covers
// the first seven days from the start date.
func TreatmentWeek(start, now time.Time) int {
	days := int(now.Sub(start).Hours() / 24)
	week := days/7 + 1
	if week < 1 {
		week = 1
	}
	return week
}
