package dose

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leanifi/emar/internal/domain/user"
	"github.com/leanifi/emar/internal/platform/db"
	"github.com/leanifi/emar/pkg/pagination"
)

// -- Mock repositories --

type mockDoseRepo struct {
	store map[uuid.UUID]*Dose
	seq   int
}

func newMockDoseRepo() *mockDoseRepo {
	return &mockDoseRepo{store: make(map[uuid.UUID]*Dose)}
}

func (m *mockDoseRepo) Create(_ context.Context, d *Dose) error {
	if d.IsPatientLogged {
		for _, existing := range m.store {
			if existing.PatientID == d.PatientID && existing.IsPatientLogged &&
				existing.DoseDate.Equal(d.DoseDate) {
				return ErrDuplicateDate
			}
		}
	}
	d.ID = uuid.New()
	m.seq++
	d.CreatedAt = time.Unix(int64(m.seq), 0)
	m.store[d.ID] = d
	return nil
}

func (m *mockDoseRepo) sortedByPatient(patientID uuid.UUID) []*Dose {
	var r []*Dose
	for _, d := range m.store {
		if d.PatientID == patientID {
			r = append(r, d)
		}
	}
	sort.Slice(r, func(i, j int) bool {
		if !r[i].DoseDate.Equal(r[j].DoseDate) {
			return r[i].DoseDate.After(r[j].DoseDate)
		}
		return r[i].CreatedAt.After(r[j].CreatedAt)
	})
	return r
}

func (m *mockDoseRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit int) ([]*Dose, error) {
	r := m.sortedByPatient(patientID)
	if len(r) > limit {
		r = r[:limit]
	}
	return r, nil
}

func (m *mockDoseRepo) LatestByPatient(_ context.Context, patientID uuid.UUID) (*Dose, error) {
	r := m.sortedByPatient(patientID)
	if len(r) == 0 {
		return nil, db.ErrNotFound
	}
	return r[0], nil
}

func (m *mockDoseRepo) ExistsForDate(_ context.Context, patientID uuid.UUID, date time.Time) (bool, error) {
	for _, d := range m.store {
		if d.PatientID == patientID && d.DoseDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDoseRepo) CountMissed(_ context.Context) (int, error) {
	n := 0
	for _, d := range m.store {
		if d.Status == StatusMissed {
			n++
		}
	}
	return n, nil
}

func (m *mockDoseRepo) CountLoggedSince(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, d := range m.store {
		if !d.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type mockUserRepo struct {
	store map[uuid.UUID]*user.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[uuid.UUID]*user.User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *user.User) error {
	u.ID = uuid.New()
	m.store[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := m.store[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByLeanifiID(_ context.Context, leanifiID string) (*user.User, error) {
	for _, u := range m.store {
		if u.LeanifiID == leanifiID {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockUserRepo) ListByRole(_ context.Context, role string, _ pagination.Params) ([]*user.User, int, error) {
	var r []*user.User
	for _, u := range m.store {
		if u.Role == role {
			r = append(r, u)
		}
	}
	return r, len(r), nil
}

func (m *mockUserRepo) Update(_ context.Context, u *user.User) error {
	m.store[u.ID] = u
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.store, id)
	return nil
}

func (m *mockUserRepo) CountPatients(_ context.Context) (int, int, error) {
	return len(m.store), len(m.store), nil
}

func newTestService() (*Service, *mockUserRepo) {
	users := newMockUserRepo()
	return NewService(newMockDoseRepo(), users), users
}

func addPatient(users *mockUserRepo, leanifiID string) *user.User {
	start, _ := time.Parse("2006-01-02", "2024-01-15")
	u := &user.User{
		LeanifiID:          leanifiID,
		Name:               "Jordan Smith",
		Role:               user.RolePatient,
		TreatmentStartDate: &start,
		IsActive:           true,
	}
	users.Create(context.Background(), u)
	return u
}

func validClinicianInput(patientID uuid.UUID) ClinicianDoseInput {
	return ClinicianDoseInput{
		PatientID:         patientID,
		Date:              "2024-03-01",
		Time:              "09:30",
		Dosage:            "0.25mg",
		InjectionSite:     "left_abdomen",
		Status:            StatusAdministered,
		BatchNumber:       "B1234",
		ClinicianInitials: "JS",
	}
}

// -- Service tests --

func TestLogClinicianDose_Success(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")
	clinicianID := uuid.New()

	d, err := svc.LogClinicianDose(context.Background(), clinicianID, validClinicianInput(patient.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if d.ClinicianID == nil || *d.ClinicianID != clinicianID {
		t.Error("expected clinician id from session")
	}
	if d.IsPatientLogged {
		t.Error("clinic-recorded doses must not be patient-logged")
	}
}

func TestLogClinicianDose_UnknownPatient(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.LogClinicianDose(context.Background(), uuid.New(), validClinicianInput(uuid.New()))
	if !db.IsNoRows(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestLogClinicianDose_StaffTarget(t *testing.T) {
	svc, users := newTestService()
	staff := &user.User{LeanifiID: "CL001", Role: user.RoleClinician, IsActive: true}
	users.Create(context.Background(), staff)

	_, err := svc.LogClinicianDose(context.Background(), uuid.New(), validClinicianInput(staff.ID))
	if !db.IsNoRows(err) {
		t.Fatalf("staff accounts must not accept doses, got %v", err)
	}
}

func TestLogClinicianDose_Validation(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	tests := []struct {
		name   string
		mutate func(*ClinicianDoseInput)
	}{
		{"missing date", func(in *ClinicianDoseInput) { in.Date = "" }},
		{"missing time", func(in *ClinicianDoseInput) { in.Time = "" }},
		{"bad dosage", func(in *ClinicianDoseInput) { in.Dosage = "3mg" }},
		{"bad site", func(in *ClinicianDoseInput) { in.InjectionSite = "left_foot" }},
		{"bad status", func(in *ClinicianDoseInput) { in.Status = "skipped" }},
		{"bad missed reason", func(in *ClinicianDoseInput) { in.MissedReason = "aliens" }},
		{"bad date", func(in *ClinicianDoseInput) { in.Date = "01/03/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validClinicianInput(patient.ID)
			tt.mutate(&in)
			if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), in); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLogPatientDose_Success(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	d, err := svc.LogPatientDose(context.Background(), patient.ID, PatientDoseInput{
		Date: "2024-03-01", Time: "08:00", Dosage: "0.5mg", InjectionSite: "right_thigh",
		SideEffects: []string{"nausea"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusAdministered {
		t.Errorf("status = %q, want administered", d.Status)
	}
	if !d.IsPatientLogged {
		t.Error("self-logged doses must be flagged patient-logged")
	}
}

func TestLogPatientDose_DuplicateDate(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	in := PatientDoseInput{Date: "2024-03-01", Time: "08:00", Dosage: "0.5mg", InjectionSite: "right_thigh"}
	if _, err := svc.LogPatientDose(context.Background(), patient.ID, in); err != nil {
		t.Fatalf("first log: %v", err)
	}
	in.Time = "20:00"
	if _, err := svc.LogPatientDose(context.Background(), patient.ID, in); err != ErrDuplicateDate {
		t.Fatalf("got %v, want ErrDuplicateDate", err)
	}
}

func TestLogPatientDose_ClinicianDoseBlocksSameDate(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), validClinicianInput(patient.ID)); err != nil {
		t.Fatalf("clinician log: %v", err)
	}
	// Any existing record for the date blocks a patient self-log.
	_, err := svc.LogPatientDose(context.Background(), patient.ID, PatientDoseInput{
		Date: "2024-03-01", Time: "08:00", Dosage: "0.25mg", InjectionSite: "left_arm",
	})
	if err != ErrDuplicateDate {
		t.Fatalf("got %v, want ErrDuplicateDate", err)
	}
}

func TestReportMissedDose_ClinicianDoseBlocksSameDate(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), validClinicianInput(patient.ID)); err != nil {
		t.Fatalf("clinician log: %v", err)
	}
	if _, err := svc.ReportMissedDose(context.Background(), patient.ID, MissedDoseInput{
		Date: "2024-03-01", MissedReason: "forgot",
	}); err != ErrDuplicateDate {
		t.Fatalf("got %v, want ErrDuplicateDate", err)
	}
}

func TestLogClinicianDose_MayRelogSameDate(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), validClinicianInput(patient.ID)); err != nil {
		t.Fatalf("first log: %v", err)
	}
	// The clinic corrects its own records; re-logging a date is allowed.
	in := validClinicianInput(patient.ID)
	in.Status = StatusRefused
	if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), in); err != nil {
		t.Fatalf("re-log should pass: %v", err)
	}
}

func TestReportMissedDose_Defaults(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	d, err := svc.ReportMissedDose(context.Background(), patient.ID, MissedDoseInput{
		Date: "2024-03-02", MissedReason: "forgot",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusMissed {
		t.Errorf("status = %q, want missed", d.Status)
	}
	if d.Dosage != MissedDoseDosage || d.InjectionSite != MissedDoseSite {
		t.Errorf("defaults not applied: %q %q", d.Dosage, d.InjectionSite)
	}
	if !d.IsPatientLogged {
		t.Error("missed reports must be patient-logged")
	}
}

func TestReportMissedDose_InvalidReason(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	if _, err := svc.ReportMissedDose(context.Background(), patient.ID, MissedDoseInput{
		Date: "2024-03-02", MissedReason: "aliens",
	}); err == nil {
		t.Fatal("expected error for invalid reason")
	}
}

func TestReportMissedDose_DuplicateDate(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	if _, err := svc.LogPatientDose(context.Background(), patient.ID, PatientDoseInput{
		Date: "2024-03-02", Time: "08:00", Dosage: "0.25mg", InjectionSite: "left_arm",
	}); err != nil {
		t.Fatalf("dose log: %v", err)
	}
	if _, err := svc.ReportMissedDose(context.Background(), patient.ID, MissedDoseInput{
		Date: "2024-03-02", MissedReason: "unwell",
	}); err != ErrDuplicateDate {
		t.Fatalf("got %v, want ErrDuplicateDate", err)
	}
}

func TestListForPatient_OrderAndLimit(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	for day := 1; day <= 12; day++ {
		in := validClinicianInput(patient.ID)
		in.Date = time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), in); err != nil {
			t.Fatalf("log day %d: %v", day, err)
		}
	}

	doses, err := svc.ListForPatient(context.Background(), patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doses) != 10 {
		t.Fatalf("len = %d, want 10", len(doses))
	}
	if got := doses[0].DoseDate.Format("2006-01-02"); got != "2024-03-12" {
		t.Errorf("newest first: got %s", got)
	}
}

func TestProfile_NoDoses(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	p, err := svc.Profile(context.Background(), patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LastDoseStatus != "pending" {
		t.Errorf("lastDoseStatus = %q, want pending", p.LastDoseStatus)
	}
	if p.LastDoseDate != nil {
		t.Error("expected nil lastDoseDate")
	}
	if p.CurrentWeek == nil || *p.CurrentWeek < 1 {
		t.Errorf("currentWeek = %v", p.CurrentWeek)
	}
	if p.NextDoseDate != nil || p.WeightChange != nil {
		t.Error("nextDoseDate and weightChange must be null")
	}
}

func TestProfile_NoStartDate(t *testing.T) {
	svc, users := newTestService()
	u := &user.User{LeanifiID: "LF011", Role: user.RolePatient, IsActive: true}
	users.Create(context.Background(), u)

	p, err := svc.Profile(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CurrentWeek != nil {
		t.Error("currentWeek must be null without a treatment start date")
	}
}

// A clinician logs an administered dose for a freshly created patient; the
// patient's dashboard then reflects it.
func TestProfile_AfterClinicianDose(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	if _, err := svc.LogClinicianDose(context.Background(), uuid.New(), validClinicianInput(patient.ID)); err != nil {
		t.Fatalf("log: %v", err)
	}

	p, err := svc.Profile(context.Background(), patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LastDoseStatus != StatusAdministered {
		t.Errorf("lastDoseStatus = %q, want administered", p.LastDoseStatus)
	}
	if p.LastDoseDate == nil || *p.LastDoseDate != "2024-03-01" {
		t.Errorf("lastDoseDate = %v, want 2024-03-01", p.LastDoseDate)
	}
}

func TestTreatmentWeek(t *testing.T) {
	start, _ := time.Parse("2006-01-02", "2024-01-15")
	tests := []struct {
		now  string
		want int
	}{
		{"2024-01-15", 1},
		{"2024-01-21", 1},
		{"2024-01-22", 2},
		{"2024-03-01", 7},
		{"2024-01-10", 1}, // before start clamps to week 1
	}
	for _, tt := range tests {
		now, _ := time.Parse("2006-01-02", tt.now)
		if got := TreatmentWeek(start, now); got != tt.want {
			t.Errorf("TreatmentWeek(%s) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestDoseCounts(t *testing.T) {
	svc, users := newTestService()
	patient := addPatient(users, "LF010")

	svc.LogPatientDose(context.Background(), patient.ID, PatientDoseInput{
		Date: "2024-03-01", Time: "08:00", Dosage: "0.25mg", InjectionSite: "left_arm",
	})
	svc.ReportMissedDose(context.Background(), patient.ID, MissedDoseInput{
		Date: "2024-03-08", MissedReason: "forgot",
	})

	missed, err := svc.CountMissed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missed != 1 {
		t.Errorf("missed = %d, want 1", missed)
	}

	all, err := svc.CountLoggedSince(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all != 2 {
		t.Errorf("logged = %d, want 2", all)
	}
}
