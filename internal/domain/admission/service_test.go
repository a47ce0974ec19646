package admission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/domain/patient"
)

// -- Mocks --

type mockRepo struct {
	admissions map[uuid.UUID]*Admission
	notes      map[uuid.UUID][]*DailyNote
	seq        int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		admissions: make(map[uuid.UUID]*Admission),
		notes:      make(map[uuid.UUID][]*DailyNote),
	}
}

func (m *mockRepo) Create(_ context.Context, a *Admission) error {
	a.ID = uuid.New()
	m.seq++
	if a.AdmissionNumber == "" {
		a.AdmissionNumber = FormatAdmissionNumber(m.seq)
	}
	a.CreatedAt = time.Now()
	m.admissions[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Admission, error) {
	a, ok := m.admissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) Update(_ context.Context, a *Admission) error {
	m.admissions[a.ID] = a
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	var result []*Admission
	for _, a := range m.admissions {
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockRepo) AddNote(_ context.Context, n *DailyNote) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.notes[n.AdmissionID] = append(m.notes[n.AdmissionID], n)
	return nil
}

func (m *mockRepo) ListNotes(_ context.Context, admissionID uuid.UUID) ([]*DailyNote, error) {
	return m.notes[admissionID], nil
}

type mockPatientRepo struct {
	known map[uuid.UUID]bool
}

func (m *mockPatientRepo) Create(_ context.Context, p *patient.Patient) error { return nil }
func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if !m.known[id] {
		return nil, fmt.Errorf("not found")
	}
	return &patient.Patient{ID: id}, nil
}
func (m *mockPatientRepo) GetByNumber(_ context.Context, n string) (*patient.Patient, error) {
	return nil, fmt.Errorf("not found")
}
func (m *mockPatientRepo) Update(_ context.Context, p *patient.Patient) error { return nil }
func (m *mockPatientRepo) Deactivate(_ context.Context, id uuid.UUID) error   { return nil }
func (m *mockPatientRepo) List(_ context.Context, b uuid.UUID, s string, l, o int) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}

func newTestService() (*Service, uuid.UUID) {
	patientID := uuid.New()
	patients := &mockPatientRepo{known: map[uuid.UUID]bool{patientID: true}}
	return NewService(newMockRepo(), patients), patientID
}

// -- Tests --

func TestBilledDays_ShortStayCountsOneDay(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	a := &Admission{AdmissionDate: start, DailyRate: 10000}
	if days := a.BilledDays(time.Now()); days != 1 {
		t.Errorf("2h stay: expected 1 billed day, got %d", days)
	}
	if total := a.TotalBillingAmount(time.Now()); total != 10000 {
		t.Errorf("expected 10000, got %.2f", total)
	}
}

func TestBilledDays_PartialDayRoundsUp(t *testing.T) {
	start := time.Now().Add(-50 * time.Hour)
	a := &Admission{AdmissionDate: start, DailyRate: 10000}
	if days := a.BilledDays(time.Now()); days != 3 {
		t.Errorf("50h stay: expected 3 billed days, got %d", days)
	}
	if total := a.TotalBillingAmount(time.Now()); total != 30000 {
		t.Errorf("expected 30000, got %.2f", total)
	}
}

func TestBilledDays_FrozenAtDischarge(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	discharge := start.Add(30 * time.Hour)
	a := &Admission{AdmissionDate: start, DischargeDate: &discharge, DailyRate: 5000}
	// "now" long after discharge must not grow the bill
	later := discharge.Add(240 * time.Hour)
	if days := a.BilledDays(later); days != 2 {
		t.Errorf("expected 2 billed days after discharge, got %d", days)
	}
}

func TestAdmit_RequiresKnownPatient(t *testing.T) {
	svc, _ := newTestService()
	a := &Admission{PatientID: uuid.New(), BranchID: uuid.New(), DailyRate: 5000}
	if err := svc.Admit(context.Background(), a); err == nil {
		t.Error("expected error for unknown patient")
	}
}

func TestAdmit_AssignsNumberAndStatus(t *testing.T) {
	svc, patientID := newTestService()
	a := &Admission{PatientID: patientID, BranchID: uuid.New(), DailyRate: 5000}
	if err := svc.Admit(context.Background(), a); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if a.AdmissionNumber != "ADM000001" {
		t.Errorf("expected ADM000001, got %s", a.AdmissionNumber)
	}
	if a.Status != StatusAdmitted {
		t.Errorf("expected ADMITTED, got %s", a.Status)
	}
	if a.AdmissionDate.IsZero() {
		t.Error("expected admission date to default to now")
	}
}

func TestDischarge_SetsDateAndStatus(t *testing.T) {
	svc, patientID := newTestService()
	a := &Admission{PatientID: patientID, BranchID: uuid.New(), DailyRate: 5000}
	if err := svc.Admit(context.Background(), a); err != nil {
		t.Fatalf("admit: %v", err)
	}
	got, err := svc.Discharge(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if got.Status != StatusDischarged || got.DischargeDate == nil {
		t.Error("expected discharged status with a discharge date")
	}
	if _, err := svc.Discharge(context.Background(), a.ID); err != ErrNotAdmitted {
		t.Errorf("expected ErrNotAdmitted on second discharge, got %v", err)
	}
}

func TestAddNote_ActiveAdmissionsOnly(t *testing.T) {
	svc, patientID := newTestService()
	a := &Admission{PatientID: patientID, BranchID: uuid.New(), DailyRate: 5000}
	if err := svc.Admit(context.Background(), a); err != nil {
		t.Fatalf("admit: %v", err)
	}
	n := &DailyNote{AdmissionID: a.ID, AuthorID: uuid.New(), Note: "stable overnight"}
	if err := svc.AddNote(context.Background(), n); err != nil {
		t.Fatalf("add note: %v", err)
	}
	if _, err := svc.Discharge(context.Background(), a.ID); err != nil {
		t.Fatalf("discharge: %v", err)
	}
	n2 := &DailyNote{AdmissionID: a.ID, AuthorID: uuid.New(), Note: "late entry"}
	if err := svc.AddNote(context.Background(), n2); err != ErrNotAdmitted {
		t.Errorf("expected ErrNotAdmitted, got %v", err)
	}
}

func TestUpdateStay_RejectsNegativeRate(t *testing.T) {
	svc, patientID := newTestService()
	a := &Admission{PatientID: patientID, BranchID: uuid.New(), DailyRate: 5000}
	if err := svc.Admit(context.Background(), a); err != nil {
		t.Fatalf("admit: %v", err)
	}
	bad := -100.0
	if _, err := svc.UpdateStay(context.Background(), a.ID, UpdateInput{DailyRate: &bad}); err == nil {
		t.Error("expected error for negative rate")
	}
}

func TestTransfer_ClosesStay(t *testing.T) {
	svc, patientID := newTestService()
	a := &Admission{PatientID: patientID, BranchID: uuid.New(), DailyRate: 5000}
	if err := svc.Admit(context.Background(), a); err != nil {
		t.Fatalf("admit: %v", err)
	}
	got, err := svc.Transfer(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got.Status != StatusTransferred || got.DischargeDate == nil {
		t.Error("expected transferred status with a closing date")
	}
}
