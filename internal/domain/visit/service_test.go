package visit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/labtest"
	"github.com/medicore/medicore/internal/domain/patient"
	"github.com/medicore/medicore/internal/domain/prescription"
	"github.com/medicore/medicore/internal/platform/auth"
)

// -- Mock repositories --

type mockVisitRepo struct {
	visits    map[uuid.UUID]*PatientVisit
	stages    map[uuid.UUID]map[Stage]*StageRecord
	seq       int64
	createErr error
}

func newMockVisitRepo() *mockVisitRepo {
	return &mockVisitRepo{
		visits: make(map[uuid.UUID]*PatientVisit),
		stages: make(map[uuid.UUID]map[Stage]*StageRecord),
	}
}

func (m *mockVisitRepo) Create(_ context.Context, v *PatientVisit) error {
	if m.createErr != nil {
		return m.createErr
	}
	v.ID = uuid.New()
	m.seq++
	if v.VisitNumber == "" {
		v.VisitNumber = FormatVisitNumber(time.Now(), m.seq)
	}
	v.CreatedAt = time.Now()
	v.UpdatedAt = time.Now()
	m.visits[v.ID] = v
	return nil
}

func (m *mockVisitRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientVisit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockVisitRepo) Update(_ context.Context, v *PatientVisit) error {
	m.visits[v.ID] = v
	return nil
}

func (m *mockVisitRepo) ActiveByPatient(_ context.Context, patientID uuid.UUID) (*PatientVisit, error) {
	for _, v := range m.visits {
		if v.PatientID == patientID && v.Status == StatusInProgress {
			return v, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockVisitRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*PatientVisit, int, error) {
	var result []*PatientVisit
	for _, v := range m.visits {
		if f.PatientID != uuid.Nil && v.PatientID != f.PatientID {
			continue
		}
		if f.BranchID != uuid.Nil && v.BranchID != f.BranchID {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		result = append(result, v)
	}
	return result, len(result), nil
}

func (m *mockVisitRepo) Queue(_ context.Context, f QueueFilter, limit, offset int) ([]*PatientVisit, int, error) {
	inStages := func(s Stage) bool {
		if len(f.Stages) == 0 {
			return true
		}
		for _, st := range f.Stages {
			if st == s {
				return true
			}
		}
		return false
	}
	var result []*PatientVisit
	for _, v := range m.visits {
		if v.Status != StatusInProgress || !inStages(v.CurrentStage) {
			continue
		}
		if f.BranchID != uuid.Nil && v.BranchID != f.BranchID {
			continue
		}
		result = append(result, v)
	}
	return result, len(result), nil
}

func (m *mockVisitRepo) CreateStage(_ context.Context, sr *StageRecord) error {
	sr.ID = uuid.New()
	sr.CreatedAt = time.Now()
	if m.stages[sr.VisitID] == nil {
		m.stages[sr.VisitID] = make(map[Stage]*StageRecord)
	}
	m.stages[sr.VisitID][sr.Stage] = sr
	return nil
}

func (m *mockVisitRepo) GetStage(_ context.Context, visitID uuid.UUID, stage Stage) (*StageRecord, error) {
	sr, ok := m.stages[visitID][stage]
	if !ok {
		return nil, ErrStageNotFound
	}
	return sr, nil
}

func (m *mockVisitRepo) UpdateStage(_ context.Context, sr *StageRecord) error {
	m.stages[sr.VisitID][sr.Stage] = sr
	return nil
}

func (m *mockVisitRepo) ListStages(_ context.Context, visitID uuid.UUID) ([]*StageRecord, error) {
	var result []*StageRecord
	for _, sr := range m.stages[visitID] {
		result = append(result, sr)
	}
	return result, nil
}

type mockPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatientRepo) Create(_ context.Context, p *patient.Patient) error { return nil }
func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}
func (m *mockPatientRepo) GetByNumber(_ context.Context, n string) (*patient.Patient, error) {
	return nil, fmt.Errorf("not found")
}
func (m *mockPatientRepo) Update(_ context.Context, p *patient.Patient) error  { return nil }
func (m *mockPatientRepo) Deactivate(_ context.Context, id uuid.UUID) error    { return nil }
func (m *mockPatientRepo) List(_ context.Context, b uuid.UUID, s string, l, o int) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}

type mockRxRepo struct {
	items map[uuid.UUID]*prescription.Prescription
	seq   int64
}

func (m *mockRxRepo) Create(_ context.Context, p *prescription.Prescription) error {
	p.ID = uuid.New()
	m.seq++
	p.PrescriptionNumber = prescription.FormatPrescriptionNumber(m.seq)
	m.items[p.ID] = p
	return nil
}
func (m *mockRxRepo) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}
func (m *mockRxRepo) Update(_ context.Context, p *prescription.Prescription) error {
	m.items[p.ID] = p
	return nil
}
func (m *mockRxRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*prescription.Prescription, error) {
	var result []*prescription.Prescription
	for _, p := range m.items {
		if p.VisitID == visitID {
			result = append(result, p)
		}
	}
	return result, nil
}
func (m *mockRxRepo) ListByPatient(_ context.Context, id uuid.UUID, l, o int) ([]*prescription.Prescription, int, error) {
	return nil, 0, nil
}

type mockLabRepo struct {
	tests map[uuid.UUID]*labtest.LabTest
	seq   int64
}

func (m *mockLabRepo) Create(_ context.Context, lt *labtest.LabTest) error {
	lt.ID = uuid.New()
	m.seq++
	lt.TestNumber = labtest.FormatTestNumber(m.seq)
	if lt.Status == "" {
		lt.Status = labtest.StatusPending
	}
	m.tests[lt.ID] = lt
	return nil
}
func (m *mockLabRepo) GetByID(_ context.Context, id uuid.UUID) (*labtest.LabTest, error) {
	lt, ok := m.tests[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return lt, nil
}
func (m *mockLabRepo) Update(_ context.Context, lt *labtest.LabTest) error {
	m.tests[lt.ID] = lt
	return nil
}
func (m *mockLabRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*labtest.LabTest, error) {
	return nil, nil
}
func (m *mockLabRepo) List(_ context.Context, f labtest.ListFilter, l, o int) ([]*labtest.LabTest, int, error) {
	return nil, 0, nil
}

// -- Fixture --

type fixture struct {
	svc     *Service
	repo    *mockVisitRepo
	rx      *mockRxRepo
	labs    *mockLabRepo
	patient *patient.Patient
}

func newFixture() *fixture {
	p := &patient.Patient{ID: uuid.New(), FirstName: "Ada", LastName: "Eze", BranchID: uuid.New()}
	repo := newMockVisitRepo()
	rx := &mockRxRepo{items: make(map[uuid.UUID]*prescription.Prescription)}
	labs := &mockLabRepo{tests: make(map[uuid.UUID]*labtest.LabTest)}
	patients := &mockPatientRepo{patients: map[uuid.UUID]*patient.Patient{p.ID: p}}
	svc := NewService(repo, patients, rx, labs, nil, nil, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, rx: rx, labs: labs, patient: p}
}

func actorWith(role auth.Role) auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: role}
}

func (f *fixture) open(t *testing.T) *PatientVisit {
	t.Helper()
	v, err := f.svc.FrontDeskClockIn(context.Background(),
		FrontDeskInput{PatientID: f.patient.ID, BranchID: f.patient.BranchID},
		actorWith(auth.RoleFrontDesk))
	if err != nil {
		t.Fatalf("front desk clock-in: %v", err)
	}
	return v
}

// advance clocks out of the current stage and hands off.
func (f *fixture) advance(t *testing.T, v *PatientVisit, actor auth.Actor) {
	t.Helper()
	if _, err := f.svc.ClockOut(context.Background(), v.ID, actor, nil, nil); err != nil {
		t.Fatalf("clock out of %s: %v", v.CurrentStage, err)
	}
	if _, err := f.svc.Handoff(context.Background(), v.ID, actor); err != nil {
		t.Fatalf("handoff from %s: %v", v.CurrentStage, err)
	}
}

// -- Tests --

func TestFrontDeskClockIn_CreatesVisitAtFrontDesk(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	if v.CurrentStage != StageFrontDesk {
		t.Errorf("expected front_desk stage, got %s", v.CurrentStage)
	}
	if v.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", v.Status)
	}
	sr, err := f.repo.GetStage(context.Background(), v.ID, StageFrontDesk)
	if err != nil {
		t.Fatalf("stage record: %v", err)
	}
	if !sr.Open() {
		t.Error("expected open front-desk clock-in")
	}
}

func TestFrontDeskClockIn_UnknownPatient(t *testing.T) {
	f := newFixture()
	_, err := f.svc.FrontDeskClockIn(context.Background(),
		FrontDeskInput{PatientID: uuid.New()}, actorWith(auth.RoleFrontDesk))
	if !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestFrontDeskClockIn_RejectsSecondActiveVisit(t *testing.T) {
	f := newFixture()
	first := f.open(t)

	_, err := f.svc.FrontDeskClockIn(context.Background(),
		FrontDeskInput{PatientID: f.patient.ID, BranchID: f.patient.BranchID},
		actorWith(auth.RoleFrontDesk))
	var active *ErrActiveVisitExists
	if !errors.As(err, &active) {
		t.Fatalf("expected ErrActiveVisitExists, got %v", err)
	}
	if active.VisitNumber != first.VisitNumber {
		t.Errorf("expected conflict to carry %s, got %s", first.VisitNumber, active.VisitNumber)
	}
}

func TestClockIn_RejectsEveryWrongStage(t *testing.T) {
	f := newFixture()
	v := f.open(t)

	// visit sits at front_desk; every downstream clock-in must fail
	var mismatch *ErrStageMismatch
	if _, err := f.svc.NurseClockIn(context.Background(),
		NurseInput{VisitID: v.ID}, actorWith(auth.RoleNurse)); !errors.As(err, &mismatch) {
		t.Errorf("nurse: expected stage mismatch, got %v", err)
	}
	diag := "malaria"
	if _, err := f.svc.DoctorClockIn(context.Background(),
		DoctorInput{VisitID: v.ID, Consultation: Consultation{Diagnosis: &diag}},
		actorWith(auth.RoleDoctor)); !errors.As(err, &mismatch) {
		t.Errorf("doctor: expected stage mismatch, got %v", err)
	}
	if _, err := f.svc.LabClockIn(context.Background(),
		LabInput{VisitID: v.ID, Results: []LabResultInput{{TestID: uuid.New(), Findings: "x"}}},
		actorWith(auth.RoleLab)); !errors.As(err, &mismatch) {
		t.Errorf("lab: expected stage mismatch, got %v", err)
	}
	if _, err := f.svc.PharmacyClockIn(context.Background(),
		PharmacyInput{VisitID: v.ID}, actorWith(auth.RolePharmacy)); !errors.As(err, &mismatch) {
		t.Errorf("pharmacy: expected stage mismatch, got %v", err)
	}
	if _, err := f.svc.BillingClockIn(context.Background(),
		BillingInput{VisitID: v.ID}, actorWith(auth.RoleBilling)); !errors.As(err, &mismatch) {
		t.Errorf("billing: expected stage mismatch, got %v", err)
	}
}

func TestClockIn_RejectsDoubleClockIn(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))

	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse clock-in: %v", err)
	}
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); !errors.Is(err, ErrAlreadyClocked) {
		t.Errorf("expected ErrAlreadyClocked, got %v", err)
	}
}

func TestHandoff_RequiresResolvedClockIn(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	// open clock-in at front_desk: handoff must refuse
	if _, err := f.svc.Handoff(context.Background(), v.ID, actorWith(auth.RoleFrontDesk)); err == nil {
		t.Error("expected handoff to require a resolved clock-in")
	}
}

func TestDoctorClockIn_EmitsPrescriptionWithoutAdvancing(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))

	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse clock-in: %v", err)
	}
	f.advance(t, v, nurse)

	diag := "malaria"
	doctor := actorWith(auth.RoleDoctor)
	got, err := f.svc.DoctorClockIn(context.Background(), DoctorInput{
		VisitID:      v.ID,
		Consultation: Consultation{Diagnosis: &diag},
		Prescriptions: []prescription.Medication{
			{Name: "Artemether", Dosage: "80mg", Frequency: "2x daily", Duration: "3 days", Quantity: 6},
		},
	}, doctor)
	if err != nil {
		t.Fatalf("doctor clock-in: %v", err)
	}

	batches, _ := f.rx.ListByVisit(context.Background(), v.ID)
	if len(batches) != 1 {
		t.Fatalf("expected 1 prescription batch, got %d", len(batches))
	}
	if batches[0].PrescriptionNumber != "RX000001" {
		t.Errorf("expected RX000001, got %s", batches[0].PrescriptionNumber)
	}
	if got.CurrentStage != StageDoctor {
		t.Errorf("clock-in must not advance the stage, got %s", got.CurrentStage)
	}
}

func TestDoctorClockIn_RequiresDiagnosis(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	_, err := f.svc.DoctorClockIn(context.Background(),
		DoctorInput{VisitID: v.ID}, actorWith(auth.RoleDoctor))
	if err == nil {
		t.Error("expected error for missing diagnosis")
	}
}

func TestDoctorClockIn_EmitsLabOrders(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))
	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse clock-in: %v", err)
	}
	f.advance(t, v, nurse)

	diag := "suspected typhoid"
	if _, err := f.svc.DoctorClockIn(context.Background(), DoctorInput{
		VisitID:      v.ID,
		Consultation: Consultation{Diagnosis: &diag},
		LabOrders: []LabOrderInput{
			{TestName: "Widal Test"},
			{TestName: "Full Blood Count", Priority: labtest.PriorityUrgent},
		},
	}, actorWith(auth.RoleDoctor)); err != nil {
		t.Fatalf("doctor clock-in: %v", err)
	}
	if len(f.labs.tests) != 2 {
		t.Fatalf("expected 2 lab orders, got %d", len(f.labs.tests))
	}
	for _, lt := range f.labs.tests {
		if lt.VisitID == nil || *lt.VisitID != v.ID {
			t.Error("expected lab order tied to the visit")
		}
		if lt.Status != labtest.StatusPending {
			t.Errorf("expected pending order, got %s", lt.Status)
		}
	}
}

func TestFullPipeline_CompletesAtBilling(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))

	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse: %v", err)
	}
	f.advance(t, v, nurse)

	diag := "malaria"
	doctor := actorWith(auth.RoleDoctor)
	if _, err := f.svc.DoctorClockIn(context.Background(), DoctorInput{
		VisitID: v.ID, Consultation: Consultation{Diagnosis: &diag},
		LabOrders: []LabOrderInput{{TestName: "Malaria Parasite"}},
	}, doctor); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	f.advance(t, v, doctor)

	var testID uuid.UUID
	for id := range f.labs.tests {
		testID = id
	}
	lab := actorWith(auth.RoleLab)
	if _, err := f.svc.LabClockIn(context.Background(), LabInput{
		VisitID: v.ID,
		Results: []LabResultInput{{TestID: testID, Findings: "parasites seen"}},
	}, lab); err != nil {
		t.Fatalf("lab: %v", err)
	}
	if f.labs.tests[testID].Status != labtest.StatusCompleted {
		t.Error("expected lab result to complete the test")
	}
	f.advance(t, v, lab)

	pharmacy := actorWith(auth.RolePharmacy)
	if _, err := f.svc.PharmacyClockIn(context.Background(), PharmacyInput{VisitID: v.ID}, pharmacy); err != nil {
		t.Fatalf("pharmacy: %v", err)
	}
	f.advance(t, v, pharmacy)

	billing := actorWith(auth.RoleBilling)
	if _, err := f.svc.BillingClockIn(context.Background(), BillingInput{VisitID: v.ID}, billing); err != nil {
		t.Fatalf("billing: %v", err)
	}
	if _, err := f.svc.ClockOut(context.Background(), v.ID, billing, nil, nil); err != nil {
		t.Fatalf("billing clock-out: %v", err)
	}
	got, err := f.svc.Handoff(context.Background(), v.ID, billing)
	if err != nil {
		t.Fatalf("final handoff: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed visit, got %s", got.Status)
	}
	if got.CompletedAt == nil || got.CompletedBy == nil {
		t.Error("expected final clock-out stamps")
	}
}

func TestReturn_ParksVisitAndReEntersAtFrontDesk(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))

	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse: %v", err)
	}
	reason := "patient left for payment"
	got, err := f.svc.Return(context.Background(), v.ID, nurse, &reason)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if got.CurrentStage != StageReturned {
		t.Errorf("expected returned_to_front_desk, got %s", got.CurrentStage)
	}

	// re-entry hands back to front_desk with a fresh open clock-in
	frontDesk := actorWith(auth.RoleFrontDesk)
	got, err = f.svc.Handoff(context.Background(), v.ID, frontDesk)
	if err != nil {
		t.Fatalf("re-entry: %v", err)
	}
	if got.CurrentStage != StageFrontDesk {
		t.Errorf("expected front_desk after re-entry, got %s", got.CurrentStage)
	}
	sr, err := f.repo.GetStage(context.Background(), v.ID, StageFrontDesk)
	if err != nil {
		t.Fatalf("stage record: %v", err)
	}
	if !sr.Open() {
		t.Error("expected re-opened front-desk clock-in")
	}
}

func TestCancel_NonTerminalOnly(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	if _, err := f.svc.Cancel(context.Background(), v.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), v.ID); !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
}

func TestDetail_BuildsAscendingTimeline(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	frontDesk := actorWith(auth.RoleFrontDesk)
	f.advance(t, v, frontDesk)
	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse: %v", err)
	}

	_, timeline, err := f.svc.Detail(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(timeline) != 3 {
		t.Fatalf("expected 3 timeline entries, got %d", len(timeline))
	}
	if timeline[0].Stage != StageFrontDesk || timeline[0].Event != "clock_in" {
		t.Errorf("expected front-desk clock_in first, got %s/%s", timeline[0].Stage, timeline[0].Event)
	}
	if timeline[2].Stage != StageNurse {
		t.Errorf("expected nurse entry last, got %s", timeline[2].Stage)
	}
}

func TestQueue_PinsWorkflowRoleToOwnStage(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))

	// visit now at nurse stage
	nurse := actorWith(auth.RoleNurse)
	got, total, err := f.svc.Queue(context.Background(), nurse, "", uuid.Nil, "", 20, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if total != 1 || got[0].ID != v.ID {
		t.Fatalf("expected the nurse queue to hold the visit, got %d", total)
	}

	doctor := actorWith(auth.RoleDoctor)
	_, total, err = f.svc.Queue(context.Background(), doctor, "", uuid.Nil, "", 20, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if total != 0 {
		t.Errorf("expected empty doctor queue, got %d", total)
	}
}

func TestQueue_FrontDeskSeesReturnedVisits(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))
	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse: %v", err)
	}
	reason := "missing folder"
	if _, err := f.svc.Return(context.Background(), v.ID, nurse, &reason); err != nil {
		t.Fatalf("return: %v", err)
	}

	frontDesk := actorWith(auth.RoleFrontDesk)
	_, total, err := f.svc.Queue(context.Background(), frontDesk, "", uuid.Nil, "", 20, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if total != 1 {
		t.Errorf("expected returned visit in front-desk queue, got %d", total)
	}
}

func TestClockIn_ReEntryWalksPipelineAgain(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))

	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("first nurse clock-in: %v", err)
	}
	reason := "wrong branch folder"
	if _, err := f.svc.Return(context.Background(), v.ID, nurse, &reason); err != nil {
		t.Fatalf("return: %v", err)
	}

	// re-entry: handoff from returned re-opens front_desk
	frontDesk := actorWith(auth.RoleFrontDesk)
	got, err := f.svc.Handoff(context.Background(), v.ID, frontDesk)
	if err != nil {
		t.Fatalf("re-entry handoff: %v", err)
	}
	if got.CurrentStage != StageFrontDesk {
		t.Fatalf("expected front_desk after re-entry, got %s", got.CurrentStage)
	}
	f.advance(t, got, frontDesk)

	// the first-pass nurse record is resolved, so the nurse can clock
	// in again on the second pass
	temp := 37.2
	if _, err := f.svc.NurseClockIn(context.Background(),
		NurseInput{VisitID: v.ID, Vitals: Vitals{Temperature: &temp}}, nurse); err != nil {
		t.Fatalf("second nurse clock-in after re-entry: %v", err)
	}
	sr, err := f.repo.GetStage(context.Background(), v.ID, StageNurse)
	if err != nil {
		t.Fatalf("nurse stage record: %v", err)
	}
	if !sr.Open() {
		t.Error("expected re-opened nurse clock-in")
	}
	if sr.Vitals == nil || sr.Vitals.Temperature == nil || *sr.Vitals.Temperature != temp {
		t.Error("expected second-pass vitals on the re-opened record")
	}
}

func TestFrontDeskClockIn_IndexRaceBecomesConflict(t *testing.T) {
	f := newFixture()
	f.repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "uq_visit_active_patient"}

	_, err := f.svc.FrontDeskClockIn(context.Background(),
		FrontDeskInput{PatientID: f.patient.ID, BranchID: f.patient.BranchID},
		actorWith(auth.RoleFrontDesk))
	var active *ErrActiveVisitExists
	if !errors.As(err, &active) {
		t.Fatalf("expected ErrActiveVisitExists from index violation, got %v", err)
	}
}

func TestDoctorClockIn_RejectsIncompleteMedication(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))
	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse: %v", err)
	}
	f.advance(t, v, nurse)

	diag := "malaria"
	_, err := f.svc.DoctorClockIn(context.Background(), DoctorInput{
		VisitID:       v.ID,
		Consultation:  Consultation{Diagnosis: &diag},
		Prescriptions: []prescription.Medication{{Name: "Artemether"}},
	}, actorWith(auth.RoleDoctor))
	var invalid *ErrInvalidInput
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
	if len(f.rx.items) != 0 {
		t.Error("expected no prescription to persist")
	}
}

func TestDoctorClockIn_RejectsUnknownLabPriority(t *testing.T) {
	f := newFixture()
	v := f.open(t)
	f.advance(t, v, actorWith(auth.RoleFrontDesk))
	nurse := actorWith(auth.RoleNurse)
	if _, err := f.svc.NurseClockIn(context.Background(), NurseInput{VisitID: v.ID}, nurse); err != nil {
		t.Fatalf("nurse: %v", err)
	}
	f.advance(t, v, nurse)

	diag := "malaria"
	_, err := f.svc.DoctorClockIn(context.Background(), DoctorInput{
		VisitID:      v.ID,
		Consultation: Consultation{Diagnosis: &diag},
		LabOrders:    []LabOrderInput{{TestName: "Malaria Parasite", Priority: "asap"}},
	}, actorWith(auth.RoleDoctor))
	var invalid *ErrInvalidInput
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
	if len(f.labs.tests) != 0 {
		t.Error("expected no lab test to persist")
	}
}

func TestDetail_TimelineOrdersByTimestampAcrossReturn(t *testing.T) {
	f := newFixture()
	v := f.open(t)

	base := time.Now().Add(-time.Hour)
	t1, t2 := base, base.Add(10*time.Minute)
	t3, t4 := base.Add(20*time.Minute), base.Add(30*time.Minute)
	fdIn := t4
	// nurse pass happened first; the front-desk record was re-opened later
	f.repo.stages[v.ID] = map[Stage]*StageRecord{
		StageNurse: {
			VisitID: v.ID, Stage: StageNurse,
			ClockedInAt: &t1, ClockedOutAt: &t2,
		},
		StageReturned: {
			VisitID: v.ID, Stage: StageReturned,
			ClockedInAt: &t3, ClockedOutAt: &t3,
		},
		StageFrontDesk: {
			VisitID: v.ID, Stage: StageFrontDesk,
			ClockedInAt: &fdIn,
		},
	}

	_, timeline, err := f.svc.Detail(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].At.Before(timeline[i-1].At) {
			t.Fatalf("timeline not ascending by timestamp: %s %s at %d before %s %s",
				timeline[i].Stage, timeline[i].Event, i, timeline[i-1].Stage, timeline[i-1].Event)
		}
	}
	last := timeline[len(timeline)-1]
	if last.Stage != StageFrontDesk || last.Event != "clock_in" {
		t.Errorf("expected the late front-desk re-entry last, got %s %s", last.Stage, last.Event)
	}
}
