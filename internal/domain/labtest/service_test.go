package labtest

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	tests map[uuid.UUID]*LabTest
	seq   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{tests: make(map[uuid.UUID]*LabTest)}
}

func (m *mockRepo) Create(_ context.Context, lt *LabTest) error {
	lt.ID = uuid.New()
	m.seq++
	if lt.TestNumber == "" {
		lt.TestNumber = FormatTestNumber(m.seq)
	}
	lt.CreatedAt = time.Now()
	lt.UpdatedAt = time.Now()
	m.tests[lt.ID] = lt
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*LabTest, error) {
	lt, ok := m.tests[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return lt, nil
}

func (m *mockRepo) Update(_ context.Context, lt *LabTest) error {
	m.tests[lt.ID] = lt
	return nil
}

func (m *mockRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*LabTest, error) {
	var result []*LabTest
	for _, lt := range m.tests {
		if lt.VisitID != nil && *lt.VisitID == visitID {
			result = append(result, lt)
		}
	}
	return result, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*LabTest, int, error) {
	rank := map[string]int{PriorityStat: 0, PriorityUrgent: 1, PriorityRoutine: 2}
	var result []*LabTest
	for _, lt := range m.tests {
		if f.Status != "" {
			if lt.Status != f.Status {
				continue
			}
		} else if lt.Status != StatusPending && lt.Status != StatusInProgress {
			continue
		}
		if f.BranchID != uuid.Nil && lt.BranchID != f.BranchID {
			continue
		}
		if f.PatientID != uuid.Nil && lt.PatientID != f.PatientID {
			continue
		}
		result = append(result, lt)
	}
	sort.Slice(result, func(i, j int) bool {
		return rank[result[i].Priority] < rank[result[j].Priority]
	})
	return result, len(result), nil
}

func testOrder() *LabTest {
	visitID := uuid.New()
	return &LabTest{
		VisitID:   &visitID,
		PatientID: uuid.New(),
		OrderedBy: uuid.New(),
		BranchID:  uuid.New(),
		TestName:  "Full Blood Count",
	}
}

// -- Tests --

func TestOrder_RequiresTestName(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	lt.TestName = ""
	if err := svc.Order(context.Background(), lt); err == nil {
		t.Error("expected error for missing test_name")
	}
}

func TestOrder_DefaultsPriorityAndStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	if err := svc.Order(context.Background(), lt); err != nil {
		t.Fatalf("order: %v", err)
	}
	if lt.Priority != PriorityRoutine {
		t.Errorf("expected routine priority, got %s", lt.Priority)
	}
	if lt.Status != StatusPending {
		t.Errorf("expected pending status, got %s", lt.Status)
	}
	if lt.TestNumber != "TE000001" {
		t.Errorf("expected TE000001, got %s", lt.TestNumber)
	}
}

func TestOrder_RejectsInvalidPriority(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	lt.Priority = "asap"
	if err := svc.Order(context.Background(), lt); err == nil {
		t.Error("expected error for invalid priority")
	}
}

func TestOrder_StandaloneWithoutVisit(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	lt.VisitID = nil
	if err := svc.Order(context.Background(), lt); err != nil {
		t.Fatalf("order: %v", err)
	}
	if lt.VisitID != nil {
		t.Error("expected visit_id to stay nil for walk-in lab work")
	}
}

func TestComplete_RequiresFindings(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	if err := svc.Order(context.Background(), lt); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := svc.Complete(context.Background(), lt.ID, uuid.New(), Result{}); err != ErrMissingResult {
		t.Errorf("expected ErrMissingResult, got %v", err)
	}
}

func TestComplete_RecordsResultAndTechnician(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	if err := svc.Order(context.Background(), lt); err != nil {
		t.Fatalf("order: %v", err)
	}
	tech := uuid.New()
	rng := "4.0-11.0 x10^9/L"
	got, err := svc.Complete(context.Background(), lt.ID, tech, Result{
		Findings: "WBC 6.2 x10^9/L", NormalRange: &rng,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Findings == nil || *got.Findings != "WBC 6.2 x10^9/L" {
		t.Error("expected findings to be recorded")
	}
	if got.NormalRange == nil || *got.NormalRange != rng {
		t.Error("expected normal range to be recorded")
	}
	if got.PerformedBy == nil || *got.PerformedBy != tech {
		t.Error("expected performed_by to record the technician")
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestComplete_RejectsFinalized(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	if err := svc.Order(context.Background(), lt); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := svc.Complete(context.Background(), lt.ID, uuid.New(), Result{Findings: "negative"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Complete(context.Background(), lt.ID, uuid.New(), Result{Findings: "positive"}); err != ErrFinalized {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
}

func TestCancel_RejectsCompleted(t *testing.T) {
	svc := NewService(newMockRepo())
	lt := testOrder()
	if err := svc.Order(context.Background(), lt); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := svc.Complete(context.Background(), lt.ID, uuid.New(), Result{Findings: "negative"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), lt.ID); err != ErrFinalized {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
}

func TestList_OrdersByPriority(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	branch := uuid.New()

	routine := testOrder()
	routine.BranchID = branch
	stat := testOrder()
	stat.BranchID = branch
	stat.Priority = PriorityStat

	if err := svc.Order(context.Background(), routine); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := svc.Order(context.Background(), stat); err != nil {
		t.Fatalf("order: %v", err)
	}

	got, total, err := svc.List(context.Background(), ListFilter{BranchID: branch}, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 pending, got %d", total)
	}
	if got[0].Priority != PriorityStat {
		t.Errorf("expected stat order first, got %s", got[0].Priority)
	}
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, _, err := svc.List(context.Background(), ListFilter{Status: "done"}, 20, 0); err == nil {
		t.Error("expected error for unknown status filter")
	}
}
