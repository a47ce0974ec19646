package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	seq      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.seq++
	if p.PatientNumber == "" {
		p.PatientNumber = FormatPatientNumber(m.seq)
	}
	p.Active = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) GetByNumber(_ context.Context, number string) (*Patient, error) {
	for _, p := range m.patients {
		if p.PatientNumber == number {
			return p, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	if p, ok := m.patients[id]; ok {
		p.Active = false
	}
	return nil
}

func (m *mockRepo) List(_ context.Context, branchID uuid.UUID, search string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if !p.Active {
			continue
		}
		if branchID != uuid.Nil && p.BranchID != branchID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.FullName()), strings.ToLower(search)) {
			continue
		}
		result = append(result, p)
	}
	return result, len(result), nil
}

// -- Tests --

func TestRegister_RequiresNames(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Register(context.Background(), &Patient{BranchID: uuid.New()})
	if err == nil {
		t.Error("expected error for missing names")
	}
}

func TestRegister_RequiresBranch(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Register(context.Background(), &Patient{FirstName: "Ada", LastName: "Eze"})
	if err == nil {
		t.Error("expected error for missing branch")
	}
}

func TestRegister_AssignsPatientNumber(t *testing.T) {
	svc := NewService(newMockRepo())
	p := &Patient{FirstName: "Ada", LastName: "Eze", BranchID: uuid.New()}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.PatientNumber != "PT000001" {
		t.Errorf("expected PT000001, got %s", p.PatientNumber)
	}
	if !p.Active {
		t.Error("expected new patient to be active")
	}
}

func TestRegister_InvalidGender(t *testing.T) {
	svc := NewService(newMockRepo())
	g := "unknown"
	err := svc.Register(context.Background(), &Patient{
		FirstName: "Ada", LastName: "Eze", BranchID: uuid.New(), Gender: &g,
	})
	if err == nil {
		t.Error("expected error for invalid gender")
	}
}

func TestRegister_InsuranceCoverageBounds(t *testing.T) {
	svc := NewService(newMockRepo())
	coverage := 150.0
	err := svc.Register(context.Background(), &Patient{
		FirstName: "Ada", LastName: "Eze", BranchID: uuid.New(), InsuranceCoverage: &coverage,
	})
	if err == nil {
		t.Error("expected error for coverage > 100")
	}
}

func TestList_FiltersByBranch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	b1, b2 := uuid.New(), uuid.New()
	svc.Register(context.Background(), &Patient{FirstName: "Ada", LastName: "Eze", BranchID: b1})
	svc.Register(context.Background(), &Patient{FirstName: "Bola", LastName: "Ade", BranchID: b2})

	got, total, err := svc.List(context.Background(), b1, "", 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].BranchID != b1 {
		t.Errorf("expected only branch-1 patient, got %d", total)
	}
}

func TestFormatPatientNumber(t *testing.T) {
	if got := FormatPatientNumber(42); got != "PT000042" {
		t.Errorf("expected PT000042, got %s", got)
	}
}
