package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a prescription batch. Batches are normally
// emitted by the doctor-consultation flow, but the endpoint exists so a
// doctor can add a follow-up batch to an open visit.
func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if len(p.Medications) == 0 {
		return ErrNoMedications
	}
	for _, m := range p.Medications {
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" || m.Duration == "" {
			return ErrNoMedications
		}
	}
	p.Status = StatusActive
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

// Dispense marks an active batch as dispensed and stamps who handed it out.
func (s *Service) Dispense(ctx context.Context, id, pharmacistID uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if p.Status != StatusActive {
		return nil, ErrNotActive
	}
	now := time.Now()
	p.Status = StatusDispensed
	p.DispensedBy = &pharmacistID
	p.DispensedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if p.Status != StatusActive {
		return nil, ErrNotActive
	}
	p.Status = StatusCancelled
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListByVisit(ctx, visitID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
