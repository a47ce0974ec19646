package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/domain/patient"
)

type Service struct {
	repo     Repository
	patients patient.Repository
}

func NewService(repo Repository, patients patient.Repository) *Service {
	return &Service{repo: repo, patients: patients}
}

func (s *Service) Admit(ctx context.Context, a *Admission) error {
	if _, err := s.patients.GetByID(ctx, a.PatientID); err != nil {
		return fmt.Errorf("patient not found")
	}
	if a.DailyRate < 0 {
		return fmt.Errorf("daily_rate cannot be negative")
	}
	a.Status = StatusAdmitted
	if a.AdmissionDate.IsZero() {
		a.AdmissionDate = time.Now()
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Notes = notes
	return a, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) AddNote(ctx context.Context, n *DailyNote) error {
	if n.Note == "" {
		return fmt.Errorf("note text is required")
	}
	a, err := s.repo.GetByID(ctx, n.AdmissionID)
	if err != nil {
		return ErrNotFound
	}
	if a.Status != StatusAdmitted {
		return ErrNotAdmitted
	}
	return s.repo.AddNote(ctx, n)
}

type UpdateInput struct {
	PrimaryDoctor *uuid.UUID `json:"primary_doctor,omitempty"`
	Ward          *string    `json:"ward,omitempty"`
	Room          *string    `json:"room,omitempty"`
	Bed           *string    `json:"bed,omitempty"`
	DailyRate     *float64   `json:"daily_rate,omitempty"`
}

// UpdateStay adjusts ward placement or rate on an active admission.
func (s *Service) UpdateStay(ctx context.Context, id uuid.UUID, in UpdateInput) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.Status != StatusAdmitted {
		return nil, ErrNotAdmitted
	}
	if in.PrimaryDoctor != nil {
		a.PrimaryDoctor = in.PrimaryDoctor
	}
	if in.Ward != nil {
		a.Ward = in.Ward
	}
	if in.Room != nil {
		a.Room = in.Room
	}
	if in.Bed != nil {
		a.Bed = in.Bed
	}
	if in.DailyRate != nil {
		if *in.DailyRate < 0 {
			return nil, fmt.Errorf("daily_rate cannot be negative")
		}
		a.DailyRate = *in.DailyRate
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Discharge sets the discharge date, which freezes the billed total.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.Status != StatusAdmitted {
		return nil, ErrNotAdmitted
	}
	now := time.Now()
	a.DischargeDate = &now
	a.Status = StatusDischarged
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Transfer closes the stay at this branch; a new admission is opened at
// the receiving branch.
func (s *Service) Transfer(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.Status != StatusAdmitted {
		return nil, ErrNotAdmitted
	}
	now := time.Now()
	a.DischargeDate = &now
	a.Status = StatusTransferred
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.Status != StatusAdmitted {
		return nil, ErrNotAdmitted
	}
	a.Status = StatusCancelled
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
