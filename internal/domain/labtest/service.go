package labtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Order validates and persists a lab test order. Used both by the
// doctor-consultation flow and by standalone walk-in lab work.
func (s *Service) Order(ctx context.Context, lt *LabTest) error {
	if lt.TestName == "" {
		return fmt.Errorf("test_name is required")
	}
	if lt.Priority == "" {
		lt.Priority = PriorityRoutine
	}
	if !ValidPriority(lt.Priority) {
		return fmt.Errorf("invalid priority: %s", lt.Priority)
	}
	lt.Status = StatusPending
	return s.repo.Create(ctx, lt)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.repo.GetByID(ctx, id)
}

// Start moves a pending order to in_progress and records the technician.
func (s *Service) Start(ctx context.Context, id, technicianID uuid.UUID) (*LabTest, error) {
	lt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if lt.Status != StatusPending && lt.Status != StatusInProgress {
		return nil, ErrFinalized
	}
	lt.Status = StatusInProgress
	lt.PerformedBy = &technicianID
	if err := s.repo.Update(ctx, lt); err != nil {
		return nil, err
	}
	return lt, nil
}

// Complete records the result and finalizes the order. Completing straight
// from pending is allowed; re-completing is not.
func (s *Service) Complete(ctx context.Context, id, technicianID uuid.UUID, res Result) (*LabTest, error) {
	if res.Findings == "" {
		return nil, ErrMissingResult
	}
	lt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if lt.Status == StatusCompleted || lt.Status == StatusCancelled {
		return nil, ErrFinalized
	}
	now := time.Now()
	lt.Status = StatusCompleted
	lt.Findings = &res.Findings
	lt.NormalRange = res.NormalRange
	lt.Remarks = res.Remarks
	lt.PerformedBy = &technicianID
	lt.CompletedAt = &now
	if err := s.repo.Update(ctx, lt); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	lt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if lt.Status == StatusCompleted || lt.Status == StatusCancelled {
		return nil, ErrFinalized
	}
	lt.Status = StatusCancelled
	if err := s.repo.Update(ctx, lt); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabTest, error) {
	return s.repo.ListByVisit(ctx, visitID)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*LabTest, int, error) {
	if f.Status != "" {
		switch f.Status {
		case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		default:
			return nil, 0, fmt.Errorf("invalid status: %s", f.Status)
		}
	}
	return s.repo.List(ctx, f, limit, offset)
}
