package labtest

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows the worklist query. Zero values mean "no filter";
// an empty Status defaults to open orders (pending + in_progress).
type ListFilter struct {
	BranchID  uuid.UUID
	PatientID uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, lt *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	Update(ctx context.Context, lt *LabTest) error
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabTest, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*LabTest, int, error)
}
