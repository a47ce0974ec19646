package admission

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	BranchID  uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	Update(ctx context.Context, a *Admission) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error)
	AddNote(ctx context.Context, n *DailyNote) error
	ListNotes(ctx context.Context, admissionID uuid.UUID) ([]*DailyNote, error)
}
