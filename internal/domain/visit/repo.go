package visit

import (
	"context"

	"github.com/google/uuid"
)

// QueueFilter scopes the stage worklist. Stages holds the stage(s) visible
// to the requester (front desk also sees returned visits). StaffID filters
// to unassigned-or-assigned-to-staff when set.
type QueueFilter struct {
	Stages   []Stage
	BranchID uuid.UUID
	StaffID  uuid.UUID
	Search   string
}

// ListFilter is the generic visit listing (admin/reporting reads).
type ListFilter struct {
	PatientID uuid.UUID
	BranchID  uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, v *PatientVisit) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientVisit, error)
	Update(ctx context.Context, v *PatientVisit) error
	ActiveByPatient(ctx context.Context, patientID uuid.UUID) (*PatientVisit, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*PatientVisit, int, error)
	Queue(ctx context.Context, f QueueFilter, limit, offset int) ([]*PatientVisit, int, error)

	CreateStage(ctx context.Context, sr *StageRecord) error
	GetStage(ctx context.Context, visitID uuid.UUID, stage Stage) (*StageRecord, error)
	UpdateStage(ctx context.Context, sr *StageRecord) error
	ListStages(ctx context.Context, visitID uuid.UUID) ([]*StageRecord, error)
}
