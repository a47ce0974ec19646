package labtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status values for a lab test order.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Priority values. STAT orders sort ahead of urgent, urgent ahead of routine.
const (
	PriorityRoutine = "routine"
	PriorityUrgent  = "urgent"
	PriorityStat    = "stat"
)

// LabTest maps to the lab_test table. Orders are emitted by the doctor
// consultation, or created standalone for walk-in lab work (visit_id null).
type LabTest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TestNumber  string     `db:"test_number" json:"test_number"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	OrderedBy   uuid.UUID  `db:"ordered_by" json:"ordered_by"`
	BranchID    uuid.UUID  `db:"branch_id" json:"branch_id"`
	TestName    string     `db:"test_name" json:"test_name"`
	Category    *string    `db:"category" json:"category,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	Price       *float64   `db:"price" json:"price,omitempty"`
	Priority    string     `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	Findings    *string    `db:"findings" json:"findings,omitempty"`
	NormalRange *string    `db:"normal_range" json:"normal_range,omitempty"`
	Remarks     *string    `db:"remarks" json:"remarks,omitempty"`
	PerformedBy *uuid.UUID `db:"performed_by" json:"performed_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Result is the payload recorded when a test is completed.
type Result struct {
	Findings    string  `json:"findings"`
	NormalRange *string `json:"normal_range,omitempty"`
	Remarks     *string `json:"remarks,omitempty"`
}

// FormatTestNumber renders a sequence value as TE{000001}. The counter is
// global across branches.
func FormatTestNumber(seq int64) string {
	return fmt.Sprintf("TE%06d", seq)
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityStat:
		return true
	}
	return false
}
