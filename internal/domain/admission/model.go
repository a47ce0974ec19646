package admission

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Status values for an admission.
const (
	StatusAdmitted    = "ADMITTED"
	StatusDischarged  = "DISCHARGED"
	StatusTransferred = "TRANSFERRED"
	StatusCancelled   = "CANCELLED"
)

// Admission maps to the admission table.
type Admission struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AdmissionNumber string     `db:"admission_number" json:"admission_number"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	BranchID        uuid.UUID  `db:"branch_id" json:"branch_id"`
	AdmittedBy      uuid.UUID  `db:"admitted_by" json:"admitted_by"`
	PrimaryDoctor   *uuid.UUID `db:"primary_doctor" json:"primary_doctor,omitempty"`
	Ward            *string    `db:"ward" json:"ward,omitempty"`
	Room            *string    `db:"room" json:"room,omitempty"`
	Bed             *string    `db:"bed" json:"bed,omitempty"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	AdmissionDate   time.Time  `db:"admission_date" json:"admission_date"`
	DischargeDate   *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`
	DailyRate       float64    `db:"daily_rate" json:"daily_rate"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Notes []*DailyNote `db:"-" json:"notes,omitempty"`
}

// DailyNote maps to the admission_note table.
type DailyNote struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	AuthorID    uuid.UUID `db:"author_id" json:"author_id"`
	Note        string    `db:"note" json:"note"`
	Vitals      *string   `db:"vitals" json:"vitals,omitempty"`
	Medications *string   `db:"medications" json:"medications,omitempty"`
	Procedures  *string   `db:"procedures" json:"procedures,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BilledDays counts chargeable days: any started 24h block counts as a
// full day, with a minimum of one. The clock stops at discharge.
func (a *Admission) BilledDays(now time.Time) int {
	end := now
	if a.DischargeDate != nil {
		end = *a.DischargeDate
	}
	elapsed := end.Sub(a.AdmissionDate)
	if elapsed <= 0 {
		return 1
	}
	days := int(math.Ceil(elapsed.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// TotalBillingAmount is always derived, never a stored mutable field.
func (a *Admission) TotalBillingAmount(now time.Time) float64 {
	return a.DailyRate * float64(a.BilledDays(now))
}

// FormatAdmissionNumber renders a sequence value as ADM{000001}.
func FormatAdmissionNumber(seq int64) string {
	return fmt.Sprintf("ADM%06d", seq)
}
