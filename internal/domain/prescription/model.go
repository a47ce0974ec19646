package prescription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status values for a prescription batch.
const (
	StatusActive    = "active"
	StatusDispensed = "dispensed"
	StatusCancelled = "cancelled"
)

// Prescription maps to the prescription table. One batch is emitted per
// doctor consultation that records medications.
type Prescription struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	PrescriptionNumber string       `db:"prescription_number" json:"prescription_number"`
	VisitID            uuid.UUID    `db:"visit_id" json:"visit_id"`
	PatientID          uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	BranchID           uuid.UUID    `db:"branch_id" json:"branch_id"`
	Status             string       `db:"status" json:"status"`
	Notes              *string      `db:"notes" json:"notes,omitempty"`
	DispensedBy        *uuid.UUID   `db:"dispensed_by" json:"dispensed_by,omitempty"`
	DispensedAt        *time.Time   `db:"dispensed_at" json:"dispensed_at,omitempty"`
	Medications        []Medication `db:"-" json:"medications,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// Medication maps to the prescription_medication table.
type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	Name           string    `db:"name" json:"name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	Duration       string    `db:"duration" json:"duration"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	Quantity       int       `db:"quantity" json:"quantity"`
}

// FormatPrescriptionNumber renders a sequence value as RX{000001}.
// The counter is global, not per-branch: the wire format carries no
// branch component.
func FormatPrescriptionNumber(seq int64) string {
	return fmt.Sprintf("RX%06d", seq)
}
