package patient

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientNumber   string     `db:"patient_number" json:"patient_number"`
	BranchID        uuid.UUID  `db:"branch_id" json:"branch_id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	DateOfBirth     *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender          *string    `db:"gender" json:"gender,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	Address         *string    `db:"address" json:"address,omitempty"`
	BloodGroup      *string    `db:"blood_group" json:"blood_group,omitempty"`
	Allergies       *string    `db:"allergies" json:"allergies,omitempty"`
	InsuranceProvider *string  `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsurancePolicy   *string  `db:"insurance_policy" json:"insurance_policy,omitempty"`
	InsuranceCoverage *float64 `db:"insurance_coverage" json:"insurance_coverage,omitempty"` // percent 0-100
	Active          bool       `db:"active" json:"active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the display name used in queue listings.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// HasInsurance reports whether the record carries usable coverage details.
func (p *Patient) HasInsurance() bool {
	return p.InsuranceProvider != nil && p.InsurancePolicy != nil
}

// FormatPatientNumber renders a sequence value as PT{000001}.
func FormatPatientNumber(seq int64) string {
	return fmt.Sprintf("PT%06d", seq)
}
