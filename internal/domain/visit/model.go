package visit

import (
	"time"

	"github.com/google/uuid"
)

// PatientVisit maps to the patient_visit table. One row per pipeline run;
// at most one in_progress row per patient (enforced by a partial unique
// index).
type PatientVisit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	VisitNumber   string     `db:"visit_number" json:"visit_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	BranchID      uuid.UUID  `db:"branch_id" json:"branch_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	CurrentStage  Stage      `db:"current_stage" json:"current_stage"`
	Status        string     `db:"status" json:"status"`

	AssignedDoctor   *uuid.UUID `db:"assigned_doctor" json:"assigned_doctor,omitempty"`
	AssignedNurse    *uuid.UUID `db:"assigned_nurse" json:"assigned_nurse,omitempty"`
	AssignedLab      *uuid.UUID `db:"assigned_lab" json:"assigned_lab,omitempty"`
	AssignedPharmacy *uuid.UUID `db:"assigned_pharmacy" json:"assigned_pharmacy,omitempty"`
	AssignedBilling  *uuid.UUID `db:"assigned_billing" json:"assigned_billing,omitempty"`

	CompletedBy *uuid.UUID `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Loaded on detail reads only.
	Stages []*StageRecord `db:"-" json:"stages,omitempty"`
}

// Vitals is the nurse-stage payload.
type Vitals struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	BloodPressure    *string  `json:"blood_pressure,omitempty"`
	Pulse            *int     `json:"pulse,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`
}

// Consultation is the doctor-stage payload.
type Consultation struct {
	ChiefComplaint *string `json:"chief_complaint,omitempty"`
	History        *string `json:"history,omitempty"`
	Examination    *string `json:"examination,omitempty"`
	Diagnosis      *string `json:"diagnosis,omitempty"`
	TreatmentPlan  *string `json:"treatment_plan,omitempty"`
}

// StageRecord maps to the visit_stage table: one row per visit+stage,
// re-opened on returned-visit re-entry.
type StageRecord struct {
	ID      uuid.UUID `db:"id" json:"id"`
	VisitID uuid.UUID `db:"visit_id" json:"visit_id"`
	Stage   Stage     `db:"stage" json:"stage"`

	ClockedInBy  *uuid.UUID `db:"clocked_in_by" json:"clocked_in_by,omitempty"`
	ClockedInAt  *time.Time `db:"clocked_in_at" json:"clocked_in_at,omitempty"`
	ClockedOutBy *uuid.UUID `db:"clocked_out_by" json:"clocked_out_by,omitempty"`
	ClockedOutAt *time.Time `db:"clocked_out_at" json:"clocked_out_at,omitempty"`

	Notes      *string `db:"notes" json:"notes,omitempty"`
	NextAction *string `db:"next_action" json:"next_action,omitempty"`

	Vitals       *Vitals       `db:"-" json:"vitals,omitempty"`
	Consultation *Consultation `db:"-" json:"consultation,omitempty"`
	LabSummary   *string       `db:"lab_summary" json:"lab_summary,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Open reports whether the record has an unresolved clock-in.
func (r *StageRecord) Open() bool {
	return r.ClockedInAt != nil && r.ClockedOutAt == nil
}

// TimelineEntry is one row of the derived visit history.
type TimelineEntry struct {
	Stage Stage      `json:"stage"`
	Event string     `json:"event"`
	Actor *uuid.UUID `json:"actor,omitempty"`
	At    time.Time  `json:"at"`
	Notes *string    `json:"notes,omitempty"`
}
