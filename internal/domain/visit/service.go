package visit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/labtest"
	"github.com/medicore/medicore/internal/domain/patient"
	"github.com/medicore/medicore/internal/domain/prescription"
	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/db"
)

// Biller raises the consultation-fee invoice line at front-desk clock-in.
// Failures are logged, never fatal to the clock-in.
type Biller interface {
	ConsultationFee(ctx context.Context, patientID, visitID, branchID uuid.UUID) error
}

type Service struct {
	repo     Repository
	patients patient.Repository
	rx       prescription.Repository
	labs     labtest.Repository
	biller   Biller
	tx       db.TxStarter
	log      zerolog.Logger
}

// NewService wires the visit workflow. biller and tx may be nil: without a
// biller no consultation fee is raised, without a tx starter writes run on
// the ambient connection (tests).
func NewService(repo Repository, patients patient.Repository, rx prescription.Repository,
	labs labtest.Repository, biller Biller, tx db.TxStarter, log zerolog.Logger) *Service {
	return &Service{
		repo: repo, patients: patients, rx: rx, labs: labs,
		biller: biller, tx: tx, log: log,
	}
}

func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.tx, fn)
}

// -- Front desk --

type FrontDeskInput struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	BranchID       uuid.UUID  `json:"branch_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	AssignedDoctor *uuid.UUID `json:"assigned_doctor,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// FrontDeskClockIn opens a new visit. A patient can only have one
// in_progress visit at a time; the conflict error carries the existing
// visit number.
func (s *Service) FrontDeskClockIn(ctx context.Context, in FrontDeskInput, actor auth.Actor) (*PatientVisit, error) {
	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		return nil, ErrPatientNotFound
	}
	if existing, err := s.repo.ActiveByPatient(ctx, in.PatientID); err == nil && existing != nil {
		return nil, &ErrActiveVisitExists{VisitNumber: existing.VisitNumber}
	}

	v := &PatientVisit{
		PatientID:      in.PatientID,
		BranchID:       in.BranchID,
		AppointmentID:  in.AppointmentID,
		AssignedDoctor: in.AssignedDoctor,
		CurrentStage:   StageFrontDesk,
		Status:         StatusInProgress,
	}
	err := s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, v); err != nil {
			return err
		}
		now := time.Now()
		return s.repo.CreateStage(ctx, &StageRecord{
			VisitID:     v.ID,
			Stage:       StageFrontDesk,
			ClockedInBy: &actor.ID,
			ClockedInAt: &now,
			Notes:       in.Notes,
		})
	})
	if err != nil {
		// the partial unique index catches the race the read check missed
		if IsActiveVisitConflict(err) {
			if existing, lookupErr := s.repo.ActiveByPatient(ctx, in.PatientID); lookupErr == nil && existing != nil {
				return nil, &ErrActiveVisitExists{VisitNumber: existing.VisitNumber}
			}
			return nil, &ErrActiveVisitExists{}
		}
		return nil, err
	}

	if s.biller != nil && in.AssignedDoctor != nil {
		if err := s.biller.ConsultationFee(ctx, v.PatientID, v.ID, v.BranchID); err != nil {
			s.log.Warn().Err(err).
				Str("visit_number", v.VisitNumber).
				Msg("consultation fee invoice failed")
		}
	}
	return v, nil
}

// clockIn stamps the stage record for a visit parked at the expected stage.
// An open record rejects the clock-in; a resolved record is re-opened, which
// is how a returned visit passes through each stage a second time.
func (s *Service) clockIn(ctx context.Context, visitID uuid.UUID, expected Stage, actor auth.Actor,
	mutate func(v *PatientVisit, sr *StageRecord)) (*PatientVisit, error) {

	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, ErrNotFound
	}
	if v.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	if v.CurrentStage != expected {
		return nil, &ErrStageMismatch{Expected: expected, Actual: v.CurrentStage}
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		sr, err := s.repo.GetStage(ctx, visitID, expected)
		switch {
		case err == nil && sr.Open():
			return ErrAlreadyClocked
		case err == nil:
			sr.ClockedInBy = &actor.ID
			sr.ClockedInAt = &now
			sr.ClockedOutBy = nil
			sr.ClockedOutAt = nil
			if mutate != nil {
				mutate(v, sr)
			}
			if err := s.repo.UpdateStage(ctx, sr); err != nil {
				return err
			}
		default:
			sr = &StageRecord{
				VisitID:     visitID,
				Stage:       expected,
				ClockedInBy: &actor.ID,
				ClockedInAt: &now,
			}
			if mutate != nil {
				mutate(v, sr)
			}
			if err := s.repo.CreateStage(ctx, sr); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// -- Nurse --

type NurseInput struct {
	VisitID uuid.UUID `json:"visit_id"`
	Vitals  Vitals    `json:"vitals"`
	Notes   *string   `json:"notes,omitempty"`
}

func (s *Service) NurseClockIn(ctx context.Context, in NurseInput, actor auth.Actor) (*PatientVisit, error) {
	return s.clockIn(ctx, in.VisitID, StageNurse, actor, func(v *PatientVisit, sr *StageRecord) {
		vitals := in.Vitals
		sr.Vitals = &vitals
		sr.Notes = in.Notes
		if v.AssignedNurse == nil {
			v.AssignedNurse = &actor.ID
		}
	})
}

// -- Doctor --

type LabOrderInput struct {
	TestName    string   `json:"test_name"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

type DoctorInput struct {
	VisitID       uuid.UUID                 `json:"visit_id"`
	Consultation  Consultation              `json:"consultation"`
	Prescriptions []prescription.Medication `json:"prescriptions,omitempty"`
	LabOrders     []LabOrderInput           `json:"lab_orders,omitempty"`
	Notes         *string                   `json:"notes,omitempty"`
}

// DoctorClockIn records the consultation and emits the clinical
// sub-records in the same transaction: one prescription batch when
// medications are present, one lab test per order. The visit stays at the
// doctor stage until an explicit handoff.
func (s *Service) DoctorClockIn(ctx context.Context, in DoctorInput, actor auth.Actor) (*PatientVisit, error) {
	if in.Consultation.Diagnosis == nil || *in.Consultation.Diagnosis == "" {
		return nil, &ErrInvalidInput{Reason: "diagnosis is required"}
	}
	for _, m := range in.Prescriptions {
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" || m.Duration == "" {
			return nil, &ErrInvalidInput{Reason: "each medication needs name, dosage, frequency and duration"}
		}
	}
	for _, o := range in.LabOrders {
		if o.TestName == "" {
			return nil, &ErrInvalidInput{Reason: "lab order test_name is required"}
		}
		if o.Priority != "" && !labtest.ValidPriority(o.Priority) {
			return nil, &ErrInvalidInput{Reason: fmt.Sprintf("invalid lab order priority: %s", o.Priority)}
		}
	}

	var v *PatientVisit
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.clockIn(ctx, in.VisitID, StageDoctor, actor, func(v *PatientVisit, sr *StageRecord) {
			consult := in.Consultation
			sr.Consultation = &consult
			sr.Notes = in.Notes
			if v.AssignedDoctor == nil {
				v.AssignedDoctor = &actor.ID
			}
		})
		if err != nil {
			return err
		}
		if len(in.Prescriptions) > 0 {
			rxBatch := &prescription.Prescription{
				VisitID:     v.ID,
				PatientID:   v.PatientID,
				DoctorID:    actor.ID,
				BranchID:    v.BranchID,
				Status:      prescription.StatusActive,
				Medications: in.Prescriptions,
			}
			if err := s.rx.Create(ctx, rxBatch); err != nil {
				return err
			}
		}
		for _, o := range in.LabOrders {
			visitID := v.ID
			lt := &labtest.LabTest{
				VisitID:     &visitID,
				PatientID:   v.PatientID,
				OrderedBy:   actor.ID,
				BranchID:    v.BranchID,
				TestName:    o.TestName,
				Category:    o.Category,
				Description: o.Description,
				Price:       o.Price,
				Priority:    o.Priority,
				Notes:       o.Notes,
			}
			if err := s.labs.Create(ctx, lt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// -- Lab --

type LabResultInput struct {
	TestID      uuid.UUID `json:"test_id"`
	Findings    string    `json:"findings"`
	NormalRange *string   `json:"normal_range,omitempty"`
	Remarks     *string   `json:"remarks,omitempty"`
}

type LabInput struct {
	VisitID uuid.UUID        `json:"visit_id"`
	Results []LabResultInput `json:"results"`
	Notes   *string          `json:"notes,omitempty"`
}

// LabClockIn stamps the lab stage and completes each referenced test with
// its result, all in one transaction.
func (s *Service) LabClockIn(ctx context.Context, in LabInput, actor auth.Actor) (*PatientVisit, error) {
	if len(in.Results) == 0 {
		return nil, &ErrInvalidInput{Reason: "at least one lab result is required"}
	}
	for _, res := range in.Results {
		if res.Findings == "" {
			return nil, &ErrInvalidInput{Reason: "lab result findings are required"}
		}
	}

	summary := fmt.Sprintf("%d result(s) recorded", len(in.Results))
	var v *PatientVisit
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.clockIn(ctx, in.VisitID, StageLab, actor, func(v *PatientVisit, sr *StageRecord) {
			sr.LabSummary = &summary
			sr.Notes = in.Notes
			if v.AssignedLab == nil {
				v.AssignedLab = &actor.ID
			}
		})
		if err != nil {
			return err
		}
		now := time.Now()
		for _, res := range in.Results {
			lt, err := s.labs.GetByID(ctx, res.TestID)
			if err != nil {
				return fmt.Errorf("lab test %s: %w", res.TestID, labtest.ErrNotFound)
			}
			if lt.Status == labtest.StatusCompleted || lt.Status == labtest.StatusCancelled {
				return labtest.ErrFinalized
			}
			findings := res.Findings
			lt.Status = labtest.StatusCompleted
			lt.Findings = &findings
			lt.NormalRange = res.NormalRange
			lt.Remarks = res.Remarks
			lt.PerformedBy = &actor.ID
			lt.CompletedAt = &now
			if err := s.labs.Update(ctx, lt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// -- Pharmacy --

type PharmacyInput struct {
	VisitID         uuid.UUID   `json:"visit_id"`
	PrescriptionIDs []uuid.UUID `json:"prescription_ids,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
}

func (s *Service) PharmacyClockIn(ctx context.Context, in PharmacyInput, actor auth.Actor) (*PatientVisit, error) {
	var v *PatientVisit
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.clockIn(ctx, in.VisitID, StagePharmacy, actor, func(v *PatientVisit, sr *StageRecord) {
			sr.Notes = in.Notes
			if v.AssignedPharmacy == nil {
				v.AssignedPharmacy = &actor.ID
			}
		})
		if err != nil {
			return err
		}
		now := time.Now()
		for _, id := range in.PrescriptionIDs {
			p, err := s.rx.GetByID(ctx, id)
			if err != nil {
				return prescription.ErrNotFound
			}
			if p.Status != prescription.StatusActive {
				return prescription.ErrNotActive
			}
			p.Status = prescription.StatusDispensed
			p.DispensedBy = &actor.ID
			p.DispensedAt = &now
			if err := s.rx.Update(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// -- Billing --

type BillingInput struct {
	VisitID uuid.UUID `json:"visit_id"`
	Notes   *string   `json:"notes,omitempty"`
}

func (s *Service) BillingClockIn(ctx context.Context, in BillingInput, actor auth.Actor) (*PatientVisit, error) {
	return s.clockIn(ctx, in.VisitID, StageBilling, actor, func(v *PatientVisit, sr *StageRecord) {
		sr.Notes = in.Notes
		if v.AssignedBilling == nil {
			v.AssignedBilling = &actor.ID
		}
	})
}

// -- Clock-out / handoff / return / cancel --

func (s *Service) ClockOut(ctx context.Context, visitID uuid.UUID, actor auth.Actor, notes, nextAction *string) (*PatientVisit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, ErrNotFound
	}
	if v.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	sr, err := s.repo.GetStage(ctx, visitID, v.CurrentStage)
	if err != nil || !sr.Open() {
		return nil, ErrNotClockedIn
	}
	now := time.Now()
	sr.ClockedOutBy = &actor.ID
	sr.ClockedOutAt = &now
	if notes != nil {
		sr.Notes = notes
	}
	sr.NextAction = nextAction
	if err := s.repo.UpdateStage(ctx, sr); err != nil {
		return nil, err
	}
	return v, nil
}

// Handoff is the ONLY operation that advances current_stage. It requires a
// resolved clock-in on the current stage. From billing it completes the
// visit; from returned_to_front_desk it re-enters at front_desk and
// re-opens the front-desk record.
func (s *Service) Handoff(ctx context.Context, visitID uuid.UUID, actor auth.Actor) (*PatientVisit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, ErrNotFound
	}
	if v.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}

	if v.CurrentStage == StageReturned {
		err := s.runInTx(ctx, func(ctx context.Context) error {
			now := time.Now()
			sr, err := s.repo.GetStage(ctx, visitID, StageFrontDesk)
			if err != nil {
				return err
			}
			sr.ClockedInBy = &actor.ID
			sr.ClockedInAt = &now
			sr.ClockedOutBy = nil
			sr.ClockedOutAt = nil
			if err := s.repo.UpdateStage(ctx, sr); err != nil {
				return err
			}
			v.CurrentStage = StageFrontDesk
			return s.repo.Update(ctx, v)
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	sr, err := s.repo.GetStage(ctx, visitID, v.CurrentStage)
	if err != nil {
		return nil, ErrNotClockedIn
	}
	if sr.Open() {
		return nil, &ErrUnresolvedClockIn{Stage: v.CurrentStage}
	}

	next, ok := NextStage(v.CurrentStage)
	if !ok {
		// billing is the end of the pipeline
		now := time.Now()
		v.Status = StatusCompleted
		v.CompletedBy = &actor.ID
		v.CompletedAt = &now
		if err := s.repo.Update(ctx, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	v.CurrentStage = next
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Return parks the visit back with the front desk with a reason.
func (s *Service) Return(ctx context.Context, visitID uuid.UUID, actor auth.Actor, reason *string) (*PatientVisit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, ErrNotFound
	}
	if v.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	if v.CurrentStage == StageReturned {
		return nil, &ErrInvalidInput{Reason: "visit is already returned to the front desk"}
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		// close any open clock-in on the abandoned stage
		if sr, err := s.repo.GetStage(ctx, visitID, v.CurrentStage); err == nil && sr.Open() {
			sr.ClockedOutBy = &actor.ID
			sr.ClockedOutAt = &now
			if err := s.repo.UpdateStage(ctx, sr); err != nil {
				return err
			}
		}
		// one record per stage per visit: a repeat return refreshes the
		// earlier record instead of inserting a duplicate
		if sr, err := s.repo.GetStage(ctx, visitID, StageReturned); err == nil {
			sr.ClockedInBy = &actor.ID
			sr.ClockedInAt = &now
			sr.ClockedOutBy = &actor.ID
			sr.ClockedOutAt = &now
			sr.Notes = reason
			if err := s.repo.UpdateStage(ctx, sr); err != nil {
				return err
			}
		} else if err := s.repo.CreateStage(ctx, &StageRecord{
			VisitID:      visitID,
			Stage:        StageReturned,
			ClockedInBy:  &actor.ID,
			ClockedInAt:  &now,
			ClockedOutBy: &actor.ID,
			ClockedOutAt: &now,
			Notes:        reason,
		}); err != nil {
			return err
		}
		v.CurrentStage = StageReturned
		return s.repo.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Cancel(ctx context.Context, visitID uuid.UUID) (*PatientVisit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, ErrNotFound
	}
	if v.Status != StatusInProgress {
		return nil, ErrTerminal
	}
	v.Status = StatusCancelled
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// -- Reads --

// Detail loads the visit with its stage records and derived timeline.
func (s *Service) Detail(ctx context.Context, visitID uuid.UUID) (*PatientVisit, []TimelineEntry, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	stages, err := s.repo.ListStages(ctx, visitID)
	if err != nil {
		return nil, nil, err
	}
	v.Stages = stages
	return v, buildTimeline(v, stages), nil
}

func buildTimeline(v *PatientVisit, stages []*StageRecord) []TimelineEntry {
	var entries []TimelineEntry
	for _, sr := range stages {
		if sr.ClockedInAt != nil {
			entries = append(entries, TimelineEntry{
				Stage: sr.Stage, Event: "clock_in", Actor: sr.ClockedInBy,
				At: *sr.ClockedInAt, Notes: sr.Notes,
			})
		}
		if sr.ClockedOutAt != nil {
			entries = append(entries, TimelineEntry{
				Stage: sr.Stage, Event: "clock_out", Actor: sr.ClockedOutBy,
				At: *sr.ClockedOutAt,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.Before(entries[j].At)
		}
		return StageOrder(entries[i].Stage) < StageOrder(entries[j].Stage)
	})
	if v.Status == StatusCompleted && v.CompletedAt != nil {
		entries = append(entries, TimelineEntry{
			Stage: StageBilling, Event: "completed", Actor: v.CompletedBy, At: *v.CompletedAt,
		})
	}
	return entries
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*PatientVisit, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Queue resolves the stage worklist for the requesting actor. Admin and
// manager may pass an explicit stage; workflow roles are pinned to their
// own stage, and the front desk also sees returned visits.
func (s *Service) Queue(ctx context.Context, actor auth.Actor, explicitStage Stage, branchID uuid.UUID,
	search string, limit, offset int) ([]*PatientVisit, int, error) {

	f := QueueFilter{BranchID: branchID, Search: search}
	if stage, ok := StageForRole(actor.Role); ok {
		f.Stages = []Stage{stage}
		if stage == StageFrontDesk {
			f.Stages = append(f.Stages, StageReturned)
		} else {
			f.StaffID = actor.ID
		}
	} else if explicitStage != "" {
		if !ValidStage(explicitStage) {
			return nil, 0, &ErrInvalidInput{Reason: fmt.Sprintf("invalid stage: %s", explicitStage)}
		}
		f.Stages = []Stage{explicitStage}
	}
	return s.repo.Queue(ctx, f, limit, offset)
}
