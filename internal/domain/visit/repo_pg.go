package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/medicore/internal/platform/db"
)

// IsActiveVisitConflict reports whether err is the partial-unique-index
// violation raised when two front-desk clock-ins race for the same patient.
func IsActiveVisitConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" &&
		pgErr.ConstraintName == "uq_visit_active_patient"
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const visitCols = `v.id, v.visit_number, v.patient_id, v.branch_id, v.appointment_id,
	v.current_stage, v.status, v.assigned_doctor, v.assigned_nurse, v.assigned_lab,
	v.assigned_pharmacy, v.assigned_billing, v.completed_by, v.completed_at,
	v.created_at, v.updated_at`

func (r *repoPG) Create(ctx context.Context, v *PatientVisit) error {
	v.ID = uuid.New()
	if v.VisitNumber == "" {
		day := time.Now()
		seq, err := db.NextSequence(ctx, r.conn(ctx), VisitSequenceKey(day))
		if err != nil {
			return err
		}
		v.VisitNumber = FormatVisitNumber(day, seq)
	}
	if v.CurrentStage == "" {
		v.CurrentStage = StageFrontDesk
	}
	if v.Status == "" {
		v.Status = StatusInProgress
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_visit (
			id, visit_number, patient_id, branch_id, appointment_id,
			current_stage, status, assigned_doctor, assigned_nurse, assigned_lab,
			assigned_pharmacy, assigned_billing
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		v.ID, v.VisitNumber, v.PatientID, v.BranchID, v.AppointmentID,
		v.CurrentStage, v.Status, v.AssignedDoctor, v.AssignedNurse, v.AssignedLab,
		v.AssignedPharmacy, v.AssignedBilling,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientVisit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM patient_visit v WHERE v.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *repoPG) Update(ctx context.Context, v *PatientVisit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_visit SET
			current_stage=$2, status=$3, assigned_doctor=$4, assigned_nurse=$5,
			assigned_lab=$6, assigned_pharmacy=$7, assigned_billing=$8,
			completed_by=$9, completed_at=$10, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.CurrentStage, v.Status, v.AssignedDoctor, v.AssignedNurse,
		v.AssignedLab, v.AssignedPharmacy, v.AssignedBilling,
		v.CompletedBy, v.CompletedAt,
	)
	return err
}

func (r *repoPG) ActiveByPatient(ctx context.Context, patientID uuid.UUID) (*PatientVisit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM patient_visit v
		WHERE v.patient_id = $1 AND v.status = 'in_progress'`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*PatientVisit, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(` AND v.patient_id = $%d`, len(args))
	}
	if f.BranchID != uuid.Nil {
		args = append(args, f.BranchID)
		where += fmt.Sprintf(` AND v.branch_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND v.status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_visit v `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT `+visitCols+` FROM patient_visit v `+where+`
		ORDER BY v.created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	visits, err := collectVisits(rows)
	return visits, total, err
}

// stageAssignee resolves the staff pin column for the row's current stage.
const stageAssignee = `CASE v.current_stage
	WHEN 'nurse' THEN v.assigned_nurse
	WHEN 'doctor' THEN v.assigned_doctor
	WHEN 'lab' THEN v.assigned_lab
	WHEN 'pharmacy' THEN v.assigned_pharmacy
	WHEN 'billing' THEN v.assigned_billing
	ELSE NULL
END`

// Queue is the stage worklist: in_progress visits at the requester's
// stage(s), in their branch, unassigned or assigned to them, optionally
// narrowed by a patient/visit-number search.
func (r *repoPG) Queue(ctx context.Context, f QueueFilter, limit, offset int) ([]*PatientVisit, int, error) {
	where := `WHERE v.status = 'in_progress'`
	args := []any{}

	if len(f.Stages) > 0 {
		stages := make([]string, len(f.Stages))
		for i, s := range f.Stages {
			stages[i] = string(s)
		}
		args = append(args, stages)
		where += fmt.Sprintf(` AND v.current_stage = ANY($%d)`, len(args))
	}
	if f.BranchID != uuid.Nil {
		args = append(args, f.BranchID)
		where += fmt.Sprintf(` AND v.branch_id = $%d`, len(args))
	}
	if f.StaffID != uuid.Nil {
		args = append(args, f.StaffID)
		where += fmt.Sprintf(` AND (%s IS NULL OR %s = $%d)`, stageAssignee, stageAssignee, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (v.visit_number ILIKE $%d
			OR p.patient_number ILIKE $%d
			OR (p.first_name || ' ' || p.last_name) ILIKE $%d)`, n, n, n)
	}

	from := `FROM patient_visit v JOIN patient p ON p.id = v.patient_id `

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) `+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT `+visitCols+` `+from+where+`
		ORDER BY v.created_at LIMIT $%d OFFSET $%d`, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	visits, err := collectVisits(rows)
	return visits, total, err
}

const stageCols = `id, visit_id, stage, clocked_in_by, clocked_in_at,
	clocked_out_by, clocked_out_at, notes, next_action, vitals, consultation,
	lab_summary, created_at, updated_at`

func (r *repoPG) CreateStage(ctx context.Context, sr *StageRecord) error {
	sr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_stage (
			id, visit_id, stage, clocked_in_by, clocked_in_at, notes,
			next_action, vitals, consultation, lab_summary
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sr.ID, sr.VisitID, sr.Stage, sr.ClockedInBy, sr.ClockedInAt, sr.Notes,
		sr.NextAction, sr.Vitals, sr.Consultation, sr.LabSummary,
	)
	return err
}

func (r *repoPG) GetStage(ctx context.Context, visitID uuid.UUID, stage Stage) (*StageRecord, error) {
	sr, err := scanStage(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stageCols+` FROM visit_stage WHERE visit_id = $1 AND stage = $2`,
		visitID, stage))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStageNotFound
	}
	return sr, err
}

func (r *repoPG) UpdateStage(ctx context.Context, sr *StageRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit_stage SET
			clocked_in_by=$2, clocked_in_at=$3, clocked_out_by=$4, clocked_out_at=$5,
			notes=$6, next_action=$7, vitals=$8, consultation=$9, lab_summary=$10,
			updated_at=NOW()
		WHERE id = $1`,
		sr.ID, sr.ClockedInBy, sr.ClockedInAt, sr.ClockedOutBy, sr.ClockedOutAt,
		sr.Notes, sr.NextAction, sr.Vitals, sr.Consultation, sr.LabSummary,
	)
	return err
}

func (r *repoPG) ListStages(ctx context.Context, visitID uuid.UUID) ([]*StageRecord, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+stageCols+` FROM visit_stage WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*StageRecord
	for rows.Next() {
		sr, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, sr)
	}
	return records, rows.Err()
}

func collectVisits(rows pgx.Rows) ([]*PatientVisit, error) {
	var visits []*PatientVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func scanVisit(row pgx.Row) (*PatientVisit, error) {
	var v PatientVisit
	err := row.Scan(
		&v.ID, &v.VisitNumber, &v.PatientID, &v.BranchID, &v.AppointmentID,
		&v.CurrentStage, &v.Status, &v.AssignedDoctor, &v.AssignedNurse, &v.AssignedLab,
		&v.AssignedPharmacy, &v.AssignedBilling, &v.CompletedBy, &v.CompletedAt,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanStage(row pgx.Row) (*StageRecord, error) {
	var sr StageRecord
	err := row.Scan(
		&sr.ID, &sr.VisitID, &sr.Stage, &sr.ClockedInBy, &sr.ClockedInAt,
		&sr.ClockedOutBy, &sr.ClockedOutAt, &sr.Notes, &sr.NextAction,
		&sr.Vitals, &sr.Consultation, &sr.LabSummary, &sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sr, nil
}
