package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/medicore/internal/platform/db"
)

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

const admissionCols = `id, admission_number, patient_id, branch_id, admitted_by,
	primary_doctor, ward, room, bed, reason, admission_date, discharge_date,
	daily_rate, status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	if a.AdmissionNumber == "" {
		seq, err := db.NextSequence(ctx, r.conn(ctx), "admission:ADM")
		if err != nil {
			return err
		}
		a.AdmissionNumber = FormatAdmissionNumber(seq)
	}
	if a.Status == "" {
		a.Status = StatusAdmitted
	}
	if a.AdmissionDate.IsZero() {
		a.AdmissionDate = time.Now()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admission (
			id, admission_number, patient_id, branch_id, admitted_by,
			primary_doctor, ward, room, bed, reason, admission_date,
			daily_rate, status, total_billing_amount
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.AdmissionNumber, a.PatientID, a.BranchID, a.AdmittedBy,
		a.PrimaryDoctor, a.Ward, a.Room, a.Bed, a.Reason, a.AdmissionDate,
		a.DailyRate, a.Status, a.TotalBillingAmount(time.Now()),
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// Update persists the row and refreshes the reporting copy of the derived
// total; reads always recompute from dates and rate.
func (r *repoPG) Update(ctx context.Context, a *Admission) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission SET
			primary_doctor=$2, ward=$3, room=$4, bed=$5, reason=$6,
			discharge_date=$7, daily_rate=$8, status=$9,
			total_billing_amount=$10, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PrimaryDoctor, a.Ward, a.Room, a.Bed, a.Reason,
		a.DischargeDate, a.DailyRate, a.Status, a.TotalBillingAmount(time.Now()),
	)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if f.BranchID != uuid.Nil {
		args = append(args, f.BranchID)
		where += fmt.Sprintf(` AND branch_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM admission `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT `+admissionCols+` FROM admission `+where+`
		ORDER BY admission_date DESC LIMIT $%d OFFSET $%d`, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var admissions []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}
	return admissions, total, rows.Err()
}

func (r *repoPG) AddNote(ctx context.Context, n *DailyNote) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admission_note (
			id, admission_id, author_id, note, vitals, medications, procedures
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.ID, n.AdmissionID, n.AuthorID, n.Note, n.Vitals, n.Medications, n.Procedures,
	)
	return err
}

func (r *repoPG) ListNotes(ctx context.Context, admissionID uuid.UUID) ([]*DailyNote, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, admission_id, author_id, note, vitals, medications, procedures, created_at
		FROM admission_note WHERE admission_id = $1 ORDER BY created_at`, admissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*DailyNote
	for rows.Next() {
		var n DailyNote
		if err := rows.Scan(&n.ID, &n.AdmissionID, &n.AuthorID, &n.Note,
			&n.Vitals, &n.Medications, &n.Procedures, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(
		&a.ID, &a.AdmissionNumber, &a.PatientID, &a.BranchID, &a.AdmittedBy,
		&a.PrimaryDoctor, &a.Ward, &a.Room, &a.Bed, &a.Reason, &a.AdmissionDate,
		&a.DischargeDate, &a.DailyRate, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
