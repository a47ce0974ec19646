package patient

import (
	"context"
	"fmt"

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

const patientCols = `id, patient_number, branch_id, first_name, last_name,
	date_of_birth, gender, phone, email, address, blood_group, allergies,
	insurance_provider, insurance_policy, insurance_coverage,
	active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.PatientNumber == "" {
		seq, err := db.NextSequence(ctx, r.conn(ctx), "patient:PT")
		if err != nil {
			return err
		}
		p.PatientNumber = FormatPatientNumber(seq)
	}
	p.Active = true
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (
			id, patient_number, branch_id, first_name, last_name,
			date_of_birth, gender, phone, email, address, blood_group, allergies,
			insurance_provider, insurance_policy, insurance_coverage, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.PatientNumber, p.BranchID, p.FirstName, p.LastName,
		p.DateOfBirth, p.Gender, p.Phone, p.Email, p.Address, p.BloodGroup, p.Allergies,
		p.InsuranceProvider, p.InsurancePolicy, p.InsuranceCoverage, p.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE patient_number = $1`, number))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, date_of_birth=$4, gender=$5,
			phone=$6, email=$7, address=$8, blood_group=$9, allergies=$10,
			insurance_provider=$11, insurance_policy=$12, insurance_coverage=$13,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address, p.BloodGroup, p.Allergies,
		p.InsuranceProvider, p.InsurancePolicy, p.InsuranceCoverage,
	)
	return err
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, branchID uuid.UUID, search string, limit, offset int) ([]*Patient, int, error) {
	where := `active = TRUE`
	args := []interface{}{}
	n := 0
	if branchID != uuid.Nil {
		n++
		where += fmt.Sprintf(` AND branch_id = $%d`, n)
		args = append(args, branchID)
	}
	if search != "" {
		n++
		where += fmt.Sprintf(
			` AND (first_name ILIKE $%d OR last_name ILIKE $%d OR patient_number ILIKE $%d OR phone ILIKE $%d)`,
			n, n, n, n)
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientNumber, &p.BranchID, &p.FirstName, &p.LastName,
		&p.DateOfBirth, &p.Gender, &p.Phone, &p.Email, &p.Address, &p.BloodGroup, &p.Allergies,
		&p.InsuranceProvider, &p.InsurancePolicy, &p.InsuranceCoverage,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
