package prescription

import (
	"context"

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

const rxCols = `id, prescription_number, visit_id, patient_id, doctor_id, branch_id,
	status, notes, dispensed_by, dispensed_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	if p.PrescriptionNumber == "" {
		seq, err := db.NextSequence(ctx, r.conn(ctx), "prescription:RX")
		if err != nil {
			return err
		}
		p.PrescriptionNumber = FormatPrescriptionNumber(seq)
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription (
			id, prescription_number, visit_id, patient_id, doctor_id, branch_id, status, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.PrescriptionNumber, p.VisitID, p.PatientID, p.DoctorID, p.BranchID, p.Status, p.Notes,
	)
	if err != nil {
		return err
	}
	for i := range p.Medications {
		m := &p.Medications[i]
		m.ID = uuid.New()
		m.PrescriptionID = p.ID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO prescription_medication (
				id, prescription_id, name, dosage, frequency, duration, instructions, quantity
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			m.ID, m.PrescriptionID, m.Name, m.Dosage, m.Frequency, m.Duration, m.Instructions, m.Quantity,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanRx(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	meds, err := r.medications(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Medications = meds
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET
			status=$2, notes=$3, dispensed_by=$4, dispensed_at=$5, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Status, p.Notes, p.DispensedBy, p.DispensedAt,
	)
	return err
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+` FROM prescription WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Prescription
	for rows.Next() {
		p, err := scanRx(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, p)
	}
	for _, p := range batches {
		meds, err := r.medications(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Medications = meds
	}
	return batches, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescription WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+` FROM prescription WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var batches []*Prescription
	for rows.Next() {
		p, err := scanRx(rows)
		if err != nil {
			return nil, 0, err
		}
		batches = append(batches, p)
	}
	return batches, total, nil
}

func (r *repoPG) medications(ctx context.Context, prescriptionID uuid.UUID) ([]Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, name, dosage, frequency, duration, instructions, quantity
		FROM prescription_medication WHERE prescription_id = $1`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.Name, &m.Dosage, &m.Frequency,
			&m.Duration, &m.Instructions, &m.Quantity); err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, nil
}

func scanRx(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.PrescriptionNumber, &p.VisitID, &p.PatientID, &p.DoctorID, &p.BranchID,
		&p.Status, &p.Notes, &p.DispensedBy, &p.DispensedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
