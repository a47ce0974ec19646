package labtest

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

const testCols = `id, test_number, visit_id, patient_id, ordered_by, branch_id,
	test_name, category, description, price, priority, status, notes,
	findings, normal_range, remarks, performed_by, completed_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, lt *LabTest) error {
	lt.ID = uuid.New()
	if lt.TestNumber == "" {
		seq, err := db.NextSequence(ctx, r.conn(ctx), "labtest:TE")
		if err != nil {
			return err
		}
		lt.TestNumber = FormatTestNumber(seq)
	}
	if lt.Status == "" {
		lt.Status = StatusPending
	}
	if lt.Priority == "" {
		lt.Priority = PriorityRoutine
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_test (
			id, test_number, visit_id, patient_id, ordered_by, branch_id,
			test_name, category, description, price, priority, status, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		lt.ID, lt.TestNumber, lt.VisitID, lt.PatientID, lt.OrderedBy, lt.BranchID,
		lt.TestName, lt.Category, lt.Description, lt.Price, lt.Priority, lt.Status, lt.Notes,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+testCols+` FROM lab_test WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, lt *LabTest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET
			status=$2, priority=$3, notes=$4, findings=$5, normal_range=$6,
			remarks=$7, performed_by=$8, completed_at=$9, updated_at=NOW()
		WHERE id = $1`,
		lt.ID, lt.Status, lt.Priority, lt.Notes, lt.Findings, lt.NormalRange,
		lt.Remarks, lt.PerformedBy, lt.CompletedAt,
	)
	return err
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabTest, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+testCols+` FROM lab_test WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTests(rows)
}

// List returns the lab worklist, STAT orders first within open statuses.
func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*LabTest, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	} else {
		where += ` AND status IN ('pending','in_progress')`
	}
	if f.BranchID != uuid.Nil {
		args = append(args, f.BranchID)
		where += fmt.Sprintf(` AND branch_id = $%d`, len(args))
	}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_test `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT `+testCols+` FROM lab_test `+where+`
		ORDER BY CASE priority WHEN 'stat' THEN 0 WHEN 'urgent' THEN 1 ELSE 2 END,
			created_at
		LIMIT $%d OFFSET $%d`, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tests, err := collectTests(rows)
	return tests, total, err
}

func collectTests(rows pgx.Rows) ([]*LabTest, error) {
	var tests []*LabTest
	for rows.Next() {
		lt, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, lt)
	}
	return tests, rows.Err()
}

func scanTest(row pgx.Row) (*LabTest, error) {
	var lt LabTest
	err := row.Scan(
		&lt.ID, &lt.TestNumber, &lt.VisitID, &lt.PatientID, &lt.OrderedBy, &lt.BranchID,
		&lt.TestName, &lt.Category, &lt.Description, &lt.Price, &lt.Priority, &lt.Status,
		&lt.Notes, &lt.Findings, &lt.NormalRange, &lt.Remarks, &lt.PerformedBy,
		&lt.CompletedAt, &lt.CreatedAt, &lt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lt, nil
}
