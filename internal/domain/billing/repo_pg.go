package billing

import (
	"context"
	"errors"
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

const invoiceCols = `id, invoice_number, patient_id, visit_id, branch_id,
	subtotal, tax_rate, tax, discount, grand_total, paid_amount, balance, status,
	insurance_provider, insurance_policy, insurance_covered, claim_status,
	notes, created_by, created_at, updated_at`

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	if inv.InvoiceNumber == "" {
		seq, err := db.NextSequence(ctx, r.conn(ctx), "invoice:INV")
		if err != nil {
			return err
		}
		inv.InvoiceNumber = FormatInvoiceNumber(seq)
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice (
			id, invoice_number, patient_id, visit_id, branch_id,
			subtotal, tax_rate, tax, discount, grand_total, paid_amount, balance,
			status, insurance_provider, insurance_policy, insurance_covered,
			claim_status, notes, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.VisitID, inv.BranchID,
		inv.Subtotal, inv.TaxRate, inv.Tax, inv.Discount, inv.GrandTotal,
		inv.PaidAmount, inv.Balance, inv.Status, inv.InsuranceProvider,
		inv.InsurancePolicy, inv.InsuranceCovered, inv.ClaimStatus, inv.Notes, inv.CreatedBy,
	)
	if err != nil {
		return err
	}
	return r.insertItems(ctx, inv)
}

func (r *repoPG) insertItems(ctx context.Context, inv *Invoice) error {
	for i := range inv.Items {
		item := &inv.Items[i]
		item.ID = uuid.New()
		item.InvoiceID = inv.ID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO invoice_item (
				id, invoice_id, description, category, quantity, unit_price, amount
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, item.InvoiceID, item.Description, item.Category,
			item.Quantity, item.UnitPrice, item.Amount,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *repoPG) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET
			subtotal=$2, tax_rate=$3, tax=$4, discount=$5, grand_total=$6,
			paid_amount=$7, balance=$8, status=$9, insurance_provider=$10,
			insurance_policy=$11, insurance_covered=$12, claim_status=$13,
			notes=$14, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.Subtotal, inv.TaxRate, inv.Tax, inv.Discount, inv.GrandTotal,
		inv.PaidAmount, inv.Balance, inv.Status, inv.InsuranceProvider,
		inv.InsurancePolicy, inv.InsuranceCovered, inv.ClaimStatus, inv.Notes,
	)
	return err
}

func (r *repoPG) ReplaceItems(ctx context.Context, inv *Invoice) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM invoice_item WHERE invoice_id = $1`, inv.ID); err != nil {
		return err
	}
	return r.insertItems(ctx, inv)
}

func (r *repoPG) ListInvoices(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if f.VisitID != uuid.Nil {
		args = append(args, f.VisitID)
		where += fmt.Sprintf(` AND visit_id = $%d`, len(args))
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
		`SELECT COUNT(*) FROM invoice `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT `+invoiceCols+` FROM invoice `+where+`
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *repoPG) items(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, category, quantity, unit_price, amount
		FROM invoice_item WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Category,
			&it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const paymentCols = `id, reference, invoice_id, amount, method, status,
	gateway_ref, paid_at, created_at, updated_at`

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	if p.Reference == "" {
		seq, err := db.NextSequence(ctx, r.conn(ctx), "payment:PAY")
		if err != nil {
			return err
		}
		p.Reference = FormatPaymentReference(seq, p.ID.String()[:8])
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (
			id, reference, invoice_id, amount, method, status, gateway_ref
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Reference, p.InvoiceID, p.Amount, p.Method, p.Status, p.GatewayRef,
	)
	return err
}

func (r *repoPG) GetPaymentByReference(ctx context.Context, reference string) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE reference = $1`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

func (r *repoPG) UpdatePayment(ctx context.Context, p *Payment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment SET
			amount=$2, method=$3, status=$4, gateway_ref=$5, paid_at=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Amount, p.Method, p.Status, p.GatewayRef, p.PaidAt,
	)
	return err
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.VisitID, &inv.BranchID,
		&inv.Subtotal, &inv.TaxRate, &inv.Tax, &inv.Discount, &inv.GrandTotal,
		&inv.PaidAmount, &inv.Balance, &inv.Status, &inv.InsuranceProvider,
		&inv.InsurancePolicy, &inv.InsuranceCovered, &inv.ClaimStatus,
		&inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.Reference, &p.InvoiceID, &p.Amount, &p.Method, &p.Status,
		&p.GatewayRef, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
