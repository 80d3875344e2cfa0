package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
	"github.com/mafiaidola/13-8-office-sub005/internal/platform/db"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
)

// Schema creates the ledger tables.
//
//go:embed schema.sql
var Schema string

const debtsInvoiceUniqueIndex = "debts_invoice_id_key"

// Ensure implementation
var _ Repository = (*PostgresRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

// PostgresRepository provides PostgreSQL backed persistence for the ledger.
type PostgresRepository struct {
	pool *pgxpool.Pool
	seq  sequence.Sequencer
}

// NewPostgresRepository constructs a repository. Document numbers come from
// the document_sequences table inside each transaction unless
// WithSequencer installs another backend.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// WithSequencer issues numbers from seq instead of the in-transaction
// counter. Numbers from an external backend survive a rollback.
func (r *PostgresRepository) WithSequencer(seq sequence.Sequencer) *PostgresRepository {
	r.seq = seq
	return r
}

type pgTxRepository struct {
	tx  pgx.Tx
	seq sequence.Sequencer
}

// ledgerTx runs at read committed. Mutations lock their rows FOR UPDATE and
// check debts.version, so a concurrent counter upsert on document_sequences
// waits for the row lock rather than aborting with 40001.
var ledgerTx = db.TxConfig{IsoLevel: pgx.ReadCommitted, Attempts: 3, Backoff: 20 * time.Millisecond}

// WithTx wraps callback in a read-committed transaction, reruns it on
// retryable failures and classifies driver errors into ledger errors.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxConfig(ctx, r.pool, ledgerTx, func(tx pgx.Tx) error {
		seq := r.seq
		if seq == nil {
			seq = sequence.NewPostgres(tx)
		}
		return fn(ctx, &pgTxRepository{tx: tx, seq: seq})
	})
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) || errors.Is(err, ErrStorageContention) {
		return err
	}
	if name, ok := db.UniqueViolation(err); ok && name == debtsInvoiceUniqueIndex {
		return fmt.Errorf("%w: %w", ErrAlreadyConverted, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if db.IsRetryable(err) {
			return Contention(err)
		}
		return err
	}
	if errors.Is(err, sequence.ErrUnavailable) || db.IsRetryable(err) {
		return Contention(err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ============================================================================
// INVOICES
// ============================================================================

const invoiceColumns = `id, invoice_number, clinic_id, clinic_name, sales_rep_id, sales_rep_name, line_id, area_id,
	currency, exchange_rate, subtotal, discount, tax, total_amount, status, invoice_date, due_date, notes,
	created_by, submitted_by, submitted_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	cancelled_by, cancelled_at, converted_at, debt_id, created_at, updated_at`

func scanInvoice(row rowScanner) (Invoice, error) {
	var (
		inv                                Invoice
		status                             string
		subtotal, discount, tax, total     decimal.Decimal
		debtID                             *uuid.UUID
	)
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.ClinicID, &inv.ClinicName, &inv.SalesRepID, &inv.SalesRepName, &inv.LineID, &inv.AreaID,
		&inv.Currency, &inv.ExchangeRate, &subtotal, &discount, &tax, &total, &status, &inv.InvoiceDate, &inv.DueDate, &inv.Notes,
		&inv.CreatedBy, &inv.SubmittedBy, &inv.SubmittedAt, &inv.ApprovedBy, &inv.ApprovedAt, &inv.RejectedBy, &inv.RejectedAt, &inv.RejectionReason,
		&inv.CancelledBy, &inv.CancelledAt, &inv.ConvertedAt, &debtID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return Invoice{}, err
	}
	inv.Currency = strings.TrimSpace(inv.Currency)
	inv.Subtotal = money.New(subtotal, inv.Currency)
	inv.Discount = money.New(discount, inv.Currency)
	inv.Tax = money.New(tax, inv.Currency)
	inv.TotalAmount = money.New(total, inv.Currency)
	inv.Status = InvoiceStatus(status)
	inv.DebtID = debtID
	return inv, nil
}

func (r *PostgresRepository) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
		}
		return Invoice{}, err
	}
	if inv.Items, err = loadItems(ctx, r.pool, inv.ID, inv.Currency); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ListInvoices returns invoice headers; items are loaded by GetInvoice.
func (r *PostgresRepository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	where, args := whereClause(map[string]string{
		"status":       string(filter.Status),
		"clinic_id":    filter.ClinicID,
		"sales_rep_id": filter.SalesRepID,
		"area_id":      filter.AreaID,
	})
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY created_at DESC, id` + pageClause(filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q queryer, invoiceID uuid.UUID, currency string) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `SELECT product_id, description, quantity, unit_price, discount_amount, tax_amount, subtotal, total
FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var (
			item                                           InvoiceItem
			unitPrice, discount, tax, subtotal, lineTotal decimal.Decimal
		)
		if err := rows.Scan(&item.ProductID, &item.Description, &item.Quantity, &unitPrice, &discount, &tax, &subtotal, &lineTotal); err != nil {
			return nil, err
		}
		item.UnitPrice = money.New(unitPrice, currency)
		item.DiscountAmount = money.New(discount, currency)
		item.TaxAmount = money.New(tax, currency)
		item.Subtotal = money.New(subtotal, currency)
		item.Total = money.New(lineTotal, currency)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (t *pgTxRepository) NextNumber(ctx context.Context, typ sequence.DocumentType) (int64, error) {
	return t.seq.Next(ctx, typ)
}

func (t *pgTxRepository) InsertInvoice(ctx context.Context, inv Invoice) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO invoices (
	id, invoice_number, clinic_id, clinic_name, sales_rep_id, sales_rep_name, line_id, area_id,
	currency, exchange_rate, subtotal, discount, tax, total_amount, status, invoice_date, due_date, notes,
	created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		inv.ID, inv.Number, inv.ClinicID, inv.ClinicName, inv.SalesRepID, inv.SalesRepName, inv.LineID, inv.AreaID,
		inv.Currency, inv.ExchangeRate, inv.Subtotal.Amount(), inv.Discount.Amount(), inv.Tax.Amount(), inv.TotalAmount.Amount(),
		string(inv.Status), inv.InvoiceDate, inv.DueDate, inv.Notes,
		inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return t.insertItems(ctx, inv.ID, inv.Items)
}

func (t *pgTxRepository) insertItems(ctx context.Context, invoiceID uuid.UUID, items []InvoiceItem) error {
	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(`INSERT INTO invoice_items (invoice_id, position, product_id, description, quantity, unit_price, discount_amount, tax_amount, subtotal, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			invoiceID, i, item.ProductID, item.Description, item.Quantity,
			item.UnitPrice.Amount(), item.DiscountAmount.Amount(), item.TaxAmount.Amount(), item.Subtotal.Amount(), item.Total.Amount(),
		)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTxRepository) LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
		}
		return Invoice{}, err
	}
	if inv.Items, err = loadItems(ctx, t.tx, inv.ID, inv.Currency); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (t *pgTxRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET
	subtotal = $2, discount = $3, tax = $4, total_amount = $5, status = $6,
	submitted_by = $7, submitted_at = $8, approved_by = $9, approved_at = $10,
	rejected_by = $11, rejected_at = $12, rejection_reason = $13,
	cancelled_by = $14, cancelled_at = $15, converted_at = $16, debt_id = $17, updated_at = $18
WHERE id = $1`,
		inv.ID, inv.Subtotal.Amount(), inv.Discount.Amount(), inv.Tax.Amount(), inv.TotalAmount.Amount(), string(inv.Status),
		inv.SubmittedBy, inv.SubmittedAt, inv.ApprovedBy, inv.ApprovedAt,
		inv.RejectedBy, inv.RejectedAt, inv.RejectionReason,
		inv.CancelledBy, inv.CancelledAt, inv.ConvertedAt, inv.DebtID, inv.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %s", ErrNotFound, inv.ID)
	}
	return nil
}

func (t *pgTxRepository) ReplaceInvoiceItems(ctx context.Context, invoiceID uuid.UUID, items []InvoiceItem) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	return t.insertItems(ctx, invoiceID, items)
}

// ============================================================================
// DEBTS
// ============================================================================

const debtColumns = `id, debt_number, invoice_id, invoice_number, clinic_id, clinic_name, sales_rep_id, sales_rep_name, line_id, area_id,
	currency, exchange_rate, original_amount, original_due_date, paid_amount, remaining_amount, late_fees, total_due, excess_amount,
	collection_attempts, status, aging_category, days_overdue, last_payment_at, closed_at, written_off_by, write_off_reason,
	created_by, version, created_at, updated_at`

func scanDebt(row rowScanner) (Debt, error) {
	var (
		d                                                  Debt
		status, category                                   string
		original, paid, remaining, lateFees, due, excess   decimal.Decimal
	)
	err := row.Scan(
		&d.ID, &d.Number, &d.InvoiceID, &d.InvoiceNumber, &d.ClinicID, &d.ClinicName, &d.SalesRepID, &d.SalesRepName, &d.LineID, &d.AreaID,
		&d.Currency, &d.ExchangeRate, &original, &d.OriginalDueDate, &paid, &remaining, &lateFees, &due, &excess,
		&d.CollectionAttempts, &status, &category, &d.DaysOverdue, &d.LastPaymentAt, &d.ClosedAt, &d.WrittenOffBy, &d.WriteOffReason,
		&d.CreatedBy, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return Debt{}, err
	}
	d.Currency = strings.TrimSpace(d.Currency)
	d.OriginalAmount = money.New(original, d.Currency)
	d.PaidAmount = money.New(paid, d.Currency)
	d.RemainingAmount = money.New(remaining, d.Currency)
	d.LateFees = money.New(lateFees, d.Currency)
	d.TotalDue = money.New(due, d.Currency)
	d.ExcessAmount = money.New(excess, d.Currency)
	d.Status = DebtStatus(status)
	d.AgingCategory = AgingCategory(category)
	return d, nil
}

func (r *PostgresRepository) GetDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	d, err := scanDebt(r.pool.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Debt{}, fmt.Errorf("%w: debt %s", ErrNotFound, id)
		}
		return Debt{}, err
	}
	if d.Payments, err = loadPayments(ctx, r.pool, d.ID); err != nil {
		return Debt{}, err
	}
	return d, nil
}

// ListDebts returns debts without their payment records.
func (r *PostgresRepository) ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	where, args := whereClause(map[string]string{
		"status":       string(filter.Status),
		"clinic_id":    filter.ClinicID,
		"sales_rep_id": filter.SalesRepID,
		"area_id":      filter.AreaID,
	})
	query := `SELECT ` + debtColumns + ` FROM debts` + where + ` ORDER BY original_due_date, id` + pageClause(filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debts := []Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return debts, nil
}

func (r *PostgresRepository) ListPaymentTotals(ctx context.Context) (map[uuid.UUID]PaymentTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT debt_id, currency, COUNT(*), COALESCE(SUM(amount - excess_amount), 0)
FROM payment_records GROUP BY debt_id, currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[uuid.UUID]PaymentTotal)
	for rows.Next() {
		var (
			debtID   uuid.UUID
			currency string
			count    int
			applied  decimal.Decimal
		)
		if err := rows.Scan(&debtID, &currency, &count, &applied); err != nil {
			return nil, err
		}
		totals[debtID] = PaymentTotal{Count: count, Applied: money.New(applied, strings.TrimSpace(currency))}
	}
	return totals, rows.Err()
}

func (r *PostgresRepository) UpdateAging(ctx context.Context, updates []AgingUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE debts SET days_overdue = $2, aging_category = $3 WHERE id = $1 AND version = $4`,
			u.DebtID, u.DaysOverdue, string(u.Category), u.Version)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	updated := 0
	for range updates {
		tag, err := results.Exec()
		if err != nil {
			return updated, err
		}
		updated += int(tag.RowsAffected())
	}
	return updated, nil
}

func (t *pgTxRepository) DebtIDByInvoice(ctx context.Context, invoiceID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, `SELECT id FROM debts WHERE invoice_id = $1`, invoiceID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (t *pgTxRepository) InsertDebt(ctx context.Context, d Debt) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO debts (
	id, debt_number, invoice_id, invoice_number, clinic_id, clinic_name, sales_rep_id, sales_rep_name, line_id, area_id,
	currency, exchange_rate, original_amount, original_due_date, paid_amount, remaining_amount, late_fees, total_due, excess_amount,
	collection_attempts, status, aging_category, days_overdue, created_by, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`,
		d.ID, d.Number, d.InvoiceID, d.InvoiceNumber, d.ClinicID, d.ClinicName, d.SalesRepID, d.SalesRepName, d.LineID, d.AreaID,
		d.Currency, d.ExchangeRate, d.OriginalAmount.Amount(), d.OriginalDueDate, d.PaidAmount.Amount(), d.RemainingAmount.Amount(),
		d.LateFees.Amount(), d.TotalDue.Amount(), d.ExcessAmount.Amount(),
		d.CollectionAttempts, string(d.Status), string(d.AgingCategory), d.DaysOverdue, d.CreatedBy, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (t *pgTxRepository) LockDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	d, err := scanDebt(t.tx.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Debt{}, fmt.Errorf("%w: debt %s", ErrNotFound, id)
		}
		return Debt{}, err
	}
	if d.Payments, err = loadPayments(ctx, t.tx, d.ID); err != nil {
		return Debt{}, err
	}
	return d, nil
}

func (t *pgTxRepository) UpdateDebt(ctx context.Context, d Debt) error {
	tag, err := t.tx.Exec(ctx, `UPDATE debts SET
	paid_amount = $3, remaining_amount = $4, late_fees = $5, total_due = $6, excess_amount = $7,
	collection_attempts = $8, status = $9, aging_category = $10, days_overdue = $11,
	last_payment_at = $12, closed_at = $13, written_off_by = $14, write_off_reason = $15,
	updated_at = $16, version = version + 1
WHERE id = $1 AND version = $2`,
		d.ID, d.Version,
		d.PaidAmount.Amount(), d.RemainingAmount.Amount(), d.LateFees.Amount(), d.TotalDue.Amount(), d.ExcessAmount.Amount(),
		d.CollectionAttempts, string(d.Status), string(d.AgingCategory), d.DaysOverdue,
		d.LastPaymentAt, d.ClosedAt, d.WrittenOffBy, d.WriteOffReason,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return Contention(fmt.Errorf("debt %s changed since version %d", d.ID, d.Version))
	}
	return nil
}

// ============================================================================
// PAYMENTS
// ============================================================================

const paymentColumns = `id, debt_id, payment_number, receipt_number, currency, amount, excess_amount, payment_method,
	payment_date, collected_by, verified_by, verified_at, reference, notes, created_at`

func scanPayment(row rowScanner) (PaymentRecord, error) {
	var (
		p              PaymentRecord
		currency       string
		method         string
		amount, excess decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.DebtID, &p.PaymentNumber, &p.ReceiptNumber, &currency, &amount, &excess, &method,
		&p.PaymentDate, &p.CollectedBy, &p.VerifiedBy, &p.VerifiedAt, &p.Reference, &p.Notes, &p.CreatedAt)
	if err != nil {
		return PaymentRecord{}, err
	}
	currency = strings.TrimSpace(currency)
	p.Amount = money.New(amount, currency)
	p.ExcessAmount = money.New(excess, currency)
	p.Method = PaymentMethod(method)
	return p, nil
}

func loadPayments(ctx context.Context, q queryer, debtID uuid.UUID) ([]PaymentRecord, error) {
	rows, err := q.Query(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE debt_id = $1 ORDER BY created_at, payment_number`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (t *pgTxRepository) InsertPayment(ctx context.Context, p PaymentRecord) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payment_records (`+paymentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.DebtID, p.PaymentNumber, p.ReceiptNumber, p.Amount.Currency(), p.Amount.Amount(), p.ExcessAmount.Amount(), string(p.Method),
		p.PaymentDate, p.CollectedBy, p.VerifiedBy, p.VerifiedAt, p.Reference, p.Notes, p.CreatedAt,
	)
	return err
}

func (t *pgTxRepository) GetPayment(ctx context.Context, debtID, paymentID uuid.UUID) (PaymentRecord, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id = $1 AND debt_id = $2 FOR UPDATE`, paymentID, debtID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRecord{}, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
		}
		return PaymentRecord{}, err
	}
	return p, nil
}

func (t *pgTxRepository) MarkPaymentVerified(ctx context.Context, paymentID uuid.UUID, verifier string, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE payment_records SET verified_by = $2, verified_at = $3 WHERE id = $1 AND verified_by = ''`, paymentID, verifier, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ============================================================================
// QUERY HELPERS
// ============================================================================

// whereClause builds "WHERE a = $1 AND b = $2" from the non-empty filters in
// a stable column order.
func whereClause(filters map[string]string) (string, []any) {
	columns := []string{"status", "clinic_id", "sales_rep_id", "area_id"}
	var (
		conds []string
		args  []any
	)
	for _, col := range columns {
		v, ok := filters[col]
		if !ok || v == "" {
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func pageClause(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}
