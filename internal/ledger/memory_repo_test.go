package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
)

// memoryLedgerRepo serialises transactions behind one mutex and restores a
// snapshot, sequence counters included, when the callback fails.
type memoryLedgerRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]Invoice
	debts    map[uuid.UUID]Debt
	payments map[uuid.UUID][]PaymentRecord
	seq      *sequence.Memory

	// failOn makes the named TxRepository method return failErr once.
	failOn  string
	failErr error
}

type memoryLedgerTx struct {
	repo *memoryLedgerRepo
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		invoices: make(map[uuid.UUID]Invoice),
		debts:    make(map[uuid.UUID]Debt),
		payments: make(map[uuid.UUID][]PaymentRecord),
		seq:      sequence.NewMemory(),
	}
}

type memorySnapshot struct {
	invoices map[uuid.UUID]Invoice
	debts    map[uuid.UUID]Debt
	payments map[uuid.UUID][]PaymentRecord
	counters map[sequence.DocumentType]int64
}

func (r *memoryLedgerRepo) snapshot(ctx context.Context) memorySnapshot {
	snap := memorySnapshot{
		invoices: make(map[uuid.UUID]Invoice, len(r.invoices)),
		debts:    make(map[uuid.UUID]Debt, len(r.debts)),
		payments: make(map[uuid.UUID][]PaymentRecord, len(r.payments)),
		counters: make(map[sequence.DocumentType]int64),
	}
	for k, v := range r.invoices {
		snap.invoices[k] = v
	}
	for k, v := range r.debts {
		snap.debts[k] = v
	}
	for k, v := range r.payments {
		snap.payments[k] = append([]PaymentRecord(nil), v...)
	}
	for _, t := range sequence.DocumentTypes() {
		n, _ := r.seq.Peek(ctx, t)
		snap.counters[t] = n
	}
	return snap
}

func (r *memoryLedgerRepo) restore(snap memorySnapshot) {
	r.invoices = snap.invoices
	r.debts = snap.debts
	r.payments = snap.payments
	for t, n := range snap.counters {
		r.seq.Restore(t, n)
	}
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot(ctx)
	if err := fn(ctx, &memoryLedgerTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryLedgerRepo) injected(method string) error {
	if r.failOn != method {
		return nil
	}
	r.failOn = ""
	return r.failErr
}

func (r *memoryLedgerRepo) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
	}
	return inv, nil
}

func (r *memoryLedgerRepo) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if !matchParties(inv.Parties, filter.ClinicID, filter.SalesRepID, filter.AreaID) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *memoryLedgerRepo) GetDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debts[id]
	if !ok {
		return Debt{}, fmt.Errorf("%w: debt %s", ErrNotFound, id)
	}
	d.Payments = append([]PaymentRecord(nil), r.payments[id]...)
	return d, nil
}

func (r *memoryLedgerRepo) ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Debt
	for _, d := range r.debts {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if !matchParties(d.Parties, filter.ClinicID, filter.SalesRepID, filter.AreaID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *memoryLedgerRepo) ListPaymentTotals(ctx context.Context) (map[uuid.UUID]PaymentTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]PaymentTotal, len(r.payments))
	for debtID, records := range r.payments {
		if len(records) == 0 {
			continue
		}
		total := PaymentTotal{Applied: money.Zero(records[0].Amount.Currency())}
		for _, p := range records {
			applied, err := total.Applied.Add(p.Applied())
			if err != nil {
				return nil, err
			}
			total.Applied = applied
			total.Count++
		}
		out[debtID] = total
	}
	return out, nil
}

func (r *memoryLedgerRepo) UpdateAging(ctx context.Context, updates []AgingUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range updates {
		d, ok := r.debts[u.DebtID]
		if !ok || d.Version != u.Version {
			continue
		}
		d.DaysOverdue, d.AgingCategory = u.DaysOverdue, u.Category
		r.debts[u.DebtID] = d
		n++
	}
	return n, nil
}

// putDebt stores d directly, bypassing the service. Used to seed corrupt rows.
func (r *memoryLedgerRepo) putDebt(d Debt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Payments = nil
	r.debts[d.ID] = d
}

func (r *memoryLedgerRepo) putInvoice(inv Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = inv
}

func matchParties(p Parties, clinicID, salesRepID, areaID string) bool {
	return (clinicID == "" || p.ClinicID == clinicID) &&
		(salesRepID == "" || p.SalesRepID == salesRepID) &&
		(areaID == "" || p.AreaID == areaID)
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (t *memoryLedgerTx) NextNumber(ctx context.Context, typ sequence.DocumentType) (int64, error) {
	if err := t.repo.injected("NextNumber"); err != nil {
		return 0, err
	}
	return t.repo.seq.Next(ctx, typ)
}

func (t *memoryLedgerTx) InsertInvoice(ctx context.Context, inv Invoice) error {
	if err := t.repo.injected("InsertInvoice"); err != nil {
		return err
	}
	for _, existing := range t.repo.invoices {
		if existing.Number == inv.Number {
			return fmt.Errorf("duplicate invoice number %s", inv.Number)
		}
	}
	t.repo.invoices[inv.ID] = inv
	return nil
}

func (t *memoryLedgerTx) LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
	}
	inv.Items = append([]InvoiceItem(nil), inv.Items...)
	return inv, nil
}

func (t *memoryLedgerTx) UpdateInvoice(ctx context.Context, inv Invoice) error {
	if err := t.repo.injected("UpdateInvoice"); err != nil {
		return err
	}
	if _, ok := t.repo.invoices[inv.ID]; !ok {
		return fmt.Errorf("%w: invoice %s", ErrNotFound, inv.ID)
	}
	t.repo.invoices[inv.ID] = inv
	return nil
}

func (t *memoryLedgerTx) ReplaceInvoiceItems(ctx context.Context, invoiceID uuid.UUID, items []InvoiceItem) error {
	inv, ok := t.repo.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("%w: invoice %s", ErrNotFound, invoiceID)
	}
	inv.Items = append([]InvoiceItem(nil), items...)
	t.repo.invoices[invoiceID] = inv
	return nil
}

func (t *memoryLedgerTx) DebtIDByInvoice(ctx context.Context, invoiceID uuid.UUID) (uuid.UUID, bool, error) {
	for _, d := range t.repo.debts {
		if d.InvoiceID == invoiceID {
			return d.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (t *memoryLedgerTx) InsertDebt(ctx context.Context, d Debt) error {
	if err := t.repo.injected("InsertDebt"); err != nil {
		return err
	}
	for _, existing := range t.repo.debts {
		if existing.InvoiceID == d.InvoiceID {
			return &AlreadyConvertedError{InvoiceID: d.InvoiceID, DebtID: existing.ID}
		}
	}
	d.Payments = nil
	t.repo.debts[d.ID] = d
	return nil
}

func (t *memoryLedgerTx) LockDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	d, ok := t.repo.debts[id]
	if !ok {
		return Debt{}, fmt.Errorf("%w: debt %s", ErrNotFound, id)
	}
	d.Payments = append([]PaymentRecord(nil), t.repo.payments[id]...)
	return d, nil
}

func (t *memoryLedgerTx) UpdateDebt(ctx context.Context, d Debt) error {
	if err := t.repo.injected("UpdateDebt"); err != nil {
		return err
	}
	current, ok := t.repo.debts[d.ID]
	if !ok {
		return fmt.Errorf("%w: debt %s", ErrNotFound, d.ID)
	}
	if current.Version != d.Version {
		return Contention(fmt.Errorf("debt %s changed since version %d", d.ID, d.Version))
	}
	d.Version++
	d.Payments = nil
	t.repo.debts[d.ID] = d
	return nil
}

func (t *memoryLedgerTx) InsertPayment(ctx context.Context, p PaymentRecord) error {
	if err := t.repo.injected("InsertPayment"); err != nil {
		return err
	}
	t.repo.payments[p.DebtID] = append(t.repo.payments[p.DebtID], p)
	return nil
}

func (t *memoryLedgerTx) GetPayment(ctx context.Context, debtID, paymentID uuid.UUID) (PaymentRecord, error) {
	for _, p := range t.repo.payments[debtID] {
		if p.ID == paymentID {
			return p, nil
		}
	}
	return PaymentRecord{}, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
}

func (t *memoryLedgerTx) MarkPaymentVerified(ctx context.Context, paymentID uuid.UUID, verifier string, at time.Time) (bool, error) {
	for debtID, records := range t.repo.payments {
		for i := range records {
			if records[i].ID != paymentID {
				continue
			}
			if records[i].VerifiedBy != "" {
				return false, nil
			}
			updated := append([]PaymentRecord(nil), records...)
			updated[i].VerifiedBy = verifier
			updated[i].VerifiedAt = &at
			t.repo.payments[debtID] = updated
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
}
