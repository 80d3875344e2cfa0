package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
)

func TestCategorizeBoundaries(t *testing.T) {
	tests := []struct {
		days int
		want AgingCategory
	}{
		{-3, AgingCurrent},
		{0, AgingCurrent},
		{1, Aging1To30},
		{30, Aging1To30},
		{31, Aging31To60},
		{45, Aging31To60},
		{60, Aging31To60},
		{61, Aging61To90},
		{90, Aging61To90},
		{91, AgingOver90},
		{400, AgingOver90},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Categorize(tt.days), "days=%d", tt.days)
	}
}

func TestDaysOverdueUsesCalendarDays(t *testing.T) {
	due := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	require.Zero(t, DaysOverdue(due, due.Add(23*time.Hour)))
	require.Equal(t, 1, DaysOverdue(due, time.Date(2025, 2, 1, 0, 5, 0, 0, time.UTC)))
	require.Equal(t, 29, DaysOverdue(due, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.Zero(t, DaysOverdue(due, due.AddDate(0, 0, -10)))

	cairo := time.FixedZone("EET", 2*60*60)
	// 01:00 in Cairo on Feb 1st is still Jan 31st in UTC.
	require.Zero(t, DaysOverdue(due, time.Date(2025, 2, 1, 1, 0, 0, 0, cairo)))
}

func agingDebt(due time.Time, total string) Debt {
	amount := money.MustParse(total, "EGP")
	return Debt{
		ID:              uuid.New(),
		Currency:        "EGP",
		OriginalAmount:  amount,
		OriginalDueDate: due,
		PaidAmount:      money.Zero("EGP"),
		RemainingAmount: amount,
		LateFees:        money.Zero("EGP"),
		TotalDue:        amount,
		Status:          DebtPending,
	}
}

func TestComputeAging(t *testing.T) {
	now := testNow

	days, category := ComputeAging(agingDebt(now.AddDate(0, 0, -45), "100"), now)
	require.Equal(t, 45, days)
	require.Equal(t, Aging31To60, category)

	days, category = ComputeAging(agingDebt(now.AddDate(0, 0, -30), "100"), now)
	require.Equal(t, 30, days)
	require.Equal(t, Aging1To30, category)

	_, category = ComputeAging(agingDebt(now.AddDate(0, 0, 5), "100"), now)
	require.Equal(t, AgingCurrent, category)

	closed := agingDebt(now.AddDate(0, 0, -100), "100")
	closedAt := now.AddDate(0, 0, -80)
	closed.Status = DebtFullyCollected
	closed.ClosedAt = &closedAt
	days, category = ComputeAging(closed, now)
	require.Equal(t, 20, days)
	require.Equal(t, Aging1To30, category)
}

func TestComputeAgingFreezesClosedDebts(t *testing.T) {
	now := testNow
	due := now.AddDate(0, 0, -100)
	closedAt := now.AddDate(0, 0, -55)

	tests := []struct {
		name     string
		status   DebtStatus
		closedAt *time.Time
		wantDays int
		want     AgingCategory
	}{
		{"collected ages as of close", DebtFullyCollected, &closedAt, 45, Aging31To60},
		{"written off ages as of close", DebtWrittenOff, &closedAt, 45, Aging31To60},
		{"closed without timestamp uses clock", DebtFullyCollected, nil, 100, AgingOver90},
		{"open debt ignores close stamp", DebtPartiallyCollected, &closedAt, 100, AgingOver90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := agingDebt(due, "100")
			d.Status = tt.status
			d.ClosedAt = tt.closedAt

			days, category := ComputeAging(d, now)
			require.Equal(t, tt.wantDays, days)
			require.Equal(t, tt.want, category)

			// A year later the closed debt keeps its bucket.
			later, laterCategory := ComputeAging(d, now.AddDate(1, 0, 0))
			if tt.status.Closed() && tt.closedAt != nil {
				require.Equal(t, days, later)
				require.Equal(t, category, laterCategory)
			} else {
				require.Greater(t, later, days)
			}
		})
	}
}

func TestSummarizeSkipsClosedAndConverts(t *testing.T) {
	now := testNow
	a := agingDebt(now.AddDate(0, 0, -45), "100")
	b := agingDebt(now.AddDate(0, 0, -10), "50.25")
	b.LateFees = money.MustParse("4.75", "EGP")
	b.TotalDue = money.MustParse("55", "EGP")

	usd := Debt{
		ID:              uuid.New(),
		Currency:        "USD",
		ExchangeRate:    dec("48.355"),
		OriginalAmount:  money.MustParse("10", "USD"),
		OriginalDueDate: now.AddDate(0, 0, -100),
		PaidAmount:      money.Zero("USD"),
		RemainingAmount: money.MustParse("10", "USD"),
		LateFees:        money.Zero("USD"),
		TotalDue:        money.MustParse("10", "USD"),
		Status:          DebtPending,
	}
	collected := agingDebt(now.AddDate(0, 0, -45), "999")
	collected.Status = DebtFullyCollected
	writtenOff := agingDebt(now.AddDate(0, 0, -45), "999")
	writtenOff.Status = DebtWrittenOff

	analysis, err := Summarize([]Debt{a, b, usd, collected, writtenOff}, now, "EGP")
	require.NoError(t, err)

	require.Equal(t, 3, analysis.TotalCount)
	require.True(t, analysis.TotalOutstanding.Equal(money.MustParse("638.55", "EGP")), analysis.TotalOutstanding.String())
	require.Len(t, analysis.Buckets, 5)
	require.True(t, analysis.Bucket(Aging31To60).Amount.Equal(money.MustParse("100", "EGP")))
	require.Equal(t, 1, analysis.Bucket(Aging31To60).Count)
	require.True(t, analysis.Bucket(Aging1To30).Amount.Equal(money.MustParse("55", "EGP")))
	require.True(t, analysis.Bucket(AgingOver90).Amount.Equal(money.MustParse("483.55", "EGP")))
	require.Zero(t, analysis.Bucket(AgingCurrent).Count)
	require.True(t, analysis.Bucket(AgingCurrent).Amount.IsZero())
}

func TestSummarizeEmpty(t *testing.T) {
	analysis, err := Summarize(nil, testNow, "EGP")
	require.NoError(t, err)
	require.Zero(t, analysis.TotalCount)
	require.True(t, analysis.TotalOutstanding.IsZero())
	require.Len(t, analysis.Buckets, len(AgingCategories()))
}

func TestRefreshAgingPersistsOnlyStaleRows(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	fresh := agingDebt(testNow.AddDate(0, 0, 10), "10")
	fresh.AgingCategory = AgingCurrent
	stale := agingDebt(testNow.AddDate(0, 0, -61), "10")
	stale.AgingCategory = Aging31To60
	stale.DaysOverdue = 58
	repo.putDebt(fresh)
	repo.putDebt(stale)

	updated, err := svc.RefreshAging(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	stored, err := repo.GetDebt(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, 61, stored.DaysOverdue)
	require.Equal(t, Aging61To90, stored.AgingCategory)

	updated, err = svc.RefreshAging(ctx)
	require.NoError(t, err)
	require.Zero(t, updated)
}

type racingAgingRepo struct {
	*memoryLedgerRepo
	beforeUpdate func()
}

func (r *racingAgingRepo) UpdateAging(ctx context.Context, updates []AgingUpdate) (int, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
		r.beforeUpdate = nil
	}
	return r.memoryLedgerRepo.UpdateAging(ctx, updates)
}

func TestRefreshAgingSkipsDebtsChangedSinceListing(t *testing.T) {
	_, mem := newTestService(t)
	repo := &racingAgingRepo{memoryLedgerRepo: mem}
	svc := NewService(repo, Config{Currency: "EGP"}, nil)
	svc.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	stale := agingDebt(testNow.AddDate(0, 0, -61), "10")
	stale.AgingCategory = Aging31To60
	stale.DaysOverdue = 58
	stale.Version = 3
	untouched := agingDebt(testNow.AddDate(0, 0, -40), "10")
	untouched.AgingCategory = Aging1To30
	untouched.DaysOverdue = 20
	mem.putDebt(stale)
	mem.putDebt(untouched)

	repo.beforeUpdate = func() {
		d, err := mem.GetDebt(ctx, stale.ID)
		require.NoError(t, err)
		d.Version++
		d.Status = DebtFullyCollected
		d.DaysOverdue = 7
		d.AgingCategory = Aging1To30
		mem.putDebt(d)
	}

	updated, err := svc.RefreshAging(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	stored, err := mem.GetDebt(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, 7, stored.DaysOverdue)
	require.Equal(t, Aging1To30, stored.AgingCategory)

	stored, err = mem.GetDebt(ctx, untouched.ID)
	require.NoError(t, err)
	require.Equal(t, 40, stored.DaysOverdue)
	require.Equal(t, Aging31To60, stored.AgingCategory)
}

func TestAgingReportScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		Parties:     Parties{ClinicID: "clinic-1", SalesRepID: "rep-7"},
		InvoiceDate: testNow.AddDate(0, 0, -75),
		DueDate:     testNow.AddDate(0, 0, -45),
		Items:       []ItemInput{item("p", "1", "100")},
		CreatedBy:   "rep-7",
	})
	require.NoError(t, err)
	_, err = svc.SubmitInvoice(ctx, inv.ID, "rep-7")
	require.NoError(t, err)
	_, debt, err := svc.ApproveInvoice(ctx, inv.ID, "manager-1", true)
	require.NoError(t, err)
	require.Equal(t, 45, debt.DaysOverdue)
	require.Equal(t, Aging31To60, debt.AgingCategory)

	report, err := svc.AgingReport(ctx, DebtFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Bucket(Aging31To60).Count)
	require.True(t, report.TotalOutstanding.Equal(money.MustParse("100", "EGP")))

	later := testNow.AddDate(0, 0, 20)
	svc.SetClock(func() time.Time { return later })
	got, err := svc.GetDebt(ctx, debt.ID)
	require.NoError(t, err)
	require.Equal(t, 65, got.DaysOverdue)
	require.Equal(t, Aging61To90, got.AgingCategory)
}
