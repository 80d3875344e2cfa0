package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
)

// AgingCategory buckets a debt by days past its original due date.
type AgingCategory string

const (
	AgingCurrent AgingCategory = "current"
	Aging1To30   AgingCategory = "1-30"
	Aging31To60  AgingCategory = "31-60"
	Aging61To90  AgingCategory = "61-90"
	AgingOver90  AgingCategory = "90+"
)

// AgingCategories lists the buckets in ascending order.
func AgingCategories() []AgingCategory {
	return []AgingCategory{AgingCurrent, Aging1To30, Aging31To60, Aging61To90, AgingOver90}
}

// Categorize returns the smallest bucket whose upper bound is >= days.
func Categorize(days int) AgingCategory {
	switch {
	case days <= 0:
		return AgingCurrent
	case days <= 30:
		return Aging1To30
	case days <= 60:
		return Aging31To60
	case days <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

// DaysOverdue counts whole calendar days (UTC) from due to now, floored at 0.
func DaysOverdue(due, now time.Time) int {
	days := int(dateOf(now).Sub(dateOf(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ComputeAging is a pure function of the due date, the clock and the status.
// Closed debts are aged as of the day they closed so their category stays
// stable for historical reporting.
func ComputeAging(d Debt, now time.Time) (int, AgingCategory) {
	ref := now
	if d.Status.Closed() && d.ClosedAt != nil {
		ref = *d.ClosedAt
	}
	days := DaysOverdue(d.OriginalDueDate, ref)
	return days, Categorize(days)
}

// AgingBucket is one row of an aging analysis.
type AgingBucket struct {
	Category AgingCategory `json:"category"`
	Count    int           `json:"count"`
	Amount   money.Money   `json:"amount"`
}

// AgingAnalysis totals outstanding debts per bucket in the base currency.
type AgingAnalysis struct {
	Currency         string        `json:"currency"`
	Buckets          []AgingBucket `json:"buckets"`
	TotalCount       int           `json:"total_count"`
	TotalOutstanding money.Money   `json:"total_outstanding"`
	AsOf             time.Time     `json:"as_of"`
}

// Bucket returns the row for category.
func (a AgingAnalysis) Bucket(category AgingCategory) AgingBucket {
	for _, b := range a.Buckets {
		if b.Category == category {
			return b
		}
	}
	return AgingBucket{Category: category, Amount: money.Zero(a.Currency)}
}

// Summarize partitions the outstanding debts into buckets in a single pass.
// Each open debt contributes its total due, converted to base with the
// exchange rate stored on the debt. Closed debts are skipped.
func Summarize(debts []Debt, now time.Time, base string) (AgingAnalysis, error) {
	categories := AgingCategories()
	index := make(map[AgingCategory]int, len(categories))
	analysis := AgingAnalysis{
		Currency:         base,
		Buckets:          make([]AgingBucket, len(categories)),
		TotalOutstanding: money.Zero(base),
		AsOf:             now,
	}
	for i, c := range categories {
		index[c] = i
		analysis.Buckets[i] = AgingBucket{Category: c, Amount: money.Zero(base)}
	}

	for _, d := range debts {
		if !d.Outstanding() {
			continue
		}
		_, category := ComputeAging(d, now)
		amount := toBase(d.TotalDue, d.ExchangeRate, base)
		bucket := &analysis.Buckets[index[category]]
		var err error
		if bucket.Amount, err = bucket.Amount.Add(amount); err != nil {
			return AgingAnalysis{}, err
		}
		bucket.Count++
		if analysis.TotalOutstanding, err = analysis.TotalOutstanding.Add(amount); err != nil {
			return AgingAnalysis{}, err
		}
		analysis.TotalCount++
	}
	return analysis, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AgingReport summarises the outstanding debts matching filter.
func (s *Service) AgingReport(ctx context.Context, filter DebtFilter) (AgingAnalysis, error) {
	debts, err := s.repo.ListDebts(ctx, filter)
	if err != nil {
		return AgingAnalysis{}, s.fail("aging.report", err)
	}
	return Summarize(debts, s.now(), s.cfg.Currency)
}

// RefreshAging recomputes and persists days_overdue and aging_category for
// every debt whose stored values are stale. Debts changed after the listing
// are skipped. It returns the rows updated.
func (s *Service) RefreshAging(ctx context.Context) (int, error) {
	debts, err := s.repo.ListDebts(ctx, DebtFilter{})
	if err != nil {
		return 0, s.fail("aging.refresh", err)
	}
	now := s.now()
	var updates []AgingUpdate
	for _, d := range debts {
		days, category := ComputeAging(d, now)
		if days == d.DaysOverdue && category == d.AgingCategory {
			continue
		}
		updates = append(updates, AgingUpdate{DebtID: d.ID, Version: d.Version, DaysOverdue: days, Category: category})
	}
	if len(updates) == 0 {
		s.logger.Info("aging refresh: nothing to update", slog.Int("debts", len(debts)))
		return 0, nil
	}
	n, err := s.repo.UpdateAging(ctx, updates)
	if err != nil {
		return 0, s.fail("aging.refresh", err)
	}
	s.logger.Info("aging refreshed", slog.Int("debts", len(debts)), slog.Int("updated", n))
	s.invalidateSummaries(ctx)
	return n, nil
}
