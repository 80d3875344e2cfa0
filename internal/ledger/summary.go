package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
)

// SummaryFilter scopes a financial summary to collaborators' identifiers.
type SummaryFilter struct {
	ClinicID   string `json:"clinic_id,omitempty"`
	SalesRepID string `json:"sales_rep_id,omitempty"`
	AreaID     string `json:"area_id,omitempty"`
}

func (f SummaryFilter) key() string {
	return fmt.Sprintf("clinic=%s|rep=%s|area=%s", f.ClinicID, f.SalesRepID, f.AreaID)
}

// FinancialSummary is the aggregate consumed by reporting collaborators.
// Amounts are in the base currency.
type FinancialSummary struct {
	Currency         string             `json:"currency"`
	Filter           SummaryFilter      `json:"filter"`
	DebtCount        int                `json:"debt_count"`
	TotalOriginal    money.Money        `json:"total_original"`
	TotalCollected   money.Money        `json:"total_collected"`
	TotalReceivables money.Money        `json:"total_receivables"`
	OverdueAmount    money.Money        `json:"overdue_amount"`
	CollectionRate   decimal.Decimal    `json:"collection_rate"`
	DebtsByStatus    map[DebtStatus]int `json:"debts_by_status"`
	AgingAnalysis    AgingAnalysis      `json:"aging_analysis"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// SummaryCache stores computed summaries. Invalidate drops every entry.
type SummaryCache interface {
	Get(ctx context.Context, key string) (FinancialSummary, bool, error)
	Set(ctx context.Context, key string, summary FinancialSummary) error
	Invalidate(ctx context.Context) error
}

// FinancialSummary returns the cached summary for filter or builds it.
// Concurrent callers for the same filter share one build.
func (s *Service) FinancialSummary(ctx context.Context, filter SummaryFilter) (FinancialSummary, error) {
	key := filter.key()
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("summary cache get", slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		summary, err := s.buildSummary(ctx, filter)
		if err != nil {
			return FinancialSummary{}, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, summary); err != nil {
				s.logger.Warn("summary cache set", slog.Any("error", err))
			}
		}
		return summary, nil
	})
	if err != nil {
		return FinancialSummary{}, s.fail("summary.build", err)
	}
	return v.(FinancialSummary), nil
}

func (s *Service) buildSummary(ctx context.Context, filter SummaryFilter) (FinancialSummary, error) {
	debts, err := s.repo.ListDebts(ctx, DebtFilter{
		ClinicID:   filter.ClinicID,
		SalesRepID: filter.SalesRepID,
		AreaID:     filter.AreaID,
	})
	if err != nil {
		return FinancialSummary{}, err
	}
	return BuildSummary(debts, filter, s.now(), s.cfg.Currency)
}

// BuildSummary computes a FinancialSummary over debts.
func BuildSummary(debts []Debt, filter SummaryFilter, now time.Time, base string) (FinancialSummary, error) {
	summary := FinancialSummary{
		Currency:         base,
		Filter:           filter,
		DebtCount:        len(debts),
		TotalOriginal:    money.Zero(base),
		TotalCollected:   money.Zero(base),
		TotalReceivables: money.Zero(base),
		OverdueAmount:    money.Zero(base),
		CollectionRate:   decimal.Zero,
		DebtsByStatus:    make(map[DebtStatus]int),
		GeneratedAt:      now,
	}
	var err error
	for _, d := range debts {
		summary.DebtsByStatus[d.Status]++
		if summary.TotalOriginal, err = summary.TotalOriginal.Add(toBase(d.OriginalAmount, d.ExchangeRate, base)); err != nil {
			return FinancialSummary{}, err
		}
		if summary.TotalCollected, err = summary.TotalCollected.Add(toBase(d.PaidAmount, d.ExchangeRate, base)); err != nil {
			return FinancialSummary{}, err
		}
		if !d.Outstanding() {
			continue
		}
		due := toBase(d.TotalDue, d.ExchangeRate, base)
		if summary.TotalReceivables, err = summary.TotalReceivables.Add(due); err != nil {
			return FinancialSummary{}, err
		}
		if days, _ := ComputeAging(d, now); days > 0 {
			if summary.OverdueAmount, err = summary.OverdueAmount.Add(due); err != nil {
				return FinancialSummary{}, err
			}
		}
	}
	if summary.TotalOriginal.IsPositive() {
		summary.CollectionRate = summary.TotalCollected.Amount().
			Div(summary.TotalOriginal.Amount()).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	if summary.AgingAnalysis, err = Summarize(debts, now, base); err != nil {
		return FinancialSummary{}, err
	}
	return summary, nil
}

func (s *Service) invalidateSummaries(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("summary cache invalidate", slog.Any("error", err))
	}
}

// toBase converts m with the rate stored on its debt.
func toBase(m money.Money, rate decimal.Decimal, base string) money.Money {
	if m.Currency() == base {
		return m
	}
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return m.Convert(rate, base)
}
