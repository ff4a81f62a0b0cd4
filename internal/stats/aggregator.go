package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salestrack/backend/internal/domain"
)

const (
	TopBanks   = 10
	TopStores  = 10
	TopSellers = 20
)

// SaleSource is the read side of the sales ledger the aggregator runs on.
type SaleSource interface {
	SaleTotals(ctx context.Context, filter domain.SaleFilter) (domain.SaleTotals, error)
	GroupSales(ctx context.Context, filter domain.SaleFilter, query domain.GroupQuery) ([]domain.SaleGroup, error)
}

type Aggregator struct {
	sales SaleSource
	now   func() time.Time
}

func NewAggregator(sales SaleSource) *Aggregator {
	return &Aggregator{sales: sales, now: time.Now}
}

// WithClock replaces the time source used to resolve default months.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	if now != nil {
		a.now = now
	}
	return a
}

// Summarize builds the dashboard summary visible to actor. Non-admin callers
// only ever see their own sales and never get a per-seller breakdown; a seller
// filter from them is ignored.
func (a *Aggregator) Summarize(ctx context.Context, actor domain.Actor, filters domain.SummaryFilters) (domain.Summary, error) {
	period := ResolvePeriod(filters.Start, filters.End, a.now())
	filter := scopedFilter(actor, filters, period)

	summary := domain.Summary{
		Range: domain.SummaryRange{
			Start:        period.Start.Format(time.DateOnly),
			EndExclusive: period.End.Format(time.DateOnly),
		},
		FiltersEcho: echoFilters(actor, filter),
		ByMonth:     make([]domain.MonthBucket, 0),
		ByStatus:    make([]domain.StatusBucket, 0),
		ByBank:      make([]domain.BankBucket, 0),
		ByStore:     make([]domain.StoreBucket, 0),
		BySeller:    make([]domain.SellerBucket, 0),
	}

	totals, err := a.sales.SaleTotals(ctx, filter)
	if err != nil {
		return summary, fmt.Errorf("sale totals: %w", err)
	}
	summary.Totals = domain.Totals{Count: totals.Count, Sum: roundMoney(totals.Sum)}

	accepted, err := a.acceptedCount(ctx, filter)
	if err != nil {
		return summary, fmt.Errorf("accepted sales: %w", err)
	}
	summary.Conversion = domain.Conversion{Accepted: accepted, Rate: conversionRate(accepted, totals.Count)}

	groups, err := a.sales.GroupSales(ctx, filter, domain.GroupQuery{Dimension: domain.GroupByMonth})
	if err != nil {
		return summary, fmt.Errorf("group by month: %w", err)
	}
	for _, g := range groups {
		summary.ByMonth = append(summary.ByMonth, domain.MonthBucket{Month: g.Key, Count: g.Count, Sum: roundMoney(g.Sum)})
	}

	groups, err = a.sales.GroupSales(ctx, filter, domain.GroupQuery{Dimension: domain.GroupByStatus})
	if err != nil {
		return summary, fmt.Errorf("group by status: %w", err)
	}
	for _, g := range groups {
		summary.ByStatus = append(summary.ByStatus, domain.StatusBucket{Status: g.Key, Count: g.Count, Sum: roundMoney(g.Sum)})
	}

	groups, err = a.sales.GroupSales(ctx, filter, domain.GroupQuery{Dimension: domain.GroupByBank, Limit: TopBanks})
	if err != nil {
		return summary, fmt.Errorf("group by bank: %w", err)
	}
	for _, g := range groups {
		summary.ByBank = append(summary.ByBank, domain.BankBucket{Bank: g.Key, Count: g.Count, Sum: roundMoney(g.Sum)})
	}

	groups, err = a.sales.GroupSales(ctx, filter, domain.GroupQuery{Dimension: domain.GroupByStore, Limit: TopStores})
	if err != nil {
		return summary, fmt.Errorf("group by store: %w", err)
	}
	for _, g := range groups {
		summary.ByStore = append(summary.ByStore, domain.StoreBucket{Store: g.Key, Count: g.Count, Sum: roundMoney(g.Sum)})
	}

	if !actor.IsAdmin() {
		return summary, nil
	}

	groups, err = a.sales.GroupSales(ctx, filter, domain.GroupQuery{Dimension: domain.GroupBySeller, Limit: TopSellers})
	if err != nil {
		return summary, fmt.Errorf("group by seller: %w", err)
	}
	for _, g := range groups {
		summary.BySeller = append(summary.BySeller, domain.SellerBucket{
			SellerID:   g.SellerID,
			SellerName: g.Key,
			Count:      g.Count,
			Sum:        roundMoney(g.Sum),
		})
	}

	return summary, nil
}

// acceptedCount counts accepted sales inside filter. A status filter other than
// accepted leaves nothing to count.
func (a *Aggregator) acceptedCount(ctx context.Context, filter domain.SaleFilter) (int64, error) {
	if filter.Status != "" && filter.Status != domain.SaleStatusAccepted {
		return 0, nil
	}
	filter.Status = domain.SaleStatusAccepted
	totals, err := a.sales.SaleTotals(ctx, filter)
	if err != nil {
		return 0, err
	}
	return totals.Count, nil
}

func scopedFilter(actor domain.Actor, filters domain.SummaryFilters, period Period) domain.SaleFilter {
	filter := domain.SaleFilter{
		Status:  strings.TrimSpace(filters.Status),
		BankID:  positive(filters.BankID),
		StoreID: positive(filters.StoreID),
		From:    period.Start,
		To:      period.End,
	}
	if actor.IsAdmin() {
		filter.SellerID = positive(filters.SellerID)
	} else {
		filter.SellerID = actor.SellerID
	}
	return filter
}

func echoFilters(actor domain.Actor, filter domain.SaleFilter) domain.FiltersEcho {
	var echo domain.FiltersEcho
	if filter.Status != "" {
		status := filter.Status
		echo.Status = &status
	}
	if filter.BankID > 0 {
		bankID := filter.BankID
		echo.BankID = &bankID
	}
	if filter.StoreID > 0 {
		storeID := filter.StoreID
		echo.StoreID = &storeID
	}
	if actor.IsAdmin() && filter.SellerID > 0 {
		sellerID := filter.SellerID
		echo.SellerID = &sellerID
	}
	return echo
}

func conversionRate(accepted int64, total int64) float64 {
	if total == 0 {
		return 0
	}
	rate, _ := decimal.NewFromInt(accepted).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		RoundBank(2).
		Float64()
	return rate
}

func roundMoney(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).RoundBank(2).Float64()
	return rounded
}

func positive(id int64) int64 {
	if id < 0 {
		return 0
	}
	return id
}
