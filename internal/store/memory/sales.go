package memory

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/store"
)

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.SellerID == 0 || sale.ClientName == "" || sale.Value <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sellers[sale.SellerID]; !ok {
		return nil, store.ErrNotFound
	}
	sale.ID = s.allocID()
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now
	sale.SellerName = ""
	sale.Commission = 0
	s.sales[sale.ID] = sale
	return s.withSellerName(sale), nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sales[sale.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.SellerID = existing.SellerID
	sale.CreatedAt = existing.CreatedAt
	sale.UpdatedAt = time.Now().UTC()
	sale.SellerName = ""
	sale.Commission = 0
	s.sales[sale.ID] = sale
	return s.withSellerName(sale), nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.withSellerName(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.sales {
		if matchesSale(sale, filter) {
			result = append(result, *s.withSellerName(sale))
		}
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpInt64(b.ID, a.ID)
	})

	limit := filter.Limit
	if limit <= 0 || limit > store.MaxSaleListLimit {
		limit = store.MaxSaleListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SaleTotals(_ context.Context, filter domain.SaleFilter) (domain.SaleTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	var totals domain.SaleTotals
	for _, sale := range s.sales {
		if !matchesSale(sale, filter) {
			continue
		}
		totals.Count++
		sum = sum.Add(decimal.NewFromFloat(sale.Value))
	}
	totals.Sum, _ = sum.Float64()
	return totals, nil
}

type groupAcc struct {
	key      string
	sellerID int64
	count    int64
	sum      decimal.Decimal
}

func (s *Store) GroupSales(_ context.Context, filter domain.SaleFilter, query domain.GroupQuery) ([]domain.SaleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string]*groupAcc)
	order := make([]*groupAcc, 0, 16)
	for _, sale := range s.sales {
		if !matchesSale(sale, filter) {
			continue
		}

		var (
			key      string
			sellerID int64
		)
		switch query.Dimension {
		case domain.GroupByMonth:
			key = sale.CreatedAt.UTC().Format("2006-01")
		case domain.GroupByStatus:
			key = sale.Status
		case domain.GroupByBank:
			key = sale.BankName
		case domain.GroupByStore:
			key = sale.StoreName
		case domain.GroupBySeller:
			sellerID = sale.SellerID
			key = s.sellers[sale.SellerID].Name
		default:
			return nil, store.ErrInvalidInput
		}

		mapKey := key
		if query.Dimension == domain.GroupBySeller {
			mapKey = strconv.FormatInt(sellerID, 10)
		}
		acc := groups[mapKey]
		if acc == nil {
			acc = &groupAcc{key: key, sellerID: sellerID, sum: decimal.Zero}
			groups[mapKey] = acc
			order = append(order, acc)
		}
		acc.count++
		acc.sum = acc.sum.Add(decimal.NewFromFloat(sale.Value))
	}

	switch query.Dimension {
	case domain.GroupByMonth, domain.GroupByStatus:
		slices.SortFunc(order, func(a, b *groupAcc) int {
			return strings.Compare(a.key, b.key)
		})
	case domain.GroupBySeller:
		slices.SortFunc(order, func(a, b *groupAcc) int {
			if c := cmpInt64(b.count, a.count); c != 0 {
				return c
			}
			return cmpInt64(a.sellerID, b.sellerID)
		})
	default:
		slices.SortFunc(order, func(a, b *groupAcc) int {
			if c := cmpInt64(b.count, a.count); c != 0 {
				return c
			}
			return strings.Compare(a.key, b.key)
		})
	}
	if query.Limit > 0 && len(order) > query.Limit {
		order = order[:query.Limit]
	}

	result := make([]domain.SaleGroup, 0, len(order))
	for _, acc := range order {
		sum, _ := acc.sum.Float64()
		result = append(result, domain.SaleGroup{
			Key:      acc.key,
			SellerID: acc.sellerID,
			Count:    acc.count,
			Sum:      sum,
		})
	}
	return result, nil
}

func (s *Store) withSellerName(sale domain.Sale) *domain.Sale {
	sale.SellerName = s.sellers[sale.SellerID].Name
	if sale.BankID != nil {
		bankID := *sale.BankID
		sale.BankID = &bankID
	}
	if sale.StoreID != nil {
		storeID := *sale.StoreID
		sale.StoreID = &storeID
	}
	return &sale
}

func matchesSale(sale domain.Sale, filter domain.SaleFilter) bool {
	if filter.SellerID > 0 && sale.SellerID != filter.SellerID {
		return false
	}
	if filter.Status != "" && sale.Status != filter.Status {
		return false
	}
	if filter.BankID > 0 && (sale.BankID == nil || *sale.BankID != filter.BankID) {
		return false
	}
	if filter.StoreID > 0 && (sale.StoreID == nil || *sale.StoreID != filter.StoreID) {
		return false
	}
	if filter.ClientName != "" && !strings.Contains(strings.ToLower(sale.ClientName), strings.ToLower(filter.ClientName)) {
		return false
	}
	if filter.ClientDocument != "" && !strings.Contains(sale.ClientDocument, filter.ClientDocument) {
		return false
	}
	if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
		return false
	}
	return true
}
