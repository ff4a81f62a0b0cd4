package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/store"
)

const saleColumns = `s.id, s.seller_id, COALESCE(u.name, ''), s.client_name, s.client_document, s.value,
	s.bank_id, s.bank_name, s.store_id, s.store_name, s.status, s.notes, s.created_at, s.updated_at`

const saleFrom = `FROM sales s LEFT JOIN sellers u ON u.id = s.seller_id`

func scanSale(row rowScanner) (*domain.Sale, error) {
	var (
		sale    domain.Sale
		value   decimal.Decimal
		bankID  sql.NullInt64
		storeID sql.NullInt64
	)
	if err := row.Scan(
		&sale.ID, &sale.SellerID, &sale.SellerName, &sale.ClientName, &sale.ClientDocument, &value,
		&bankID, &sale.BankName, &storeID, &sale.StoreName, &sale.Status, &sale.Notes, &sale.CreatedAt, &sale.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sale.Value = value.InexactFloat64()
	if bankID.Valid {
		id := bankID.Int64
		sale.BankID = &id
	}
	if storeID.Valid {
		id := storeID.Int64
		sale.StoreID = &id
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.SellerID == 0 || sale.ClientName == "" || sale.Value <= 0 {
		return nil, store.ErrInvalidInput
	}
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sales (seller_id, client_name, client_document, value, bank_id, bank_name, store_id, store_name, status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, sale.SellerID, sale.ClientName, sale.ClientDocument, sale.Value,
		int64PtrArg(sale.BankID), sale.BankName, int64PtrArg(sale.StoreID), sale.StoreName,
		sale.Status, sale.Notes, sale.CreatedAt, now,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		if isCheckViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return s.GetSale(ctx, id)
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET client_name = $2, client_document = $3, value = $4, bank_id = $5, bank_name = $6,
			store_id = $7, store_name = $8, status = $9, notes = $10, updated_at = now()
		WHERE id = $1
	`, sale.ID, sale.ClientName, sale.ClientDocument, sale.Value,
		int64PtrArg(sale.BankID), sale.BankName, int64PtrArg(sale.StoreID), sale.StoreName,
		sale.Status, sale.Notes,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		if isCheckViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, sale.ID)
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` `+saleFrom+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	where, args := saleWhere(filter)
	limit := filter.Limit
	if limit <= 0 || limit > store.MaxSaleListLimit {
		limit = store.MaxSaleListLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s %s %s
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $%d
	`, saleColumns, saleFrom, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) SaleTotals(ctx context.Context, filter domain.SaleFilter) (domain.SaleTotals, error) {
	where, args := saleWhere(filter)

	var (
		totals domain.SaleTotals
		sum    decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(s.value), 0) `+saleFrom+` `+where,
		args...,
	).Scan(&totals.Count, &sum)
	if err != nil {
		return domain.SaleTotals{}, err
	}
	totals.Sum = sum.InexactFloat64()
	return totals, nil
}

// groupSpec maps a dimension to its key expression and ordering.
type groupSpec struct {
	key     string
	groupBy string
	orderBy string
}

var groupSpecs = map[string]groupSpec{
	domain.GroupByMonth: {
		key:     monthKey,
		groupBy: monthKey,
		orderBy: monthKey,
	},
	domain.GroupByStatus: {
		key:     `s.status`,
		groupBy: `s.status`,
		orderBy: `s.status COLLATE "C"`,
	},
	domain.GroupByBank: {
		key:     `s.bank_name`,
		groupBy: `s.bank_name`,
		orderBy: `COUNT(*) DESC, s.bank_name COLLATE "C"`,
	},
	domain.GroupByStore: {
		key:     `s.store_name`,
		groupBy: `s.store_name`,
		orderBy: `COUNT(*) DESC, s.store_name COLLATE "C"`,
	},
	domain.GroupBySeller: {
		key:     `COALESCE(u.name, '')`,
		groupBy: `s.seller_id, u.name`,
		orderBy: `COUNT(*) DESC, s.seller_id`,
	},
}

const monthKey = `to_char(date_trunc('month', s.created_at AT TIME ZONE 'UTC'), 'YYYY-MM')`

func (s *Store) GroupSales(ctx context.Context, filter domain.SaleFilter, query domain.GroupQuery) ([]domain.SaleGroup, error) {
	spec, ok := groupSpecs[query.Dimension]
	if !ok {
		return nil, store.ErrInvalidInput
	}
	where, args := saleWhere(filter)

	sellerExpr := `0::bigint`
	if query.Dimension == domain.GroupBySeller {
		sellerExpr = `s.seller_id`
	}
	statement := fmt.Sprintf(`
		SELECT %s, %s, COUNT(*), COALESCE(SUM(s.value), 0)
		%s %s
		GROUP BY %s
		ORDER BY %s
	`, spec.key, sellerExpr, saleFrom, where, spec.groupBy, spec.orderBy)
	if query.Limit > 0 {
		args = append(args, query.Limit)
		statement += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]domain.SaleGroup, 0, 16)
	for rows.Next() {
		var (
			group domain.SaleGroup
			sum   decimal.Decimal
		)
		if err := rows.Scan(&group.Key, &group.SellerID, &group.Count, &sum); err != nil {
			return nil, err
		}
		group.Sum = sum.InexactFloat64()
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// saleWhere renders filter as a WHERE clause over the sales alias s.
func saleWhere(filter domain.SaleFilter) (string, []any) {
	clauses := make([]string, 0, 8)
	args := make([]any, 0, 8)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.SellerID > 0 {
		add("s.seller_id = $%d", filter.SellerID)
	}
	if filter.Status != "" {
		add("s.status = $%d", filter.Status)
	}
	if filter.BankID > 0 {
		add("s.bank_id = $%d", filter.BankID)
	}
	if filter.StoreID > 0 {
		add("s.store_id = $%d", filter.StoreID)
	}
	if filter.ClientName != "" {
		add("strpos(lower(s.client_name), lower($%d)) > 0", filter.ClientName)
	}
	if filter.ClientDocument != "" {
		add("strpos(s.client_document, $%d) > 0", filter.ClientDocument)
	}
	if !filter.From.IsZero() {
		add("s.created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("s.created_at < $%d", filter.To)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
