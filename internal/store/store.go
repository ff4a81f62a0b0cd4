package store

import (
	"context"
	"errors"
	"time"

	"salestrack/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
)

// MaxSaleListLimit caps ListSales when the filter carries no limit.
const MaxSaleListLimit = 1000

type SellerStore interface {
	CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error)
	UpdateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error)
	GetSeller(ctx context.Context, id int64) (*domain.Seller, error)
	GetSellerByEmail(ctx context.Context, email string) (*domain.Seller, error)
	ListSellers(ctx context.Context) ([]domain.Seller, error)
	UpdateSellerPassword(ctx context.Context, id int64, passwordHash string) error
}

type ReferenceStore interface {
	CreateBank(ctx context.Context, bank domain.Bank) (*domain.Bank, error)
	UpdateBank(ctx context.Context, bank domain.Bank) (*domain.Bank, error)
	GetBank(ctx context.Context, id int64) (*domain.Bank, error)
	ListBanks(ctx context.Context) ([]domain.Bank, error)
	CreatePartnerStore(ctx context.Context, partner domain.PartnerStore) (*domain.PartnerStore, error)
	UpdatePartnerStore(ctx context.Context, partner domain.PartnerStore) (*domain.PartnerStore, error)
	GetPartnerStore(ctx context.Context, id int64) (*domain.PartnerStore, error)
	ListPartnerStores(ctx context.Context) ([]domain.PartnerStore, error)
}

type RuleStore interface {
	CreateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error)
	UpdateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error)
	DeleteCommissionRule(ctx context.Context, id int64) error
	GetCommissionRule(ctx context.Context, id int64) (*domain.CommissionRule, error)
	// ListCommissionRules returns every rule ordered by min value, then id.
	ListCommissionRules(ctx context.Context) ([]domain.CommissionRule, error)
	// ListApplicableRules returns the global rules plus those scoped to sellerID,
	// ordered by min value, then id.
	ListApplicableRules(ctx context.Context, sellerID int64) ([]domain.CommissionRule, error)
}

type SaleStore interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	// ListSales returns matching sales newest first, with SellerName populated.
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	SaleTotals(ctx context.Context, filter domain.SaleFilter) (domain.SaleTotals, error)
	GroupSales(ctx context.Context, filter domain.SaleFilter, query domain.GroupQuery) ([]domain.SaleGroup, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

type Repository interface {
	SellerStore
	ReferenceStore
	RuleStore
	SaleStore
	AuditStore
}
