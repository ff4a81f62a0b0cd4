package domain

import "time"

const (
	RoleSeller = "seller"
	RoleAdmin  = "admin"

	SellerKindInternal = "internal"
	SellerKindPartner  = "partner"

	SaleStatusSubmitted = "submitted"
	SaleStatusAccepted  = "accepted"
	SaleStatusRejected  = "rejected"
)

// NoBankName is the bank snapshot used when a sale names no bank at all.
const NoBankName = "—"

type Actor struct {
	SellerID int64
	Role     string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Seller struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Kind         string     `json:"kind"`
	PartnerStore string     `json:"partner_store,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ActiveOn reports whether the seller's validity window includes the calendar day of at.
func (s Seller) ActiveOn(at time.Time) bool {
	day := truncateDay(at)
	if s.ValidFrom != nil && day.Before(truncateDay(*s.ValidFrom)) {
		return false
	}
	if s.ValidUntil != nil && day.After(truncateDay(*s.ValidUntil)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type SellerCreateRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Kind         string `json:"kind"`
	PartnerStore string `json:"partner_store"`
	ValidFrom    string `json:"valid_from"`
	ValidUntil   string `json:"valid_until"`
}

type SellerUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Password     *string `json:"password,omitempty"`
	Role         *string `json:"role,omitempty"`
	Kind         *string `json:"kind,omitempty"`
	PartnerStore *string `json:"partner_store,omitempty"`
	ValidFrom    *string `json:"valid_from,omitempty"`
	ValidUntil   *string `json:"valid_until,omitempty"`
}

type Bank struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type BankRequest struct {
	Name   *string `json:"name,omitempty"`
	Code   *string `json:"code,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type PartnerStore struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CNPJ      string    `json:"cnpj,omitempty"`
	City      string    `json:"city,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type PartnerStoreRequest struct {
	Name   *string `json:"name,omitempty"`
	CNPJ   *string `json:"cnpj,omitempty"`
	City   *string `json:"city,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// CommissionRule is one tier. A nil SellerID makes the rule global and a nil
// MaxValue leaves the tier unbounded above.
type CommissionRule struct {
	ID        int64     `json:"id"`
	SellerID  *int64    `json:"seller_id"`
	MinValue  float64   `json:"min_value"`
	MaxValue  *float64  `json:"max_value"`
	Percent   float64   `json:"percent"`
	CreatedAt time.Time `json:"created_at"`
}

func (r CommissionRule) IsGlobal() bool {
	return r.SellerID == nil
}

type CommissionRuleRequest struct {
	SellerID *int64   `json:"seller_id"`
	MinValue float64  `json:"min_value"`
	MaxValue *float64 `json:"max_value"`
	Percent  float64  `json:"percent"`
}

type CommissionRuleResponse struct {
	Rule     CommissionRule `json:"rule"`
	Warnings []string       `json:"warnings"`
}

type CommissionQuote struct {
	SellerID   int64           `json:"seller_id"`
	Amount     float64         `json:"amount"`
	Commission float64         `json:"commission"`
	Rule       *CommissionRule `json:"rule"`
}

type Sale struct {
	ID             int64     `json:"id"`
	SellerID       int64     `json:"seller_id"`
	SellerName     string    `json:"seller_name,omitempty"`
	ClientName     string    `json:"client_name"`
	ClientDocument string    `json:"client_document"`
	Value          float64   `json:"value"`
	BankID         *int64    `json:"bank_id"`
	BankName       string    `json:"bank_name"`
	StoreID        *int64    `json:"store_id"`
	StoreName      string    `json:"store_name"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	Commission     float64   `json:"commission"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SaleCreateRequest struct {
	ClientName     string  `json:"client_name"`
	ClientDocument string  `json:"client_document"`
	Value          float64 `json:"value"`
	BankID         *int64  `json:"bank_id,omitempty"`
	Bank           string  `json:"bank"`
	StoreID        *int64  `json:"store_id,omitempty"`
	Store          string  `json:"store"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes"`
}

// SaleUpdateRequest is a partial update. A BankID or StoreID of 0 detaches the
// reference while keeping the name already recorded on the sale.
type SaleUpdateRequest struct {
	ClientName     *string  `json:"client_name,omitempty"`
	ClientDocument *string  `json:"client_document,omitempty"`
	Value          *float64 `json:"value,omitempty"`
	BankID         *int64   `json:"bank_id,omitempty"`
	StoreID        *int64   `json:"store_id,omitempty"`
	Status         *string  `json:"status,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
}

type SaleCreateResponse struct {
	ID         int64   `json:"id"`
	Commission float64 `json:"commission"`
	Sale       Sale    `json:"sale"`
}

// SaleFilter narrows the ledger. Zero values mean "no constraint"; From is
// inclusive and To exclusive.
type SaleFilter struct {
	SellerID       int64
	Status         string
	BankID         int64
	StoreID        int64
	ClientName     string
	ClientDocument string
	From           time.Time
	To             time.Time
	Limit          int
}

type SaleTotals struct {
	Count int64
	Sum   float64
}

const (
	GroupByMonth  = "month"
	GroupByStatus = "status"
	GroupByBank   = "bank"
	GroupByStore  = "store"
	GroupBySeller = "seller"
)

// GroupQuery asks for sales grouped by Dimension. Month and status groups come
// back in key order; the others by count descending then key, with seller ties
// broken by seller id. Limit 0 means all.
type GroupQuery struct {
	Dimension string
	Limit     int
}

type SaleGroup struct {
	Key      string
	SellerID int64
	Count    int64
	Sum      float64
}

type SummaryFilters struct {
	Start    string
	End      string
	Status   string
	BankID   int64
	StoreID  int64
	SellerID int64
}

type SummaryRange struct {
	Start        string `json:"start"`
	EndExclusive string `json:"end_exclusive"`
}

type FiltersEcho struct {
	Status   *string `json:"status"`
	BankID   *int64  `json:"bank_id"`
	StoreID  *int64  `json:"store_id"`
	SellerID *int64  `json:"seller_id"`
}

type Totals struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

type Conversion struct {
	Accepted int64   `json:"accepted"`
	Rate     float64 `json:"rate"`
}

type MonthBucket struct {
	Month string  `json:"month"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

type StatusBucket struct {
	Status string  `json:"status"`
	Count  int64   `json:"count"`
	Sum    float64 `json:"sum"`
}

type BankBucket struct {
	Bank  string  `json:"bank"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

type StoreBucket struct {
	Store string  `json:"store"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

type SellerBucket struct {
	SellerID   int64   `json:"seller_id"`
	SellerName string  `json:"seller_name"`
	Count      int64   `json:"count"`
	Sum        float64 `json:"sum"`
}

type Summary struct {
	Range       SummaryRange   `json:"range"`
	FiltersEcho FiltersEcho    `json:"filters_echo"`
	Totals      Totals         `json:"totals"`
	Conversion  Conversion     `json:"conversion"`
	ByMonth     []MonthBucket  `json:"by_month"`
	ByStatus    []StatusBucket `json:"by_status"`
	ByBank      []BankBucket   `json:"by_bank"`
	ByStore     []StoreBucket  `json:"by_store"`
	BySeller    []SellerBucket `json:"by_seller"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	SellerID    int64  `json:"seller_id"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    int64     `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
