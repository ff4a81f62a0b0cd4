package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	nextID        int64
	sellers       map[int64]domain.Seller
	banks         map[int64]domain.Bank
	partnerStores map[int64]domain.PartnerStore
	rules         map[int64]domain.CommissionRule
	sales         map[int64]domain.Sale
	auditLogs     []domain.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sellers:       make(map[int64]domain.Seller),
		banks:         make(map[int64]domain.Bank),
		partnerStores: make(map[int64]domain.PartnerStore),
		rules:         make(map[int64]domain.CommissionRule),
		sales:         make(map[int64]domain.Sale),
	}
}

// NewSeeded returns a store with demo reference data, a global commission
// table and two accounts. Passwords come from SEED_ADMIN_PASSWORD and
// SEED_SELLER_PASSWORD; dev defaults are used (with a warning) when unset.
// Postgres deployments never use these credentials.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		zap.L().Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override")
	}

	for _, account := range []struct {
		name     string
		email    string
		password string
		role     string
	}{
		{"Administrador", envOr("SEED_ADMIN_EMAIL", "admin@salestrack.local"), adminPwd, domain.RoleAdmin},
		{"Vendedor Demo", envOr("SEED_SELLER_EMAIL", "seller@salestrack.local"), sellerPwd, domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(account.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("hash seed password", zap.String("email", account.email), zap.Error(err))
		}
		id := s.allocID()
		s.sellers[id] = domain.Seller{
			ID:           id,
			Name:         account.name,
			Email:        strings.ToLower(account.email),
			PasswordHash: string(hash),
			Role:         account.role,
			Kind:         domain.SellerKindInternal,
			PartnerStore: envOr("HOUSE_STORE_NAME", "AJ8"),
			CreatedAt:    now,
		}
	}

	for _, bank := range []domain.Bank{
		{Name: "Banco do Brasil", Code: "001"},
		{Name: "Bradesco", Code: "237"},
		{Name: "Caixa", Code: "104"},
		{Name: "Itaú", Code: "341"},
		{Name: "Santander", Code: "033"},
	} {
		bank.ID = s.allocID()
		bank.Active = true
		bank.CreatedAt = now
		s.banks[bank.ID] = bank
	}

	for _, partner := range []domain.PartnerStore{
		{Name: "AJ8", City: "São Paulo"},
		{Name: "Loja Centro", CNPJ: "11222333000181", City: "Campinas"},
	} {
		partner.ID = s.allocID()
		partner.Active = true
		partner.CreatedAt = now
		s.partnerStores[partner.ID] = partner
	}

	upper := 999.99
	for _, rule := range []domain.CommissionRule{
		{MinValue: 0, MaxValue: &upper, Percent: 3},
		{MinValue: 1000, Percent: 5},
	} {
		rule.ID = s.allocID()
		rule.CreatedAt = now
		s.rules[rule.ID] = rule
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// allocID must be called with the write lock held (or before the store is shared).
func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateSeller(_ context.Context, seller domain.Seller) (*domain.Seller, error) {
	seller.Email = strings.ToLower(strings.TrimSpace(seller.Email))
	if seller.Name == "" || seller.Email == "" || seller.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(seller.Email, 0) {
		return nil, store.ErrConflict
	}
	seller.ID = s.allocID()
	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = time.Now().UTC()
	}
	s.sellers[seller.ID] = seller
	return cloneSeller(seller), nil
}

func (s *Store) UpdateSeller(_ context.Context, seller domain.Seller) (*domain.Seller, error) {
	seller.Email = strings.ToLower(strings.TrimSpace(seller.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sellers[seller.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.emailTaken(seller.Email, seller.ID) {
		return nil, store.ErrConflict
	}
	seller.CreatedAt = existing.CreatedAt
	if seller.PasswordHash == "" {
		seller.PasswordHash = existing.PasswordHash
	}
	s.sellers[seller.ID] = seller
	return cloneSeller(seller), nil
}

func (s *Store) emailTaken(email string, exceptID int64) bool {
	for id, other := range s.sellers {
		if id != exceptID && other.Email == email {
			return true
		}
	}
	return false
}

func (s *Store) GetSeller(_ context.Context, id int64) (*domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seller, ok := s.sellers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSeller(seller), nil
}

func (s *Store) GetSellerByEmail(_ context.Context, email string) (*domain.Seller, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seller := range s.sellers {
		if seller.Email == email {
			return cloneSeller(seller), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSellers(_ context.Context) ([]domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Seller, 0, len(s.sellers))
	for _, seller := range s.sellers {
		result = append(result, *cloneSeller(seller))
	}
	slices.SortFunc(result, func(a, b domain.Seller) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) UpdateSellerPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.sellers[id]
	if !ok {
		return store.ErrNotFound
	}
	seller.PasswordHash = passwordHash
	s.sellers[id] = seller
	return nil
}

func (s *Store) CreateBank(_ context.Context, bank domain.Bank) (*domain.Bank, error) {
	if strings.TrimSpace(bank.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bank.ID = s.allocID()
	if bank.CreatedAt.IsZero() {
		bank.CreatedAt = time.Now().UTC()
	}
	s.banks[bank.ID] = bank
	return &bank, nil
}

func (s *Store) UpdateBank(_ context.Context, bank domain.Bank) (*domain.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.banks[bank.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	bank.CreatedAt = existing.CreatedAt
	s.banks[bank.ID] = bank
	return &bank, nil
}

func (s *Store) GetBank(_ context.Context, id int64) (*domain.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bank, ok := s.banks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &bank, nil
}

func (s *Store) ListBanks(_ context.Context) ([]domain.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bank, 0, len(s.banks))
	for _, bank := range s.banks {
		result = append(result, bank)
	}
	slices.SortFunc(result, func(a, b domain.Bank) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreatePartnerStore(_ context.Context, partner domain.PartnerStore) (*domain.PartnerStore, error) {
	if strings.TrimSpace(partner.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partner.ID = s.allocID()
	if partner.CreatedAt.IsZero() {
		partner.CreatedAt = time.Now().UTC()
	}
	s.partnerStores[partner.ID] = partner
	return &partner, nil
}

func (s *Store) UpdatePartnerStore(_ context.Context, partner domain.PartnerStore) (*domain.PartnerStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.partnerStores[partner.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	partner.CreatedAt = existing.CreatedAt
	s.partnerStores[partner.ID] = partner
	return &partner, nil
}

func (s *Store) GetPartnerStore(_ context.Context, id int64) (*domain.PartnerStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partner, ok := s.partnerStores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &partner, nil
}

func (s *Store) ListPartnerStores(_ context.Context) ([]domain.PartnerStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PartnerStore, 0, len(s.partnerStores))
	for _, partner := range s.partnerStores {
		result = append(result, partner)
	}
	slices.SortFunc(result, func(a, b domain.PartnerStore) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreateCommissionRule(_ context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.SellerID != nil {
		if _, ok := s.sellers[*rule.SellerID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	rule.ID = s.allocID()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	s.rules[rule.ID] = rule
	return cloneRule(rule), nil
}

func (s *Store) UpdateCommissionRule(_ context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if rule.SellerID != nil {
		if _, ok := s.sellers[*rule.SellerID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	rule.CreatedAt = existing.CreatedAt
	s.rules[rule.ID] = rule
	return cloneRule(rule), nil
}

func (s *Store) DeleteCommissionRule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) GetCommissionRule(_ context.Context, id int64) (*domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRule(rule), nil
}

func (s *Store) ListCommissionRules(_ context.Context) ([]domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedRules(func(domain.CommissionRule) bool { return true }), nil
}

func (s *Store) ListApplicableRules(_ context.Context, sellerID int64) ([]domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedRules(func(rule domain.CommissionRule) bool {
		return rule.SellerID == nil || *rule.SellerID == sellerID
	}), nil
}

func (s *Store) sortedRules(keep func(domain.CommissionRule) bool) []domain.CommissionRule {
	result := make([]domain.CommissionRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if keep(rule) {
			result = append(result, *cloneRule(rule))
		}
	}
	slices.SortFunc(result, func(a, b domain.CommissionRule) int {
		switch {
		case a.MinValue < b.MinValue:
			return -1
		case a.MinValue > b.MinValue:
			return 1
		}
		return cmpInt64(a.ID, b.ID)
	})
	return result
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortStableFunc(result, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneSeller(seller domain.Seller) *domain.Seller {
	if seller.ValidFrom != nil {
		from := *seller.ValidFrom
		seller.ValidFrom = &from
	}
	if seller.ValidUntil != nil {
		until := *seller.ValidUntil
		seller.ValidUntil = &until
	}
	return &seller
}

func cloneRule(rule domain.CommissionRule) *domain.CommissionRule {
	if rule.SellerID != nil {
		sellerID := *rule.SellerID
		rule.SellerID = &sellerID
	}
	if rule.MaxValue != nil {
		maxValue := *rule.MaxValue
		rule.MaxValue = &maxValue
	}
	return &rule
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
