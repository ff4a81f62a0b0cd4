package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"salestrack/backend/internal/domain"
)

const minPasswordLength = 6

func (s *Service) ListSellers(ctx context.Context, actor domain.Actor) ([]domain.Seller, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.ListSellers(ctx)
}

func (s *Service) CreateSeller(ctx context.Context, actor domain.Actor, req domain.SellerCreateRequest) (domain.Seller, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Seller{}, err
	}

	seller := domain.Seller{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         strings.TrimSpace(req.Role),
		Kind:         strings.TrimSpace(req.Kind),
		PartnerStore: strings.TrimSpace(req.PartnerStore),
	}
	if seller.Role == "" {
		seller.Role = domain.RoleSeller
	}
	if seller.Kind == "" {
		seller.Kind = domain.SellerKindInternal
	}

	var err error
	if seller.ValidFrom, err = parseOptionalDate("valid_from", req.ValidFrom); err != nil {
		return domain.Seller{}, err
	}
	if seller.ValidUntil, err = parseOptionalDate("valid_until", req.ValidUntil); err != nil {
		return domain.Seller{}, err
	}
	if err := s.validateSeller(&seller); err != nil {
		return domain.Seller{}, err
	}
	if len(req.Password) < minPasswordLength {
		return domain.Seller{}, invalidf("password must be at least %d characters", minPasswordLength)
	}
	if seller.PasswordHash, err = HashPassword(req.Password); err != nil {
		return domain.Seller{}, err
	}
	seller.CreatedAt = s.now().UTC()

	created, err := s.repo.CreateSeller(ctx, seller)
	if err != nil {
		return domain.Seller{}, err
	}
	s.logAudit(ctx, actor, "seller_create", "seller", created.ID, fmt.Sprintf("email=%s,role=%s,kind=%s", created.Email, created.Role, created.Kind))
	return *created, nil
}

func (s *Service) UpdateSeller(ctx context.Context, actor domain.Actor, id int64, req domain.SellerUpdateRequest) (domain.Seller, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Seller{}, err
	}
	existing, err := s.repo.GetSeller(ctx, id)
	if err != nil {
		return domain.Seller{}, err
	}

	seller := *existing
	if req.Name != nil {
		seller.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		seller.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		seller.Role = strings.TrimSpace(*req.Role)
	}
	if req.Kind != nil {
		seller.Kind = strings.TrimSpace(*req.Kind)
		// A partner turned internal moves back to the house store.
		if seller.Kind == domain.SellerKindInternal && existing.Kind != domain.SellerKindInternal {
			seller.PartnerStore = s.opts.HouseStoreName
		}
	}
	if req.PartnerStore != nil {
		seller.PartnerStore = strings.TrimSpace(*req.PartnerStore)
	}
	if req.ValidFrom != nil {
		if seller.ValidFrom, err = parseOptionalDate("valid_from", *req.ValidFrom); err != nil {
			return domain.Seller{}, err
		}
	}
	if req.ValidUntil != nil {
		if seller.ValidUntil, err = parseOptionalDate("valid_until", *req.ValidUntil); err != nil {
			return domain.Seller{}, err
		}
	}
	if err := s.validateSeller(&seller); err != nil {
		return domain.Seller{}, err
	}
	passwordChanged := false
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < minPasswordLength {
			return domain.Seller{}, invalidf("password must be at least %d characters", minPasswordLength)
		}
		if seller.PasswordHash, err = HashPassword(*req.Password); err != nil {
			return domain.Seller{}, err
		}
		passwordChanged = true
	}

	updated, err := s.repo.UpdateSeller(ctx, seller)
	if err != nil {
		return domain.Seller{}, err
	}
	s.logAudit(ctx, actor, "seller_update", "seller", updated.ID, fmt.Sprintf("role=%s,kind=%s,password_changed=%t", updated.Role, updated.Kind, passwordChanged))
	return *updated, nil
}

// validateSeller checks enums and the validity window, and fills the house
// store for internal sellers that name none.
func (s *Service) validateSeller(seller *domain.Seller) error {
	if seller.Name == "" {
		return invalidf("name is required")
	}
	if _, err := mail.ParseAddress(seller.Email); err != nil || seller.Email == "" {
		return invalidf("email is not valid")
	}
	switch seller.Role {
	case domain.RoleSeller, domain.RoleAdmin:
	default:
		return invalidf("role must be seller or admin")
	}
	switch seller.Kind {
	case domain.SellerKindInternal:
		if seller.PartnerStore == "" {
			seller.PartnerStore = s.opts.HouseStoreName
		}
	case domain.SellerKindPartner:
	default:
		return invalidf("kind must be internal or partner")
	}
	if seller.ValidFrom != nil && seller.ValidUntil != nil && seller.ValidUntil.Before(*seller.ValidFrom) {
		return invalidf("valid_until must not be before valid_from")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether input matches a bcrypt hash.
func VerifyPassword(hash string, input string) bool {
	if hash == "" || strings.TrimSpace(input) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}
