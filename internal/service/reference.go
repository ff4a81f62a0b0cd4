package service

import (
	"context"
	"fmt"
	"strings"

	"salestrack/backend/internal/document"
	"salestrack/backend/internal/domain"
)

func (s *Service) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	return s.repo.ListBanks(ctx)
}

func (s *Service) CreateBank(ctx context.Context, actor domain.Actor, req domain.BankRequest) (domain.Bank, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Bank{}, err
	}
	bank := domain.Bank{Active: true}
	if err := applyBankRequest(&bank, req); err != nil {
		return domain.Bank{}, err
	}
	created, err := s.repo.CreateBank(ctx, bank)
	if err != nil {
		return domain.Bank{}, err
	}
	s.logAudit(ctx, actor, "bank_create", "bank", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateBank(ctx context.Context, actor domain.Actor, id int64, req domain.BankRequest) (domain.Bank, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Bank{}, err
	}
	existing, err := s.repo.GetBank(ctx, id)
	if err != nil {
		return domain.Bank{}, err
	}
	bank := *existing
	if err := applyBankRequest(&bank, req); err != nil {
		return domain.Bank{}, err
	}
	updated, err := s.repo.UpdateBank(ctx, bank)
	if err != nil {
		return domain.Bank{}, err
	}
	s.logAudit(ctx, actor, "bank_update", "bank", updated.ID, fmt.Sprintf("name=%s,active=%t", updated.Name, updated.Active))
	return *updated, nil
}

func applyBankRequest(bank *domain.Bank, req domain.BankRequest) error {
	if req.Name != nil {
		bank.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		bank.Code = strings.TrimSpace(*req.Code)
	}
	if req.Active != nil {
		bank.Active = *req.Active
	}
	if bank.Name == "" {
		return invalidf("bank name is required")
	}
	return nil
}

func (s *Service) ListPartnerStores(ctx context.Context) ([]domain.PartnerStore, error) {
	return s.repo.ListPartnerStores(ctx)
}

func (s *Service) CreatePartnerStore(ctx context.Context, actor domain.Actor, req domain.PartnerStoreRequest) (domain.PartnerStore, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.PartnerStore{}, err
	}
	partner := domain.PartnerStore{Active: true}
	if err := applyPartnerStoreRequest(&partner, req); err != nil {
		return domain.PartnerStore{}, err
	}
	created, err := s.repo.CreatePartnerStore(ctx, partner)
	if err != nil {
		return domain.PartnerStore{}, err
	}
	s.logAudit(ctx, actor, "store_create", "partner_store", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdatePartnerStore(ctx context.Context, actor domain.Actor, id int64, req domain.PartnerStoreRequest) (domain.PartnerStore, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.PartnerStore{}, err
	}
	existing, err := s.repo.GetPartnerStore(ctx, id)
	if err != nil {
		return domain.PartnerStore{}, err
	}
	partner := *existing
	if err := applyPartnerStoreRequest(&partner, req); err != nil {
		return domain.PartnerStore{}, err
	}
	updated, err := s.repo.UpdatePartnerStore(ctx, partner)
	if err != nil {
		return domain.PartnerStore{}, err
	}
	s.logAudit(ctx, actor, "store_update", "partner_store", updated.ID, fmt.Sprintf("name=%s,active=%t", updated.Name, updated.Active))
	return *updated, nil
}

func applyPartnerStoreRequest(partner *domain.PartnerStore, req domain.PartnerStoreRequest) error {
	if req.Name != nil {
		partner.Name = strings.TrimSpace(*req.Name)
	}
	if req.CNPJ != nil {
		partner.CNPJ = document.Digits(*req.CNPJ)
	}
	if req.City != nil {
		partner.City = strings.TrimSpace(*req.City)
	}
	if req.Active != nil {
		partner.Active = *req.Active
	}
	if partner.Name == "" {
		return invalidf("store name is required")
	}
	if partner.CNPJ != "" && !document.ValidCNPJ(partner.CNPJ) {
		return invalidf("cnpj is not valid")
	}
	return nil
}
