package service

import (
	"context"
	"fmt"
	"strings"

	"salestrack/backend/internal/commission"
	"salestrack/backend/internal/document"
	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/store"
)

// CreateSale records a sale owned by actor and returns it with the commission
// resolved for actor at creation time.
func (s *Service) CreateSale(ctx context.Context, actor domain.Actor, req domain.SaleCreateRequest) (domain.SaleCreateResponse, error) {
	clientName := strings.TrimSpace(req.ClientName)
	if clientName == "" {
		return domain.SaleCreateResponse{}, invalidf("client name is required")
	}
	clientDocument := document.Digits(req.ClientDocument)
	if clientDocument == "" {
		return domain.SaleCreateResponse{}, invalidf("client document is required")
	}
	if !document.Valid(clientDocument) {
		return domain.SaleCreateResponse{}, invalidf("client document is not a valid CPF or CNPJ")
	}
	if req.Value <= 0 {
		return domain.SaleCreateResponse{}, invalidf("value must be greater than zero")
	}
	if err := checkMoney("value", req.Value); err != nil {
		return domain.SaleCreateResponse{}, err
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = domain.SaleStatusSubmitted
	}
	if !isValidStatus(status) {
		return domain.SaleCreateResponse{}, invalidf("status must be submitted, accepted or rejected")
	}

	sale := domain.Sale{
		SellerID:       actor.SellerID,
		ClientName:     clientName,
		ClientDocument: clientDocument,
		Value:          req.Value,
		Status:         status,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      s.now().UTC(),
	}

	if req.BankID != nil && *req.BankID > 0 {
		bank, err := s.repo.GetBank(ctx, *req.BankID)
		if err != nil {
			return domain.SaleCreateResponse{}, fmt.Errorf("bank %d: %w", *req.BankID, err)
		}
		sale.BankID = &bank.ID
		sale.BankName = bank.Name
	} else {
		sale.BankName = strings.TrimSpace(req.Bank)
		if sale.BankName == "" {
			sale.BankName = domain.NoBankName
		}
	}

	if req.StoreID != nil && *req.StoreID > 0 {
		partner, err := s.repo.GetPartnerStore(ctx, *req.StoreID)
		if err != nil {
			return domain.SaleCreateResponse{}, fmt.Errorf("partner store %d: %w", *req.StoreID, err)
		}
		sale.StoreID = &partner.ID
		sale.StoreName = partner.Name
	} else {
		sale.StoreName = strings.TrimSpace(req.Store)
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}

	amount, err := s.resolver.Resolve(ctx, actor.SellerID, created.Value)
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}
	created.Commission = amount

	s.logAudit(ctx, actor, "sale_create", "sale", created.ID, fmt.Sprintf("value=%.2f,status=%s,bank=%s", created.Value, created.Status, created.BankName))
	return domain.SaleCreateResponse{ID: created.ID, Commission: amount, Sale: *created}, nil
}

// UpdateSale applies a partial update. Only the owner or an admin may change a sale.
func (s *Service) UpdateSale(ctx context.Context, actor domain.Actor, id int64, req domain.SaleUpdateRequest) (domain.Sale, error) {
	existing, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if !actor.IsAdmin() && existing.SellerID != actor.SellerID {
		return domain.Sale{}, fmt.Errorf("%w: only the owner or an admin can change this sale", ErrForbidden)
	}

	updated := *existing
	if req.ClientName != nil {
		name := strings.TrimSpace(*req.ClientName)
		if name == "" {
			return domain.Sale{}, invalidf("client name is required")
		}
		updated.ClientName = name
	}
	if req.ClientDocument != nil {
		doc := document.Digits(*req.ClientDocument)
		if !document.Valid(doc) {
			return domain.Sale{}, invalidf("client document is not a valid CPF or CNPJ")
		}
		updated.ClientDocument = doc
	}
	if req.Value != nil {
		if *req.Value <= 0 {
			return domain.Sale{}, invalidf("value must be greater than zero")
		}
		if err := checkMoney("value", *req.Value); err != nil {
			return domain.Sale{}, err
		}
		updated.Value = *req.Value
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !isValidStatus(status) {
			return domain.Sale{}, invalidf("status must be submitted, accepted or rejected")
		}
		updated.Status = status
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	if req.BankID != nil {
		if *req.BankID > 0 {
			bank, err := s.repo.GetBank(ctx, *req.BankID)
			if err != nil {
				return domain.Sale{}, fmt.Errorf("bank %d: %w", *req.BankID, err)
			}
			updated.BankID = &bank.ID
			updated.BankName = bank.Name
		} else {
			updated.BankID = nil
		}
	}
	if req.StoreID != nil {
		if *req.StoreID > 0 {
			partner, err := s.repo.GetPartnerStore(ctx, *req.StoreID)
			if err != nil {
				return domain.Sale{}, fmt.Errorf("partner store %d: %w", *req.StoreID, err)
			}
			updated.StoreID = &partner.ID
			updated.StoreName = partner.Name
		} else {
			updated.StoreID = nil
		}
	}

	saved, err := s.repo.UpdateSale(ctx, updated)
	if err != nil {
		return domain.Sale{}, err
	}
	amount, err := s.resolver.Resolve(ctx, saved.SellerID, saved.Value)
	if err != nil {
		return domain.Sale{}, err
	}
	saved.Commission = amount

	s.logAudit(ctx, actor, "sale_update", "sale", saved.ID, fmt.Sprintf("value=%.2f,status=%s", saved.Value, saved.Status))
	return *saved, nil
}

// ListSales returns sales visible to actor, newest first. Non-admins are always
// limited to their own sales; admins may narrow by seller.
func (s *Service) ListSales(ctx context.Context, actor domain.Actor, filter domain.SaleFilter) ([]domain.Sale, error) {
	filter.ClientName = strings.TrimSpace(filter.ClientName)
	filter.ClientDocument = document.Digits(filter.ClientDocument)
	filter.Status = strings.TrimSpace(filter.Status)
	if !actor.IsAdmin() {
		filter.SellerID = actor.SellerID
	}
	if filter.Limit <= 0 || filter.Limit > store.MaxSaleListLimit {
		filter.Limit = store.MaxSaleListLimit
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}

	rulesBySeller := make(map[int64][]domain.CommissionRule)
	for i := range sales {
		rules, ok := rulesBySeller[sales[i].SellerID]
		if !ok {
			rules, err = s.repo.ListApplicableRules(ctx, sales[i].SellerID)
			if err != nil {
				return nil, err
			}
			rulesBySeller[sales[i].SellerID] = rules
		}
		if rule, ok := commission.Select(rules, sales[i].Value); ok {
			sales[i].Commission = commission.Apply(sales[i].Value, rule.Percent)
		}
		if !actor.IsAdmin() {
			sales[i].SellerName = ""
		}
	}
	return sales, nil
}
