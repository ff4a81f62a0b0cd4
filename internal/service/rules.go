package service

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"salestrack/backend/internal/commission"
	"salestrack/backend/internal/domain"
)

func (s *Service) ListCommissionRules(ctx context.Context, actor domain.Actor) ([]domain.CommissionRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.ListCommissionRules(ctx)
}

// CreateCommissionRule stores a tier. Overlapping tiers are accepted; the
// response carries a warning for each rule the new band intersects.
func (s *Service) CreateCommissionRule(ctx context.Context, actor domain.Actor, req domain.CommissionRuleRequest) (domain.CommissionRuleResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	rule, err := ruleFromRequest(req)
	if err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	rule.CreatedAt = s.now().UTC()

	warnings, err := s.overlapWarnings(ctx, rule)
	if err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	created, err := s.repo.CreateCommissionRule(ctx, rule)
	if err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	s.warnOverlaps(*created, warnings)
	s.logAudit(ctx, actor, "rule_create", "commission_rule", created.ID, describeRule(*created))
	return domain.CommissionRuleResponse{Rule: *created, Warnings: warnings}, nil
}

func (s *Service) UpdateCommissionRule(ctx context.Context, actor domain.Actor, id int64, req domain.CommissionRuleRequest) (domain.CommissionRuleResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	if _, err := s.repo.GetCommissionRule(ctx, id); err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	rule, err := ruleFromRequest(req)
	if err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	rule.ID = id

	warnings, err := s.overlapWarnings(ctx, rule)
	if err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	updated, err := s.repo.UpdateCommissionRule(ctx, rule)
	if err != nil {
		return domain.CommissionRuleResponse{}, err
	}
	s.warnOverlaps(*updated, warnings)
	s.logAudit(ctx, actor, "rule_update", "commission_rule", updated.ID, describeRule(*updated))
	return domain.CommissionRuleResponse{Rule: *updated, Warnings: warnings}, nil
}

func (s *Service) DeleteCommissionRule(ctx context.Context, actor domain.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.DeleteCommissionRule(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor, "rule_delete", "commission_rule", id, "")
	return nil
}

// QuoteCommission previews the commission for a hypothetical sale. Sellers may
// only quote for themselves.
func (s *Service) QuoteCommission(ctx context.Context, actor domain.Actor, sellerID int64, amount float64) (domain.CommissionQuote, error) {
	if sellerID == 0 {
		sellerID = actor.SellerID
	}
	if !actor.IsAdmin() && sellerID != actor.SellerID {
		return domain.CommissionQuote{}, fmt.Errorf("%w: sellers can only quote their own commission", ErrForbidden)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.CommissionQuote{}, invalidf("amount must be a non-negative number")
	}
	return s.resolver.Quote(ctx, sellerID, amount)
}

func ruleFromRequest(req domain.CommissionRuleRequest) (domain.CommissionRule, error) {
	if req.SellerID != nil && *req.SellerID <= 0 {
		req.SellerID = nil
	}
	if req.MinValue < 0 {
		return domain.CommissionRule{}, invalidf("min_value must not be negative")
	}
	if err := checkMoney("min_value", req.MinValue); err != nil {
		return domain.CommissionRule{}, err
	}
	if req.MaxValue != nil {
		if err := checkMoney("max_value", *req.MaxValue); err != nil {
			return domain.CommissionRule{}, err
		}
		if *req.MaxValue < req.MinValue {
			return domain.CommissionRule{}, invalidf("max_value must not be below min_value")
		}
	}
	if math.IsNaN(req.Percent) || req.Percent < 0 || req.Percent > 100 {
		return domain.CommissionRule{}, invalidf("percent must be between 0 and 100")
	}
	if pct := decimal.NewFromFloat(req.Percent); !pct.Equal(pct.Round(4)) {
		return domain.CommissionRule{}, invalidf("percent must not have more than four decimal places")
	}
	return domain.CommissionRule{
		SellerID: req.SellerID,
		MinValue: req.MinValue,
		MaxValue: req.MaxValue,
		Percent:  req.Percent,
	}, nil
}

func (s *Service) overlapWarnings(ctx context.Context, rule domain.CommissionRule) ([]string, error) {
	existing, err := s.repo.ListCommissionRules(ctx)
	if err != nil {
		return nil, err
	}
	return commission.OverlapWarnings(rule, existing), nil
}

func (s *Service) warnOverlaps(rule domain.CommissionRule, warnings []string) {
	for _, warning := range warnings {
		s.logger.Warn("commission rule overlaps", zap.Int64("rule_id", rule.ID), zap.String("detail", warning))
	}
}

func describeRule(rule domain.CommissionRule) string {
	scope := "global"
	if rule.SellerID != nil {
		scope = fmt.Sprintf("seller=%d", *rule.SellerID)
	}
	upper := "inf"
	if rule.MaxValue != nil {
		upper = fmt.Sprintf("%.2f", *rule.MaxValue)
	}
	return fmt.Sprintf("%s,min=%.2f,max=%s,percent=%.2f", scope, rule.MinValue, upper, rule.Percent)
}
