package commission

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"salestrack/backend/internal/domain"
)

// RuleSource yields the global rules plus the rules scoped to one seller.
type RuleSource interface {
	ListApplicableRules(ctx context.Context, sellerID int64) ([]domain.CommissionRule, error)
}

type Resolver struct {
	rules RuleSource
}

func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve returns the commission owed to sellerID for a sale of amount. A seller
// with no matching tier earns 0. Errors only come from the rule source.
func (r *Resolver) Resolve(ctx context.Context, sellerID int64, amount float64) (float64, error) {
	quote, err := r.Quote(ctx, sellerID, amount)
	if err != nil {
		return 0, err
	}
	return quote.Commission, nil
}

func (r *Resolver) Quote(ctx context.Context, sellerID int64, amount float64) (domain.CommissionQuote, error) {
	quote := domain.CommissionQuote{SellerID: sellerID, Amount: amount}

	rules, err := r.rules.ListApplicableRules(ctx, sellerID)
	if err != nil {
		return quote, fmt.Errorf("load commission rules for seller %d: %w", sellerID, err)
	}

	rule, ok := Select(rules, amount)
	if !ok {
		return quote, nil
	}
	quote.Rule = &rule
	quote.Commission = Apply(amount, rule.Percent)
	return quote, nil
}

// Select walks the rules in ascending min value and returns the last one that
// matches amount. Rules sharing a min value keep their input order.
func Select(rules []domain.CommissionRule, amount float64) (domain.CommissionRule, bool) {
	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b domain.CommissionRule) int {
		switch {
		case a.MinValue < b.MinValue:
			return -1
		case a.MinValue > b.MinValue:
			return 1
		default:
			return 0
		}
	})

	var (
		selected domain.CommissionRule
		found    bool
	)
	for _, rule := range ordered {
		if Matches(rule, amount) {
			selected = rule
			found = true
		}
	}
	return selected, found
}

// Matches reports whether amount falls inside the rule's band. Both bounds are inclusive.
func Matches(rule domain.CommissionRule, amount float64) bool {
	if amount < rule.MinValue {
		return false
	}
	return rule.MaxValue == nil || amount <= *rule.MaxValue
}

// Apply computes amount*percent/100 rounded to cents, ties to even.
func Apply(amount float64, percent float64) float64 {
	value, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		RoundBank(2).
		Float64()
	return value
}
