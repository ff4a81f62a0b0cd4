package commission

import (
	"fmt"
	"math"

	"salestrack/backend/internal/domain"
)

// Overlaps lists the existing rules whose band intersects candidate's for at
// least one seller. Two seller-scoped rules only collide when they share the
// seller; a global rule collides with every scope. candidate itself (same ID)
// is skipped so updates can be checked against the stored set.
func Overlaps(candidate domain.CommissionRule, existing []domain.CommissionRule) []domain.CommissionRule {
	overlapping := make([]domain.CommissionRule, 0)
	for _, rule := range existing {
		if candidate.ID != 0 && rule.ID == candidate.ID {
			continue
		}
		if !sharesScope(candidate, rule) {
			continue
		}
		if upperBound(candidate) < rule.MinValue || upperBound(rule) < candidate.MinValue {
			continue
		}
		overlapping = append(overlapping, rule)
	}
	return overlapping
}

// OverlapWarnings renders Overlaps as human readable messages.
func OverlapWarnings(candidate domain.CommissionRule, existing []domain.CommissionRule) []string {
	overlapping := Overlaps(candidate, existing)
	warnings := make([]string, 0, len(overlapping))
	for _, rule := range overlapping {
		warnings = append(warnings, fmt.Sprintf(
			"range %s overlaps rule %d (%s, %s); the rule with the higher min value wins where both match",
			describeBand(candidate), rule.ID, describeScope(rule), describeBand(rule),
		))
	}
	return warnings
}

func sharesScope(a, b domain.CommissionRule) bool {
	if a.IsGlobal() || b.IsGlobal() {
		return true
	}
	return *a.SellerID == *b.SellerID
}

func upperBound(rule domain.CommissionRule) float64 {
	if rule.MaxValue == nil {
		return math.Inf(1)
	}
	return *rule.MaxValue
}

func describeBand(rule domain.CommissionRule) string {
	if rule.MaxValue == nil {
		return fmt.Sprintf("[%.2f, ∞) at %.2f%%", rule.MinValue, rule.Percent)
	}
	return fmt.Sprintf("[%.2f, %.2f] at %.2f%%", rule.MinValue, *rule.MaxValue, rule.Percent)
}

func describeScope(rule domain.CommissionRule) string {
	if rule.IsGlobal() {
		return "global"
	}
	return fmt.Sprintf("seller %d", *rule.SellerID)
}
