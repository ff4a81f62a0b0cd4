package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salestrack/backend/internal/domain"
)

type staticRules struct {
	rules []domain.CommissionRule
	err   error
	calls []int64
}

func (s *staticRules) ListApplicableRules(_ context.Context, sellerID int64) ([]domain.CommissionRule, error) {
	s.calls = append(s.calls, sellerID)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.CommissionRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.SellerID == nil || *rule.SellerID == sellerID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func ptr[T any](v T) *T {
	return &v
}

func TestResolveReturnsZeroBelowLowestTier(t *testing.T) {
	source := &staticRules{rules: []domain.CommissionRule{
		{ID: 1, MinValue: 100, MaxValue: ptr(500.0), Percent: 3},
		{ID: 2, MinValue: 500.01, MaxValue: ptr(2000.0), Percent: 5},
	}}
	resolver := NewResolver(source)

	got, err := resolver.Resolve(context.Background(), 7, 99.99)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestResolveSingleMatch(t *testing.T) {
	source := &staticRules{rules: []domain.CommissionRule{
		{ID: 1, MinValue: 0, MaxValue: ptr(1000.0), Percent: 2.5},
	}}
	resolver := NewResolver(source)

	got, err := resolver.Resolve(context.Background(), 1, 333.33)
	require.NoError(t, err)
	assert.Equal(t, 8.33, got)
}

func TestResolveLastMatchWinsAcrossScopes(t *testing.T) {
	source := &staticRules{rules: []domain.CommissionRule{
		{ID: 1, MinValue: 0, MaxValue: ptr(1000.0), Percent: 5},
		{ID: 2, SellerID: ptr(int64(42)), MinValue: 500, Percent: 8},
	}}
	resolver := NewResolver(source)

	got, err := resolver.Resolve(context.Background(), 42, 700)
	require.NoError(t, err)
	assert.Equal(t, 56.0, got)

	other, err := resolver.Resolve(context.Background(), 9, 700)
	require.NoError(t, err)
	assert.Equal(t, 35.0, other, "seller-scoped rule must not leak to other sellers")
}

func TestResolveGlobalRuleCanOverrideSellerRule(t *testing.T) {
	// The later tier in min order wins even when it is global.
	source := &staticRules{rules: []domain.CommissionRule{
		{ID: 1, SellerID: ptr(int64(3)), MinValue: 0, Percent: 10},
		{ID: 2, MinValue: 100, MaxValue: ptr(200.0), Percent: 1},
	}}
	resolver := NewResolver(source)

	got, err := resolver.Resolve(context.Background(), 3, 150)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)
}

func TestResolveBoundsAreInclusive(t *testing.T) {
	rules := []domain.CommissionRule{
		{ID: 1, MinValue: 100, MaxValue: ptr(200.0), Percent: 10},
	}
	for _, amount := range []float64{100, 200} {
		rule, ok := Select(rules, amount)
		require.True(t, ok, "amount %v should match", amount)
		assert.Equal(t, int64(1), rule.ID)
	}
	_, ok := Select(rules, 200.01)
	assert.False(t, ok)
}

func TestSelectKeepsInputOrderForEqualMinimums(t *testing.T) {
	rules := []domain.CommissionRule{
		{ID: 4, MinValue: 0, Percent: 1},
		{ID: 2, MinValue: 0, Percent: 2},
	}
	rule, ok := Select(rules, 10)
	require.True(t, ok)
	assert.Equal(t, int64(2), rule.ID)
}

func TestSelectSortsByMinValue(t *testing.T) {
	rules := []domain.CommissionRule{
		{ID: 1, MinValue: 500, Percent: 8},
		{ID: 2, MinValue: 0, Percent: 5},
	}
	rule, ok := Select(rules, 600)
	require.True(t, ok)
	assert.Equal(t, int64(1), rule.ID)
	assert.Equal(t, int64(1), rules[0].ID, "input slice must not be reordered")
}

func TestApplyRoundsHalfToEven(t *testing.T) {
	assert.Equal(t, 0.12, Apply(2.5, 5)) // 0.125
	assert.Equal(t, 0.38, Apply(7.5, 5)) // 0.375
	assert.Equal(t, 56.0, Apply(700, 8)) // exact
	assert.Equal(t, 0.0, Apply(0, 12.5)) // zero amount
}

func TestResolveIsIdempotent(t *testing.T) {
	source := &staticRules{rules: []domain.CommissionRule{
		{ID: 1, MinValue: 0, Percent: 3.3},
	}}
	resolver := NewResolver(source)

	first, err := resolver.Resolve(context.Background(), 1, 1234.56)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), 1, 1234.56)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []int64{1, 1}, source.calls)
}

func TestResolvePropagatesSourceError(t *testing.T) {
	boom := errors.New("db down")
	resolver := NewResolver(&staticRules{err: boom})

	_, err := resolver.Resolve(context.Background(), 1, 10)
	require.ErrorIs(t, err, boom)
}

func TestQuoteReportsSelectedRule(t *testing.T) {
	source := &staticRules{rules: []domain.CommissionRule{
		{ID: 11, MinValue: 0, MaxValue: ptr(100.0), Percent: 4},
	}}
	quote, err := NewResolver(source).Quote(context.Background(), 5, 50)
	require.NoError(t, err)
	require.NotNil(t, quote.Rule)
	assert.Equal(t, int64(11), quote.Rule.ID)
	assert.Equal(t, 2.0, quote.Commission)

	quote, err = NewResolver(source).Quote(context.Background(), 5, 500)
	require.NoError(t, err)
	assert.Nil(t, quote.Rule)
	assert.Equal(t, 0.0, quote.Commission)
}
