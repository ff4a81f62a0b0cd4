package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"salestrack/backend/internal/cache"
	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/store"
	"salestrack/backend/internal/store/memory"
)

// Seeded ids: admin 1, seller 2, banks 3..7, partner stores 8..9, rules 10..11.
const (
	seededAdminID     int64 = 1
	seededSellerID    int64 = 2
	seededBankID      int64 = 3
	seededStoreID     int64 = 9
	validCPF                = "529.982.247-25"
	anotherValidCPF         = "11144477735"
	seededPartnerCNPJ       = "11222333000181"
)

var (
	admin  = domain.Actor{SellerID: seededAdminID, Role: domain.RoleAdmin}
	seller = domain.Actor{SellerID: seededSellerID, Role: domain.RoleSeller}
)

type sentReset struct {
	to   string
	link string
}

type recordingMailer struct {
	sent []sentReset
	err  error
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to string, _ string, link string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentReset{to: to, link: link})
	return nil
}

func newTestService(t *testing.T) (*Service, *memory.Store, *recordingMailer) {
	t.Helper()
	repo := memory.NewSeeded()
	mailer := &recordingMailer{}
	svc := New(repo, cache.NewMemoryResetTokens(time.Hour), mailer, zaptest.NewLogger(t), Options{
		HouseStoreName:  "AJ8",
		ResetTokenTTL:   time.Hour,
		FrontendBaseURL: "http://app.test/",
	})
	return svc, repo, mailer
}

func ptr[T any](v T) *T {
	return &v
}

func TestCreateSaleResolvesCommissionAndSnapshotsNames(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.CreateSale(ctx, seller, domain.SaleCreateRequest{
		ClientName:     "  Maria Souza ",
		ClientDocument: validCPF,
		Value:          1500,
		BankID:         ptr(seededBankID),
		StoreID:        ptr(seededStoreID),
	})
	require.NoError(t, err)

	assert.Equal(t, 75.0, resp.Commission)
	assert.Equal(t, resp.ID, resp.Sale.ID)
	assert.Equal(t, "Maria Souza", resp.Sale.ClientName)
	assert.Equal(t, "52998224725", resp.Sale.ClientDocument)
	assert.Equal(t, domain.SaleStatusSubmitted, resp.Sale.Status)
	assert.Equal(t, "Banco do Brasil", resp.Sale.BankName)
	assert.Equal(t, "Loja Centro", resp.Sale.StoreName)
	assert.Equal(t, seededSellerID, resp.Sale.SellerID)
}

func TestCreateSaleFreeTextBankDefaultsToPlaceholder(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.CreateSale(context.Background(), seller, domain.SaleCreateRequest{
		ClientName:     "João",
		ClientDocument: anotherValidCPF,
		Value:          200,
		Store:          "Quiosque Norte",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NoBankName, resp.Sale.BankName)
	assert.Nil(t, resp.Sale.BankID)
	assert.Equal(t, "Quiosque Norte", resp.Sale.StoreName)
	assert.Equal(t, 6.0, resp.Commission)
}

func TestCreateSaleValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]domain.SaleCreateRequest{
		"missing client": {ClientDocument: validCPF, Value: 10},
		"bad document":   {ClientName: "A", ClientDocument: "123.456.789-00", Value: 10},
		"zero value":     {ClientName: "A", ClientDocument: validCPF, Value: 0},
		"negative value": {ClientName: "A", ClientDocument: validCPF, Value: -5},
		"unknown status": {ClientName: "A", ClientDocument: validCPF, Value: 10, Status: "paid"},
		"empty document": {ClientName: "A", Value: 10},
		"sub-cent value": {ClientName: "A", ClientDocument: validCPF, Value: 0.004},
		"fraction cents": {ClientName: "A", ClientDocument: validCPF, Value: 10.125},
		"overflow value": {ClientName: "A", ClientDocument: validCPF, Value: 1e13},
		"at the ceiling": {ClientName: "A", ClientDocument: validCPF, Value: 1e12},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSale(ctx, seller, req)
			require.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}

	_, err := svc.CreateSale(ctx, seller, domain.SaleCreateRequest{
		ClientName: "A", ClientDocument: validCPF, Value: 10, BankID: ptr(int64(999)),
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaleValuesMustFitStoredPrecision(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, seller, domain.SaleCreateRequest{
		ClientName: "A", ClientDocument: validCPF, Value: 999999999999.99,
	})
	require.NoError(t, err)
	assert.Equal(t, 999999999999.99, created.Sale.Value)

	for _, value := range []float64{0.004, 1e13} {
		_, err := svc.UpdateSale(ctx, seller, created.ID, domain.SaleUpdateRequest{Value: ptr(value)})
		require.ErrorIs(t, err, store.ErrInvalidInput, "value %v", value)
	}

	stored, err := repo.GetSale(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 999999999999.99, stored.Value)

	updated, err := svc.UpdateSale(ctx, seller, created.ID, domain.SaleUpdateRequest{Value: ptr(19.99)})
	require.NoError(t, err)
	assert.Equal(t, 19.99, updated.Value)
}

func TestCheckMoney(t *testing.T) {
	for _, ok := range []float64{0, 0.01, 19.99, 1000, 999999999999.99} {
		assert.NoError(t, checkMoney("value", ok), "%v", ok)
	}
	for _, bad := range []float64{0.001, 999.995, 1e12, -1e12, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, checkMoney("value", bad), store.ErrInvalidInput, "%v", bad)
	}
}

func TestUpdateSaleOwnershipAndPartialFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	other, err := svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name: "Outra", Email: "outra@salestrack.local", Password: "secret1",
	})
	require.NoError(t, err)
	otherActor := domain.Actor{SellerID: other.ID, Role: domain.RoleSeller}

	created, err := svc.CreateSale(ctx, seller, domain.SaleCreateRequest{
		ClientName: "Cliente", ClientDocument: validCPF, Value: 500, BankID: ptr(seededBankID),
	})
	require.NoError(t, err)

	_, err = svc.UpdateSale(ctx, otherActor, created.ID, domain.SaleUpdateRequest{Status: ptr(domain.SaleStatusAccepted)})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateSale(ctx, seller, created.ID, domain.SaleUpdateRequest{
		Status: ptr(domain.SaleStatusAccepted),
		Value:  ptr(1000.0),
		BankID: ptr(int64(0)),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusAccepted, updated.Status)
	assert.Equal(t, 1000.0, updated.Value)
	assert.Equal(t, 50.0, updated.Commission)
	assert.Nil(t, updated.BankID)
	assert.Equal(t, "Banco do Brasil", updated.BankName)
	assert.Equal(t, "Cliente", updated.ClientName)

	byAdmin, err := svc.UpdateSale(ctx, admin, created.ID, domain.SaleUpdateRequest{Notes: ptr("conferido")})
	require.NoError(t, err)
	assert.Equal(t, "conferido", byAdmin.Notes)
	assert.Equal(t, seededSellerID, byAdmin.SellerID)

	_, err = svc.UpdateSale(ctx, seller, 4242, domain.SaleUpdateRequest{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSalesScopesSellersAndComputesCommission(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSale(ctx, seller, domain.SaleCreateRequest{ClientName: "A", ClientDocument: validCPF, Value: 100})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, admin, domain.SaleCreateRequest{ClientName: "B", ClientDocument: validCPF, Value: 2000})
	require.NoError(t, err)

	own, err := svc.ListSales(ctx, seller, domain.SaleFilter{SellerID: seededAdminID})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, seededSellerID, own[0].SellerID)
	assert.Equal(t, 3.0, own[0].Commission)
	assert.Empty(t, own[0].SellerName)

	all, err := svc.ListSales(ctx, admin, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, sale := range all {
		assert.NotEmpty(t, sale.SellerName)
	}

	narrowed, err := svc.ListSales(ctx, admin, domain.SaleFilter{SellerID: seededAdminID})
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	assert.Equal(t, 100.0, narrowed[0].Commission)
}

func TestCommissionRuleLifecycleAndOverlapWarnings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCommissionRule(ctx, seller, domain.CommissionRuleRequest{MinValue: 0, Percent: 1})
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := svc.CreateCommissionRule(ctx, admin, domain.CommissionRuleRequest{
		SellerID: ptr(seededSellerID),
		MinValue: 500,
		MaxValue: ptr(1500.0),
		Percent:  8,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Warnings, 2)
	for _, warning := range resp.Warnings {
		assert.Contains(t, warning, "overlaps rule")
	}

	quote, err := svc.QuoteCommission(ctx, seller, 0, 700)
	require.NoError(t, err)
	assert.Equal(t, 56.0, quote.Commission)
	require.NotNil(t, quote.Rule)
	assert.Equal(t, resp.Rule.ID, quote.Rule.ID)

	// 1200 matches [1000,inf) at 5% and the seller's [500,1500] at 8%; the
	// higher min wins.
	quote, err = svc.QuoteCommission(ctx, admin, seededSellerID, 1200)
	require.NoError(t, err)
	assert.Equal(t, 60.0, quote.Commission)

	_, err = svc.QuoteCommission(ctx, seller, seededAdminID, 700)
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateCommissionRule(ctx, admin, resp.Rule.ID, domain.CommissionRuleRequest{
		SellerID: ptr(seededSellerID),
		MinValue: 5000,
		Percent:  9,
	})
	require.NoError(t, err)
	assert.Len(t, updated.Warnings, 1)

	require.NoError(t, svc.DeleteCommissionRule(ctx, admin, resp.Rule.ID))
	require.ErrorIs(t, svc.DeleteCommissionRule(ctx, admin, resp.Rule.ID), store.ErrNotFound)
}

func TestCommissionRuleValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]domain.CommissionRuleRequest{
		"negative min":  {MinValue: -1, Percent: 1},
		"max below min": {MinValue: 10, MaxValue: ptr(5.0), Percent: 1},
		"percent > 100": {MinValue: 0, Percent: 101},
		"negative rate": {MinValue: 0, Percent: -0.5},
		"sub-cent min":  {MinValue: 999.995, Percent: 1},
		"sub-cent max":  {MinValue: 0, MaxValue: ptr(999.995), Percent: 1},
		"overflow min":  {MinValue: 1e13, Percent: 1},
		"overflow max":  {MinValue: 0, MaxValue: ptr(1e12), Percent: 1},
		"fine percent":  {MinValue: 0, Percent: 2.12345},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateCommissionRule(ctx, admin, req)
			require.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}

	_, err := svc.CreateCommissionRule(ctx, admin, domain.CommissionRuleRequest{SellerID: ptr(int64(999)), Percent: 1})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSellerManagement(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListSellers(ctx, seller)
	require.ErrorIs(t, err, ErrForbidden)

	created, err := svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name:       "Parceira",
		Email:      " Parceira@Loja.com ",
		Password:   "parceira1",
		Kind:       domain.SellerKindPartner,
		ValidFrom:  "2024-01-01",
		ValidUntil: "2024-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "parceira@loja.com", created.Email)
	assert.Equal(t, domain.RoleSeller, created.Role)
	assert.Empty(t, created.PartnerStore)
	require.NotNil(t, created.ValidUntil)

	stored, err := repo.GetSeller(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(stored.PasswordHash, "parceira1"))

	internal, err := svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name: "Interno", Email: "interno@salestrack.local", Password: "interno1",
	})
	require.NoError(t, err)
	assert.Equal(t, "AJ8", internal.PartnerStore)

	_, err = svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name: "Dup", Email: "parceira@loja.com", Password: "secret1",
	})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name: "Short", Email: "short@salestrack.local", Password: "123",
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name: "Role", Email: "role@salestrack.local", Password: "secret1", Role: "owner",
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	updated, err := svc.UpdateSeller(ctx, admin, created.ID, domain.SellerUpdateRequest{
		Role:       ptr(domain.RoleAdmin),
		ValidUntil: ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
	assert.Nil(t, updated.ValidUntil)
	assert.NotNil(t, updated.ValidFrom)

	_, err = svc.UpdateSeller(ctx, admin, created.ID, domain.SellerUpdateRequest{ValidUntil: ptr("2023-06-01")})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSellerKindChangeMovesToHouseStore(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	partner, err := svc.CreateSeller(ctx, admin, domain.SellerCreateRequest{
		Name: "Parceiro", Email: "parceiro@loja.com", Password: "parceiro1",
		Kind: domain.SellerKindPartner, PartnerStore: "Loja Centro",
	})
	require.NoError(t, err)
	assert.Equal(t, "Loja Centro", partner.PartnerStore)

	moved, err := svc.UpdateSeller(ctx, admin, partner.ID, domain.SellerUpdateRequest{Kind: ptr(domain.SellerKindInternal)})
	require.NoError(t, err)
	assert.Equal(t, domain.SellerKindInternal, moved.Kind)
	assert.Equal(t, "AJ8", moved.PartnerStore)

	back, err := svc.UpdateSeller(ctx, admin, partner.ID, domain.SellerUpdateRequest{
		Kind: ptr(domain.SellerKindPartner), PartnerStore: ptr("Loja Norte"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Loja Norte", back.PartnerStore)

	explicit, err := svc.UpdateSeller(ctx, admin, partner.ID, domain.SellerUpdateRequest{
		Kind: ptr(domain.SellerKindInternal), PartnerStore: ptr("Filial Sul"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Filial Sul", explicit.PartnerStore)

	renamed, err := svc.UpdateSeller(ctx, admin, partner.ID, domain.SellerUpdateRequest{Name: ptr("Interno")})
	require.NoError(t, err)
	assert.Equal(t, "Filial Sul", renamed.PartnerStore)
}

func TestReferenceDataRequiresAdminForWrites(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBank(ctx, seller, domain.BankRequest{Name: ptr("Inter")})
	require.ErrorIs(t, err, ErrForbidden)

	bank, err := svc.CreateBank(ctx, admin, domain.BankRequest{Name: ptr("Inter"), Code: ptr("077")})
	require.NoError(t, err)
	assert.True(t, bank.Active)

	bank, err = svc.UpdateBank(ctx, admin, bank.ID, domain.BankRequest{Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, bank.Active)
	assert.Equal(t, "Inter", bank.Name)

	banks, err := svc.ListBanks(ctx)
	require.NoError(t, err)
	assert.Len(t, banks, 6)

	_, err = svc.CreatePartnerStore(ctx, admin, domain.PartnerStoreRequest{Name: ptr("Nova"), CNPJ: ptr("11.222.333/0001-80")})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	partner, err := svc.CreatePartnerStore(ctx, admin, domain.PartnerStoreRequest{Name: ptr("Nova"), CNPJ: ptr("11.222.333/0001-81")})
	require.NoError(t, err)
	assert.Equal(t, seededPartnerCNPJ, partner.CNPJ)

	_, err = svc.UpdatePartnerStore(ctx, admin, partner.ID, domain.PartnerStoreRequest{Name: ptr("  ")})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	err := svc.RequestPasswordReset(ctx, domain.ForgotPasswordRequest{Email: "nobody@salestrack.local"})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.RequestPasswordReset(ctx, domain.ForgotPasswordRequest{Email: "SELLER@salestrack.local"}))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "seller@salestrack.local", mailer.sent[0].to)
	require.True(t, strings.HasPrefix(mailer.sent[0].link, "http://app.test/reset?token="))
	token := strings.TrimPrefix(mailer.sent[0].link, "http://app.test/reset?token=")

	err = svc.ResetPassword(ctx, domain.ResetPasswordRequest{Token: token, NewPassword: "123"})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	require.NoError(t, svc.ResetPassword(ctx, domain.ResetPasswordRequest{Token: token, NewPassword: "nova-senha"}))
	stored, err := repo.GetSeller(ctx, seededSellerID)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(stored.PasswordHash, "nova-senha"))

	err = svc.ResetPassword(ctx, domain.ResetPasswordRequest{Token: token, NewPassword: "outra-senha"})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestPasswordResetMailerFailure(t *testing.T) {
	svc, _, mailer := newTestService(t)
	mailer.err = errors.New("smtp down")

	err := svc.RequestPasswordReset(context.Background(), domain.ForgotPasswordRequest{Email: "seller@salestrack.local"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestSummaryUsesInjectedClock(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithClock(func() time.Time { return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	_, err := svc.CreateSale(ctx, seller, domain.SaleCreateRequest{ClientName: "A", ClientDocument: validCPF, Value: 250, Status: domain.SaleStatusAccepted})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, seller, domain.SummaryFilters{})
	require.NoError(t, err)
	assert.Equal(t, "2023-10-01", summary.Range.Start)
	assert.Equal(t, "2024-04-01", summary.Range.EndExclusive)
	assert.Equal(t, int64(1), summary.Totals.Count)
	assert.Equal(t, 100.0, summary.Conversion.Rate)
	assert.Empty(t, summary.BySeller)
}

func TestAuditLogsRecordMutations(t *testing.T) {
	svc, _, _ := newTestService(t)
	now := time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := svc.CreateBank(ctx, admin, domain.BankRequest{Name: ptr("Inter")})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, seller, domain.SaleCreateRequest{ClientName: "A", ClientDocument: validCPF, Value: 10})
	require.NoError(t, err)

	_, err = svc.ListAuditLogs(ctx, seller, "", 10)
	require.ErrorIs(t, err, ErrForbidden)

	logs, err := svc.ListAuditLogs(ctx, admin, "2024-05-02", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	actions := []string{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []string{"bank_create", "sale_create"}, actions)

	logs, err = svc.ListAuditLogs(ctx, admin, "2024-05-03", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = svc.ListAuditLogs(ctx, admin, "05/02/2024", 10)
	require.ErrorIs(t, err, store.ErrInvalidInput)
}
