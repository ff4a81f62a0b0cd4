package httpapi

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/service"
	"salestrack/backend/internal/store"
)

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			a.writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, errAccountInactive):
			a.writeError(w, http.StatusForbidden, err)
		default:
			a.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req domain.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.RequestPasswordReset(r.Context(), req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}

	var req domain.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.ResetPassword(r.Context(), req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		filter := domain.SaleFilter{
			SellerID:       parseOptionalID(query.Get("seller_id")),
			Status:         query.Get("status"),
			BankID:         parseOptionalID(query.Get("bank_id")),
			StoreID:        parseOptionalID(query.Get("store_id")),
			ClientName:     query.Get("client_name"),
			ClientDocument: query.Get("client_document"),
			Limit:          parsePositiveLimit(query.Get("limit"), store.MaxSaleListLimit, store.MaxSaleListLimit),
		}
		sales, err := a.service.ListSales(r.Context(), actor, filter)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.CreateSale(r.Context(), actor, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		a.writeMethodNotAllowed(w)
		return
	}
	id, err := pathID(r, "/api/v1/sales/")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	var req domain.SaleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	sale, err := a.service.UpdateSale(r.Context(), actorFrom(r), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	filters := domain.SummaryFilters{
		Start:    query.Get("start"),
		End:      query.Get("end"),
		Status:   query.Get("status"),
		BankID:   parseOptionalID(query.Get("bank_id")),
		StoreID:  parseOptionalID(query.Get("store_id")),
		SellerID: parseOptionalID(query.Get("seller_id")),
	}
	summary, err := a.service.Summary(r.Context(), actorFrom(r), filters)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(query.Get("format")), "csv") {
		body, err := summaryToCSV(summary)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"summary-%s.csv\"", summary.Range.Start))
		_, _ = w.Write([]byte(body))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCommissionQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	amount, err := strconv.ParseFloat(strings.TrimSpace(query.Get("amount")), 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, errors.New("amount must be a number"))
		return
	}
	quote, err := a.service.QuoteCommission(r.Context(), actorFrom(r), parseOptionalID(query.Get("seller_id")), amount)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleBanks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		banks, err := a.service.ListBanks(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
	case http.MethodPost:
		var req domain.BankRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		bank, err := a.service.CreateBank(r.Context(), actorFrom(r), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"bank": bank})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleBankActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		a.writeMethodNotAllowed(w)
		return
	}
	id, err := pathID(r, "/api/v1/banks/")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	var req domain.BankRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	bank, err := a.service.UpdateBank(r.Context(), actorFrom(r), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bank": bank})
}

func (a *API) handlePartnerStores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stores, err := a.service.ListPartnerStores(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
	case http.MethodPost:
		var req domain.PartnerStoreRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		partner, err := a.service.CreatePartnerStore(r.Context(), actorFrom(r), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"store": partner})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handlePartnerStoreActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		a.writeMethodNotAllowed(w)
		return
	}
	id, err := pathID(r, "/api/v1/stores/")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	var req domain.PartnerStoreRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	partner, err := a.service.UpdatePartnerStore(r.Context(), actorFrom(r), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"store": partner})
}

func (a *API) handleSellers(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	switch r.Method {
	case http.MethodGet:
		sellers, err := a.service.ListSellers(r.Context(), actor)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sellers": sellers})
	case http.MethodPost:
		var req domain.SellerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		seller, err := a.service.CreateSeller(r.Context(), actor, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"seller": seller})
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleSellerActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		a.writeMethodNotAllowed(w)
		return
	}
	id, err := pathID(r, "/api/v1/sellers/")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	var req domain.SellerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	seller, err := a.service.UpdateSeller(r.Context(), actorFrom(r), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seller": seller})
}

func (a *API) handleCommissionRules(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	switch r.Method {
	case http.MethodGet:
		rules, err := a.service.ListCommissionRules(r.Context(), actor)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	case http.MethodPost:
		var req domain.CommissionRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.CreateCommissionRule(r.Context(), actor, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleCommissionRuleActions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/api/v1/commission-rules/")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	actor := actorFrom(r)

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var req domain.CommissionRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.UpdateCommissionRule(r.Context(), actor, id, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		if err := a.service.DeleteCommissionRule(r.Context(), actor, id); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), actorFrom(r), date, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func summaryToCSV(summary domain.Summary) (string, error) {
	var b strings.Builder
	out := csv.NewWriter(&b)

	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	count := func(v int64) string { return strconv.FormatInt(v, 10) }

	rows := [][]string{
		{"section", "key", "count", "sum"},
		{"range", summary.Range.Start + ".." + summary.Range.EndExclusive, "", ""},
		{"totals", "all", count(summary.Totals.Count), money(summary.Totals.Sum)},
		{"conversion", "accepted", count(summary.Conversion.Accepted), money(summary.Conversion.Rate)},
	}
	for _, m := range summary.ByMonth {
		rows = append(rows, []string{"month", m.Month, count(m.Count), money(m.Sum)})
	}
	for _, s := range summary.ByStatus {
		rows = append(rows, []string{"status", csvText(s.Status), count(s.Count), money(s.Sum)})
	}
	for _, bank := range summary.ByBank {
		rows = append(rows, []string{"bank", csvText(bank.Bank), count(bank.Count), money(bank.Sum)})
	}
	for _, st := range summary.ByStore {
		rows = append(rows, []string{"store", csvText(st.Store), count(st.Count), money(st.Sum)})
	}
	for _, seller := range summary.BySeller {
		rows = append(rows, []string{"seller", csvText(fmt.Sprintf("%d:%s", seller.SellerID, seller.SellerName)), count(seller.Count), money(seller.Sum)})
	}

	if err := out.WriteAll(rows); err != nil {
		return "", err
	}
	return b.String(), nil
}

// csvText neutralises free-text cells that spreadsheets would evaluate as
// formulas by prefixing them with a quote.
func csvText(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}
