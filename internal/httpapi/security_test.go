package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	srv := newTestAPI(t)

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}

func TestPreflightShortCircuits(t *testing.T) {
	srv := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-CSRF-Token")
}

func TestCSRFRequiredForMutations(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "admin@salestrack.local", "admin123").AccessToken

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		path := "/api/v1/banks"
		if method == http.MethodDelete {
			path = "/api/v1/commission-rules/10"
		}
		req := httptest.NewRequest(method, path, strings.NewReader(`{"name":"Inter"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, method)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/banks", strings.NewReader(`{"name":"Inter"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", "not-a-token")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFTokenEndpointIssuesUsableToken(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "admin@salestrack.local", "admin123").AccessToken

	rec := srv.do(t, http.MethodGet, "/api/v1/auth/csrf-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	require.NotEmpty(t, body["csrf_token"])
	assert.True(t, srv.api.validateCSRFToken(body["csrf_token"]))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/banks", strings.NewReader(`{"name":"Inter","code":"077"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", body["csrf_token"])
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCSRFTokenRotatesByHour(t *testing.T) {
	srv := newTestAPI(t)

	assert.NotEqual(t, srv.api.csrfTokenForHour(0), srv.api.csrfTokenForHour(3600))
	assert.False(t, srv.api.validateCSRFToken(srv.api.csrfTokenForHour(0)))
	assert.False(t, srv.api.validateCSRFToken(""))
}

func TestMissingBearerToken(t *testing.T) {
	srv := newTestAPI(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/sales", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/sales", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	srv := newTestAPI(t)

	attempt := func() int {
		body, _ := json.Marshal(map[string]string{"email": "admin@salestrack.local", "password": "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, attempt(), "attempt %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt())

	// Other clients keep their own budget.
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@salestrack.local", "password": "admin123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "seller@salestrack.local", "seller123").AccessToken

	huge := `{"client_name":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(huge))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", srv.api.generateCSRFToken())
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownFieldsRejected(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "seller@salestrack.local", "seller123").AccessToken

	rec := srv.do(t, http.MethodPost, "/api/v1/sales", token, map[string]any{"client_name": "A", "commission": 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorsStayGeneric(t *testing.T) {
	srv := newTestAPI(t)
	rec := httptest.NewRecorder()

	srv.api.writeError(rec, http.StatusInternalServerError, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestClientKey(t *testing.T) {
	cases := map[string]string{
		"10.1.2.3:8080": "10.1.2.3",
		"[::1]:443":     "::1",
		"":              "unknown",
		"host-only":     "host-only",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		assert.Equal(t, want, clientKey(req), remote)
	}
}
