package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/config"
	invoicedomain "github.com/smallbiznis/kay/internal/invoice/domain"
	"github.com/smallbiznis/kay/internal/money"
	notificationdomain "github.com/smallbiznis/kay/internal/notification/domain"
	"github.com/smallbiznis/kay/internal/observability"
	obsmetrics "github.com/smallbiznis/kay/internal/observability/metrics"
	productdomain "github.com/smallbiznis/kay/internal/product/domain"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adminToken = "good-token"

type testServer struct {
	srv           *Server
	auth          *mockAuthService
	quotations    *mockQuotationService
	invoices      *mockInvoiceService
	products      *mockProductService
	notifications *mockNotificationService
}

func newTestServer(t *testing.T, limiter *ratelimit.PublicLimiter) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	httpMetrics, err := obsmetrics.NewHTTPMetricsWithRegisterer(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := config.Config{CORSAllowedOrigins: []string{"https://kay.example"}}
	ts := testServer{
		auth:          &mockAuthService{},
		quotations:    &mockQuotationService{},
		invoices:      &mockInvoiceService{},
		products:      &mockProductService{},
		notifications: &mockNotificationService{},
	}
	ts.auth.On("Authenticate", mock.Anything, adminToken).Return(&authdomain.Claims{
		Email:            "admin@kay.example",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1001"},
	}, nil).Maybe()
	ts.auth.On("Authenticate", mock.Anything, mock.Anything).Return(nil, authdomain.ErrInvalidToken).Maybe()

	ts.srv = NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{}, cfg, httpMetrics),
		Cfg:             cfg,
		Log:             zap.NewNop(),
		Authsvc:         ts.auth,
		QuotationSvc:    ts.quotations,
		InvoiceSvc:      ts.invoices,
		ProductSvc:      ts.products,
		NotificationSvc: ts.notifications,
		PublicLimiter:   limiter,
	})
	return ts
}

func (ts testServer) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/admin/invoices", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	req := httptest.NewRequest(http.MethodGet, "/admin/invoices", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec = httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ts.invoices.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestMeReturnsTokenSubject(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.auth.On("Me", mock.Anything, "1001").Return(&authdomain.AdminUser{Email: "admin@kay.example"}, nil)

	rec := ts.do(t, http.MethodGet, "/auth/me", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin@kay.example")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestSubmitQuotation(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.quotations.On("Submit", mock.Anything, mock.MatchedBy(func(req quotationdomain.SubmitRequest) bool {
		return req.CustomerName == "Jane Wanjiku" &&
			len(req.Items) == 1 &&
			req.Total.Equal(decimal.NewFromInt(1160))
	})).Return(&quotationdomain.SubmitResult{Reference: "KAY-123456789"}, nil)

	body := `{
		"customer_name": "Jane Wanjiku",
		"customer_email": "jane@example.com",
		"items": [{"name": "Cement 50kg", "quantity": 10, "unit_price": "100"}],
		"subtotal": 1000, "vat_amount": 160, "total": 1160
	}`
	rec := ts.do(t, http.MethodPost, "/api/quotations", body, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data quotationdomain.SubmitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "KAY-123456789", resp.Data.Reference)
	ts.quotations.AssertExpectations(t)
}

func TestSubmitQuotationRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/quotations", `{"customer_name":"Jane","is_admin":true}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_request", payload.Errors[0].Code)
	ts.quotations.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestValidationErrorCarriesField(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.quotations.On("Submit", mock.Anything, mock.Anything).Return(nil, quotationdomain.ErrInvalidCustomerEmail)

	rec := ts.do(t, http.MethodPost, "/api/quotations", `{"customer_name":"Jane"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "customer_email", payload.Errors[0].Field)
	assert.Equal(t, "invalid_customer_email", payload.Errors[0].Code)
}

func TestDeletePendingInvoiceIsInvalidState(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.On("Delete", mock.Anything, "77").Return(invoicedomain.ErrInvalidState)
	ts.invoices.On("Delete", mock.Anything, "78").Return(nil)

	rec := ts.do(t, http.MethodDelete, "/admin/invoices/77", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decodeError(t, rec).Type)

	rec = ts.do(t, http.MethodDelete, "/admin/invoices/78", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvoiceNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.On("GetByNumber", mock.Anything, "INV-2024000000009").Return(nil, invoicedomain.ErrNotFound)

	rec := ts.do(t, http.MethodGet, "/admin/invoices/number/INV-2024000000009", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestRecordPaymentOverpayment(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.On("RecordPayment", mock.Anything, "5", mock.MatchedBy(func(req invoicedomain.PaymentRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(900)) && req.Method == "mpesa"
	})).Return(nil, invoicedomain.ErrOverpayment)

	rec := ts.do(t, http.MethodPost, "/admin/invoices/5/payments", `{"amount":900,"method":"mpesa"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_overpayment", payload.Errors[0].Code)
	ts.invoices.AssertExpectations(t)
}

func TestMarkPaidAcceptsEmptyBody(t *testing.T) {
	ts := newTestServer(t, nil)
	paid := &invoicedomain.Invoice{InvoiceNumber: "INV-2024000000001", Status: invoicedomain.StatusPaid}
	ts.invoices.On("MarkAsPaid", mock.Anything, "9", invoicedomain.MarkPaidRequest{}).Return(paid, nil).Twice()

	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodPost, "/admin/invoices/9/mark-paid", "", true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"status":"paid"`)
	}
	ts.invoices.AssertExpectations(t)
}

func TestListInvoicesParsesFilters(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.On("List", mock.Anything, mock.MatchedBy(func(req invoicedomain.ListRequest) bool {
		return req.Overdue &&
			req.Status == "pending" &&
			req.PageSize == 10 &&
			req.IssueFrom != nil && req.IssueFrom.Day() == 1 &&
			req.IssueTo != nil && req.IssueTo.Hour() == 23
	})).Return(invoicedomain.ListResponse{}, nil)

	rec := ts.do(t, http.MethodGet, "/admin/invoices?status=pending&overdue=true&page_size=10&issue_from=2024-05-01&issue_to=2024-05-31", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ts.invoices.AssertExpectations(t)

	rec = ts.do(t, http.MethodGet, "/admin/invoices?issue_from=yesterday", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderInvoicePDF(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.On("RenderPDF", mock.Anything, "3").Return([]byte("%PDF-1.4"), "INV-2024000000003.pdf", nil)

	rec := ts.do(t, http.MethodGet, "/admin/invoices/3/pdf", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="INV-2024000000003.pdf"`)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestConvertQuotationMapsQuotationErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.quotations.On("ConvertToInvoice", mock.Anything, "11", quotationdomain.ConvertRequest{}).Return(nil, quotationdomain.ErrInvalidState)

	rec := ts.do(t, http.MethodPost, "/admin/quotations/11/convert", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExpireQuotations(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.quotations.On("ExpireStale", mock.Anything).Return(int64(3), nil)

	rec := ts.do(t, http.MethodPost, "/admin/quotations/expire", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"expired":3}}`, rec.Body.String())
}

func TestPublicProductHidesArchived(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.products.On("Get", mock.Anything, "4").Return(&productdomain.Product{Name: "Old", Active: false}, nil)

	rec := ts.do(t, http.MethodGet, "/api/products/4", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin/products/4", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicProductListExcludesInactive(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.products.On("List", mock.Anything, mock.MatchedBy(func(req productdomain.ListRequest) bool {
		return !req.IncludeInactive && req.Category == "cement"
	})).Return(productdomain.ListResponse{}, nil).Once()
	ts.products.On("List", mock.Anything, mock.MatchedBy(func(req productdomain.ListRequest) bool {
		return req.IncludeInactive
	})).Return(productdomain.ListResponse{}, nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/products?category=cement&include_inactive=true", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/admin/products?include_inactive=true", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	ts.products.AssertExpectations(t)
}

func TestNotificationsUnreadFilter(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.notifications.On("List", mock.Anything, mock.MatchedBy(func(req notificationdomain.ListRequest) bool {
		return req.UnreadOnly && req.Type == "paid"
	})).Return(notificationdomain.ListResponse{UnreadCount: 2}, nil)
	ts.notifications.On("MarkRead", mock.Anything, "12").Return(notificationdomain.ErrNotFound)

	rec := ts.do(t, http.MethodGet, "/admin/notifications?unread=true&type=paid", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unread_count":2`)

	rec = ts.do(t, http.MethodPost, "/admin/notifications/12/read", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteIsJSONNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/quotations", nil)
	req.Header.Set("Origin", "https://kay.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://kay.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

// denyScripter answers every bucket check with an empty bucket.
type denyScripter struct{ calls int }

func (d *denyScripter) reply() *redis.Cmd {
	d.calls++
	return redis.NewCmdResult([]any{int64(0), "0", int64(1700000000000)}, nil)
}

func (d *denyScripter) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return d.reply()
}

func (d *denyScripter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return d.reply()
}

func (d *denyScripter) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return d.reply()
}

func (d *denyScripter) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return d.reply()
}

func (d *denyScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (d *denyScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestPublicRateLimitRejectsWithRetryAfter(t *testing.T) {
	scripter := &denyScripter{}
	ts := newTestServer(t, ratelimit.NewScriptedPublicLimiter(scripter, 0.5, 5))

	rec := ts.do(t, http.MethodGet, "/api/quotations/track/KAY-123456789", "", false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	assert.Equal(t, 1, scripter.calls)
	ts.quotations.AssertNotCalled(t, "Track", mock.Anything, mock.Anything)

	// admin routes are not throttled
	ts.invoices.On("Stats", mock.Anything).Return(invoicedomain.Stats{}, nil)
	rec = ts.do(t, http.MethodGet, "/admin/invoices/stats", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, scripter.calls)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
		code   string
	}{
		{money.ErrInvalidTaxRate, http.StatusBadRequest, "validation_error", "invalid_tax_rate"},
		{fmt.Errorf("compute: %w", money.ErrInvalidDiscount), http.StatusBadRequest, "validation_error", "invalid_discount"},
		{invoicedomain.ErrInvalidPaymentAmount, http.StatusBadRequest, "validation_error", "invalid_payment_amount"},
		{quotationdomain.ErrInvalidStatus, http.StatusBadRequest, "validation_error", "invalid_status"},
		{invoicedomain.ErrQuotationNotFound, http.StatusNotFound, "not_found", "not_found"},
		{gorm.ErrRecordNotFound, http.StatusNotFound, "not_found", "not_found"},
		{invoicedomain.ErrInvalidState, http.StatusConflict, "invalid_state", "invalid_state"},
		{productdomain.ErrSlugTaken, http.StatusConflict, "conflict", "conflict"},
		{authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "unauthorized"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error", "internal_error"},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		kind, code := classifyErrorForLog(tc.err)
		assert.Equal(t, tc.kind, kind, tc.err.Error())
		assert.Equal(t, tc.kind, payload.Type)
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
