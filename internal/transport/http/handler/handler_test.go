package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursehub/integration-api/internal/application/otp"
	"github.com/coursehub/integration-api/internal/application/payment"
	"github.com/coursehub/integration-api/internal/domain"
	jwtinfra "github.com/coursehub/integration-api/internal/infrastructure/jwt"
	"github.com/coursehub/integration-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTPSvc struct{ mock.Mock }

func (m *mockOTPSvc) Issue(ctx context.Context, req otp.SendRequest) error {
	return m.Called(ctx, req).Error(0)
}
func (m *mockOTPSvc) Verify(ctx context.Context, req otp.VerifyRequest) error {
	return m.Called(ctx, req).Error(0)
}

type mockPaymentSvc struct{ mock.Mock }

func (m *mockPaymentSvc) Initiate(ctx context.Context, userID string, method domain.PaymentMethod, req payment.InitiateRequest) (*domain.Initiation, error) {
	args := m.Called(ctx, userID, method, req)
	if in, _ := args.Get(0).(*domain.Initiation); in != nil {
		return in, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(privKey, &privKey.PublicKey, time.Hour)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env.Error
}

// paymentRouter mounts the payment handler behind the auth middleware like the real router.
func paymentRouter(p *jwtinfra.Provider, h *PaymentHandler) http.Handler {
	r := chi.NewRouter()
	r.With(middleware.Auth(p)).Post("/v1/payments/{method}/initiate", h.Initiate)
	return r
}

// --- OTP ---

func TestOTPSend_InvalidBody(t *testing.T) {
	h := NewOTPHandler(&mockOTPSvc{})
	rr := httptest.NewRecorder()
	h.Send(rr, httptest.NewRequest(http.MethodPost, "/v1/otp/send", bytes.NewBufferString("not-json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOTPSend_ValidationFailure(t *testing.T) {
	h := NewOTPHandler(&mockOTPSvc{})
	rr := httptest.NewRecorder()
	h.Send(rr, httptest.NewRequest(http.MethodPost, "/v1/otp/send", jsonBody(t, map[string]string{"email": "not-an-email", "name": "Ada"})))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestOTPSend_HappyPath(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Issue", mock.Anything, otp.SendRequest{Email: "a@b.com", Name: "Ada"}).Return(nil)
	rr := httptest.NewRecorder()
	NewOTPHandler(svc).Send(rr, httptest.NewRequest(http.MethodPost, "/v1/otp/send", jsonBody(t, otp.SendRequest{Email: "a@b.com", Name: "Ada"})))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestOTPSend_MailFailureIsBadGateway(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Issue", mock.Anything, mock.Anything).Return(&domain.MailDeliveryError{
		Step: "AUTH secret", Reply: "535 5.7.8 bad credentials", Err: domain.ErrAuthenticationFailed,
	})
	rr := httptest.NewRecorder()
	NewOTPHandler(svc).Send(rr, httptest.NewRequest(http.MethodPost, "/v1/otp/send", jsonBody(t, otp.SendRequest{Email: "a@b.com", Name: "Ada"})))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	msg := errorOf(t, rr)
	assert.Equal(t, "could not send verification email", msg)
	assert.NotContains(t, msg, "535")
}

func TestOTPVerify_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, http.StatusOK},
		{domain.ErrInvalidCode, http.StatusBadRequest},
		{domain.ErrExpired, http.StatusGone},
		{errors.New("dynamo down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &mockOTPSvc{}
		svc.On("Verify", mock.Anything, mock.Anything).Return(tc.err)
		rr := httptest.NewRecorder()
		NewOTPHandler(svc).Verify(rr, httptest.NewRequest(http.MethodPost, "/v1/otp/verify", jsonBody(t, otp.VerifyRequest{Email: "a@b.com", Code: "123456"})))
		assert.Equal(t, tc.code, rr.Code, "error %v", tc.err)
	}
}

func TestOTPVerify_RejectsShortCode(t *testing.T) {
	rr := httptest.NewRecorder()
	NewOTPHandler(&mockOTPSvc{}).Verify(rr, httptest.NewRequest(http.MethodPost, "/v1/otp/verify", jsonBody(t, otp.VerifyRequest{Email: "a@b.com", Code: "123"})))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

// --- payments ---

func validPaymentBody() payment.InitiateRequest {
	return payment.InitiateRequest{
		Items:       []domain.BatchItem{{CourseID: "course1", Price: 500}, {CourseID: "course2", Price: 300}},
		TotalAmount: 800,
	}
}

func TestPaymentInitiate_RequiresAuth(t *testing.T) {
	p := newTestJWTProvider(t)
	rr := httptest.NewRecorder()
	paymentRouter(p, NewPaymentHandler(&mockPaymentSvc{})).ServeHTTP(rr,
		httptest.NewRequest(http.MethodPost, "/v1/payments/khalti/initiate", jsonBody(t, validPaymentBody())))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPaymentInitiate_UnknownMethod(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Sign("U1", "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/paypal/initiate", jsonBody(t, validPaymentBody()))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	paymentRouter(p, NewPaymentHandler(&mockPaymentSvc{})).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPaymentInitiate_HappyPath(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Sign("U1", "a@b.com")
	require.NoError(t, err)

	svc := &mockPaymentSvc{}
	svc.On("Initiate", mock.Anything, "U1", domain.PaymentKhalti, validPaymentBody()).Return(&domain.Initiation{
		BatchID: "B1", OrderIDs: []string{"O1", "O2"}, Method: domain.PaymentKhalti,
		PaymentURL: "https://test-pay.khalti.com/?pidx=P1", Token: "P1",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/khalti/initiate", jsonBody(t, validPaymentBody()))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	paymentRouter(p, NewPaymentHandler(svc)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "B1", got["batch_id"])
	assert.Equal(t, "P1", got["pidx"])
	assert.NotContains(t, got, "form_fields")
	svc.AssertExpectations(t)
}

func TestPaymentInitiate_ValidationFailure(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Sign("U1", "")
	require.NoError(t, err)
	body := payment.InitiateRequest{Items: []domain.BatchItem{{CourseID: "", Price: 10}}, TotalAmount: 10}

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/esewa/initiate", jsonBody(t, body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	paymentRouter(p, NewPaymentHandler(&mockPaymentSvc{})).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPaymentInitiate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"total mismatch", fmt.Errorf("item prices do not add up: %w", domain.ErrBadRequest), http.StatusBadRequest, "item prices do not add up: bad request"},
		{"batch", &domain.BatchError{BatchID: "B", Failed: 1, Total: 2, Err: errors.New("throttled")}, http.StatusInternalServerError, "could not place order"},
		{"gateway detail", &domain.GatewayError{Gateway: domain.PaymentKhalti, StatusCode: 401, Detail: "Invalid token.", Err: domain.ErrGatewayUnavailable}, http.StatusBadGateway, "payment gateway error: Invalid token."},
		{"gateway down", &domain.GatewayError{Gateway: domain.PaymentKhalti, Err: domain.ErrGatewayUnavailable}, http.StatusBadGateway, "payment gateway unavailable"},
		{"malformed", &domain.GatewayError{Gateway: domain.PaymentKhalti, Detail: "response missing pidx or payment_url", Err: domain.ErrMalformedGatewayResponse}, http.StatusBadGateway, "payment gateway returned an invalid response"},
	}
	p := newTestJWTProvider(t)
	token, err := p.Sign("U1", "")
	require.NoError(t, err)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockPaymentSvc{}
			svc.On("Initiate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)
			req := httptest.NewRequest(http.MethodPost, "/v1/payments/khalti/initiate", jsonBody(t, validPaymentBody()))
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			paymentRouter(p, NewPaymentHandler(svc)).ServeHTTP(rr, req)
			assert.Equal(t, tc.code, rr.Code)
			assert.Equal(t, tc.msg, errorOf(t, rr))
		})
	}
}

// --- health ---

func TestHealthPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/health-check/{action}", NewHealthHandler().Ping)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/other", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
