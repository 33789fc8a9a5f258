package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursehub/integration-api/internal/config"
	"github.com/coursehub/integration-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKhalti(url string) *Khalti {
	return NewKhalti(config.Khalti{
		BaseURL:    url,
		SecretKey:  "test_secret",
		ReturnURL:  "https://app.test/return",
		WebsiteURL: "https://app.test",
	}, 2*time.Second)
}

func TestKhalti_Initiate_Success(t *testing.T) {
	var got khaltiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/epayment/initiate/", r.URL.Path)
		assert.Equal(t, "Key test_secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pidx":"bZQLD9wRVWo4CdESSfuSsB","payment_url":"https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuSsB","expires_in":1800}`))
	}))
	defer srv.Close()

	in, err := newTestKhalti(srv.URL).Initiate(context.Background(), Checkout{
		PurchaseOrderName: "2 courses",
		Customer:          domain.CustomerInfo{Name: "Ada", Email: "a@b.com", Phone: "9800000001"},
	}, testBatch(199.5))
	require.NoError(t, err)

	assert.Equal(t, "bZQLD9wRVWo4CdESSfuSsB", in.Token)
	assert.Contains(t, in.PaymentURL, "pidx=")
	assert.Equal(t, domain.PaymentKhalti, in.Method)

	assert.Equal(t, int64(19950), got.Amount)
	assert.Equal(t, "01HZBATCH", got.PurchaseOrderID)
	assert.Equal(t, "2 courses", got.PurchaseOrderName)
	assert.Equal(t, "https://app.test/return", got.ReturnURL)
	require.NotNil(t, got.CustomerInfo)
	assert.Equal(t, "Ada", got.CustomerInfo.Name)
}

func TestKhalti_Initiate_MissingPidxIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payment_url":"https://test-pay.khalti.com/"}`))
	}))
	defer srv.Close()

	_, err := newTestKhalti(srv.URL).Initiate(context.Background(), Checkout{}, testBatch(100))
	assert.True(t, errors.Is(err, domain.ErrMalformedGatewayResponse))
	assert.False(t, errors.Is(err, domain.ErrGatewayUnavailable))
}

func TestKhalti_Initiate_ErrorDetailSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token.","status_code":401}`))
	}))
	defer srv.Close()

	_, err := newTestKhalti(srv.URL).Initiate(context.Background(), Checkout{}, testBatch(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayUnavailable))

	var ge *domain.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
	assert.Equal(t, "Invalid token.", ge.Detail)
}

func TestKhalti_Initiate_FieldErrorsKeptRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"amount":["Amount should be greater than Rs. 10, that is 1000 paisa."],"error_key":"validation_error"}`))
	}))
	defer srv.Close()

	_, err := newTestKhalti(srv.URL).Initiate(context.Background(), Checkout{}, testBatch(1))
	var ge *domain.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Contains(t, ge.Detail, "greater than Rs. 10")
}

func TestKhalti_Initiate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestKhalti(url).Initiate(context.Background(), Checkout{}, testBatch(100))
	assert.True(t, errors.Is(err, domain.ErrGatewayUnavailable))
}
