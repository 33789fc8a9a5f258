package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coursehub/integration-api/internal/config"
	"github.com/coursehub/integration-api/internal/domain"
	"github.com/coursehub/integration-api/internal/pkg/metrics"
	"go.uber.org/zap"
)

const maxDetailBytes = 1 << 10

// Khalti calls the ePayment initiate endpoint and returns its pidx and payment URL.
type Khalti struct {
	cfg    config.Khalti
	client *http.Client
}

func NewKhalti(cfg config.Khalti, timeout time.Duration) *Khalti {
	return &Khalti{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type khaltiCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type khaltiRequest struct {
	ReturnURL         string          `json:"return_url"`
	WebsiteURL        string          `json:"website_url"`
	Amount            int64           `json:"amount"`
	PurchaseOrderID   string          `json:"purchase_order_id"`
	PurchaseOrderName string          `json:"purchase_order_name"`
	CustomerInfo      *khaltiCustomer `json:"customer_info,omitempty"`
}

type khaltiResponse struct {
	PIDX       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
}

func (g *Khalti) Method() domain.PaymentMethod { return domain.PaymentKhalti }

func (g *Khalti) Initiate(ctx context.Context, co Checkout, batch *domain.OrderBatch) (*domain.Initiation, error) {
	if batch == nil || batch.BatchID == "" {
		return nil, fmt.Errorf("khalti: batch id required: %w", domain.ErrBadRequest)
	}
	name := co.PurchaseOrderName
	if name == "" {
		name = "Course purchase " + batch.BatchID
	}
	payload := khaltiRequest{
		ReturnURL:         g.cfg.ReturnURL,
		WebsiteURL:        g.cfg.WebsiteURL,
		Amount:            ToPaisa(batch.Total),
		PurchaseOrderID:   batch.BatchID,
		PurchaseOrderName: name,
	}
	if co.Customer != (domain.CustomerInfo{}) {
		payload.CustomerInfo = &khaltiCustomer{Name: co.Customer.Name, Email: co.Customer.Email, Phone: co.Customer.Phone}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("khalti: marshal request: %w", err)
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/epayment/initiate/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("khalti: build request: %w", err)
	}
	req.Header.Set("Authorization", KhaltiAuthorization(g.cfg.SecretKey))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.GatewayDuration.WithLabelValues(string(domain.PaymentKhalti)).Observe(time.Since(start).Seconds())
	if err != nil {
		zap.L().Error("khalti initiate request failed", zap.String("batch_id", batch.BatchID), zap.Error(err))
		return nil, &domain.GatewayError{Gateway: domain.PaymentKhalti, Err: fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, &domain.GatewayError{Gateway: domain.PaymentKhalti, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(raw)
		zap.L().Warn("khalti rejected initiation",
			zap.String("batch_id", batch.BatchID),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail),
		)
		return nil, &domain.GatewayError{Gateway: domain.PaymentKhalti, StatusCode: resp.StatusCode, Detail: detail, Err: domain.ErrGatewayUnavailable}
	}

	var out khaltiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &domain.GatewayError{Gateway: domain.PaymentKhalti, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", domain.ErrMalformedGatewayResponse, err)}
	}
	if out.PIDX == "" || out.PaymentURL == "" {
		return nil, &domain.GatewayError{Gateway: domain.PaymentKhalti, StatusCode: resp.StatusCode, Detail: "response missing pidx or payment_url", Err: domain.ErrMalformedGatewayResponse}
	}

	return &domain.Initiation{
		BatchID:    batch.BatchID,
		OrderIDs:   batch.OrderIDs(),
		Method:     domain.PaymentKhalti,
		PaymentURL: out.PaymentURL,
		Token:      out.PIDX,
	}, nil
}

// errorDetail prefers Khalti's "detail" field and falls back to the raw body.
func errorDetail(raw []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > maxDetailBytes {
		s = s[:maxDetailBytes]
	}
	return s
}
