package gateway

import (
	"context"
	"fmt"

	"github.com/coursehub/integration-api/internal/config"
	"github.com/coursehub/integration-api/internal/domain"
)

// ESewa produces the signed form the browser posts to eSewa. No network call is made;
// the batch id travels as transaction_uuid and comes back on the redirect.
type ESewa struct {
	cfg config.ESewa
}

func NewESewa(cfg config.ESewa) *ESewa {
	return &ESewa{cfg: cfg}
}

func (g *ESewa) Method() domain.PaymentMethod { return domain.PaymentESewa }

func (g *ESewa) Initiate(_ context.Context, _ Checkout, batch *domain.OrderBatch) (*domain.Initiation, error) {
	if batch == nil || batch.BatchID == "" {
		return nil, fmt.Errorf("esewa: batch id required: %w", domain.ErrBadRequest)
	}
	total := formatAmount(batch.Total)
	fields := map[string]string{
		"amount":                  total,
		"tax_amount":              "0",
		"total_amount":            total,
		"transaction_uuid":        batch.BatchID,
		"product_code":            g.cfg.ProductCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             g.cfg.SuccessURL,
		"failure_url":             g.cfg.FailureURL,
		"signed_field_names":      ESewaSignedFieldNames,
		"signature":               SignESewa(g.cfg.SecretKey, total, batch.BatchID, g.cfg.ProductCode),
	}
	return &domain.Initiation{
		BatchID:    batch.BatchID,
		OrderIDs:   batch.OrderIDs(),
		Method:     domain.PaymentESewa,
		FormAction: g.cfg.FormURL,
		FormFields: fields,
	}, nil
}
