// Package gateway builds payment initiations for eSewa (signed form POST) and
// Khalti (server-to-server JSON).
package gateway

import (
	"context"
	"strconv"

	"github.com/coursehub/integration-api/internal/domain"
)

// Checkout carries the request details a gateway may forward besides the batch itself.
type Checkout struct {
	PurchaseOrderName string
	Customer          domain.CustomerInfo
}

// Gateway hands a created order batch over to one payment provider.
type Gateway interface {
	Method() domain.PaymentMethod
	Initiate(ctx context.Context, co Checkout, batch *domain.OrderBatch) (*domain.Initiation, error)
}

// formatAmount renders rupees without trailing zeros: 800 -> "800", 199.5 -> "199.5".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
