package domain

import "time"

// PaymentMethod identifies the gateway a batch is paid through.
type PaymentMethod string

const (
	PaymentESewa  PaymentMethod = "esewa"
	PaymentKhalti PaymentMethod = "khalti"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentESewa || m == PaymentKhalti
}

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	// OrderFailed is only written when a partially inserted batch is compensated.
	OrderFailed OrderStatus = "failed"
)

// Order is one course purchase. All orders of a checkout share BatchTransactionID.
// PK: order_id. GSI: batch_transaction_id-index.
type Order struct {
	OrderID            string        `json:"order_id" dynamodbav:"order_id"`
	UserID             string        `json:"user_id" dynamodbav:"user_id"`
	CourseID           string        `json:"course_id" dynamodbav:"course_id"`
	Amount             float64       `json:"amount" dynamodbav:"amount"`
	PaymentMethod      PaymentMethod `json:"payment_method" dynamodbav:"payment_method"`
	Status             OrderStatus   `json:"status" dynamodbav:"status"`
	BatchTransactionID string        `json:"batch_transaction_id" dynamodbav:"batch_transaction_id"`
	GatewayToken       string        `json:"gateway_token,omitempty" dynamodbav:"gateway_token,omitempty"`
	CreatedAt          time.Time     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

// BatchItem is one course in a checkout with the price charged for it.
type BatchItem struct {
	CourseID string  `json:"course_id" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// OrderBatch is the result of a successful batch creation.
type OrderBatch struct {
	BatchID       string        `json:"batch_id"`
	UserID        string        `json:"user_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Orders        []Order       `json:"orders"`
	Total         float64       `json:"total"`
}

// OrderIDs returns the ids of the batch's orders in item order.
func (b *OrderBatch) OrderIDs() []string {
	ids := make([]string, len(b.Orders))
	for i, o := range b.Orders {
		ids[i] = o.OrderID
	}
	return ids
}

// CustomerInfo is forwarded to gateways that collect payer details.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Initiation is what the caller needs to hand the user over to the gateway.
// Token is the gateway correlation token (Khalti pidx); empty for gateways that
// carry correlation through their own redirect.
type Initiation struct {
	BatchID    string            `json:"batch_id"`
	OrderIDs   []string          `json:"order_ids"`
	Method     PaymentMethod     `json:"method"`
	PaymentURL string            `json:"payment_url,omitempty"`
	Token      string            `json:"pidx,omitempty"`
	FormAction string            `json:"form_action,omitempty"`
	FormFields map[string]string `json:"form_fields,omitempty"`
}
