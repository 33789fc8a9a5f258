package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/coursehub/integration-api/internal/domain"
	"github.com/coursehub/integration-api/internal/infrastructure/gateway"
	"github.com/coursehub/integration-api/internal/pkg/metrics"
	"go.uber.org/zap"
)

// totalTolerance absorbs float noise when item prices are summed.
const totalTolerance = 0.005

type InitiateRequest struct {
	Items        []domain.BatchItem   `json:"items" validate:"required,min=1,dive"`
	TotalAmount  float64              `json:"total_amount" validate:"gt=0"`
	CustomerInfo *domain.CustomerInfo `json:"customer_info"`
}

// Batcher creates order batches and backfills gateway tokens onto them.
type Batcher interface {
	CreateBatch(ctx context.Context, userID string, method domain.PaymentMethod, items []domain.BatchItem) (*domain.OrderBatch, error)
	AttachToken(ctx context.Context, batch *domain.OrderBatch, token string) error
}

type Service interface {
	Initiate(ctx context.Context, userID string, method domain.PaymentMethod, req InitiateRequest) (*domain.Initiation, error)
}

type service struct {
	batches  Batcher
	gateways map[domain.PaymentMethod]gateway.Gateway
}

func NewService(batches Batcher, gateways ...gateway.Gateway) Service {
	s := &service{batches: batches, gateways: make(map[domain.PaymentMethod]gateway.Gateway, len(gateways))}
	for _, g := range gateways {
		s.gateways[g.Method()] = g
	}
	return s
}

// Initiate places the order batch and hands it to the gateway for method.
// Orders stay pending when the gateway call fails.
func (s *service) Initiate(ctx context.Context, userID string, method domain.PaymentMethod, req InitiateRequest) (*domain.Initiation, error) {
	gw, ok := s.gateways[method]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method %q: %w", method, domain.ErrBadRequest)
	}
	items, err := normalize(req)
	if err != nil {
		return nil, err
	}

	batch, err := s.batches.CreateBatch(ctx, userID, method, items)
	if err != nil {
		metrics.PaymentInitiations.WithLabelValues(string(method), "batch_failed").Inc()
		return nil, fmt.Errorf("create order batch: %w", err)
	}
	// The declared total is what gets signed and charged.
	batch.Total = req.TotalAmount

	co := gateway.Checkout{PurchaseOrderName: purchaseName(len(items))}
	if req.CustomerInfo != nil {
		co.Customer = *req.CustomerInfo
	}
	in, err := gw.Initiate(ctx, co, batch)
	if err != nil {
		metrics.PaymentInitiations.WithLabelValues(string(method), "gateway_failed").Inc()
		zap.L().Error("payment initiation failed",
			zap.String("batch_id", batch.BatchID),
			zap.String("method", string(method)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("initiate %s payment: %w", method, err)
	}

	if err := s.batches.AttachToken(ctx, batch, in.Token); err != nil {
		metrics.PaymentInitiations.WithLabelValues(string(method), "backfill_failed").Inc()
		return nil, fmt.Errorf("store %s token: %w", method, err)
	}

	metrics.PaymentInitiations.WithLabelValues(string(method), "initiated").Inc()
	zap.L().Info("payment initiated",
		zap.String("batch_id", batch.BatchID),
		zap.String("user_id", userID),
		zap.String("method", string(method)),
		zap.Float64("total", req.TotalAmount),
	)
	return in, nil
}

// normalize trims course ids and checks that prices add up to the declared total.
func normalize(req InitiateRequest) ([]domain.BatchItem, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("at least one item required: %w", domain.ErrBadRequest)
	}
	if req.TotalAmount <= 0 {
		return nil, fmt.Errorf("total_amount must be positive: %w", domain.ErrBadRequest)
	}
	items := make([]domain.BatchItem, 0, len(req.Items))
	seen := make(map[string]bool, len(req.Items))
	var sum float64
	for _, it := range req.Items {
		cid := strings.TrimSpace(it.CourseID)
		if cid == "" {
			return nil, fmt.Errorf("course_id required: %w", domain.ErrBadRequest)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("price for %s must not be negative: %w", cid, domain.ErrBadRequest)
		}
		if seen[cid] {
			return nil, fmt.Errorf("course %s listed twice: %w", cid, domain.ErrBadRequest)
		}
		seen[cid] = true
		sum += it.Price
		items = append(items, domain.BatchItem{CourseID: cid, Price: it.Price})
	}
	if math.Abs(sum-req.TotalAmount) > totalTolerance {
		return nil, fmt.Errorf("item prices sum to %.2f, total_amount is %.2f: %w", sum, req.TotalAmount, domain.ErrBadRequest)
	}
	return items, nil
}

func purchaseName(n int) string {
	if n == 1 {
		return "1 course"
	}
	return fmt.Sprintf("%d courses", n)
}
