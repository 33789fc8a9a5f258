// Package order creates the correlated order records of one checkout attempt.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	"github.com/coursehub/integration-api/internal/pkg/id"
	"github.com/coursehub/integration-api/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the order persistence the manager writes through.
type Store interface {
	Put(ctx context.Context, o *domain.Order) error
	Update(ctx context.Context, orderID string, updates map[string]interface{}) error
}

type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// CreateBatch inserts one pending order per item, concurrently, all sharing a
// fresh batch id. If any insert fails the batch is reported as a *domain.BatchError
// and the orders that did land are marked failed on a best-effort basis.
func (m *Manager) CreateBatch(ctx context.Context, userID string, method domain.PaymentMethod, items []domain.BatchItem) (*domain.OrderBatch, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item required: %w", domain.ErrBadRequest)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q: %w", method, domain.ErrBadRequest)
	}

	now := m.now().UTC()
	batch := &domain.OrderBatch{
		BatchID:       id.NewAt(now),
		UserID:        userID,
		PaymentMethod: method,
		Orders:        make([]domain.Order, len(items)),
	}
	for i, it := range items {
		batch.Orders[i] = domain.Order{
			OrderID:            id.NewAt(now),
			UserID:             userID,
			CourseID:           it.CourseID,
			Amount:             it.Price,
			PaymentMethod:      method,
			Status:             domain.OrderPending,
			BatchTransactionID: batch.BatchID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		batch.Total += it.Price
	}

	// Inserts are not cancelled on a sibling failure so the set of written
	// orders is known once Wait returns.
	inserted := make([]bool, len(items))
	var (
		mu     sync.Mutex
		failed int
	)
	var g errgroup.Group
	for i := range batch.Orders {
		i := i
		g.Go(func() error {
			o := &batch.Orders[i]
			if err := m.store.Put(ctx, o); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return fmt.Errorf("insert order %s: %w", o.OrderID, err)
			}
			inserted[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.OrderBatches.WithLabelValues(string(method), "failed").Inc()
		var orphaned []string
		for i, ok := range inserted {
			if ok {
				orphaned = append(orphaned, batch.Orders[i].OrderID)
			}
		}
		zap.L().Error("order batch failed",
			zap.String("batch_id", batch.BatchID),
			zap.Int("failed", failed),
			zap.Int("total", len(items)),
			zap.Strings("orphaned", orphaned),
			zap.Error(err),
		)
		m.compensate(context.WithoutCancel(ctx), batch.BatchID, orphaned)
		return nil, &domain.BatchError{BatchID: batch.BatchID, Failed: failed, Total: len(items), Orphaned: orphaned, Err: err}
	}

	metrics.OrderBatches.WithLabelValues(string(method), "created").Inc()
	zap.L().Info("order batch created",
		zap.String("batch_id", batch.BatchID),
		zap.String("user_id", userID),
		zap.String("method", string(method)),
		zap.Int("orders", len(items)),
	)
	return batch, nil
}

// AttachToken writes the gateway correlation token onto every order of the batch.
func (m *Manager) AttachToken(ctx context.Context, batch *domain.OrderBatch, token string) error {
	if token == "" {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range batch.Orders {
		i := i
		g.Go(func() error {
			o := &batch.Orders[i]
			if err := m.store.Update(gctx, o.OrderID, map[string]interface{}{"gateway_token": token}); err != nil {
				return fmt.Errorf("attach token to order %s: %w", o.OrderID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i := range batch.Orders {
		batch.Orders[i].GatewayToken = token
	}
	return nil
}

// compensate marks orphaned orders failed. Errors are logged only.
func (m *Manager) compensate(ctx context.Context, batchID string, orderIDs []string) {
	var wg sync.WaitGroup
	for _, oid := range orderIDs {
		oid := oid
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.store.Update(ctx, oid, map[string]interface{}{"status": string(domain.OrderFailed)})
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				zap.L().Warn("order compensation failed",
					zap.String("batch_id", batchID),
					zap.String("order_id", oid),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()
}
