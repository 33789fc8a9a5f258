// Package postgres stores orders in PostgreSQL through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation = "23505"

	maxOpenConnections    = 10
	maxIdleConnections    = 5
	maxConnectionLifetime = 30 * time.Minute
)

// updatable is the set of columns Update may touch.
var updatable = map[string]bool{
	"status":        true,
	"gateway_token": true,
}

// Open connects with the "pgx" driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(maxConnectionLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the orders table and indexes if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Put(ctx context.Context, o *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO orders
		(order_id, user_id, course_id, amount, payment_method, status, batch_transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.OrderID, o.UserID, o.CourseID, o.Amount, string(o.PaymentMethod), string(o.Status),
		o.BatchTransactionID, o.CreatedAt, o.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("order %s already exists: %w", o.OrderID, domain.ErrBadRequest)
	}
	return err
}

// Update sets the given columns and updated_at on one order.
func (r *OrderRepo) Update(ctx context.Context, orderID string, updates map[string]interface{}) error {
	query, args, err := buildUpdate(orderID, updates)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

func buildUpdate(orderID string, updates map[string]interface{}) (string, []interface{}, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}
	cols := make([]string, 0, len(updates))
	for c := range updates {
		if !updatable[c] {
			return "", nil, fmt.Errorf("column %q is not updatable: %w", c, domain.ErrBadRequest)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, fmt.Sprint(updates[c]))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, orderID)
	query := fmt.Sprintf("UPDATE orders SET %s WHERE order_id = $%d", strings.Join(sets, ", "), len(args))
	return query, args, nil
}
