package repository

import (
	"bakery-service/internal/models"
	"bakery-service/internal/token"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// orderNumberAttempts bounds the regenerate-and-retry loop on an
// order_number uniqueness collision.
const orderNumberAttempts = 3

type orderRepo struct {
	db      *pgxpool.Pool
	taxRate float64
}

func NewOrderRepository(db *pgxpool.Pool, taxRate float64) OrderRepository {
	return &orderRepo{db: db, taxRate: taxRate}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const orderColumns = `
		order_id,
		order_number,
		user_id,
		status,
		subtotal,
		tax,
		total_amount,
		redemption_token,
		redemption_used,
		redeemed_at,
		pickup_time,
		created_at,
		updated_at`

func scanOrder(row pgx.Row, o *models.Order) error {
	return row.Scan(
		&o.OrderID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.Subtotal,
		&o.Tax,
		&o.TotalAmount,
		&o.RedemptionToken,
		&o.RedemptionUsed,
		&o.RedeemedAt,
		&o.PickupTime,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

// validateOrderItems runs the side-effect-free validation pass over a
// requested cart. Every requested line is checked in submission order and
// the first failure names the offending product. On success it returns the
// order items with prices frozen from the catalog.
func validateOrderItems(requests []OrderItemRequest, products map[string]models.Product) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for product %s", ErrInvalidInput, req.ProductID)
		}
		product, ok := products[req.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, req.ProductID)
		}
		if !product.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, product.Name)
		}
		if product.Stock < req.Quantity {
			return nil, fmt.Errorf("%w: %s has %d left, %d requested",
				ErrInsufficientStock, product.Name, product.Stock, req.Quantity)
		}
		items = append(items, models.OrderItem{
			ProductID:    product.ProductID,
			ProductName:  product.Name,
			ProductImage: product.Image,
			Quantity:     req.Quantity,
			Price:        product.Price,
		})
	}
	return items, nil
}

// Create validates the cart against live catalog and stock, then persists
// the order, its items and the per-product stock decrements as a single
// transaction. The validation pass plus the guarded decrement in one
// transaction is what prevents two concurrent orders overselling the last
// unit: the loser's decrement matches zero rows and the whole order rolls
// back with ErrInsufficientStock.
func (r *orderRepo) Create(ctx context.Context, userID string, requests []OrderItemRequest, pickupTime *time.Time) (*models.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order, err := r.createOnce(ctx, userID, requests, pickupTime)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, errOrderNumberTaken) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to allocate a unique order number: %w", lastErr)
}

var errOrderNumberTaken = errors.New("order number already taken")

func (r *orderRepo) createOnce(ctx context.Context, userID string, requests []OrderItemRequest, pickupTime *time.Time) (*models.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	productIDs := make([]string, 0, len(requests))
	for _, req := range requests {
		productIDs = append(productIDs, req.ProductID)
	}

	sql := `SELECT ` + productColumns + ` FROM products WHERE product_id = ANY($1)`

	rows, err := tx.Query(ctx, sql, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load order products: %w", err)
	}
	catalog := make(map[string]models.Product, len(requests))
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order products: %w", err)
		}
		catalog[p.ProductID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	items, err := validateOrderItems(requests, catalog)
	if err != nil {
		return nil, err
	}

	subtotal, tax, total := models.ComputeTotals(items, r.taxRate)

	now := time.Now()
	order := models.Order{
		OrderID:     uuid.NewString(),
		OrderNumber: token.GenerateOrderNumber(),
		UserID:      userID,
		Status:      models.StatusPending,
		Subtotal:    subtotal,
		Tax:         tax,
		TotalAmount: total,
		PickupTime:  pickupTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order.RedemptionToken = token.Encode(order.OrderNumber)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			order_id,
			order_number,
			user_id,
			status,
			subtotal,
			tax,
			total_amount,
			redemption_token,
			redemption_used,
			pickup_time,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10, $11)`,
		order.OrderID,
		order.OrderNumber,
		order.UserID,
		order.Status,
		order.Subtotal,
		order.Tax,
		order.TotalAmount,
		order.RedemptionToken,
		order.PickupTime,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Two orders minted in the same millisecond can collide; the
			// caller regenerates the number and retries the transaction.
			return nil, errOrderNumberTaken
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	decrement := `
	UPDATE products
	SET stock = stock - $1, updated_at = $2
	WHERE product_id = $3 AND stock >= $1
	`

	for i := range items {
		items[i].OrderItemID = uuid.NewString()
		items[i].OrderID = order.OrderID

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_item_id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			items[i].OrderItemID,
			items[i].OrderID,
			items[i].ProductID,
			items[i].Quantity,
			items[i].Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}

		result, err := tx.Exec(ctx, decrement, items[i].Quantity, now, items[i].ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock for %s: %w", items[i].ProductID, err)
		}
		if result.RowsAffected() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, items[i].ProductName)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Items = items
	return &order, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order ID cannot be empty", ErrInvalidInput)
	}

	sql := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	var order models.Order
	if err := scanOrder(r.db.QueryRow(ctx, sql, id), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}

	items, err := loadOrderItems(ctx, r.db, order.OrderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *orderRepo) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, filter.Status)
	}

	sql := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	var conds []string
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			sql += " WHERE " + cond
		} else {
			sql += " AND " + cond
		}
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan orders: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return orders, nil
}

// Transition moves an order along the PENDING→PREPARING→READY→COMPLETED
// workflow. Cancelling an open order restores the stock its items reserved,
// inside the same transaction as the status write.
func (r *orderRepo) Transition(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order ID cannot be empty", ErrInvalidInput)
	}
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, status)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, `order_id`, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	if status == models.StatusCancelled {
		if err := restoreStock(ctx, tx, order.OrderID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3`,
		status, now, order.OrderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = status
	order.UpdatedAt = now

	items, err := loadOrderItems(ctx, tx, order.OrderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

// Delete purges a closed order. An open order is reinterpreted as a
// cancellation, stock restoration included, and the row is kept.
func (r *orderRepo) Delete(ctx context.Context, id string) (*models.Order, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("%w: order ID cannot be empty", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, `order_id`, id)
	if err != nil {
		return nil, false, err
	}

	if models.IsTerminal(order.Status) {
		// order_items rows go with the order (ON DELETE CASCADE).
		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, order.OrderID); err != nil {
			return nil, false, fmt.Errorf("failed to delete order %s: %w", order.OrderID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return order, true, nil
	}

	if err := restoreStock(ctx, tx, order.OrderID); err != nil {
		return nil, false, err
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3`,
		models.StatusCancelled, now, order.OrderID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to cancel order: %w", err)
	}
	order.Status = models.StatusCancelled
	order.UpdatedAt = now

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, false, nil
}

// Redeem consumes a pickup token. Stock was already committed when the
// order was created, so redemption only verifies single use and completes
// the order.
func (r *orderRepo) Redeem(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order number cannot be empty", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, `order_number`, orderNumber)
	if err != nil {
		return nil, err
	}

	if order.RedemptionUsed {
		return nil, fmt.Errorf("%w: order %s", ErrAlreadyRedeemed, order.OrderNumber)
	}
	if order.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: order %s was cancelled", ErrInvalidTransition, order.OrderNumber)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, redemption_used = true, redeemed_at = $2, updated_at = $2
		WHERE order_id = $3`,
		models.StatusCompleted, now, order.OrderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem order %s: %w", order.OrderNumber, err)
	}
	order.Status = models.StatusCompleted
	order.RedemptionUsed = true
	order.RedeemedAt = &now
	order.UpdatedAt = now

	items, err := loadOrderItems(ctx, tx, order.OrderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, column, value string) (*models.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1 FOR UPDATE`

	var order models.Order
	if err := scanOrder(tx.QueryRow(ctx, sql, value), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock order %s: %w", value, err)
	}
	return &order, nil
}

// restoreStock reverses the creation-time decrement for every item of an
// order, as part of the caller's transaction.
func restoreStock(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock = p.stock + oi.quantity, updated_at = NOW()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.product_id`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to restore stock for order %s: %w", orderID, err)
	}
	return nil
}

func loadOrderItems(ctx context.Context, q querier, orderID string) ([]models.OrderItem, error) {
	sql := `
	SELECT
		oi.order_item_id,
		oi.order_id,
		oi.product_id,
		p.name,
		p.image,
		oi.quantity,
		oi.price
	FROM order_items oi
	JOIN products p ON p.product_id = oi.product_id
	WHERE oi.order_id = $1
	ORDER BY oi.order_item_id
	`

	rows, err := q.Query(ctx, sql, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.OrderItemID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductImage,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return items, nil
}
