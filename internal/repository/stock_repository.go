package repository

import (
	"bakery-service/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type stockRepo struct {
	db *pgxpool.Pool
}

func NewStockRepository(db *pgxpool.Pool) StockRepository {
	return &stockRepo{db: db}
}

// Adjust is the audited entry point for manual stock changes. The product
// write and its StockAdjustment row commit together or not at all.
func (r *stockRepo) Adjust(ctx context.Context, productID string, quantity int, adjustmentType, reason string) (*models.Product, *models.StockAdjustment, error) {
	if productID == "" {
		return nil, nil, fmt.Errorf("%w: product ID cannot be empty", ErrInvalidInput)
	}
	if quantity < 0 {
		return nil, nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if !models.ValidAdjustmentType(adjustmentType) {
		return nil, nil, fmt.Errorf("%w: unknown adjustment type %q", ErrInvalidInput, adjustmentType)
	}
	if reason == "" {
		reason = "manual adjustment"
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `SELECT ` + productColumns + ` FROM products WHERE product_id = $1 FOR UPDATE`

	var product models.Product
	if err := scanProduct(tx.QueryRow(ctx, sql, productID), &product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}

	previousStock := product.Stock
	newStock, err := models.NextStock(previousStock, quantity, adjustmentType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE products SET stock = $1, updated_at = $2 WHERE product_id = $3`,
		newStock, now, productID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update stock for %s: %w", productID, err)
	}
	product.Stock = newStock
	product.UpdatedAt = now

	adjustment := models.StockAdjustment{
		AdjustmentID:  uuid.NewString(),
		ProductID:     productID,
		ProductName:   product.Name,
		Quantity:      quantity,
		Type:          adjustmentType,
		Reason:        reason,
		PreviousStock: previousStock,
		NewStock:      newStock,
		CreatedAt:     now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_adjustments (
			adjustment_id,
			product_id,
			quantity,
			type,
			reason,
			previous_stock,
			new_stock,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		adjustment.AdjustmentID,
		adjustment.ProductID,
		adjustment.Quantity,
		adjustment.Type,
		adjustment.Reason,
		adjustment.PreviousStock,
		adjustment.NewStock,
		adjustment.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record stock adjustment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &product, &adjustment, nil
}

func (r *stockRepo) ListAdjustments(ctx context.Context, productID string) ([]models.StockAdjustment, error) {
	sql := `
	SELECT
		a.adjustment_id,
		a.product_id,
		p.name,
		a.quantity,
		a.type,
		a.reason,
		a.previous_stock,
		a.new_stock,
		a.created_at
	FROM stock_adjustments a
	JOIN products p ON p.product_id = a.product_id
	`
	args := []any{}
	if productID != "" {
		sql += ` WHERE a.product_id = $1`
		args = append(args, productID)
	}
	sql += ` ORDER BY a.created_at DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []models.StockAdjustment
	for rows.Next() {
		var a models.StockAdjustment
		err := rows.Scan(
			&a.AdjustmentID,
			&a.ProductID,
			&a.ProductName,
			&a.Quantity,
			&a.Type,
			&a.Reason,
			&a.PreviousStock,
			&a.NewStock,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock adjustments: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return adjustments, nil
}

// Snapshot copies every product's current stock under (product, today, type).
// A repeated call for the same day and type overwrites the earlier rows. The
// whole set commits as one transaction so analytics never sees a partial day.
func (r *stockRepo) Snapshot(ctx context.Context, snapshotType string) ([]models.StockSnapshot, error) {
	if !models.ValidSnapshotType(snapshotType) {
		return nil, fmt.Errorf("%w: snapshot type must be OPENING or CLOSING", ErrInvalidInput)
	}

	today := Midnight(time.Now())

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT product_id, name, stock FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read product stock: %w", err)
	}

	type productStock struct {
		id    string
		name  string
		stock int
	}
	var current []productStock
	for rows.Next() {
		var ps productStock
		if err := rows.Scan(&ps.id, &ps.name, &ps.stock); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan product stock: %w", err)
		}
		current = append(current, ps)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	upsert := `
	INSERT INTO stock_snapshots (snapshot_id, product_id, date, type, stock)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (product_id, date, type) DO UPDATE SET stock = EXCLUDED.stock
	RETURNING snapshot_id
	`

	snapshots := make([]models.StockSnapshot, 0, len(current))
	for _, ps := range current {
		s := models.StockSnapshot{
			ProductID:   ps.id,
			ProductName: ps.name,
			Date:        today,
			Type:        snapshotType,
			Stock:       ps.stock,
		}
		err := tx.QueryRow(ctx, upsert, uuid.NewString(), ps.id, today, snapshotType, ps.stock).Scan(&s.SnapshotID)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert snapshot for %s: %w", ps.id, err)
		}
		snapshots = append(snapshots, s)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return snapshots, nil
}

func (r *stockRepo) ListSnapshots(ctx context.Context, productID, snapshotType string, since time.Time) ([]models.StockSnapshot, error) {
	if snapshotType != "" && !models.ValidSnapshotType(snapshotType) {
		return nil, fmt.Errorf("%w: snapshot type must be OPENING or CLOSING", ErrInvalidInput)
	}

	sql := `
	SELECT
		s.snapshot_id,
		s.product_id,
		p.name,
		s.date,
		s.type,
		s.stock
	FROM stock_snapshots s
	JOIN products p ON p.product_id = s.product_id
	WHERE s.date >= $1
	`
	args := []any{since}
	if productID != "" {
		args = append(args, productID)
		sql += fmt.Sprintf(" AND s.product_id = $%d", len(args))
	}
	if snapshotType != "" {
		args = append(args, snapshotType)
		sql += fmt.Sprintf(" AND s.type = $%d", len(args))
	}
	sql += ` ORDER BY s.date DESC, s.type DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.StockSnapshot
	for rows.Next() {
		var s models.StockSnapshot
		if err := rows.Scan(&s.SnapshotID, &s.ProductID, &s.ProductName, &s.Date, &s.Type, &s.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan snapshots: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return snapshots, nil
}

// Midnight normalizes a timestamp to the start of its calendar day in local
// time, the key snapshots and day-scoped stats are bucketed by.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
