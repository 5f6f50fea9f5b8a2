package repository

import (
	"bakery-service/internal/models"
	"context"
	"time"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetAll(ctx context.Context) ([]models.Category, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByCategory(ctx context.Context, categoryID string) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

type StockRepository interface {
	// Adjust writes the new stock value and its audit row as one transaction.
	Adjust(ctx context.Context, productID string, quantity int, adjustmentType, reason string) (*models.Product, *models.StockAdjustment, error)
	ListAdjustments(ctx context.Context, productID string) ([]models.StockAdjustment, error)

	// Snapshot upserts one row per product for (product, today, type) in a
	// single transaction.
	Snapshot(ctx context.Context, snapshotType string) ([]models.StockSnapshot, error)
	ListSnapshots(ctx context.Context, productID, snapshotType string, since time.Time) ([]models.StockSnapshot, error)
}

type OrderFilter struct {
	UserID string
	Status models.OrderStatus
}

type OrderRepository interface {
	Create(ctx context.Context, userID string, items []OrderItemRequest, pickupTime *time.Time) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	Transition(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)

	// Delete purges a closed order. An open order is cancelled instead, with
	// its stock restored; the returned flag reports whether the row was
	// actually removed.
	Delete(ctx context.Context, id string) (*models.Order, bool, error)

	// Redeem consumes a pickup token exactly once and completes the order.
	Redeem(ctx context.Context, orderNumber string) (*models.Order, error)
}

type AnalyticsRepository interface {
	DashboardStats(ctx context.Context, lowStockThreshold int) (*models.DashboardStats, error)
	ProductAnalytics(ctx context.Context, productID string, days int) (*models.ProductAnalytics, error)
	Overview(ctx context.Context, days int) ([]models.ProductOverview, error)
}

type OrderItemRequest struct {
	ProductID string
	Quantity  int
}
