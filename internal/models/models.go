package models

import "time"

type Category struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Product struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Stock       int       `json:"stock"`
	IsAvailable bool      `json:"is_available"`
	CategoryID  string    `json:"category_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockAdjustment is an append-only audit record. It is only ever written
// together with the product stock change it describes, in one transaction.
type StockAdjustment struct {
	AdjustmentID  string    `json:"adjustment_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name,omitempty"`
	Quantity      int       `json:"quantity"`
	Type          string    `json:"type"`
	Reason        string    `json:"reason"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	CreatedAt     time.Time `json:"created_at"`
}

// StockSnapshot is a point-in-time copy of a product's stock, unique per
// (product, day, type). A repeated snapshot for the same key overwrites it.
type StockSnapshot struct {
	SnapshotID  string    `json:"snapshot_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Stock       int       `json:"stock"`
}

type Order struct {
	OrderID         string      `json:"order_id"`
	OrderNumber     string      `json:"order_number"`
	UserID          string      `json:"user_id"`
	Status          OrderStatus `json:"status"`
	Subtotal        float64     `json:"subtotal"`
	Tax             float64     `json:"tax"`
	TotalAmount     float64     `json:"total_amount"`
	RedemptionToken string      `json:"redemption_token"`
	RedemptionUsed  bool        `json:"redemption_used"`
	RedeemedAt      *time.Time  `json:"redeemed_at"`
	PickupTime      *time.Time  `json:"pickup_time"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []OrderItem `json:"items,omitempty"`
}

// OrderItem freezes the catalog price at order time; later product price
// changes do not touch it.
type OrderItem struct {
	OrderItemID  string  `json:"order_item_id"`
	OrderID      string  `json:"order_id"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name,omitempty"`
	ProductImage string  `json:"product_image,omitempty"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
}

type DashboardStats struct {
	TodayOrders      int     `json:"today_orders"`
	YesterdayOrders  int     `json:"yesterday_orders"`
	TodayRevenue     float64 `json:"today_revenue"`
	YesterdayRevenue float64 `json:"yesterday_revenue"`
	OrdersChange     float64 `json:"orders_change"`
	RevenueChange    float64 `json:"revenue_change"`
	TopProduct       string  `json:"top_product"`
	LowStockProducts int     `json:"low_stock_products"`
	WeekOrders       int     `json:"week_orders"`
	ActiveProducts   int     `json:"active_products"`
}

type SnapshotPoint struct {
	Date  string `json:"date"`
	Type  string `json:"type,omitempty"`
	Stock int    `json:"stock"`
}

type ProductStockStats struct {
	AvgOpening          int `json:"avg_opening"`
	AvgClosing          int `json:"avg_closing"`
	MaxStock            int `json:"max_stock"`
	MinStock            int `json:"min_stock"`
	AvgDailyConsumption int `json:"avg_daily_consumption"`
}

type ProductAnalytics struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	ChartData   []SnapshotPoint   `json:"chart_data"`
	Stats       ProductStockStats `json:"stats"`
}

type OverviewStats struct {
	AvgStock int `json:"avg_stock"`
	MaxStock int `json:"max_stock"`
	MinStock int `json:"min_stock"`
	Trend    int `json:"trend"`
}

type ProductOverview struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Data        []SnapshotPoint `json:"data"`
	Stats       OverviewStats   `json:"stats"`
}

type AnalyticsPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}
