package repository

import (
	"bakery-service/internal/models"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type analyticsRepo struct {
	db *pgxpool.Pool
}

func NewAnalyticsRepository(db *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepo{db: db}
}

// PercentChange reports day-over-day change. A zero baseline counts as +100%
// when today is nonzero and 0% when both days are zero.
func PercentChange(today, yesterday float64) float64 {
	if yesterday == 0 {
		if today == 0 {
			return 0
		}
		return 100
	}
	return math.Round((today-yesterday)/yesterday*10000) / 100
}

func (r *analyticsRepo) DashboardStats(ctx context.Context, lowStockThreshold int) (*models.DashboardStats, error) {
	now := time.Now()
	today := Midnight(now)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -7)

	var stats models.DashboardStats

	countOrders := `SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`
	if err := r.db.QueryRow(ctx, countOrders, today, tomorrow).Scan(&stats.TodayOrders); err != nil {
		return nil, fmt.Errorf("failed to count today's orders: %w", err)
	}
	if err := r.db.QueryRow(ctx, countOrders, yesterday, today).Scan(&stats.YesterdayOrders); err != nil {
		return nil, fmt.Errorf("failed to count yesterday's orders: %w", err)
	}

	// Cancelled orders never count towards revenue.
	sumRevenue := `
	SELECT COALESCE(SUM(total_amount), 0)
	FROM orders
	WHERE created_at >= $1 AND created_at < $2 AND status <> $3`
	if err := r.db.QueryRow(ctx, sumRevenue, today, tomorrow, models.StatusCancelled).Scan(&stats.TodayRevenue); err != nil {
		return nil, fmt.Errorf("failed to sum today's revenue: %w", err)
	}
	if err := r.db.QueryRow(ctx, sumRevenue, yesterday, today, models.StatusCancelled).Scan(&stats.YesterdayRevenue); err != nil {
		return nil, fmt.Errorf("failed to sum yesterday's revenue: %w", err)
	}

	stats.OrdersChange = PercentChange(float64(stats.TodayOrders), float64(stats.YesterdayOrders))
	stats.RevenueChange = PercentChange(stats.TodayRevenue, stats.YesterdayRevenue)

	topProduct := `
	SELECT p.name
	FROM order_items oi
	JOIN products p ON p.product_id = oi.product_id
	GROUP BY p.product_id, p.name
	ORDER BY SUM(oi.quantity) DESC
	LIMIT 1`
	if err := r.db.QueryRow(ctx, topProduct).Scan(&stats.TopProduct); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to find top product: %w", err)
		}
		stats.TopProduct = "N/A"
	}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE stock < $1`, lowStockThreshold,
	).Scan(&stats.LowStockProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to count low stock products: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE created_at >= $1`, weekStart,
	).Scan(&stats.WeekOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to count week orders: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE is_available`,
	).Scan(&stats.ActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to count active products: %w", err)
	}

	return &stats, nil
}

func (r *analyticsRepo) ProductAnalytics(ctx context.Context, productID string, days int) (*models.ProductAnalytics, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product ID cannot be empty", ErrInvalidInput)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM products WHERE product_id = $1`, productID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}

	since := Midnight(time.Now()).AddDate(0, 0, -days)

	rows, err := r.db.Query(ctx, `
		SELECT date, type, stock
		FROM stock_snapshots
		WHERE product_id = $1 AND date >= $2
		ORDER BY date ASC, type ASC`,
		productID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots for %s: %w", productID, err)
	}
	defer rows.Close()

	var snapshots []models.StockSnapshot
	for rows.Next() {
		var s models.StockSnapshot
		if err := rows.Scan(&s.Date, &s.Type, &s.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan snapshots: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	chart := make([]models.SnapshotPoint, 0, len(snapshots))
	for _, s := range snapshots {
		chart = append(chart, models.SnapshotPoint{
			Date:  s.Date.Format("2006-01-02"),
			Type:  s.Type,
			Stock: s.Stock,
		})
	}

	return &models.ProductAnalytics{
		ProductID:   productID,
		ProductName: name,
		ChartData:   chart,
		Stats:       ComputeProductStockStats(snapshots),
	}, nil
}

// ComputeProductStockStats derives summary figures from a product's
// snapshot series. Daily consumption pairs a day's OPENING snapshot with
// that same day's CLOSING snapshot; days missing either half contribute
// nothing.
func ComputeProductStockStats(snapshots []models.StockSnapshot) models.ProductStockStats {
	var stats models.ProductStockStats
	if len(snapshots) == 0 {
		return stats
	}

	var openingSum, openingCount, closingSum, closingCount int
	openingByDay := make(map[string]int)
	closingByDay := make(map[string]int)

	stats.MinStock = snapshots[0].Stock
	for _, s := range snapshots {
		day := s.Date.Format("2006-01-02")
		switch s.Type {
		case models.SnapshotOpening:
			openingSum += s.Stock
			openingCount++
			openingByDay[day] = s.Stock
		case models.SnapshotClosing:
			closingSum += s.Stock
			closingCount++
			closingByDay[day] = s.Stock
		}
		if s.Stock > stats.MaxStock {
			stats.MaxStock = s.Stock
		}
		if s.Stock < stats.MinStock {
			stats.MinStock = s.Stock
		}
	}

	if openingCount > 0 {
		stats.AvgOpening = roundDiv(openingSum, openingCount)
	}
	if closingCount > 0 {
		stats.AvgClosing = roundDiv(closingSum, closingCount)
	}

	var consumptionSum, consumptionCount int
	for day, opening := range openingByDay {
		closing, ok := closingByDay[day]
		if !ok {
			continue
		}
		consumptionSum += opening - closing
		consumptionCount++
	}
	if consumptionCount > 0 {
		stats.AvgDailyConsumption = roundDiv(consumptionSum, consumptionCount)
	}

	return stats
}

func (r *analyticsRepo) Overview(ctx context.Context, days int) ([]models.ProductOverview, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	since := Midnight(time.Now()).AddDate(0, 0, -days)

	// Only end-of-day stock levels feed the overview trend.
	rows, err := r.db.Query(ctx, `
		SELECT s.product_id, p.name, s.date, s.stock
		FROM stock_snapshots s
		JOIN products p ON p.product_id = s.product_id
		WHERE s.date >= $1 AND s.type = $2
		ORDER BY s.product_id, s.date ASC`,
		since, models.SnapshotClosing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load overview snapshots: %w", err)
	}
	defer rows.Close()

	var overviews []models.ProductOverview
	var current *models.ProductOverview
	for rows.Next() {
		var (
			productID, name string
			date            time.Time
			stock           int
		)
		if err := rows.Scan(&productID, &name, &date, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan overview snapshots: %w", err)
		}
		if current == nil || current.ProductID != productID {
			overviews = append(overviews, models.ProductOverview{
				ProductID:   productID,
				ProductName: name,
			})
			current = &overviews[len(overviews)-1]
		}
		current.Data = append(current.Data, models.SnapshotPoint{
			Date:  date.Format("2006-01-02"),
			Stock: stock,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	for i := range overviews {
		overviews[i].Stats = ComputeOverviewStats(overviews[i].Data)
	}

	return overviews, nil
}

func ComputeOverviewStats(points []models.SnapshotPoint) models.OverviewStats {
	var stats models.OverviewStats
	if len(points) == 0 {
		return stats
	}

	sum := 0
	stats.MinStock = points[0].Stock
	for _, p := range points {
		sum += p.Stock
		if p.Stock > stats.MaxStock {
			stats.MaxStock = p.Stock
		}
		if p.Stock < stats.MinStock {
			stats.MinStock = p.Stock
		}
	}
	stats.AvgStock = roundDiv(sum, len(points))
	if len(points) >= 2 {
		stats.Trend = points[len(points)-1].Stock - points[0].Stock
	}
	return stats
}

func roundDiv(sum, count int) int {
	return int(math.Round(float64(sum) / float64(count)))
}
