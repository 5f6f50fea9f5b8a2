package api

import (
	"bakery-service/internal/api/handlers"
	"bakery-service/internal/models"
	"bakery-service/internal/notify"
	"bakery-service/internal/repository"
	"bakery-service/internal/token"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducts struct {
	getByIDFn       func(ctx context.Context, id string) (*models.Product, error)
	getAllFn        func(ctx context.Context) ([]models.Product, error)
	getByCategoryFn func(ctx context.Context, categoryID string) ([]models.Product, error)
	createFn        func(ctx context.Context, p *models.Product) error
	updateFn        func(ctx context.Context, p *models.Product) error
	deleteFn        func(ctx context.Context, id string) error
}

func (f *fakeProducts) Create(ctx context.Context, p *models.Product) error {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}
	return nil
}

func (f *fakeProducts) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProducts) GetAll(ctx context.Context) ([]models.Product, error) {
	if f.getAllFn != nil {
		return f.getAllFn(ctx)
	}
	return nil, nil
}

func (f *fakeProducts) GetByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	if f.getByCategoryFn != nil {
		return f.getByCategoryFn(ctx, categoryID)
	}
	return nil, nil
}

func (f *fakeProducts) Update(ctx context.Context, p *models.Product) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, p)
	}
	return nil
}

func (f *fakeProducts) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeCategories struct {
	getAllFn func(ctx context.Context) ([]models.Category, error)
	createFn func(ctx context.Context, c *models.Category) error
}

func (f *fakeCategories) Create(ctx context.Context, c *models.Category) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeCategories) GetByID(ctx context.Context, id string) (*models.Category, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeCategories) GetAll(ctx context.Context) ([]models.Category, error) {
	if f.getAllFn != nil {
		return f.getAllFn(ctx)
	}
	return nil, nil
}

type fakeOrders struct {
	createFn     func(ctx context.Context, userID string, items []repository.OrderItemRequest, pickupTime *time.Time) (*models.Order, error)
	getByIDFn    func(ctx context.Context, id string) (*models.Order, error)
	listFn       func(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error)
	transitionFn func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	deleteFn     func(ctx context.Context, id string) (*models.Order, bool, error)
	redeemFn     func(ctx context.Context, orderNumber string) (*models.Order, error)
}

func (f *fakeOrders) Create(ctx context.Context, userID string, items []repository.OrderItemRequest, pickupTime *time.Time) (*models.Order, error) {
	if f.createFn != nil {
		return f.createFn(ctx, userID, items, pickupTime)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) List(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeOrders) Transition(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if f.transitionFn != nil {
		return f.transitionFn(ctx, id, status)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) Delete(ctx context.Context, id string) (*models.Order, bool, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil, false, repository.ErrNotFound
}

func (f *fakeOrders) Redeem(ctx context.Context, orderNumber string) (*models.Order, error) {
	if f.redeemFn != nil {
		return f.redeemFn(ctx, orderNumber)
	}
	return nil, repository.ErrNotFound
}

type fakeStock struct {
	adjustFn          func(ctx context.Context, productID string, quantity int, adjustmentType, reason string) (*models.Product, *models.StockAdjustment, error)
	listAdjustmentsFn func(ctx context.Context, productID string) ([]models.StockAdjustment, error)
	snapshotFn        func(ctx context.Context, snapshotType string) ([]models.StockSnapshot, error)
	listSnapshotsFn   func(ctx context.Context, productID, snapshotType string, since time.Time) ([]models.StockSnapshot, error)
}

func (f *fakeStock) Adjust(ctx context.Context, productID string, quantity int, adjustmentType, reason string) (*models.Product, *models.StockAdjustment, error) {
	if f.adjustFn != nil {
		return f.adjustFn(ctx, productID, quantity, adjustmentType, reason)
	}
	return nil, nil, repository.ErrNotFound
}

func (f *fakeStock) ListAdjustments(ctx context.Context, productID string) ([]models.StockAdjustment, error) {
	if f.listAdjustmentsFn != nil {
		return f.listAdjustmentsFn(ctx, productID)
	}
	return nil, nil
}

func (f *fakeStock) Snapshot(ctx context.Context, snapshotType string) ([]models.StockSnapshot, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(ctx, snapshotType)
	}
	return nil, nil
}

func (f *fakeStock) ListSnapshots(ctx context.Context, productID, snapshotType string, since time.Time) ([]models.StockSnapshot, error) {
	if f.listSnapshotsFn != nil {
		return f.listSnapshotsFn(ctx, productID, snapshotType, since)
	}
	return nil, nil
}

type fakeAnalytics struct {
	dashboardFn func(ctx context.Context, lowStockThreshold int) (*models.DashboardStats, error)
	productFn   func(ctx context.Context, productID string, days int) (*models.ProductAnalytics, error)
	overviewFn  func(ctx context.Context, days int) ([]models.ProductOverview, error)
}

func (f *fakeAnalytics) DashboardStats(ctx context.Context, lowStockThreshold int) (*models.DashboardStats, error) {
	if f.dashboardFn != nil {
		return f.dashboardFn(ctx, lowStockThreshold)
	}
	return &models.DashboardStats{}, nil
}

func (f *fakeAnalytics) ProductAnalytics(ctx context.Context, productID string, days int) (*models.ProductAnalytics, error) {
	if f.productFn != nil {
		return f.productFn(ctx, productID, days)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAnalytics) Overview(ctx context.Context, days int) ([]models.ProductOverview, error) {
	if f.overviewFn != nil {
		return f.overviewFn(ctx, days)
	}
	return nil, nil
}

type fakeNotifier struct {
	sent []notify.Confirmation
}

func (f *fakeNotifier) Enqueue(c notify.Confirmation) {
	f.sent = append(f.sent, c)
}

type fakeInvalidator struct {
	calls     []string
	flushAlls int
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, productID, categoryID string) {
	f.calls = append(f.calls, productID)
}

func (f *fakeInvalidator) InvalidateAll(ctx context.Context) {
	f.flushAlls++
}

type testEnv struct {
	products    *fakeProducts
	categories  *fakeCategories
	orders      *fakeOrders
	stock       *fakeStock
	analytics   *fakeAnalytics
	notifier    *fakeNotifier
	invalidator *fakeInvalidator
	router      http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		products:    &fakeProducts{},
		categories:  &fakeCategories{},
		orders:      &fakeOrders{},
		stock:       &fakeStock{},
		analytics:   &fakeAnalytics{},
		notifier:    &fakeNotifier{},
		invalidator: &fakeInvalidator{},
	}
	env.router = NewRouter(Handlers{
		Products:  handlers.NewProductHandler(env.products, env.categories),
		Orders:    handlers.NewOrderHandler(env.orders, env.notifier, env.invalidator),
		Scan:      handlers.NewScanHandler(env.orders),
		Stock:     handlers.NewStockHandler(env.stock, env.invalidator),
		Dashboard: handlers.NewDashboardHandler(env.analytics, 10),
	})
	return env
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, identity map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range identity {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func asCustomer(userID string) map[string]string {
	return map[string]string{
		"X-User-Id":    userID,
		"X-User-Role":  "CUSTOMER",
		"X-User-Email": userID + "@example.com",
	}
}

func asAdmin() map[string]string {
	return map[string]string{
		"X-User-Id":   "admin-1",
		"X-User-Role": "ADMIN",
	}
}

func TestRouter_CatalogIsPublic(t *testing.T) {
	env := newTestEnv()
	env.products.getAllFn = func(ctx context.Context) ([]models.Product, error) {
		return []models.Product{{ProductID: "p-1", Name: "Croissant"}}, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/products", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Croissant")
}

func TestRouter_OrdersRequireAuth(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": "p-1", "quantity": 1}},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRoutesRejectCustomers(t *testing.T) {
	env := newTestEnv()

	paths := []struct{ method, path string }{
		{http.MethodPost, "/scan"},
		{http.MethodPost, "/stock/adjust"},
		{http.MethodGet, "/dashboard/stats"},
		{http.MethodDelete, "/products/p-1"},
	}
	for _, p := range paths {
		rec := doRequest(t, env.router, p.method, p.path, nil, asCustomer("user-1"))
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv()
	env.orders.createFn = func(ctx context.Context, userID string, items []repository.OrderItemRequest, pickupTime *time.Time) (*models.Order, error) {
		require.Equal(t, "user-1", userID)
		require.Len(t, items, 1)
		require.Equal(t, "p-1", items[0].ProductID)
		require.Equal(t, 2, items[0].Quantity)
		return &models.Order{
			OrderID:         "o-1",
			OrderNumber:     "ORD-1714060800000-K3F9A2B7C",
			UserID:          userID,
			Status:          models.StatusPending,
			Subtotal:        4.00,
			Tax:             0.40,
			TotalAmount:     4.40,
			RedemptionToken: token.Encode("ORD-1714060800000-K3F9A2B7C"),
			Items: []models.OrderItem{
				{ProductID: "p-1", ProductName: "Croissant", Quantity: 2, Price: 2.00},
			},
		}, nil
	}

	rec := doRequest(t, env.router, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": "p-1", "quantity": 2}},
	}, asCustomer("user-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "ORD-1714060800000-K3F9A2B7C")

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, "user-1@example.com", env.notifier.sent[0].Recipient)
	assert.Equal(t, "ORD-1714060800000-K3F9A2B7C", env.notifier.sent[0].OrderNumber)
	assert.Equal(t, 4.40, env.notifier.sent[0].Total)
	assert.Equal(t, 1, env.invalidator.flushAlls)
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"no items", map[string]any{"items": []map[string]any{}}},
		{"missing product id", map[string]any{"items": []map[string]any{{"quantity": 1}}}},
		{"zero quantity", map[string]any{"items": []map[string]any{{"product_id": "p-1", "quantity": 0}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, env.router, http.MethodPost, "/orders", tc.body, asCustomer("user-1"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, env.notifier.sent)
		})
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	env.orders.createFn = func(ctx context.Context, userID string, items []repository.OrderItemRequest, pickupTime *time.Time) (*models.Order, error) {
		return nil, fmt.Errorf("%w: Croissant has 1 left, 2 requested", repository.ErrInsufficientStock)
	}

	rec := doRequest(t, env.router, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": "p-1", "quantity": 2}},
	}, asCustomer("user-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_stock")
	assert.Contains(t, rec.Body.String(), "Croissant has 1 left, 2 requested")
	assert.Empty(t, env.notifier.sent)
}

func TestListOrders_CustomersAreScopedToThemselves(t *testing.T) {
	env := newTestEnv()
	var gotFilter repository.OrderFilter
	env.orders.listFn = func(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
		gotFilter = filter
		return nil, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/orders?user_id=somebody-else", nil, asCustomer("user-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotFilter.UserID)
}

func TestListOrders_AdminMayFilterByUser(t *testing.T) {
	env := newTestEnv()
	var gotFilter repository.OrderFilter
	env.orders.listFn = func(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
		gotFilter = filter
		return nil, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/orders?user_id=user-7&status=PENDING", nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", gotFilter.UserID)
	assert.Equal(t, models.StatusPending, gotFilter.Status)
}

func TestGetOrder_OwnershipEnforced(t *testing.T) {
	env := newTestEnv()
	env.orders.getByIDFn = func(ctx context.Context, id string) (*models.Order, error) {
		return &models.Order{OrderID: id, UserID: "user-1"}, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/orders/o-1", nil, asCustomer("user-2"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, env.router, http.MethodGet, "/orders/o-1", nil, asCustomer("user-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, env.router, http.MethodGet, "/orders/o-1", nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderQRCode(t *testing.T) {
	env := newTestEnv()
	env.orders.getByIDFn = func(ctx context.Context, id string) (*models.Order, error) {
		return &models.Order{
			OrderID:         id,
			UserID:          "user-1",
			RedemptionToken: token.Encode("ORD-1714060800000-K3F9A2B7C"),
		}, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/orders/o-1/qrcode", nil, asCustomer("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	env := newTestEnv()
	env.orders.transitionFn = func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
		return nil, fmt.Errorf("%w: COMPLETED -> PENDING", repository.ErrInvalidTransition)
	}

	rec := doRequest(t, env.router, http.MethodPatch, "/orders/o-1/status", map[string]any{
		"status": "PENDING",
	}, asAdmin())

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_transition")
}

func TestDeleteOrder_CancelsOpenOrder(t *testing.T) {
	env := newTestEnv()
	env.orders.deleteFn = func(ctx context.Context, id string) (*models.Order, bool, error) {
		return &models.Order{OrderID: id, OrderNumber: "ORD-X", Status: models.StatusCancelled}, false, nil
	}

	rec := doRequest(t, env.router, http.MethodDelete, "/orders/o-1", nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stock restored")
}

func TestScan_Redeems(t *testing.T) {
	env := newTestEnv()
	var redeemed string
	env.orders.redeemFn = func(ctx context.Context, orderNumber string) (*models.Order, error) {
		redeemed = orderNumber
		return &models.Order{OrderNumber: orderNumber, Status: models.StatusCompleted, RedemptionUsed: true}, nil
	}

	rec := doRequest(t, env.router, http.MethodPost, "/scan", map[string]any{
		"payload": token.Encode("ORD-1714060800000-K3F9A2B7C"),
	}, asAdmin())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD-1714060800000-K3F9A2B7C", redeemed)
}

func TestScan_MalformedPayload(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodPost, "/scan", map[string]any{
		"payload": "not a redemption code",
	}, asAdmin())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_input")
}

func TestScan_AlreadyRedeemed(t *testing.T) {
	env := newTestEnv()
	env.orders.redeemFn = func(ctx context.Context, orderNumber string) (*models.Order, error) {
		return nil, fmt.Errorf("%w: order %s", repository.ErrAlreadyRedeemed, orderNumber)
	}

	rec := doRequest(t, env.router, http.MethodPost, "/scan", map[string]any{
		"payload": token.Encode("ORD-1"),
	}, asAdmin())

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_redeemed")
}

func TestAdjustStock(t *testing.T) {
	env := newTestEnv()
	env.stock.adjustFn = func(ctx context.Context, productID string, quantity int, adjustmentType, reason string) (*models.Product, *models.StockAdjustment, error) {
		return &models.Product{ProductID: productID, CategoryID: "c-1", Stock: 15},
			&models.StockAdjustment{ProductID: productID, Type: adjustmentType, NewStock: 15}, nil
	}

	rec := doRequest(t, env.router, http.MethodPost, "/stock/adjust", map[string]any{
		"product_id": "p-1",
		"quantity":   5,
		"type":       "ADD",
		"reason":     "morning bake",
	}, asAdmin())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"p-1"}, env.invalidator.calls)
}

func TestAdjustStock_RejectsUnknownType(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodPost, "/stock/adjust", map[string]any{
		"product_id": "p-1",
		"quantity":   5,
		"type":       "DESTROY",
		"reason":     "oops",
	}, asAdmin())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.invalidator.calls)
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv()
	env.stock.snapshotFn = func(ctx context.Context, snapshotType string) ([]models.StockSnapshot, error) {
		require.Equal(t, models.SnapshotOpening, snapshotType)
		return []models.StockSnapshot{{ProductID: "p-1", Type: snapshotType, Stock: 20}}, nil
	}

	rec := doRequest(t, env.router, http.MethodPost, "/stock/snapshot", map[string]any{
		"type": "OPENING",
	}, asAdmin())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestAnalytics_SelectsModeByProductID(t *testing.T) {
	env := newTestEnv()
	env.analytics.productFn = func(ctx context.Context, productID string, days int) (*models.ProductAnalytics, error) {
		require.Equal(t, "p-1", productID)
		require.Equal(t, 14, days)
		return &models.ProductAnalytics{ProductID: productID, ProductName: "Croissant"}, nil
	}
	overviewCalled := false
	env.analytics.overviewFn = func(ctx context.Context, days int) ([]models.ProductOverview, error) {
		overviewCalled = true
		require.Equal(t, 30, days)
		return nil, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/stock/analytics?product_id=p-1&days=14", nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Croissant")

	rec = doRequest(t, env.router, http.MethodGet, "/stock/analytics", nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, overviewCalled)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv()
	env.analytics.dashboardFn = func(ctx context.Context, lowStockThreshold int) (*models.DashboardStats, error) {
		require.Equal(t, 10, lowStockThreshold)
		return &models.DashboardStats{TodayOrders: 3, TopProduct: "Croissant"}, nil
	}

	rec := doRequest(t, env.router, http.MethodGet, "/dashboard/stats", nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Croissant")
}
