package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
	"github.com/ordena-app/ordena-backend/pkg/outbox"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

func setupConsolidationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  base_price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  provider_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS consolidated_orders (
  id TEXT PRIMARY KEY,
  provider_id TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS consolidated_items (
  id TEXT PRIMARY KEY,
  consolidated_order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  total_qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  line_total NUMERIC NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type harness struct {
	db   *gorm.DB
	repo Repository
	svc  Service

	employee Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := setupConsolidationTestDB(t)
	repo := NewRepository(db)
	publisher := outbox.NewService(outbox.NewRepository(db), nil)

	svc, err := NewService(repo, gormTxRunner{db: db}, publisher, nil)
	require.NoError(t, err)

	return &harness{
		db:       db,
		repo:     repo,
		svc:      svc,
		employee: Actor{UserID: uuid.New(), Role: enums.UserRoleEmployee},
	}
}

func (h *harness) addProvider(t *testing.T, name, email string) uuid.UUID {
	t.Helper()

	provider := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		Name:         name,
		Role:         enums.UserRoleProvider,
		IsActive:     true,
	}
	require.NoError(t, h.db.Create(provider).Error)
	return provider.ID
}

func (h *harness) addProduct(t *testing.T, providerID uuid.UUID, price float64) uuid.UUID {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + uuid.NewString()[:8],
		Name:       "Product",
		BasePrice:  decimal.NewFromFloat(price),
		Stock:      100,
		ProviderID: providerID,
	}
	require.NoError(t, h.db.Create(product).Error)
	return product.ID
}

type testLine struct {
	productID uuid.UUID
	qty       int
	price     float64
}

func (h *harness) addOrder(t *testing.T, status enums.OrderStatus, createdAt time.Time, lines ...testLine) uuid.UUID {
	t.Helper()

	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Status:     status,
		CreatedAt:  createdAt,
	}
	require.NoError(t, h.db.Create(order).Error)
	for _, line := range lines {
		item := &models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.productID,
			Qty:       line.qty,
			UnitPrice: decimal.NewFromFloat(line.price),
		}
		require.NoError(t, h.db.Create(item).Error)
	}
	return order.ID
}

func (h *harness) orderStatus(t *testing.T, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()

	var order models.Order
	require.NoError(t, h.db.First(&order, "id = ?", orderID).Error)
	return order.Status
}

func TestRunGroupsByProviderAndProduct(t *testing.T) {
	h := newHarness(t)
	providerA := uuid.New()
	providerB := uuid.New()
	flour := h.addProduct(t, providerA, 10)
	sugar := h.addProduct(t, providerA, 4)
	nails := h.addProduct(t, providerB, 2)

	base := time.Now().Add(-time.Hour)
	first := h.addOrder(t, enums.OrderStatusValidated, base,
		testLine{flour, 5, 10}, testLine{nails, 20, 2})
	second := h.addOrder(t, enums.OrderStatusValidated, base.Add(time.Minute),
		testLine{flour, 3, 10}, testLine{sugar, 2, 4})

	result, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)
	require.Equal(t, 2, result.OrdersConsumed)
	require.Len(t, result.ConsolidatedOrders, 2)

	byProvider := map[uuid.UUID]ConsolidatedOrderDTO{}
	for _, co := range result.ConsolidatedOrders {
		byProvider[co.ProviderID] = co
	}

	aDoc := byProvider[providerA]
	require.Len(t, aDoc.Items, 2)
	byProduct := map[uuid.UUID]ConsolidatedItemDTO{}
	for _, item := range aDoc.Items {
		byProduct[item.ProductID] = item
	}
	require.Equal(t, 8, byProduct[flour].TotalQty)
	require.True(t, byProduct[flour].LineTotal.Equal(decimal.NewFromInt(80)))
	require.Equal(t, 2, byProduct[sugar].TotalQty)

	bDoc := byProvider[providerB]
	require.Len(t, bDoc.Items, 1)
	require.Equal(t, 20, bDoc.Items[0].TotalQty)
	require.True(t, bDoc.Total.Equal(decimal.NewFromInt(40)))

	// Source orders are consumed into a terminal status.
	require.Equal(t, enums.OrderStatusConsolidated, h.orderStatus(t, first))
	require.Equal(t, enums.OrderStatusConsolidated, h.orderStatus(t, second))
}

func TestRunUsesMostRecentUnitPrice(t *testing.T) {
	h := newHarness(t)
	providerID := uuid.New()
	productID := h.addProduct(t, providerID, 12)

	base := time.Now().Add(-time.Hour)
	h.addOrder(t, enums.OrderStatusValidated, base, testLine{productID, 2, 10})
	h.addOrder(t, enums.OrderStatusValidated, base.Add(10*time.Minute), testLine{productID, 3, 12.50})

	result, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)
	require.Len(t, result.ConsolidatedOrders, 1)

	items := result.ConsolidatedOrders[0].Items
	require.Len(t, items, 1)
	require.Equal(t, 5, items[0].TotalQty)
	require.True(t, items[0].UnitPrice.Equal(decimal.NewFromFloat(12.50)),
		"expected newest snapshot, got %s", items[0].UnitPrice)
	require.True(t, items[0].LineTotal.Equal(decimal.NewFromFloat(62.50)))
}

func TestRunSkipsNonValidatedOrders(t *testing.T) {
	h := newHarness(t)
	providerID := uuid.New()
	productID := h.addProduct(t, providerID, 5)

	now := time.Now()
	draft := h.addOrder(t, enums.OrderStatusDraft, now, testLine{productID, 1, 5})
	pending := h.addOrder(t, enums.OrderStatusPendingValidation, now, testLine{productID, 1, 5})
	validated := h.addOrder(t, enums.OrderStatusValidated, now, testLine{productID, 4, 5})

	result, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)
	require.Equal(t, 1, result.OrdersConsumed)

	require.Equal(t, enums.OrderStatusDraft, h.orderStatus(t, draft))
	require.Equal(t, enums.OrderStatusPendingValidation, h.orderStatus(t, pending))
	require.Equal(t, enums.OrderStatusConsolidated, h.orderStatus(t, validated))
}

func TestRunNoEligibleOrders(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNoEligibleOrders, appErr.Code())
}

func TestRunDoesNotConsumeTwice(t *testing.T) {
	h := newHarness(t)
	providerID := uuid.New()
	productID := h.addProduct(t, providerID, 5)
	h.addOrder(t, enums.OrderStatusValidated, time.Now(), testLine{productID, 2, 5})

	first, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)
	require.Equal(t, 1, first.OrdersConsumed)

	_, err = h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNoEligibleOrders, appErr.Code())

	var count int64
	require.NoError(t, h.db.Model(&models.ConsolidatedOrder{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRunRequiresEmployee(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Run(context.Background(), RunInput{
		Actor: Actor{UserID: uuid.New(), Role: enums.UserRoleProvider},
	})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeForbidden, appErr.Code())
}

func TestRunEmitsOutboxEvents(t *testing.T) {
	h := newHarness(t)
	providerID := uuid.New()
	productID := h.addProduct(t, providerID, 5)
	h.addOrder(t, enums.OrderStatusValidated, time.Now(), testLine{productID, 2, 5})

	result, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)

	var events []models.OutboxEvent
	require.NoError(t, h.db.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventConsolidationRun, events[0].EventType)
	require.Equal(t, result.ConsolidatedOrders[0].ID, events[0].AggregateID)
}

func TestDetailCarriesProductAndProviderSummaries(t *testing.T) {
	h := newHarness(t)
	providerID := h.addProvider(t, "Molinos SA", "ventas@molinos.test")
	product := &models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-AZUCAR",
		Name:       "Azucar 1kg",
		BasePrice:  decimal.NewFromInt(4),
		Stock:      100,
		ProviderID: providerID,
	}
	require.NoError(t, h.db.Create(product).Error)
	h.addOrder(t, enums.OrderStatusValidated, time.Now(), testLine{product.ID, 3, 4})

	result, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)
	require.Len(t, result.ConsolidatedOrders, 1)

	assertSummaries := func(doc ConsolidatedOrderDTO) {
		t.Helper()
		require.NotNil(t, doc.Provider)
		require.Equal(t, "Molinos SA", doc.Provider.Name)
		require.Equal(t, "ventas@molinos.test", doc.Provider.Email)
		require.Len(t, doc.Items, 1)
		require.NotNil(t, doc.Items[0].Product)
		require.Equal(t, "SKU-AZUCAR", doc.Items[0].Product.SKU)
		require.Equal(t, "Azucar 1kg", doc.Items[0].Product.Name)
	}

	// Run results and a later fetch expose the same expanded detail.
	assertSummaries(result.ConsolidatedOrders[0])

	doc, err := h.svc.Get(context.Background(), result.ConsolidatedOrders[0].ID, h.employee)
	require.NoError(t, err)
	assertSummaries(*doc)
}

func TestGetAndListScoping(t *testing.T) {
	h := newHarness(t)
	providerID := uuid.New()
	productID := h.addProduct(t, providerID, 5)
	h.addOrder(t, enums.OrderStatusValidated, time.Now(), testLine{productID, 2, 5})

	result, err := h.svc.Run(context.Background(), RunInput{Actor: h.employee})
	require.NoError(t, err)
	docID := result.ConsolidatedOrders[0].ID

	owner := Actor{UserID: providerID, Role: enums.UserRoleProvider}
	doc, err := h.svc.Get(context.Background(), docID, owner)
	require.NoError(t, err)
	require.Equal(t, providerID, doc.ProviderID)

	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleProvider}
	_, err = h.svc.Get(context.Background(), docID, stranger)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeForbidden, appErr.Code())

	customer := Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err = h.svc.List(context.Background(), ListInput{Actor: customer})
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeForbidden, appErr.Code())

	// Providers are always pinned to their own documents.
	list, err := h.svc.List(context.Background(), ListInput{Actor: stranger})
	require.NoError(t, err)
	require.Empty(t, list.ConsolidatedOrders)

	list, err = h.svc.List(context.Background(), ListInput{Actor: owner, Params: pagination.Params{Limit: 10}})
	require.NoError(t, err)
	require.Len(t, list.ConsolidatedOrders, 1)
}
