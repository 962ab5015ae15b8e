package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  base_price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  provider_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)

	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func seedProduct(t *testing.T, repo *Repository, sku string, stock int) *models.Product {
	t.Helper()

	product, err := repo.CreateProduct(context.Background(), &models.Product{
		SKU:        sku,
		Name:       "Product " + sku,
		BasePrice:  decimal.NewFromFloat(12.50),
		Stock:      stock,
		ProviderID: uuid.New(),
	})
	require.NoError(t, err)
	return product
}

func TestCreateProductAssignsID(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))

	product := seedProduct(t, repo, "SKU-1", 10)
	require.NotEqual(t, uuid.Nil, product.ID)

	found, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, "SKU-1", found.SKU)
	require.True(t, decimal.NewFromFloat(12.50).Equal(found.BasePrice))
}

func TestCreateProductDuplicateSKUFails(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))

	seedProduct(t, repo, "SKU-DUP", 5)
	_, err := repo.CreateProduct(context.Background(), &models.Product{
		SKU:        "SKU-DUP",
		Name:       "Other",
		BasePrice:  decimal.NewFromInt(1),
		Stock:      1,
		ProviderID: uuid.New(),
	})
	require.Error(t, err)
}

func TestTryDecrementStock(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))
	ctx := context.Background()

	product := seedProduct(t, repo, "SKU-STOCK", 10)

	ok, err := repo.TryDecrementStock(ctx, product.ID, 7)
	require.NoError(t, err)
	require.True(t, ok)

	// Guard rejects draining below zero and leaves stock untouched.
	ok, err = repo.TryDecrementStock(ctx, product.ID, 4)
	require.NoError(t, err)
	require.False(t, ok)

	found, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, found.Stock)

	ok, err = repo.TryDecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	found, err = repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, found.Stock)
}

func TestTryDecrementStockZeroQtyIsNoop(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))

	product := seedProduct(t, repo, "SKU-ZERO", 2)
	ok, err := repo.TryDecrementStock(context.Background(), product.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)

	found, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 2, found.Stock)
}

func TestDeleteProductRemovesRow(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, repo, "SKU-GONE", 1)
	require.NoError(t, repo.DeleteProduct(ctx, product.ID))

	_, err := repo.FindByID(ctx, product.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCountOrderReferences(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, repo, "SKU-REF", 1)

	count, err := repo.CountOrderReferences(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&models.OrderItem{
			ID:        uuid.New(),
			OrderID:   uuid.New(),
			ProductID: product.ID,
			Qty:       1,
			UnitPrice: decimal.NewFromInt(1),
		}).Error)
	}

	count, err = repo.CountOrderReferences(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestListProductsFiltersByProvider(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	providerID := uuid.New()
	for _, sku := range []string{"P-1", "P-2"} {
		_, err := repo.CreateProduct(ctx, &models.Product{
			SKU:        sku,
			Name:       "Mine " + sku,
			BasePrice:  decimal.NewFromInt(3),
			Stock:      1,
			ProviderID: providerID,
		})
		require.NoError(t, err)
	}
	seedProduct(t, repo, "OTHER-1", 1)

	list, err := repo.ListProducts(ctx, pagination.Params{}, ListFilters{ProviderID: &providerID})
	require.NoError(t, err)
	require.Len(t, list.Products, 2)
	for _, p := range list.Products {
		require.Equal(t, providerID, p.ProviderID)
	}
}

func TestListProductsSearchesNameAndSKU(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))
	ctx := context.Background()

	seedProduct(t, repo, "FLOUR-25KG", 4)
	seedProduct(t, repo, "SUGAR-10KG", 4)

	list, err := repo.ListProducts(ctx, pagination.Params{}, ListFilters{Query: "flour"})
	require.NoError(t, err)
	require.Len(t, list.Products, 1)
	require.Equal(t, "FLOUR-25KG", list.Products[0].SKU)
}
