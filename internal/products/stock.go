package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
)

// StockReserver adapts the conditional stock decrement for transactional callers.
type StockReserver struct {
	repo *Repository
}

// NewStockReserver wraps a products repository for use inside order transactions.
func NewStockReserver(repo *Repository) *StockReserver {
	return &StockReserver{repo: repo}
}

// TryDecrement subtracts qty inside the caller's transaction. It reports false
// without error when the remaining stock cannot cover the request.
func (s *StockReserver) TryDecrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return true, nil
	}
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}
	return s.repo.WithTx(tx).TryDecrementStock(ctx, productID, qty)
}
