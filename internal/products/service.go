package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/ordena-app/ordena-backend/pkg/db"
	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

// ProviderDirectory resolves the user a product belongs to.
type ProviderDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service defines catalog operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ProductDTO, error)
	Update(ctx context.Context, input UpdateInput) (*ProductDTO, error)
	Delete(ctx context.Context, input DeleteInput) error
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error)
}

// CreateInput carries a create request plus the acting user.
type CreateInput struct {
	CreateProductInput
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// UpdateInput carries an update request plus the acting user.
type UpdateInput struct {
	ProductID uuid.UUID
	Updates   UpdateProductInput
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// DeleteInput carries a delete request plus the acting user.
type DeleteInput struct {
	ProductID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

type catalogRepo interface {
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	CountOrderReferences(ctx context.Context, productID uuid.UUID) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error)
}

type service struct {
	repo      catalogRepo
	providers ProviderDirectory
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo catalogRepo, providers ProviderDirectory) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if providers == nil {
		return nil, fmt.Errorf("provider directory required")
	}
	return &service{repo: repo, providers: providers}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ProductDTO, error) {
	if strings.TrimSpace(input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if input.BasePrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if input.ProviderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	if err := s.authorizeCatalogWrite(input.ActorID, input.ActorRole, input.ProviderID); err != nil {
		return nil, err
	}

	provider, err := s.providers.FindByID(ctx, input.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "provider not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load provider")
	}
	if provider.Role != enums.UserRoleProvider {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "products must belong to a provider user")
	}

	product := &models.Product{
		SKU:        strings.TrimSpace(input.SKU),
		Name:       strings.TrimSpace(input.Name),
		BasePrice:  input.BasePrice,
		Stock:      input.Stock,
		ProviderID: input.ProviderID,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return FromModel(created), nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*ProductDTO, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.repo.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := s.authorizeCatalogWrite(input.ActorID, input.ActorRole, product.ProviderID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Updates.Name != nil {
		name := strings.TrimSpace(*input.Updates.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
		product.Name = name
	}
	if input.Updates.BasePrice != nil {
		if input.Updates.BasePrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
		}
		updates["base_price"] = *input.Updates.BasePrice
		product.BasePrice = *input.Updates.BasePrice
	}
	if input.Updates.Stock != nil {
		if *input.Updates.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		updates["stock"] = *input.Updates.Stock
		product.Stock = *input.Updates.Stock
	}
	if len(updates) == 0 {
		return FromModel(product), nil
	}

	if err := s.repo.UpdateProduct(ctx, product.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return FromModel(product), nil
}

func (s *service) Delete(ctx context.Context, input DeleteInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.repo.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := s.authorizeCatalogWrite(input.ActorID, input.ActorRole, product.ProviderID); err != nil {
		return err
	}

	// Order lines reference products by id. Deleting a referenced product
	// would orphan order history, so those deletes are refused.
	refs, err := s.repo.CountOrderReferences(ctx, product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count product references")
	}
	if refs > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "product is referenced by existing orders")
	}

	if err := s.repo.DeleteProduct(ctx, product.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return FromModel(product), nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error) {
	list, err := s.repo.ListProducts(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return list, nil
}

func (s *service) authorizeCatalogWrite(actorID uuid.UUID, role enums.UserRole, providerID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	switch role {
	case enums.UserRoleEmployee:
		return nil
	case enums.UserRoleProvider:
		if actorID != providerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "providers can only manage their own products")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot manage products")
	}
}
