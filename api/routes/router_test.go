package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordena-app/ordena-backend/internal/auth"
	"github.com/ordena-app/ordena-backend/internal/consolidation"
	"github.com/ordena-app/ordena-backend/internal/orders"
	"github.com/ordena-app/ordena-backend/internal/products"
	"github.com/ordena-app/ordena-backend/internal/users"
	pkgAuth "github.com/ordena-app/ordena-backend/pkg/auth"
	"github.com/ordena-app/ordena-backend/pkg/config"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	"github.com/ordena-app/ordena-backend/pkg/pagination"
)

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{AccessToken: "token", User: &users.UserDTO{ID: uuid.New()}}, nil
}

func (stubAuthService) Register(_ context.Context, _ enums.UserRole, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	return &auth.RegisterResponse{User: &users.UserDTO{ID: uuid.New(), Email: req.Email, Role: req.Role}}, nil
}

func (stubAuthService) Me(_ context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID}, nil
}

func (stubAuthService) EnsureBootstrapEmployee(context.Context, config.BootstrapConfig) error {
	return nil
}

type stubProductService struct{}

func (stubProductService) Create(_ context.Context, input products.CreateInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: uuid.New(), SKU: input.SKU, Name: input.Name}, nil
}

func (stubProductService) Update(_ context.Context, input products.UpdateInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: input.ProductID}, nil
}

func (stubProductService) Delete(context.Context, products.DeleteInput) error {
	return nil
}

func (stubProductService) Get(_ context.Context, id uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id}, nil
}

func (stubProductService) List(context.Context, pagination.Params, products.ListFilters) (*products.ProductList, error) {
	return &products.ProductList{}, nil
}

type stubOrderService struct{}

func (stubOrderService) Create(_ context.Context, input orders.CreateOrderInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: uuid.New(), Status: enums.OrderStatusDraft}, nil
}

func (stubOrderService) Get(_ context.Context, orderID uuid.UUID, _ orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID}, nil
}

func (stubOrderService) List(context.Context, orders.ListInput) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrderService) AddItem(_ context.Context, input orders.AddItemInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID}, nil
}

func (stubOrderService) UpdateItemQty(_ context.Context, input orders.UpdateItemInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID}, nil
}

func (stubOrderService) RemoveItem(_ context.Context, input orders.RemoveItemInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID}, nil
}

func (stubOrderService) Delete(context.Context, uuid.UUID, orders.Actor) error { return nil }

func (stubOrderService) Submit(_ context.Context, orderID uuid.UUID, _ orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusPendingValidation}, nil
}

func (stubOrderService) Approve(_ context.Context, orderID uuid.UUID, _ orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusValidated}, nil
}

func (stubOrderService) Reject(_ context.Context, orderID uuid.UUID, _ orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusDraft}, nil
}

func (stubOrderService) Decline(_ context.Context, orderID uuid.UUID, _ orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusDeclined}, nil
}

func (stubOrderService) Complete(_ context.Context, orderID uuid.UUID, _ orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusCompleted}, nil
}

type stubConsolidationService struct{}

func (stubConsolidationService) Run(context.Context, consolidation.RunInput) (*consolidation.RunResult, error) {
	return &consolidation.RunResult{OrdersConsumed: 2}, nil
}

func (stubConsolidationService) Get(_ context.Context, id uuid.UUID, _ consolidation.Actor) (*consolidation.ConsolidatedOrderDTO, error) {
	return &consolidation.ConsolidatedOrderDTO{ID: id}, nil
}

func (stubConsolidationService) List(context.Context, consolidation.ListInput) (*consolidation.ConsolidatedOrderList, error) {
	return &consolidation.ConsolidatedOrderList{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "ordena-test",
			ExpirationMinutes: 15,
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(
		testConfig(),
		nil,
		nil,
		nil,
		stubAuthService{},
		stubProductService{},
		stubOrderService{},
		stubConsolidationService{},
	)
}

func mintToken(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Header().Get("X-Ordena-Env"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginDoesNotRequireToken(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/auth/login",
		"", `{"email":"ana@ordena.app","password":"s3cret-pass"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/orders",
		"/api/v1/products",
		"/api/v1/consolidations",
		"/api/v1/auth/me",
	} {
		w := doRequest(t, router, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}

func TestProtectedRoutesRejectGarbageToken(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/orders", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrdersRoutesWithCustomerToken(t *testing.T) {
	router := newTestRouter(t)
	token := mintToken(t, enums.UserRoleCustomer)
	orderID := uuid.NewString()

	w := doRequest(t, router, http.MethodGet, "/api/v1/orders", token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/orders", token, "{}")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/submit", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEmployeeDecisionRoutesRequireEmployeeRole(t *testing.T) {
	router := newTestRouter(t)
	customer := mintToken(t, enums.UserRoleCustomer)
	employee := mintToken(t, enums.UserRoleEmployee)
	orderID := uuid.NewString()

	for _, action := range []string{"approve", "reject", "decline", "complete"} {
		w := doRequest(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/"+action, customer, "")
		assert.Equal(t, http.StatusForbidden, w.Code, "action %s", action)

		w = doRequest(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/"+action, employee, "")
		assert.Equal(t, http.StatusOK, w.Code, "action %s", action)
	}
}

func TestConsolidationRunRequiresEmployeeRole(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/consolidations", mintToken(t, enums.UserRoleProvider), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/consolidations", mintToken(t, enums.UserRoleEmployee), "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestProductRoutes(t *testing.T) {
	router := newTestRouter(t)
	token := mintToken(t, enums.UserRoleProvider)

	w := doRequest(t, router, http.MethodPost, "/api/v1/products", token,
		`{"sku":"SKU-1","name":"Harina 000","base_price":"12.50","stock":40}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/products/"+uuid.NewString(), token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/products?limit=10", token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/api/v1/products/"+uuid.NewString(), token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMe(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/auth/me", mintToken(t, enums.UserRoleCustomer), "")
	assert.Equal(t, http.StatusOK, w.Code)
}
