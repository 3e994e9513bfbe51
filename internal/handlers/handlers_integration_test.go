package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test_jwt_secret"

// setupApp wires the full API against an in-memory SQLite database, mirroring
// the wiring in main.go. The database handle is returned so tests can grant
// admin rights directly.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.User{}, &models.Order{}, &models.OrderItem{}))

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	seedProductsForTest(t, productRepo)

	pricing := services.PricingPolicy{
		FlatShippingFee:       10.0,
		FreeShippingThreshold: 100.0,
		TaxRate:               0.15,
	}
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, nil, pricing)
	authService := services.NewAuthService(userRepo, testJWTSecret)

	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)

	apiV1.Get("/keys/paypal", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"client_id": "sb"})
	})

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(protected)

	admin := apiV1.Group("/admin", middleware.AuthRequired(authService), middleware.AdminRequired())
	orderHandler.RegisterAdminRoutes(admin)
	productHandler.RegisterAdminRoutes(admin)

	return app, db
}

func seedProductsForTest(t *testing.T, repo repositories.ProductRepository) {
	t.Helper()
	products := []models.Product{
		{ID: "prod-1", Name: "Linen Shirt", Description: "Relaxed fit linen shirt", Price: 45.00, Stock: 30},
		{ID: "prod-2", Name: "Wool Sweater", Description: "Merino wool crew neck", Price: 85.00, Stock: 2},
		{ID: "prod-3", Name: "Canvas Tote", Description: "Heavy duty canvas tote bag", Price: 25.00, Stock: 50},
	}
	for i := range products {
		require.NoError(t, repo.Create(context.Background(), &products[i]))
	}
}

// doJSON issues a request with an optional JSON body and bearer token and
// decodes the response into out (when out is non-nil).
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// registerAndLogin creates a user and returns a bearer token for it.
func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	status := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	return loginExisting(t, app, username)
}

func loginExisting(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	var loginResp map[string]string
	status := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	}, &loginResp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func checkoutRequest() map[string]interface{} {
	return map[string]interface{}{
		"order_items": []map[string]interface{}{
			// Client-claimed prices are lies; the server must recompute.
			{"product_id": "prod-1", "name": "Linen Shirt", "price": 0.01, "quantity": 2},
			{"product_id": "prod-3", "name": "Canvas Tote", "price": 0.01, "quantity": 1},
		},
		"shipping_address": map[string]string{
			"full_name":   "Ada Lovelace",
			"address":     "1 Analytical Way",
			"city":        "London",
			"postal_code": "NW1",
			"country":     "UK",
		},
		"payment_method": "PayPal",
		"items_price":    0.03,
		"total_price":    0.03,
	}
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)

	body := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	var registerResp map[string]interface{}
	status := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", body, &registerResp)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", registerResp["message"])

	// Duplicate username
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", body, nil)
	assert.Equal(t, http.StatusConflict, status)

	var loginResp map[string]string
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "password123",
	}, &loginResp)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, loginResp["token"])
}

func TestRegisterCannotGrantAdmin(t *testing.T) {
	app, db := setupApp(t)

	status := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"username": "sneaky",
		"email":    "sneaky@example.com",
		"password": "password123",
		"is_admin": true,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var user models.User
	require.NoError(t, db.First(&user, "username = ?", "sneaky").Error)
	assert.False(t, user.IsAdmin)
}

func TestProductsArePublic(t *testing.T) {
	app, _ := setupApp(t)

	var products []models.Product
	status := doJSON(t, app, http.MethodGet, "/api/v1/products", "", nil, &products)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, products, 3)

	var product models.Product
	status = doJSON(t, app, http.MethodGet, "/api/v1/products/prod-1", "", nil, &product)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Linen Shirt", product.Name)

	status = doJSON(t, app, http.MethodGet, "/api/v1/products/no-such-product", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrdersRequireAuth(t *testing.T) {
	app, _ := setupApp(t)

	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", "", checkoutRequest(), nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = doJSON(t, app, http.MethodGet, "/api/v1/orders/mine", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateOrderRecomputesPrices(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer")

	var order models.Order
	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", token, checkoutRequest(), &order)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, order.ID)

	// 2 x 45 + 1 x 25 from the catalog, not the client's 0.01 claims.
	assert.Equal(t, 115.0, order.ItemsPrice)
	assert.Equal(t, 0.0, order.ShippingPrice, "free shipping above the threshold")
	assert.Equal(t, 17.25, order.TaxPrice)
	assert.Equal(t, 132.25, order.TotalPrice)
	assert.False(t, order.IsPaid)
	require.Len(t, order.OrderItems, 2)
	assert.Equal(t, 45.0, order.OrderItems[0].Price)

	// The order shows up in the buyer's history.
	var mine []models.Order
	status = doJSON(t, app, http.MethodGet, "/api/v1/orders/mine", token, nil, &mine)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	// Placing an order does not touch stock; that happens at payment.
	var product models.Product
	status = doJSON(t, app, http.MethodGet, "/api/v1/products/prod-1", "", nil, &product)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 30, product.Stock)
}

func TestCreateOrderStockConflict(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer")

	req := checkoutRequest()
	req["order_items"] = []map[string]interface{}{
		{"product_id": "prod-2", "quantity": 5}, // only 2 in stock
	}

	var body map[string]interface{}
	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", token, req, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "prod-2", body["product_id"])
	assert.Equal(t, float64(5), body["requested"])
	assert.Equal(t, float64(2), body["available"])

	// Nothing was committed.
	var mine []models.Order
	status = doJSON(t, app, http.MethodGet, "/api/v1/orders/mine", token, nil, &mine)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, mine)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer")

	req := checkoutRequest()
	req["order_items"] = []map[string]interface{}{
		{"product_id": "discontinued", "quantity": 1},
	}

	var body map[string]interface{}
	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", token, req, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "discontinued", body["product_id"])
}

func TestPayOrderIsIdempotent(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer")

	var order models.Order
	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", token, checkoutRequest(), &order)
	require.Equal(t, http.StatusCreated, status)

	payment := map[string]string{
		"id":          "pp-1",
		"status":      "COMPLETED",
		"payer_email": "buyer@example.com",
	}

	var paid models.Order
	status = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+order.ID+"/pay", token, payment, &paid)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "pp-1", paid.PaymentResult.ID)

	// Stock decrements exactly once, at confirmation.
	var product models.Product
	status = doJSON(t, app, http.MethodGet, "/api/v1/products/prod-1", "", nil, &product)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 28, product.Stock)

	// Replaying the confirmation is a benign success with no side effects.
	replay := map[string]string{"id": "pp-2", "status": "COMPLETED"}
	var replayed models.Order
	status = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+order.ID+"/pay", token, replay, &replayed)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pp-1", replayed.PaymentResult.ID, "original payment record survives the replay")

	status = doJSON(t, app, http.MethodGet, "/api/v1/products/prod-1", "", nil, &product)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 28, product.Stock)
}

func TestOrderAccessControl(t *testing.T) {
	app, db := setupApp(t)
	ownerToken := registerAndLogin(t, app, "owner")
	strangerToken := registerAndLogin(t, app, "stranger")

	var order models.Order
	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", ownerToken, checkoutRequest(), &order)
	require.Equal(t, http.StatusCreated, status)

	// A stranger can neither read nor pay someone else's order.
	status = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, strangerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+order.ID+"/pay", strangerToken, map[string]string{"id": "pp-x"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Admin routes reject regular users outright.
	status = doJSON(t, app, http.MethodGet, "/api/v1/admin/orders", strangerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// An admin can read any order.
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "stranger").Update("is_admin", true).Error)
	adminToken := loginExisting(t, app, "stranger")

	status = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	var all []models.Order
	status = doJSON(t, app, http.MethodGet, "/api/v1/admin/orders", adminToken, nil, &all)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, all, 1)
}

func TestAdminMarkDelivered(t *testing.T) {
	app, db := setupApp(t)
	buyerToken := registerAndLogin(t, app, "buyer")
	registerAndLogin(t, app, "backoffice")
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "backoffice").Update("is_admin", true).Error)
	adminToken := loginExisting(t, app, "backoffice")

	var order models.Order
	status := doJSON(t, app, http.MethodPost, "/api/v1/orders", buyerToken, checkoutRequest(), &order)
	require.Equal(t, http.StatusCreated, status)

	// Unpaid orders cannot be delivered.
	status = doJSON(t, app, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/deliver", adminToken, nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+order.ID+"/pay", buyerToken, map[string]string{"id": "pp-1", "status": "COMPLETED"}, nil)
	require.Equal(t, http.StatusOK, status)

	var delivered models.Order
	status = doJSON(t, app, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/deliver", adminToken, nil, &delivered)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, delivered.IsDelivered)

	// Buyers never reach the deliver route.
	status = doJSON(t, app, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/deliver", buyerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdminCatalogMaintenance(t *testing.T) {
	app, db := setupApp(t)
	registerAndLogin(t, app, "merchant")
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "merchant").Update("is_admin", true).Error)
	adminToken := loginExisting(t, app, "merchant")

	var created models.Product
	status := doJSON(t, app, http.MethodPost, "/api/v1/admin/products", adminToken, map[string]interface{}{
		"name":        "Denim Jacket",
		"description": "Slim fit denim jacket",
		"price":       95.0,
		"stock":       12,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ID)

	var updated models.Product
	status = doJSON(t, app, http.MethodPut, "/api/v1/admin/products/"+created.ID, adminToken, map[string]interface{}{
		"name":        "Denim Jacket",
		"description": "Slim fit denim jacket",
		"price":       89.0,
		"stock":       10,
	}, &updated)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 89.0, updated.Price)
	assert.Equal(t, 10, updated.Stock)

	// The new product is publicly visible.
	var fetched models.Product
	status = doJSON(t, app, http.MethodGet, "/api/v1/products/"+created.ID, "", nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 89.0, fetched.Price)

	status = doJSON(t, app, http.MethodDelete, "/api/v1/admin/products/"+created.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status = doJSON(t, app, http.MethodGet, "/api/v1/products/"+created.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPayPalKeyEndpoint(t *testing.T) {
	app, _ := setupApp(t)

	var body map[string]string
	status := doJSON(t, app, http.MethodGet, "/api/v1/keys/paypal", "", nil, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sb", body["client_id"])
}
