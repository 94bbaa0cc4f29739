package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/domain/recommendation"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
	"github.com/your-org/storefront/internal/interfaces/http/routes"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/export"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"github.com/your-org/storefront/internal/pkg/pdf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type checker struct{ err error }

func (c checker) Health(context.Context) error { return c.err }

type harness struct {
	t       *testing.T
	db      *gorm.DB
	handler http.Handler
}

func newHarness(t *testing.T, checks map[string]HealthChecker) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:server_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Name: "storefront-test", Environment: "test"},
		JWT: config.JWTConfig{Secret: "test-secret", AccessTokenExpiry: time.Minute, RefreshTokenExpiry: time.Hour},
		Security: config.SecurityConfig{
			BcryptCost:         4,
			MaxRequestBodySize: 1 << 20,
		},
		Inventory:      config.InventoryConfig{StockIncludesInactive: true},
		Recommendation: config.RecommendationConfig{DefaultLimit: 6, MaxLimit: 50},
		Invoice:        config.InvoiceConfig{CompanyName: "Storefront", Currency: "USD"},
		Metrics:        config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	log := logger.Discard()

	migration := postgres.NewMigration(db, cfg, log)
	require.NoError(t, migration.RunAutoMigrations())
	require.NoError(t, migration.SeedInitialData())

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	users := user.NewService(db, cfg, log)
	products := product.NewService(db, cfg, log)
	inventories := inventory.NewService(db, cfg, log, recorder)
	carts := cart.NewService(db, nil, cfg, log, recorder)
	orders := order.NewService(db, cfg, carts, log, recorder)
	products.SetPriceChangeNotifier(carts)

	server := NewServer(cfg, log, Dependencies{
		Handlers: &routes.Handlers{
			Auth:           handlers.NewAuthHandler(users, log),
			Product:        handlers.NewProductHandler(products, inventories, log),
			Category:       handlers.NewCategoryHandler(product.NewCategoryService(db, cfg), products, log),
			Inventory:      handlers.NewInventoryHandler(inventories, log),
			Cart:           handlers.NewCartHandler(carts, log),
			Order:          handlers.NewOrderHandler(orders, log),
			Invoice:        handlers.NewInvoiceHandler(orders, pdf.NewService(cfg), log),
			Recommendation: handlers.NewRecommendationHandler(recommendation.NewService(db, cfg, log), log),
			Export:         handlers.NewExportHandler(export.NewCatalogExporter(db, log), log),
		},
		JWT:      users.JWT(),
		Metrics:  recorder,
		Gatherer: registry,
		Checks:   checks,
	})

	return &harness{t: t, db: db, handler: server.Handler()}
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (h *harness) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (h *harness) login(login, password string) string {
	h.t.Helper()
	w, env := h.do("POST", "/api/v1/auth/login", "", gin.H{"login": login, "password": password})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	var auth user.AuthResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(h.t, auth.AccessToken)
	return auth.AccessToken
}

func (h *harness) productBySKU(sku string) product.Product {
	h.t.Helper()
	var p product.Product
	require.NoError(h.t, h.db.Where("sku = ?", sku).First(&p).Error)
	return p
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, map[string]HealthChecker{"database": checker{}})
	w, _ := h.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"healthy"`)

	w, _ = h.do("GET", "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newHarness(t, map[string]HealthChecker{"redis": checker{err: errors.New("dial tcp: refused")}})
	w, _ = down.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"unhealthy"`)
}

func TestPublicCatalog(t *testing.T) {
	h := newHarness(t, nil)

	w, env := h.do("GET", "/api/v1/products?limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list product.ProductListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Products, 4)

	tee := h.productBySKU("TEE-CLASSIC")
	w, _ = h.do("GET", fmt.Sprintf("/api/v1/products/%d", tee.ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price":"19.90"`)

	w, _ = h.do("GET", fmt.Sprintf("/api/v1/products/%d/inventory", tee.ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, h.db.Model(&product.Product{}).Where("id = ?", tee.ID).Update("status", product.StatusDraft).Error)
	w, env = h.do("GET", fmt.Sprintf("/api/v1/products/%d", tee.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperr.CodeNotFound), env.Code)

	w, env = h.do("GET", "/api/v1/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperr.CodeValidation), env.Code)

	w, _ = h.do("GET", "/api/v1/categories/tree", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Clothing")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t, nil)

	w, _ := h.do("GET", "/api/v1/admin/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	shopper := h.login("shopper", "Storefront7Shopper")
	w, _ = h.do("GET", "/api/v1/admin/products", shopper, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := h.login("admin@example.com", "Storefront7Admin")
	w, _ = h.do("GET", "/api/v1/admin/products", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t, nil)
	shopper := h.login("shopper", "Storefront7Shopper")
	mug := h.productBySKU("MUG-ENAMEL")
	book := h.productBySKU("BOOK-GO")

	w, env := h.do("POST", "/api/v1/cart/items", shopper, gin.H{"product_id": mug.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = h.do("POST", "/api/v1/cart/items", shopper, gin.H{"product_id": book.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = h.do("POST", "/api/v1/cart/items", shopper, gin.H{"product_id": mug.ID, "quantity": 100})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(apperr.CodeInsufficientStock), env.Code)

	w, env = h.do("GET", "/api/v1/cart/summary", shopper, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary cart.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 3, summary.ItemCount)
	assert.Equal(t, "64.99", summary.TotalPrice)

	w, env = h.do("POST", "/api/v1/orders", shopper, gin.H{
		"recipient_name":    "Ada Lovelace",
		"recipient_phone":   "+44 20 7946 0000",
		"recipient_address": "12 St James's Square, London",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID          uint   `json:"id"`
		OrderNumber string `json:"order_number"`
		Status      string `json:"status"`
		TotalPrice  string `json:"total_price"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "64.99", created.TotalPrice)
	assert.NotEmpty(t, created.OrderNumber)

	w, env = h.do("GET", "/api/v1/cart/summary", shopper, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 0, summary.ItemCount)

	w, env = h.do("POST", "/api/v1/orders", shopper, gin.H{
		"recipient_name":    "Ada Lovelace",
		"recipient_phone":   "+44 20 7946 0000",
		"recipient_address": "12 St James's Square, London",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(apperr.CodeEmptyCart), env.Code)

	w, env = h.do("GET", fmt.Sprintf("/api/v1/orders/%d/invoice/data", created.ID), shopper, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "INV-"+created.OrderNumber)

	admin := h.login("admin", "Storefront7Admin")
	w, env = h.do("PUT", fmt.Sprintf("/api/v1/admin/orders/%d/status", created.ID), admin, gin.H{"status": "delivered"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(apperr.CodeInvalidStatus), env.Code)

	w, _ = h.do("PUT", fmt.Sprintf("/api/v1/admin/orders/%d/status", created.ID), admin, gin.H{"status": "paid"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do("POST", fmt.Sprintf("/api/v1/orders/%d/cancel", created.ID), shopper, gin.H{"reason": "changed my mind"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do("GET", fmt.Sprintf("/api/v1/orders/%d", created.ID), admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminInventoryKeepsStockInSync(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.login("admin", "Storefront7Admin")
	mug := h.productBySKU("MUG-ENAMEL")

	var row inventory.Inventory
	require.NoError(t, h.db.Where("product_id = ?", mug.ID).First(&row).Error)

	w, _ := h.do("POST", fmt.Sprintf("/api/v1/admin/inventory/%d/adjust", row.ID), admin, gin.H{"delta": -15, "reason": "sale"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := h.do("GET", fmt.Sprintf("/api/v1/admin/products/%d/stock", mug.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var level inventory.StockLevel
	require.NoError(t, json.Unmarshal(env.Data, &level))
	assert.Equal(t, 25, level.Stock)
	assert.True(t, level.InSync)

	w, _ = h.do("GET", fmt.Sprintf("/api/v1/admin/inventory/%d/movements", row.ID), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"delta":-15`)

	w, _ = h.do("POST", fmt.Sprintf("/api/v1/admin/inventory/%d/adjust", row.ID), admin, gin.H{"delta": -100, "reason": "sale"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCatalogExportEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.login("admin", "Storefront7Admin")

	w, _ := h.do("GET", "/api/v1/admin/products/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	file, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	require.Contains(t, file.Sheet, export.ProductsSheet)
	assert.Len(t, file.Sheet[export.ProductsSheet].Rows, 5)
}

func TestRecommendationsAndMetrics(t *testing.T) {
	h := newHarness(t, nil)

	w, _ := h.do("GET", "/api/v1/recommendations?type=hot&limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"count":2`)

	tee := h.productBySKU("TEE-CLASSIC")
	w, _ = h.do("GET", fmt.Sprintf("/api/v1/products/%d/related", tee.ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
