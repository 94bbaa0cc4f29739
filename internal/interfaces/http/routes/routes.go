// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/pkg/auth"
)

// Handlers bundles every HTTP handler the API mounts
type Handlers struct {
	Auth           *handlers.AuthHandler
	Product        *handlers.ProductHandler
	Category       *handlers.CategoryHandler
	Inventory      *handlers.InventoryHandler
	Cart           *handlers.CartHandler
	Order          *handlers.OrderHandler
	Invoice        *handlers.InvoiceHandler
	Recommendation *handlers.RecommendationHandler
	Export         *handlers.ExportHandler
}

// SetupRoutes mounts all API routes on rg
func SetupRoutes(rg *gin.RouterGroup, h *Handlers, jwt *auth.JWTManager) {
	SetupAuthRoutes(rg, h, jwt)
	SetupCatalogRoutes(rg, h, jwt)
	SetupCartRoutes(rg, h, jwt)
	SetupOrderRoutes(rg, h, jwt)
	SetupAdminRoutes(rg, h, jwt)
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, h *Handlers, jwt *auth.JWTManager) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.RefreshToken)

		protected := authGroup.Group("")
		protected.Use(middleware.AuthMiddleware(jwt))
		{
			protected.POST("/logout", h.Auth.Logout)
			protected.GET("/profile", h.Auth.GetProfile)
			protected.PUT("/profile", h.Auth.UpdateProfile)
			protected.PUT("/password", h.Auth.ChangePassword)
		}
	}
}

// SetupCatalogRoutes sets up public catalog routes
func SetupCatalogRoutes(rg *gin.RouterGroup, h *Handlers, jwt *auth.JWTManager) {
	products := rg.Group("/products")
	{
		products.GET("", h.Product.GetProducts)
		products.GET("/slug/:slug", h.Product.GetProductBySlug)
		products.GET("/:id", h.Product.GetProduct)
		products.GET("/:id/images", h.Product.GetProductImages)
		products.GET("/:id/attributes", h.Product.GetProductAttributes)
		products.GET("/:id/inventory", h.Product.GetProductInventory)
		products.GET("/:id/related", h.Recommendation.GetRelatedProducts)
	}

	categories := rg.Group("/categories")
	categories.Use(middleware.OptionalAuthMiddleware(jwt))
	{
		categories.GET("", h.Category.GetCategories)
		categories.GET("/tree", h.Category.GetCategoryTree)
		categories.GET("/:id", h.Category.GetCategory)
	}

	rg.GET("/sizes", h.Category.GetSizes)
	rg.GET("/colors", h.Category.GetColors)
	rg.GET("/recommendations", middleware.OptionalAuthMiddleware(jwt), h.Recommendation.GetRecommendations)
}

// SetupCartRoutes sets up shopping cart routes
func SetupCartRoutes(rg *gin.RouterGroup, h *Handlers, jwt *auth.JWTManager) {
	cart := rg.Group("/cart")
	cart.Use(middleware.AuthMiddleware(jwt))
	{
		cart.GET("", h.Cart.GetCart)
		cart.GET("/summary", h.Cart.GetCartSummary)
		cart.DELETE("", h.Cart.ClearCart)
		cart.POST("/items", h.Cart.AddToCart)
		cart.PUT("/items/:item_id", h.Cart.UpdateCartItem)
		cart.DELETE("/items/:item_id", h.Cart.RemoveFromCart)
	}
}

// SetupOrderRoutes sets up customer order routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *Handlers, jwt *auth.JWTManager) {
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(jwt))
	{
		orders.POST("", h.Order.CreateOrder)
		orders.GET("", h.Order.GetOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
		orders.GET("/:id/invoice", h.Invoice.GenerateInvoice)
		orders.GET("/:id/invoice/data", h.Invoice.GetInvoiceData)
	}
}

// SetupAdminRoutes sets up admin routes
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers, jwt *auth.JWTManager) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwt), middleware.AdminMiddleware())
	{
		products := admin.Group("/products")
		{
			products.GET("", h.Product.AdminGetProducts)
			products.POST("", h.Product.AdminCreateProduct)
			products.GET("/export", h.Export.ExportCatalog)
			products.GET("/:id", h.Product.AdminGetProduct)
			products.PUT("/:id", h.Product.AdminUpdateProduct)
			products.PUT("/:id/status", h.Product.AdminSetProductStatus)
			products.DELETE("/:id", h.Product.AdminDeleteProduct)
			products.POST("/:id/images", h.Product.AdminAddImage)
			products.DELETE("/:id/images/:image_id", h.Product.AdminDeleteImage)
			products.PUT("/:id/attributes", h.Product.AdminSetAttribute)
			products.GET("/:id/inventory", h.Inventory.GetProductInventory)
			products.GET("/:id/stock", h.Inventory.GetStockLevel)
		}

		categories := admin.Group("/categories")
		{
			categories.POST("", h.Category.AdminCreateCategory)
			categories.PUT("/:id", h.Category.AdminUpdateCategory)
			categories.DELETE("/:id", h.Category.AdminDeleteCategory)
		}

		admin.POST("/sizes", h.Category.AdminCreateSize)
		admin.POST("/colors", h.Category.AdminCreateColor)
		admin.GET("/attributes", h.Category.AdminGetAttributes)
		admin.POST("/attributes", h.Category.AdminCreateAttribute)

		inventory := admin.Group("/inventory")
		{
			inventory.POST("", h.Inventory.CreateInventory)
			inventory.POST("/reconcile", h.Inventory.ReconcileStock)
			inventory.GET("/:id", h.Inventory.GetInventory)
			inventory.PUT("/:id", h.Inventory.UpdateInventory)
			inventory.DELETE("/:id", h.Inventory.DeleteInventory)
			inventory.POST("/:id/adjust", h.Inventory.AdjustInventory)
			inventory.GET("/:id/movements", h.Inventory.GetMovements)
		}

		orders := admin.Group("/orders")
		{
			orders.GET("", h.Order.AdminGetOrders)
			orders.GET("/number/:number", h.Order.AdminGetOrderByNumber)
			orders.GET("/:id", h.Order.AdminGetOrder)
			orders.PUT("/:id/status", h.Order.AdminUpdateOrderStatus)
		}

		admin.PUT("/users/:id/status", h.Auth.SetUserStatus)
	}
}
