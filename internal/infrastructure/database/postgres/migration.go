// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Migration {
	return &Migration{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		// Product domain - Base tables
		&product.Category{},
		&product.Size{},
		&product.Color{},
		&product.ProductAttribute{},
		&product.Product{},
		&product.ProductImage{},
		&product.ProductAttributeValue{},

		// Inventory domain
		&inventory.Inventory{},
		&inventory.Movement{},

		// User and cart
		&user.User{},
		&cart.Cart{},
		&cart.CartItem{},

		// Order domain - Dependent tables
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("running database auto-migrations")

	for _, model := range Models() {
		m.logger.Debugf("migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates indexes the struct tags cannot express
func (m *Migration) CreateIndexes() error {
	m.logger.Info("creating additional database indexes")

	indexes := []string{
		// The struct-tag unique index treats NULL color/size as distinct; this one does not.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_variant_nulls ON inventories(product_id, COALESCE(color_id, 0), COALESCE(size_id, 0))",
		"CREATE INDEX IF NOT EXISTS idx_inventories_product_active ON inventories(product_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_inventory_movements_created_at ON inventory_movements(inventory_id, created_at DESC)",

		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_status ON products(category_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_featured ON products(is_featured, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_popularity ON products(sales_count DESC, view_count DESC)",

		// Category indexes
		"CREATE INDEX IF NOT EXISTS idx_categories_parent_active ON categories(parent_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_categories_sort_order ON categories(sort_order)",

		// Product image indexes
		"CREATE INDEX IF NOT EXISTS idx_product_images_product_main ON product_images(product_id, is_main)",
		"CREATE INDEX IF NOT EXISTS idx_product_images_sort_order ON product_images(product_id, sort_order)",

		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email_active ON users(email, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at DESC)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("failed to create index")
			failCount++
		} else {
			successCount++
		}
	}

	m.logger.WithFields(logrus.Fields{
		"created": successCount,
		"failed":  failCount,
	}).Info("additional indexes processed")

	if failCount > 0 {
		return fmt.Errorf("%d of %d indexes failed", failCount, len(indexes))
	}
	return nil
}

// SeedInitialData inserts development data. Safe to run repeatedly.
func (m *Migration) SeedInitialData() error {
	m.logger.Info("seeding initial data")

	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := m.seedAttributes(); err != nil {
		return fmt.Errorf("failed to seed attributes: %w", err)
	}
	if err := m.seedUser("admin", "admin@example.com", "Storefront7Admin", true); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	if err := m.seedUser("shopper", "shopper@example.com", "Storefront7Shopper", false); err != nil {
		return fmt.Errorf("failed to seed test user: %w", err)
	}
	if err := m.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	m.logger.Info("initial data seeded")
	return nil
}

var seedCategories = []product.Category{
	{Name: "Clothing", Description: "Fashion, apparel, and accessories", SortOrder: 1, IsActive: true},
	{Name: "Home & Kitchen", Description: "Kitchenware, decor, and household goods", SortOrder: 2, IsActive: true},
	{Name: "Books", Description: "Books and educational materials", SortOrder: 3, IsActive: true},
}

func (m *Migration) seedCategories() error {
	for _, category := range seedCategories {
		var existing product.Category
		err := m.db.Where("name = ?", category.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := m.db.Create(&category).Error; err != nil {
			return err
		}
		m.logger.WithField("category", category.Name).Info("created category")
	}
	return nil
}

func (m *Migration) seedAttributes() error {
	for i, name := range []string{"S", "M", "L"} {
		size := product.Size{Name: name, Code: name, SortOrder: i + 1}
		if err := m.db.Where(product.Size{Name: name}).FirstOrCreate(&size).Error; err != nil {
			return err
		}
	}
	colors := map[string]string{"Black": "#000000", "White": "#FFFFFF"}
	for name, hex := range colors {
		color := product.Color{Name: name, HexCode: hex}
		if err := m.db.Where(product.Color{Name: name}).FirstOrCreate(&color).Error; err != nil {
			return err
		}
	}
	material := product.ProductAttribute{Name: "Material", IsRequired: false}
	return m.db.Where(product.ProductAttribute{Name: "Material"}).FirstOrCreate(&material).Error
}

func (m *Migration) seedUser(username, email, password string, admin bool) error {
	var existing user.User
	err := m.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		m.logger.WithField("user_id", existing.ID).Debug("seed user already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	cost := m.config.Security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		u := user.User{
			Username: username,
			Email:    email,
			Password: string(hashedPassword),
			IsActive: true,
			IsAdmin:  admin,
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		if _, err := cart.GetOrCreate(tx, u.ID); err != nil {
			return err
		}
		m.logger.WithFields(logrus.Fields{"email": email, "admin": admin}).Info("created seed user")
		return nil
	})
}

type seedProduct struct {
	sku      string
	name     string
	price    string
	category string
	featured bool
	variants map[string]int // size name -> count
}

var seedProducts = []seedProduct{
	{sku: "TEE-CLASSIC", name: "Classic T-shirt", price: "19.90", category: "Clothing", featured: true,
		variants: map[string]int{"S": 10, "M": 20, "L": 15}},
	{sku: "HOODIE-ZIP", name: "Zip Hoodie", price: "49.00", category: "Clothing",
		variants: map[string]int{"M": 8, "L": 4}},
	{sku: "MUG-ENAMEL", name: "Enamel Mug", price: "12.50", category: "Home & Kitchen",
		variants: map[string]int{"": 40}},
	{sku: "BOOK-GO", name: "Practical Go", price: "39.99", category: "Books", featured: true,
		variants: map[string]int{"": 25}},
}

func (m *Migration) seedProducts() error {
	for _, sp := range seedProducts {
		var count int64
		if err := m.db.Unscoped().Model(&product.Product{}).Where("sku = ?", sp.sku).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			var category product.Category
			if err := tx.Where("name = ?", sp.category).First(&category).Error; err != nil {
				return err
			}

			slug := product.Slugify(sp.name)
			p := product.Product{
				SKU:        sp.sku,
				Name:       sp.name,
				Slug:       &slug,
				Price:      decimal.RequireFromString(sp.price),
				CategoryID: &category.ID,
				Status:     product.StatusPublished,
				IsFeatured: sp.featured,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}

			for sizeName, qty := range sp.variants {
				row := inventory.Inventory{ProductID: p.ID, Count: qty, IsActive: true, SKU: sp.sku}
				if sizeName != "" {
					var size product.Size
					if err := tx.Where("name = ?", sizeName).First(&size).Error; err != nil {
						return err
					}
					row.SizeID = &size.ID
					row.SKU = sp.sku + "-" + sizeName
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}

			_, err := inventory.RecalculateStock(tx, p.ID, m.config.Inventory.StockIncludesInactive)
			return err
		})
		if err != nil {
			m.logger.WithError(err).WithField("sku", sp.sku).Warn("failed to seed product")
			continue
		}
		m.logger.WithField("sku", sp.sku).Info("created seed product")
	}
	return nil
}

// GetTableInfo logs the row count of every table
func (m *Migration) GetTableInfo() error {
	tables, err := m.db.Migrator().GetTables()
	if err != nil {
		return err
	}

	var totalRecords int64
	for _, table := range tables {
		var count int64
		if err := m.db.Table(table).Count(&count).Error; err != nil {
			m.logger.WithError(err).WithField("table", table).Warn("failed to count table")
			continue
		}
		totalRecords += count
		m.logger.WithFields(logrus.Fields{"table": table, "records": count}).Info("table info")
	}

	m.logger.WithFields(logrus.Fields{
		"tables":  len(tables),
		"records": totalRecords,
	}).Info("database summary")
	return nil
}
