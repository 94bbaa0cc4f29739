// internal/pkg/export/catalog.go
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/product"
	"gorm.io/gorm"
)

const (
	ProductsSheet  = "Products"
	InventorySheet = "Inventory"
	ContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout     = "2006-01-02 15:04:05"
)

var (
	productHeaders = []string{
		"ID", "SKU", "Name", "Category", "Price", "Stock", "Status", "Featured",
		"Views", "Sales", "CreatedAt", "UpdatedAt",
	}
	inventoryHeaders = []string{
		"ID", "ProductID", "ProductSKU", "SKU", "Color", "Size", "Count", "Price",
		"Active", "UpdatedAt",
	}
)

// CatalogExporter writes the catalog as an xlsx workbook
type CatalogExporter struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewCatalogExporter creates a new catalog exporter
func NewCatalogExporter(db *gorm.DB, logger *logrus.Logger) *CatalogExporter {
	return &CatalogExporter{db: db, logger: logger}
}

// Build loads products and inventory rows into a workbook
func (e *CatalogExporter) Build(ctx context.Context) (*xlsx.File, error) {
	db := e.db.WithContext(ctx)

	var products []product.Product
	if err := db.Preload("Category").Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	var rows []inventory.Inventory
	if err := db.Preload("Product").Preload("Color").Preload("Size").
		Order("product_id ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}

	file := xlsx.NewFile()
	if err := writeProducts(file, products); err != nil {
		return nil, err
	}
	if err := writeInventory(file, rows); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"products":  len(products),
		"inventory": len(rows),
	}).Info("catalog exported")

	return file, nil
}

// Write builds the workbook and streams it to w
func (e *CatalogExporter) Write(ctx context.Context, w io.Writer) error {
	file, err := e.Build(ctx)
	if err != nil {
		return err
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeProducts(file *xlsx.File, products []product.Product) error {
	sheet, err := file.AddSheet(ProductsSheet)
	if err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", ProductsSheet, err)
	}
	addHeader(sheet, productHeaders)

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(p.ID))
		row.AddCell().SetString(p.SKU)
		row.AddCell().SetString(p.Name)
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}
		row.AddCell().SetString(category)
		row.AddCell().SetString(p.Price.StringFixed(2))
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetString(string(p.Status))
		row.AddCell().SetBool(p.IsFeatured)
		row.AddCell().SetInt(p.ViewCount)
		row.AddCell().SetInt(p.SalesCount)
		row.AddCell().SetString(p.CreatedAt.Format(timeLayout))
		row.AddCell().SetString(p.UpdatedAt.Format(timeLayout))
	}
	return nil
}

func writeInventory(file *xlsx.File, rows []inventory.Inventory) error {
	sheet, err := file.AddSheet(InventorySheet)
	if err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", InventorySheet, err)
	}
	addHeader(sheet, inventoryHeaders)

	for i := range rows {
		inv := &rows[i]
		row := sheet.AddRow()
		row.AddCell().SetInt(int(inv.ID))
		row.AddCell().SetInt(int(inv.ProductID))

		productSKU := ""
		if inv.Product != nil {
			productSKU = inv.Product.SKU
		}
		row.AddCell().SetString(productSKU)
		row.AddCell().SetString(inv.SKU)

		color, size := "", ""
		if inv.Color != nil {
			color = inv.Color.Name
		}
		if inv.Size != nil {
			size = inv.Size.Name
		}
		row.AddCell().SetString(color)
		row.AddCell().SetString(size)
		row.AddCell().SetInt(inv.Count)

		// blank when the row inherits the product price
		price := ""
		if inv.Price.Valid {
			price = inv.Price.Decimal.StringFixed(2)
		}
		row.AddCell().SetString(price)
		row.AddCell().SetBool(inv.IsActive)
		row.AddCell().SetString(inv.UpdatedAt.Format(timeLayout))
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, headers []string) {
	row := sheet.AddRow()
	for _, h := range headers {
		row.AddCell().SetString(h)
	}
}
