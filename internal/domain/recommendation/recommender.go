// internal/domain/recommendation/recommender.go
package recommendation

import (
	"sort"

	"github.com/your-org/storefront/internal/domain/product"
)

// CartSnapshot is the part of a cart the recommender looks at
type CartSnapshot struct {
	ProductIDs  map[uint]bool
	CategoryIDs map[uint]bool
}

// NewCartSnapshot builds a snapshot from cart products. Products without a
// category still count as "in the cart".
func NewCartSnapshot(products []product.Product) *CartSnapshot {
	snap := &CartSnapshot{
		ProductIDs:  make(map[uint]bool, len(products)),
		CategoryIDs: make(map[uint]bool),
	}
	for _, p := range products {
		snap.ProductIDs[p.ID] = true
		if p.CategoryID != nil {
			snap.CategoryIDs[*p.CategoryID] = true
		}
	}
	return snap
}

// IsEmpty reports whether the snapshot holds no products
func (c *CartSnapshot) IsEmpty() bool {
	return c == nil || len(c.ProductIDs) == 0
}

// Strategy selects candidates from the catalog in ranked order
type Strategy func(catalog []product.Product) []product.Product

// Chain runs strategies in order, collecting distinct products until limit is
// reached. Products in exclude are never returned.
func Chain(catalog []product.Product, limit int, exclude map[uint]bool, strategies ...Strategy) []product.Product {
	result := make([]product.Product, 0, limit)
	if limit <= 0 {
		return result
	}

	seen := make(map[uint]bool, len(exclude))
	for id := range exclude {
		seen[id] = true
	}

	for _, strategy := range strategies {
		for _, p := range strategy(catalog) {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			result = append(result, p)
			if len(result) == limit {
				return result
			}
		}
	}
	return result
}

// Recommend picks products for a shopper. With a non-empty cart it prefers
// popular products from the cart's categories and pads with globally popular
// ones; otherwise it returns the globally popular products. Cart products are
// excluded from both the category picks and the popular padding, so a
// shopper is never offered something already in the cart.
func Recommend(cart *CartSnapshot, catalog []product.Product, limit int) []product.Product {
	if cart.IsEmpty() {
		return Chain(catalog, limit, nil, ByPopularity)
	}
	return Chain(catalog, limit, cart.ProductIDs, InCategories(cart.CategoryIDs), ByPopularity)
}

// Related picks popular products sharing target's category. A target without
// a category falls back to popular products.
func Related(target product.Product, catalog []product.Product, limit int) []product.Product {
	exclude := map[uint]bool{target.ID: true}
	if target.CategoryID == nil {
		return Chain(catalog, limit, exclude, ByPopularity)
	}
	return Chain(catalog, limit, exclude, InCategories(map[uint]bool{*target.CategoryID: true}))
}

// Popular ranks published products by sales, then views
func Popular(catalog []product.Product, limit int) []product.Product {
	return Chain(catalog, limit, nil, ByPopularity)
}

// Featured returns featured products, newest first
func Featured(catalog []product.Product, limit int) []product.Product {
	return Chain(catalog, limit, nil, func(catalog []product.Product) []product.Product {
		var featured []product.Product
		for _, p := range ByNewest(catalog) {
			if p.IsFeatured {
				featured = append(featured, p)
			}
		}
		return featured
	})
}

// Newest returns the most recently created products
func Newest(catalog []product.Product, limit int) []product.Product {
	return Chain(catalog, limit, nil, ByNewest)
}

// ByPopularity orders published products by sales_count desc, view_count desc, id asc
func ByPopularity(catalog []product.Product) []product.Product {
	ranked := published(catalog)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.SalesCount != b.SalesCount {
			return a.SalesCount > b.SalesCount
		}
		if a.ViewCount != b.ViewCount {
			return a.ViewCount > b.ViewCount
		}
		return a.ID < b.ID
	})
	return ranked
}

// ByNewest orders published products by created_at desc, id asc
func ByNewest(catalog []product.Product) []product.Product {
	ranked := published(catalog)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// InCategories restricts the popularity ranking to the given categories
func InCategories(categoryIDs map[uint]bool) Strategy {
	return func(catalog []product.Product) []product.Product {
		var matched []product.Product
		for _, p := range ByPopularity(catalog) {
			if p.CategoryID != nil && categoryIDs[*p.CategoryID] {
				matched = append(matched, p)
			}
		}
		return matched
	}
}

func published(catalog []product.Product) []product.Product {
	out := make([]product.Product, 0, len(catalog))
	for _, p := range catalog {
		if p.IsPublished() {
			out = append(out, p)
		}
	}
	return out
}
