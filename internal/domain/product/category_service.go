// internal/domain/product/category_service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"gorm.io/gorm"
)

// CategoryService handles category business logic
type CategoryService struct {
	db     *gorm.DB
	config *config.Config
}

// NewCategoryService creates a new category service
func NewCategoryService(db *gorm.DB, cfg *config.Config) *CategoryService {
	return &CategoryService{
		db:     db,
		config: cfg,
	}
}

// CategoryCreateRequest represents category creation data
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	ParentID    *uint  `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// CategoryUpdateRequest represents category update data
type CategoryUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	ParentID    *uint   `json:"parent_id"`
	MakeRoot    bool    `json:"make_root"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

// CategoryTree represents hierarchical category structure
type CategoryTree struct {
	Category
	Children []CategoryTree `json:"children"`
}

// GetCategories retrieves all categories with optional filtering
func (s *CategoryService) GetCategories(ctx context.Context, includeInactive bool) ([]Category, error) {
	var categories []Category

	query := s.db.WithContext(ctx).Model(&Category{}).
		Order("sort_order ASC, name ASC")

	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	return categories, nil
}

// GetCategoryTree retrieves categories in hierarchical tree structure.
// Children of an excluded (inactive) category are not reachable from the roots.
func (s *CategoryService) GetCategoryTree(ctx context.Context, includeInactive bool) ([]CategoryTree, error) {
	categories, err := s.GetCategories(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	return BuildTree(categories), nil
}

// BuildTree arranges a flat, ordered category list into a forest
func BuildTree(categories []Category) []CategoryTree {
	byParent := make(map[uint][]Category)
	present := make(map[uint]bool, len(categories))
	for _, cat := range categories {
		present[cat.ID] = true
	}

	var roots []Category
	for _, cat := range categories {
		if cat.ParentID == nil {
			roots = append(roots, cat)
			continue
		}
		if present[*cat.ParentID] {
			byParent[*cat.ParentID] = append(byParent[*cat.ParentID], cat)
		}
	}

	var build func(cat Category) CategoryTree
	build = func(cat Category) CategoryTree {
		node := CategoryTree{Category: cat, Children: []CategoryTree{}}
		for _, child := range byParent[cat.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	tree := make([]CategoryTree, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, build(root))
	}
	return tree
}

// GetCategory retrieves a single category by ID
func (s *CategoryService) GetCategory(ctx context.Context, id uint) (*Category, error) {
	var category Category
	result := s.db.WithContext(ctx).
		Preload("Parent").
		Where("id = ?", id).
		First(&category)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("category")
		}
		return nil, fmt.Errorf("failed to retrieve category: %w", result.Error)
	}

	return &category, nil
}

// CreateCategory creates a new category
func (s *CategoryService) CreateCategory(ctx context.Context, req *CategoryCreateRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	if req.ParentID != nil {
		if _, err := s.GetCategory(ctx, *req.ParentID); err != nil {
			if apperr.IsCode(err, apperr.CodeNotFound) {
				return nil, apperr.Validation("parent category not found")
			}
			return nil, err
		}
	}

	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	category := Category{
		Name:        name,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortOrder:   req.SortOrder,
		IsActive:    isActive,
	}

	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return s.GetCategory(ctx, category.ID)
}

// UpdateCategory updates an existing category. Re-parenting that would make the
// category its own ancestor is rejected without changing anything.
func (s *CategoryService) UpdateCategory(ctx context.Context, id uint, req *CategoryUpdateRequest) (*Category, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if req.MakeRoot {
		updates["parent_id"] = nil
	} else if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, apperr.Validation("category cannot be its own parent")
		}

		if _, err := s.GetCategory(ctx, *req.ParentID); err != nil {
			if apperr.IsCode(err, apperr.CodeNotFound) {
				return nil, apperr.Validation("parent category not found")
			}
			return nil, err
		}

		circular, err := s.isCircularReference(ctx, id, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if circular {
			return nil, apperr.Validation("circular reference detected")
		}
		updates["parent_id"] = *req.ParentID
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&Category{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update category: %w", err)
		}
	}

	return s.GetCategory(ctx, id)
}

// DeleteCategory removes a category together with its descendants. Products in
// any removed category keep existing with no category.
func (s *CategoryService) DeleteCategory(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var all []Category
		if err := tx.Select("id", "parent_id").Find(&all).Error; err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}

		ids := descendantsOf(id, all)
		if len(ids) == 0 {
			return apperr.NotFound("category")
		}

		if err := tx.Unscoped().Model(&Product{}).
			Where("category_id IN ?", ids).
			UpdateColumn("category_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach products: %w", err)
		}

		if err := tx.Where("id IN ?", ids).Delete(&Category{}).Error; err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	})
}

// descendantsOf returns id and every category below it, or nil when id is unknown
func descendantsOf(id uint, all []Category) []uint {
	children := make(map[uint][]uint)
	found := false
	for _, c := range all {
		if c.ID == id {
			found = true
		}
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	if !found {
		return nil
	}

	seen := map[uint]bool{id: true}
	result := []uint{id}
	for i := 0; i < len(result); i++ {
		for _, child := range children[result[i]] {
			if !seen[child] {
				seen[child] = true
				result = append(result, child)
			}
		}
	}
	return result
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name string, excludeID uint) error {
	var count int64
	query := s.db.WithContext(ctx).Model(&Category{}).Where("name = ?", name)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category name: %w", err)
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("category %s already exists", name))
	}
	return nil
}

// isCircularReference checks if making parentID the parent of categoryID would create a circular reference
func (s *CategoryService) isCircularReference(ctx context.Context, categoryID, parentID uint) (bool, error) {
	ancestors, err := s.getAncestors(ctx, parentID)
	if err != nil {
		return false, err
	}

	for _, ancestor := range ancestors {
		if ancestor == categoryID {
			return true, nil
		}
	}

	return false, nil
}

// getAncestors returns parentID followed by every ancestor above it
func (s *CategoryService) getAncestors(ctx context.Context, categoryID uint) ([]uint, error) {
	ancestors := []uint{categoryID}
	seen := map[uint]bool{categoryID: true}
	currentID := categoryID

	for {
		var category Category
		err := s.db.WithContext(ctx).Select("id", "parent_id").Where("id = ?", currentID).First(&category).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, fmt.Errorf("failed to walk category ancestry: %w", err)
		}
		if category.ParentID == nil || seen[*category.ParentID] {
			break
		}

		seen[*category.ParentID] = true
		ancestors = append(ancestors, *category.ParentID)
		currentID = *category.ParentID
	}

	return ancestors, nil
}
