package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finboard/internal/errors"
	"finboard/internal/models"
	"finboard/internal/pagination"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category. Categories form a two-level tree:
// a parent must itself be top-level.
func (s *categoryService) CreateCategory(
	userID string,
	name string,
	categoryType models.CategoryType,
	description string,
	icon string,
	color string,
	parentID *string,
) (*models.Category, error) {
	// Validate input
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	// Check if a category with the same name already exists for this user
	var count int64
	if err := s.db.Model(&models.Category{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if count > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
	}

	// If parentID is provided, check that it exists, belongs to the user,
	// and is not itself a subcategory (depth is capped at two levels).
	if parentID != nil {
		var parent models.Category
		if err := s.db.Where("id = ? AND user_id = ?", *parentID, userID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if parent.ParentID != nil {
			return nil, apperrors.ErrCategoryDepth
		}
	}

	// Create category
	category := &models.Category{
		UserID:      userID,
		Name:        name,
		Type:        categoryType,
		Description: description,
		Icon:        icon,
		Color:       color,
		ParentID:    parentID,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Category{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Preload("Children").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetUserCategoriesByType retrieves a paginated list of categories of a specific type for a user.
func (s *categoryService) GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Category{}).Where("user_id = ? AND type = ?", userID, categoryType)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Preload("Children").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// GetSubcategories returns the direct children of a category. One level is
// all the tree has.
func (s *categoryService) GetSubcategories(userID, categoryID string) ([]models.Category, error) {
	if _, err := s.GetCategoryByID(userID, categoryID); err != nil {
		return nil, err
	}

	var children []models.Category
	if err := s.db.Where("parent_id = ? AND user_id = ?", categoryID, userID).Find(&children).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return children, nil
}

// UpdateCategory updates an existing category
func (s *categoryService) UpdateCategory(
	userID string,
	categoryID string,
	name string,
	description string,
	icon string,
	color string,
	parentID *string,
) (*models.Category, error) {
	// Get the category
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	// If parentID is provided, check that it exists, belongs to the user,
	// is not the category itself, and is not itself a subcategory.
	if parentID != nil && *parentID != "" {
		if *parentID == categoryID {
			return nil, apperrors.ErrSelfParentCategory
		}

		var parent models.Category
		if err := s.db.Where("id = ? AND user_id = ?", *parentID, userID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if parent.ParentID != nil {
			return nil, apperrors.ErrCategoryDepth
		}

		// A category that has children cannot become a child itself.
		var childCount int64
		if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if childCount > 0 {
			return nil, apperrors.ErrCategoryHasChildren
		}
	}

	// Update fields if provided
	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
	}
	if description != "" {
		updates["description"] = description
	}
	if icon != "" {
		updates["icon"] = icon
	}
	if color != "" {
		updates["color"] = color
	}
	if parentID != nil {
		updates["parent_id"] = parentID
	}

	// Apply updates if any
	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory deletes a category
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	// Get the category to ensure it exists and belongs to the user
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return err
	}

	// Check if there are any child categories
	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	// A category referenced by a budget cannot be removed out from under it.
	var budgetCount int64
	if err := s.db.Model(&models.Budget{}).Where("category_id = ?", categoryID).Count(&budgetCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if budgetCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	// Soft-delete the category. Existing transactions keep their category_id
	// reference to the soft-deleted category for historical records.
	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
