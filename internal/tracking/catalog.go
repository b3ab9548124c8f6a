package tracking

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

var (
	// ErrNotFound marks catalog rows that do not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict marks catalog writes that clash with existing rows.
	ErrConflict = errors.New("conflicting record")
)

// Blog statuses.
const (
	BlogDraft     = "draft"
	BlogPublished = "published"
)

// CategoryInput creates or replaces a category.
type CategoryInput struct {
	Name      string
	Slug      string
	CodeRange string
}

// BlogInput creates or replaces a blog.
type BlogInput struct {
	Title         string
	Slug          string
	Author        string
	Content       string
	FeaturedImage string
	CategoryID    *uint
	Status        string
}

// RelatedSearchInput creates or replaces a related search.
type RelatedSearchInput struct {
	SearchText   string
	Title        string
	CategoryID   uint
	DisplayOrder int
	IsActive     bool
}

// BlogFilter narrows ListBlogs. Zero values match everything.
type BlogFilter struct {
	CategoryID *uint
	Status     string
}

// ListCategories returns every category by name.
func ListCategories(db *gorm.DB) ([]Category, error) {
	var categories []Category
	if err := db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (in *CategoryInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.CodeRange = strings.TrimSpace(in.CodeRange)
	if in.Name == "" || in.Slug == "" {
		return fmt.Errorf("%w: name and slug are required", ErrInvalidInput)
	}
	return nil
}

// CreateCategory inserts a category. Slugs are unique.
func CreateCategory(dbManager cartridge.DBManager, logger *slog.Logger, in CategoryInput) (*Category, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	category := Category{Name: in.Name, Slug: in.Slug, CodeRange: in.CodeRange, CreatedAt: time.Now().UTC()}
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := ensureFree(tx, &Category{}, "slug", in.Slug, nil); err != nil {
			return err
		}
		return tx.Create(&category).Error
	})
	if err != nil {
		return nil, catalogError(logger, "create category", err)
	}
	return &category, nil
}

// UpdateCategory replaces the fields of category id.
func UpdateCategory(dbManager cartridge.DBManager, logger *slog.Logger, id uint, in CategoryInput) (*Category, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var category Category
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := tx.First(&category, id).Error; err != nil {
			return err
		}
		if err := ensureFree(tx, &Category{}, "slug", in.Slug, id); err != nil {
			return err
		}
		category.Name, category.Slug, category.CodeRange = in.Name, in.Slug, in.CodeRange
		return tx.Model(&Category{}).Where("id = ?", id).Updates(map[string]any{
			"name":       in.Name,
			"slug":       in.Slug,
			"code_range": in.CodeRange,
		}).Error
	})
	if err != nil {
		return nil, catalogError(logger, "update category", err)
	}
	return &category, nil
}

// DeleteCategory removes an unused category. Categories still referenced by
// blogs or related searches are kept and ErrConflict is returned.
func DeleteCategory(dbManager cartridge.DBManager, logger *slog.Logger, id uint) error {
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		var blogs, searches int64
		if err := tx.Model(&Blog{}).Where("category_id = ?", id).Count(&blogs).Error; err != nil {
			return err
		}
		if err := tx.Model(&RelatedSearch{}).Where("category_id = ?", id).Count(&searches).Error; err != nil {
			return err
		}
		if blogs+searches > 0 {
			return fmt.Errorf("%w: category %d is used by %d blogs and %d related searches", ErrConflict, id, blogs, searches)
		}
		return deleteOne(tx, &Category{}, id)
	})
	return catalogError(logger, "delete category", err)
}

// ListBlogs returns blogs newest first.
func ListBlogs(db *gorm.DB, filter BlogFilter) ([]Blog, error) {
	q := db.Order("created_at DESC")
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var blogs []Blog
	if err := q.Find(&blogs).Error; err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	return blogs, nil
}

func (in *BlogInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Author = strings.TrimSpace(in.Author)
	in.FeaturedImage = strings.TrimSpace(in.FeaturedImage)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = BlogDraft
	}
	if in.Title == "" || in.Slug == "" {
		return fmt.Errorf("%w: title and slug are required", ErrInvalidInput)
	}
	if in.Status != BlogDraft && in.Status != BlogPublished {
		return fmt.Errorf("%w: status must be %s or %s", ErrInvalidInput, BlogDraft, BlogPublished)
	}
	return nil
}

// CreateBlog inserts a blog. Published blogs get their publication time.
func CreateBlog(dbManager cartridge.DBManager, logger *slog.Logger, in BlogInput) (*Blog, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	blog := Blog{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Slug:          in.Slug,
		Author:        in.Author,
		Content:       in.Content,
		FeaturedImage: in.FeaturedImage,
		CategoryID:    in.CategoryID,
		Status:        in.Status,
		CreatedAt:     now,
	}
	if in.Status == BlogPublished {
		blog.PublishedAt = &now
	}
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := ensureCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if err := ensureFree(tx, &Blog{}, "slug", in.Slug, nil); err != nil {
			return err
		}
		var serial int
		if err := tx.Model(&Blog{}).Select("COALESCE(MAX(serial_number), 0)").Scan(&serial).Error; err != nil {
			return err
		}
		blog.SerialNumber = serial + 1
		return tx.Create(&blog).Error
	})
	if err != nil {
		return nil, catalogError(logger, "create blog", err)
	}
	return &blog, nil
}

// UpdateBlog replaces the fields of blog id. The publication time is set the
// first time the blog is published and kept afterwards.
func UpdateBlog(dbManager cartridge.DBManager, logger *slog.Logger, id string, in BlogInput) (*Blog, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var blog Blog
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := tx.First(&blog, "id = ?", id).Error; err != nil {
			return err
		}
		if err := ensureCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if err := ensureFree(tx, &Blog{}, "slug", in.Slug, id); err != nil {
			return err
		}

		blog.Title, blog.Slug, blog.Author = in.Title, in.Slug, in.Author
		blog.Content, blog.FeaturedImage = in.Content, in.FeaturedImage
		blog.CategoryID, blog.Status = in.CategoryID, in.Status
		if in.Status == BlogPublished && blog.PublishedAt == nil {
			now := time.Now().UTC()
			blog.PublishedAt = &now
		}
		return tx.Model(&Blog{}).Where("id = ?", id).Updates(map[string]any{
			"title":          blog.Title,
			"slug":           blog.Slug,
			"author":         blog.Author,
			"content":        blog.Content,
			"featured_image": blog.FeaturedImage,
			"category_id":    blog.CategoryID,
			"status":         blog.Status,
			"published_at":   blog.PublishedAt,
		}).Error
	})
	if err != nil {
		return nil, catalogError(logger, "update blog", err)
	}
	return &blog, nil
}

// DeleteBlog removes blog id. Recorded events keep their blog id and fall
// back to the click's own label.
func DeleteBlog(dbManager cartridge.DBManager, logger *slog.Logger, id string) error {
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		return deleteOne(tx, &Blog{}, id)
	})
	return catalogError(logger, "delete blog", err)
}

// ListRelatedSearches returns searches by display order, optionally limited
// to one category or to active rows.
func ListRelatedSearches(db *gorm.DB, categoryID *uint, activeOnly bool) ([]RelatedSearch, error) {
	q := db.Order("display_order ASC").Order("created_at ASC")
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var searches []RelatedSearch
	if err := q.Find(&searches).Error; err != nil {
		return nil, fmt.Errorf("list related searches: %w", err)
	}
	return searches, nil
}

func (in *RelatedSearchInput) normalize() error {
	in.SearchText = strings.TrimSpace(in.SearchText)
	in.Title = strings.TrimSpace(in.Title)
	if in.SearchText == "" || in.CategoryID == 0 {
		return fmt.Errorf("%w: category_id and search_text are required", ErrInvalidInput)
	}
	if in.DisplayOrder < 0 {
		return fmt.Errorf("%w: display_order must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateRelatedSearch inserts a related search under an existing category.
func CreateRelatedSearch(dbManager cartridge.DBManager, logger *slog.Logger, in RelatedSearchInput) (*RelatedSearch, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	search := RelatedSearch{
		ID:           uuid.NewString(),
		SearchText:   in.SearchText,
		Title:        in.Title,
		CategoryID:   in.CategoryID,
		DisplayOrder: in.DisplayOrder,
		IsActive:     in.IsActive,
		CreatedAt:    time.Now().UTC(),
	}
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := ensureCategory(tx, &in.CategoryID); err != nil {
			return err
		}
		// Select("*") writes is_active=false instead of the column default.
		return tx.Select("*").Create(&search).Error
	})
	if err != nil {
		return nil, catalogError(logger, "create related search", err)
	}
	return &search, nil
}

// UpdateRelatedSearch replaces the fields of related search id.
func UpdateRelatedSearch(dbManager cartridge.DBManager, logger *slog.Logger, id string, in RelatedSearchInput) (*RelatedSearch, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var search RelatedSearch
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := tx.First(&search, "id = ?", id).Error; err != nil {
			return err
		}
		if err := ensureCategory(tx, &in.CategoryID); err != nil {
			return err
		}
		search.SearchText, search.Title = in.SearchText, in.Title
		search.CategoryID, search.DisplayOrder, search.IsActive = in.CategoryID, in.DisplayOrder, in.IsActive
		return tx.Model(&RelatedSearch{}).Where("id = ?", id).Updates(map[string]any{
			"search_text":   search.SearchText,
			"title":         search.Title,
			"category_id":   search.CategoryID,
			"display_order": search.DisplayOrder,
			"is_active":     search.IsActive,
		}).Error
	})
	if err != nil {
		return nil, catalogError(logger, "update related search", err)
	}
	return &search, nil
}

// DeleteRelatedSearch removes related search id.
func DeleteRelatedSearch(dbManager cartridge.DBManager, logger *slog.Logger, id string) error {
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		return deleteOne(tx, &RelatedSearch{}, id)
	})
	return catalogError(logger, "delete related search", err)
}

// ensureFree fails with ErrConflict when another row than exceptID already
// holds value in column.
func ensureFree(tx *gorm.DB, model any, column, value string, exceptID any) error {
	q := tx.Model(model).Where(column+" = ?", value)
	if exceptID != nil {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s %q is taken", ErrConflict, column, value)
	}
	return nil
}

func ensureCategory(tx *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: category %d does not exist", ErrInvalidInput, *id)
	}
	return nil
}

func deleteOne(tx *gorm.DB, model any, id any) error {
	result := tx.Where("id = ?", id).Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// catalogError maps gorm's not-found to ErrNotFound and logs unexpected
// failures. Validation and conflict errors pass through unlogged.
func catalogError(logger *slog.Logger, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConflict):
		return err
	}
	logger.Error("Catalog write failed", slog.String("op", op), slog.Any("error", err))
	return fmt.Errorf("failed to %s: %w", op, err)
}
