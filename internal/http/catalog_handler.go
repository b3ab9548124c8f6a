package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"topicmingle/internal/tracking"
)

type categoryParams struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CodeRange string `json:"code_range"`
}

type blogParams struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Author        string `json:"author"`
	Content       string `json:"content"`
	FeaturedImage string `json:"featured_image"`
	CategoryID    *uint  `json:"category_id"`
	Status        string `json:"status"`
}

// relatedSearchParams leaves IsActive nil when omitted; new searches are
// active by default.
type relatedSearchParams struct {
	SearchText   string `json:"search_text"`
	Title        string `json:"title"`
	CategoryID   uint   `json:"category_id"`
	DisplayOrder int    `json:"display_order"`
	IsActive     *bool  `json:"is_active"`
}

type categoryView struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CodeRange string    `json:"code_range,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type blogView struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Author        string     `json:"author,omitempty"`
	Content       string     `json:"content,omitempty"`
	FeaturedImage string     `json:"featured_image,omitempty"`
	CategoryID    *uint      `json:"category_id"`
	SerialNumber  int        `json:"serial_number"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

type relatedSearchView struct {
	ID           string    `json:"id"`
	SearchText   string    `json:"search_text"`
	Title        string    `json:"title,omitempty"`
	CategoryID   uint      `json:"category_id"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func presentCategory(c tracking.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Slug: c.Slug, CodeRange: c.CodeRange, CreatedAt: c.CreatedAt}
}

func presentBlog(b tracking.Blog) blogView {
	return blogView{
		ID:            b.ID,
		Title:         b.Title,
		Slug:          b.Slug,
		Author:        b.Author,
		Content:       b.Content,
		FeaturedImage: b.FeaturedImage,
		CategoryID:    b.CategoryID,
		SerialNumber:  b.SerialNumber,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
		PublishedAt:   b.PublishedAt,
	}
}

func presentRelatedSearch(rs tracking.RelatedSearch) relatedSearchView {
	return relatedSearchView{
		ID:           rs.ID,
		SearchText:   rs.SearchText,
		Title:        rs.Title,
		CategoryID:   rs.CategoryID,
		DisplayOrder: rs.DisplayOrder,
		IsActive:     rs.IsActive,
		CreatedAt:    rs.CreatedAt,
	}
}

// === CATEGORIES ===

func ListCategoriesAction(ctx *cartridge.Context) error {
	categories, err := tracking.ListCategories(ctx.DB())
	if err != nil {
		return catalogFailure(ctx, err)
	}
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, presentCategory(c))
	}
	return ctx.JSON(fiber.Map{"categories": out})
}

func CreateCategoryAction(ctx *cartridge.Context) error {
	var params categoryParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	category, err := tracking.CreateCategory(ctx.DBManager, ctx.Logger, tracking.CategoryInput(params))
	if err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(presentCategory(*category))
}

func UpdateCategoryAction(ctx *cartridge.Context) error {
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category id"})
	}
	var params categoryParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	category, err := tracking.UpdateCategory(ctx.DBManager, ctx.Logger, uint(id), tracking.CategoryInput(params))
	if err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.JSON(presentCategory(*category))
}

func DeleteCategoryAction(ctx *cartridge.Context) error {
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category id"})
	}
	if err := tracking.DeleteCategory(ctx.DBManager, ctx.Logger, uint(id)); err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// === BLOGS ===

// ListBlogsAction lists blogs newest first, filtered by ?category_id= and ?status=.
func ListBlogsAction(ctx *cartridge.Context) error {
	var filter tracking.BlogFilter
	if raw := ctx.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category id"})
		}
		categoryID := uint(id)
		filter.CategoryID = &categoryID
	}
	filter.Status = ctx.Query("status")

	blogs, err := tracking.ListBlogs(ctx.DB(), filter)
	if err != nil {
		return catalogFailure(ctx, err)
	}
	out := make([]blogView, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, presentBlog(b))
	}
	return ctx.JSON(fiber.Map{"blogs": out})
}

func CreateBlogAction(ctx *cartridge.Context) error {
	var params blogParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	blog, err := tracking.CreateBlog(ctx.DBManager, ctx.Logger, tracking.BlogInput(params))
	if err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(presentBlog(*blog))
}

func UpdateBlogAction(ctx *cartridge.Context) error {
	var params blogParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	blog, err := tracking.UpdateBlog(ctx.DBManager, ctx.Logger, ctx.Params("id"), tracking.BlogInput(params))
	if err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.JSON(presentBlog(*blog))
}

func DeleteBlogAction(ctx *cartridge.Context) error {
	if err := tracking.DeleteBlog(ctx.DBManager, ctx.Logger, ctx.Params("id")); err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// === RELATED SEARCHES ===

// ListRelatedSearchesAction lists searches by display order, filtered by
// ?category_id= and ?active=true.
func ListRelatedSearchesAction(ctx *cartridge.Context) error {
	var categoryID *uint
	if raw := ctx.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category id"})
		}
		cid := uint(id)
		categoryID = &cid
	}

	searches, err := tracking.ListRelatedSearches(ctx.DB(), categoryID, ctx.QueryBool("active"))
	if err != nil {
		return catalogFailure(ctx, err)
	}
	out := make([]relatedSearchView, 0, len(searches))
	for _, rs := range searches {
		out = append(out, presentRelatedSearch(rs))
	}
	return ctx.JSON(fiber.Map{"related_searches": out})
}

func CreateRelatedSearchAction(ctx *cartridge.Context) error {
	var params relatedSearchParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	search, err := tracking.CreateRelatedSearch(ctx.DBManager, ctx.Logger, params.input())
	if err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(presentRelatedSearch(*search))
}

func UpdateRelatedSearchAction(ctx *cartridge.Context) error {
	var params relatedSearchParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	search, err := tracking.UpdateRelatedSearch(ctx.DBManager, ctx.Logger, ctx.Params("id"), params.input())
	if err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.JSON(presentRelatedSearch(*search))
}

func DeleteRelatedSearchAction(ctx *cartridge.Context) error {
	if err := tracking.DeleteRelatedSearch(ctx.DBManager, ctx.Logger, ctx.Params("id")); err != nil {
		return catalogFailure(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (p relatedSearchParams) input() tracking.RelatedSearchInput {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return tracking.RelatedSearchInput{
		SearchText:   p.SearchText,
		Title:        p.Title,
		CategoryID:   p.CategoryID,
		DisplayOrder: p.DisplayOrder,
		IsActive:     active,
	}
}

func catalogFailure(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, tracking.ErrInvalidInput):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, tracking.ErrNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, tracking.ErrConflict):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Catalog operation failed"})
}
