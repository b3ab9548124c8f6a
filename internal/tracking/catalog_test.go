package tracking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmingle/internal/testsupport"
	"topicmingle/internal/tracking"
)

func TestCategoryLifecycle(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	careers, err := tracking.CreateCategory(dbManager, logger, tracking.CategoryInput{Name: " Careers ", Slug: "Careers"})
	require.NoError(t, err)
	assert.Equal(t, "Careers", careers.Name)
	assert.Equal(t, "careers", careers.Slug)

	_, err = tracking.CreateCategory(dbManager, logger, tracking.CategoryInput{Name: "Jobs", Slug: "careers"})
	assert.ErrorIs(t, err, tracking.ErrConflict)

	_, err = tracking.CreateCategory(dbManager, logger, tracking.CategoryInput{Name: "No slug"})
	assert.ErrorIs(t, err, tracking.ErrInvalidInput)

	renamed, err := tracking.UpdateCategory(dbManager, logger, careers.ID, tracking.CategoryInput{Name: "Work", Slug: "careers", CodeRange: "100-199"})
	require.NoError(t, err)
	assert.Equal(t, "Work", renamed.Name)

	_, err = tracking.UpdateCategory(dbManager, logger, 999, tracking.CategoryInput{Name: "x", Slug: "x"})
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	_, err = tracking.CreateRelatedSearch(dbManager, logger, tracking.RelatedSearchInput{SearchText: "Remote Jobs", CategoryID: careers.ID, IsActive: true})
	require.NoError(t, err)
	assert.ErrorIs(t, tracking.DeleteCategory(dbManager, logger, careers.ID), tracking.ErrConflict, "category still in use")

	unused, err := tracking.CreateCategory(dbManager, logger, tracking.CategoryInput{Name: "Finance", Slug: "finance"})
	require.NoError(t, err)
	require.NoError(t, tracking.DeleteCategory(dbManager, logger, unused.ID))
	assert.ErrorIs(t, tracking.DeleteCategory(dbManager, logger, unused.ID), tracking.ErrNotFound)

	categories, err := tracking.ListCategories(db)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Work", categories[0].Name)
}

func TestBlogLifecycle(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	category, err := tracking.CreateCategory(dbManager, logger, tracking.CategoryInput{Name: "Careers", Slug: "careers"})
	require.NoError(t, err)

	draft, err := tracking.CreateBlog(dbManager, logger, tracking.BlogInput{Title: "Ten Tips", Slug: "ten-tips", CategoryID: &category.ID})
	require.NoError(t, err)
	assert.Equal(t, tracking.BlogDraft, draft.Status)
	assert.Nil(t, draft.PublishedAt)
	assert.Equal(t, 1, draft.SerialNumber)

	second, err := tracking.CreateBlog(dbManager, logger, tracking.BlogInput{Title: "Five Facts", Slug: "five-facts", Status: "published"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.SerialNumber)
	require.NotNil(t, second.PublishedAt)

	_, err = tracking.CreateBlog(dbManager, logger, tracking.BlogInput{Title: "Copy", Slug: "ten-tips"})
	assert.ErrorIs(t, err, tracking.ErrConflict)

	missing := uint(42)
	_, err = tracking.CreateBlog(dbManager, logger, tracking.BlogInput{Title: "Orphan", Slug: "orphan", CategoryID: &missing})
	assert.ErrorIs(t, err, tracking.ErrInvalidInput)

	_, err = tracking.CreateBlog(dbManager, logger, tracking.BlogInput{Title: "Odd", Slug: "odd", Status: "archived"})
	assert.ErrorIs(t, err, tracking.ErrInvalidInput)

	published, err := tracking.UpdateBlog(dbManager, logger, draft.ID, tracking.BlogInput{
		Title:      "Ten Better Tips",
		Slug:       "ten-tips",
		CategoryID: &category.ID,
		Status:     tracking.BlogPublished,
	})
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)

	var stored tracking.Blog
	require.NoError(t, db.First(&stored, "id = ?", draft.ID).Error)
	assert.Equal(t, "Ten Better Tips", stored.Title)
	assert.Equal(t, tracking.BlogPublished, stored.Status)

	inCategory, err := tracking.ListBlogs(db, tracking.BlogFilter{CategoryID: &category.ID})
	require.NoError(t, err)
	require.Len(t, inCategory, 1)
	assert.Equal(t, draft.ID, inCategory[0].ID)

	require.NoError(t, tracking.DeleteBlog(dbManager, logger, second.ID))
	assert.ErrorIs(t, tracking.DeleteBlog(dbManager, logger, second.ID), tracking.ErrNotFound)
	_, err = tracking.UpdateBlog(dbManager, logger, second.ID, tracking.BlogInput{Title: "Gone", Slug: "gone"})
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestRelatedSearchLifecycle(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	category, err := tracking.CreateCategory(dbManager, logger, tracking.CategoryInput{Name: "Careers", Slug: "careers"})
	require.NoError(t, err)

	second, err := tracking.CreateRelatedSearch(dbManager, logger, tracking.RelatedSearchInput{
		SearchText: "Remote Jobs", CategoryID: category.ID, DisplayOrder: 2, IsActive: true,
	})
	require.NoError(t, err)
	first, err := tracking.CreateRelatedSearch(dbManager, logger, tracking.RelatedSearchInput{
		SearchText: "Part Time Jobs", CategoryID: category.ID, DisplayOrder: 1, IsActive: false,
	})
	require.NoError(t, err)

	_, err = tracking.CreateRelatedSearch(dbManager, logger, tracking.RelatedSearchInput{SearchText: "No category"})
	assert.ErrorIs(t, err, tracking.ErrInvalidInput)

	all, err := tracking.ListRelatedSearches(db, &category.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "ordered by display order")
	assert.False(t, all[0].IsActive, "inactive flag is stored")

	active, err := tracking.ListRelatedSearches(db, nil, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	updated, err := tracking.UpdateRelatedSearch(dbManager, logger, first.ID, tracking.RelatedSearchInput{
		SearchText: "Part Time Work", CategoryID: category.ID, DisplayOrder: 3, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Part Time Work", updated.SearchText)

	labels, err := tracking.ListRelatedSearches(db, nil, true)
	require.NoError(t, err)
	assert.Len(t, labels, 2)

	require.NoError(t, tracking.DeleteRelatedSearch(dbManager, logger, second.ID))
	assert.ErrorIs(t, tracking.DeleteRelatedSearch(dbManager, logger, second.ID), tracking.ErrNotFound)
}
