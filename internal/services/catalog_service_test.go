package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/models"
)

func createProduct(t *testing.T, db *gorm.DB, name, slug, sku string, active bool) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Slug: slug, SKU: sku, Price: 1000, IsActive: active}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestCatalogService_GetProduct(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	product := createProduct(t, f.db, "Oil filter", "oil-filter", "OF-100", true)

	byID, err := f.catalog.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)
	assert.Equal(t, product.ID, byID.ID)

	bySlug, err := f.catalog.GetProduct(ctx, "oil-filter")
	require.NoError(t, err)
	assert.Equal(t, product.ID, bySlug.ID)

	_, err = f.catalog.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("matches active products by name and sku", func(t *testing.T) {
		f := newAuthFixture(t)
		createProduct(t, f.db, "Oil filter", "oil-filter", "OF-100", true)
		createProduct(t, f.db, "Air filter", "air-filter", "AF-200", true)
		createProduct(t, f.db, "Old filter", "old-filter", "OLD-1", false)
		createProduct(t, f.db, "Brake pad", "brake-pad", "BP-300", true)

		result, err := f.catalog.Search(ctx, "FILTER", 0)
		require.NoError(t, err)
		assert.Len(t, result.Products, 2)

		result, err = f.catalog.Search(ctx, "bp-3", 0)
		require.NoError(t, err)
		require.Len(t, result.Products, 1)
		assert.Equal(t, "brake-pad", result.Products[0].Slug)

		result, err = f.catalog.Search(ctx, "filter", 1)
		require.NoError(t, err)
		assert.Len(t, result.Products, 1)
	})

	t.Run("short query returns nothing and is not recorded", func(t *testing.T) {
		f := newAuthFixture(t)
		createProduct(t, f.db, "Oil filter", "oil-filter", "OF-100", true)

		result, err := f.catalog.Search(ctx, "o", 0)
		require.NoError(t, err)
		assert.Empty(t, result.Products)

		var count int64
		require.NoError(t, f.db.Model(&models.SearchQuery{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("records lower-cased query counts", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.catalog.Search(ctx, "Oil", 0)
		require.NoError(t, err)
		_, err = f.catalog.Search(ctx, "oil", 0)
		require.NoError(t, err)
		_, err = f.catalog.Search(ctx, "brake", 0)
		require.NoError(t, err)

		var oil models.SearchQuery
		require.NoError(t, f.db.Where("query = ?", "oil").First(&oil).Error)
		assert.Equal(t, 2, oil.Count)

		var count int64
		require.NoError(t, f.db.Model(&models.SearchQuery{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})
}

func TestCatalogService_RecordProductView(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	product := createProduct(t, f.db, "Oil filter", "oil-filter", "OF-100", true)
	user := createUser(t, f.db, testPhone, models.RoleCustomer)
	anon, err := f.anon.GetOrCreate(ctx, "", RequestMeta{})
	require.NoError(t, err)

	f.catalog.RecordProductView(ProductViewEvent{
		ProductID:      product.ID,
		UserID:         &user.ID,
		AnonymousToken: anon.Token,
		Referrer:       "https://example.com/catalog",
	})
	f.catalog.RecordProductView(ProductViewEvent{ProductID: product.ID})

	var views []models.ProductView
	require.NoError(t, f.db.Where("product_id = ?", product.ID).Order("user_id DESC").Find(&views).Error)
	require.Len(t, views, 2)

	withUser := views[0]
	if withUser.UserID == nil {
		withUser = views[1]
	}
	require.NotNil(t, withUser.UserID)
	assert.Equal(t, user.ID, *withUser.UserID)
	require.NotNil(t, withUser.SessionID)
	assert.Equal(t, anon.SessionID, *withUser.SessionID)
	require.NotNil(t, withUser.Referrer)
	assert.Equal(t, "https://example.com/catalog", *withUser.Referrer)
	assert.Equal(t, "direct", withUser.Source)

	for _, err := range f.tasks.errs {
		assert.NoError(t, err)
	}
}
