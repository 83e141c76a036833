package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hazelbrook/storefront-backend/pkg/db/models"
)

const createProductsTable = `
CREATE TABLE products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	price_cents INTEGER NOT NULL,
	image TEXT,
	category TEXT NOT NULL,
	is_featured BOOLEAN NOT NULL DEFAULT FALSE,
	is_new BOOLEAN NOT NULL DEFAULT FALSE,
	in_stock BOOLEAN NOT NULL DEFAULT TRUE,
	variants TEXT,
	colors TEXT,
	details TEXT,
	created_at DATETIME,
	updated_at DATETIME
)`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(createProductsTable).Error)
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB, name, category string, priceCents int64, featured bool) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		Name:       name,
		PriceCents: priceCents,
		Category:   category,
		IsFeatured: featured,
		InStock:    true,
		Variants:   pq.StringArray{"S", "M"},
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func TestRepositoryListFiltersByCategoryAndFeatured(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seedProduct(t, conn, "Hoodie", "apparel", 5500, true)
	seedProduct(t, conn, "Tee", "apparel", 2500, false)
	seedProduct(t, conn, "Mug", "homeware", 1200, false)

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	apparel, err := repo.List(ctx, ListFilter{Category: "apparel"})
	require.NoError(t, err)
	require.Len(t, apparel, 2)

	featured := true
	highlighted, err := repo.List(ctx, ListFilter{Featured: &featured})
	require.NoError(t, err)
	require.Len(t, highlighted, 1)
	require.Equal(t, "Hoodie", highlighted[0].Name)
}

func TestRepositoryFindByID(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seeded := seedProduct(t, conn, "Hoodie", "apparel", 5500, false)

	found, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.Name, found.Name)
	require.Equal(t, seeded.PriceCents, found.PriceCents)
	require.Equal(t, pq.StringArray{"S", "M"}, found.Variants)

	_, err = repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
