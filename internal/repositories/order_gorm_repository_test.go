package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testDB opens a fresh in-memory SQLite database named after the test so
// parallel tests never see each other's rows.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))
	return db
}

func sampleOrder(userID string, createdAt time.Time) *models.Order {
	return &models.Order{
		UserID: userID,
		OrderItems: []models.OrderItem{
			{ProductID: "prod-1", Name: "Linen Shirt", Price: 45.0, Quantity: 2},
			{ProductID: "prod-2", Name: "Canvas Tote", Price: 25.0, Quantity: 1},
		},
		ShippingAddress: models.ShippingAddress{
			FullName:   "Ada Lovelace",
			Address:    "1 Analytical Way",
			City:       "London",
			PostalCode: "NW1",
			Country:    "UK",
		},
		PaymentMethod: "PayPal",
		ItemsPrice:    115.0,
		ShippingPrice: 0,
		TaxPrice:      17.25,
		TotalPrice:    132.25,
		CreatedAt:     createdAt,
	}
}

func TestGORMOrderRepository_CreateAndGetByID(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(testDB(t))
	ctx := context.Background()

	order := sampleOrder("user-1", time.Time{})
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID, "Create assigns an id")
	assert.False(t, order.CreatedAt.IsZero(), "Create stamps creation time")

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, 132.25, got.TotalPrice)
	assert.Equal(t, "Ada Lovelace", got.ShippingAddress.FullName)
	require.Len(t, got.OrderItems, 2)
	assert.Equal(t, "prod-1", got.OrderItems[0].ProductID)
	assert.Equal(t, 45.0, got.OrderItems[0].Price)
	assert.False(t, got.IsPaid)
	assert.Nil(t, got.PaidAt)
}

func TestGORMOrderRepository_GetByIDNotFound(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(testDB(t))

	_, err := repo.GetByID(context.Background(), "no-such-order")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMOrderRepository_GetByUserIDNewestFirst(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(testDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	oldest := sampleOrder("user-1", base)
	middle := sampleOrder("user-1", base.Add(10*time.Minute))
	newest := sampleOrder("user-1", base.Add(20*time.Minute))
	other := sampleOrder("user-2", base.Add(30*time.Minute))
	for _, o := range []*models.Order{oldest, middle, newest, other} {
		require.NoError(t, repo.Create(ctx, o))
	}

	orders, err := repo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, newest.ID, orders[0].ID)
	assert.Equal(t, middle.ID, orders[1].ID)
	assert.Equal(t, oldest.ID, orders[2].ID)
	assert.Len(t, orders[0].OrderItems, 2, "items come back preloaded")

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, other.ID, all[0].ID)
}

func TestGORMOrderRepository_MarkPaidOnce(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(testDB(t))
	ctx := context.Background()

	order := sampleOrder("user-1", time.Time{})
	require.NoError(t, repo.Create(ctx, order))

	result := models.PaymentResult{ID: "pp-1", Status: "COMPLETED", PayerEmail: "ada@example.com"}
	paidAt := time.Now()

	updated, err := repo.MarkPaid(ctx, order.ID, result, paidAt)
	require.NoError(t, err)
	assert.True(t, updated, "first confirmation transitions the order")

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, result, got.PaymentResult)

	// Replay with a different payment result is a no-op.
	updated, err = repo.MarkPaid(ctx, order.ID, models.PaymentResult{ID: "pp-2"}, time.Now())
	require.NoError(t, err)
	assert.False(t, updated)

	got, err = repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pp-1", got.PaymentResult.ID, "replay never overwrites the recorded payment")
}

func TestGORMOrderRepository_MarkPaidUnknownOrder(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(testDB(t))

	_, err := repo.MarkPaid(context.Background(), "no-such-order", models.PaymentResult{ID: "pp-1"}, time.Now())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMOrderRepository_MarkDeliveredRequiresPayment(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(testDB(t))
	ctx := context.Background()

	order := sampleOrder("user-1", time.Time{})
	require.NoError(t, repo.Create(ctx, order))

	// Unpaid orders never transition to delivered.
	updated, err := repo.MarkDelivered(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, updated)

	_, err = repo.MarkPaid(ctx, order.ID, models.PaymentResult{ID: "pp-1", Status: "COMPLETED"}, time.Now())
	require.NoError(t, err)

	updated, err = repo.MarkDelivered(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, updated)

	// Repeat delivery is a no-op, same as repeat payment.
	updated, err = repo.MarkDelivered(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, updated)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDelivered)
	require.NotNil(t, got.DeliveredAt)
}

func TestGORMProductRepository_DecrementStock(t *testing.T) {
	db := testDB(t)
	repo := repositories.NewGORMProductRepository(db)
	ctx := context.Background()

	product := &models.Product{Name: "Wool Sweater", Price: 80.0, Stock: 3}
	require.NoError(t, repo.Create(ctx, product))

	ok, err := repo.DecrementStock(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	// More than the remaining stock leaves the row untouched.
	ok, err = repo.DecrementStock(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	ok, err = repo.DecrementStock(ctx, product.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}
