package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/apperr"
	"github.com/korawit-s/thriftmarket/internal/config"
	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/mykafka"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newService(t *testing.T) *Service {
	return &Service{DB: initTestDB(t), Producer: &mykafka.Producer{}}
}

func seedListing(t *testing.T, db *gorm.DB, id, sellerID uint, price float64, stock uint) {
	t.Helper()
	p := models.Product{
		ID:            id,
		SellerID:      sellerID,
		Name:          "vintage denim jacket",
		Price:         price,
		StockQuantity: stock,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&p).Error)
}

func TestCheckoutCreatesOrderAndClaimsStock(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 42, 3, 500.00, 1)

	ord, items, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 42, Quantity: 1}}, "/uploads/slip.jpg", "")
	require.NoError(t, err)

	require.Equal(t, uint(7), ord.BuyerID)
	require.Equal(t, uint(3), ord.SellerID)
	require.Equal(t, 500.00, ord.TotalPrice)
	require.Equal(t, models.OrderPending, ord.Status)
	require.Equal(t, "/uploads/slip.jpg", ord.PaymentSlipURL)

	require.Len(t, items, 1)
	require.Equal(t, uint(42), items[0].ProductID)
	require.Equal(t, uint(1), items[0].Quantity)
	require.Equal(t, 500.00, items[0].PriceAtPurchase)

	var p models.Product
	require.NoError(t, svc.DB.First(&p, 42).Error)
	require.Equal(t, uint(0), p.StockQuantity)
}

func TestCheckoutSoldOutListing(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 1, 3, 250.00, 0)

	_, _, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 1}}, "/uploads/slip.jpg", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrConflict))

	var orders int64
	require.NoError(t, svc.DB.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
}

func TestCheckoutIsAtomic(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 1, 3, 100.00, 1)
	seedListing(t, svc.DB, 2, 3, 200.00, 0)

	_, _, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 1}, {ProductID: 2}}, "/uploads/slip.jpg", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrConflict))

	// nothing committed: no order, no items, stock of the in-stock listing intact
	var orders, items int64
	require.NoError(t, svc.DB.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, svc.DB.Model(&models.OrderItem{}).Count(&items).Error)
	require.Zero(t, orders)
	require.Zero(t, items)

	var p models.Product
	require.NoError(t, svc.DB.First(&p, 1).Error)
	require.Equal(t, uint(1), p.StockQuantity)
}

func TestCheckoutSecondBuyerLoses(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 5, 3, 300.00, 1)

	_, _, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 5}}, "/uploads/a.jpg", "")
	require.NoError(t, err)

	_, _, err = svc.Checkout(context.Background(), 8, []CheckoutItem{{ProductID: 5}}, "/uploads/b.jpg", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrConflict))

	var orders int64
	require.NoError(t, svc.DB.Model(&models.Order{}).Count(&orders).Error)
	require.EqualValues(t, 1, orders)
}

func TestCheckoutRejectsMixedSellers(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 1, 3, 100.00, 1)
	seedListing(t, svc.DB, 2, 4, 200.00, 1)

	_, _, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 1}, {ProductID: 2}}, "/uploads/slip.jpg", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 42, 3, 500.00, 1)

	first, _, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 42}}, "/uploads/slip.jpg", "key-123")
	require.NoError(t, err)

	// a client retry with the same key returns the same order, no duplicate
	second, items, err := svc.Checkout(context.Background(), 7, []CheckoutItem{{ProductID: 42}}, "/uploads/slip.jpg", "key-123")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, items, 1)

	var orders int64
	require.NoError(t, svc.DB.Model(&models.Order{}).Count(&orders).Error)
	require.EqualValues(t, 1, orders)
}

func seedOrder(t *testing.T, db *gorm.DB, sellerID uint, status models.OrderStatus) *models.Order {
	t.Helper()
	ord := models.Order{
		BuyerID:    7,
		SellerID:   sellerID,
		TotalPrice: 500.00,
		Status:     status,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, db.Create(&ord).Error)
	return &ord
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderPaid)

	updated, err := svc.UpdateStatus(context.Background(), 3, ord.ID, models.OrderShipped)
	require.NoError(t, err)
	require.Equal(t, models.OrderShipped, updated.Status)
	require.Equal(t, "จัดส่งแล้ว", updated.Status.Label())

	// moving backwards is an illegal transition
	_, err = svc.UpdateStatus(context.Background(), 3, ord.ID, models.OrderPaid)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestUpdateStatusRejectsSkips(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderPending)

	_, err := svc.UpdateStatus(context.Background(), 3, ord.ID, models.OrderDelivered)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestUpdateStatusRejectsReservedTargets(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderPending)

	_, err := svc.UpdateStatus(context.Background(), 3, ord.ID, models.OrderCancelled)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.UpdateStatus(context.Background(), 3, ord.ID, models.OrderProblem)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpdateStatusWrongSeller(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderPending)

	_, err := svc.UpdateStatus(context.Background(), 99, ord.ID, models.OrderPaid)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCancelStoresReason(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderPending)

	cancelled, err := svc.Cancel(context.Background(), 3, ord.ID, "สินค้าชำรุดก่อนจัดส่ง")
	require.NoError(t, err)
	require.Equal(t, models.OrderCancelled, cancelled.Status)
	require.Equal(t, "สินค้าชำรุดก่อนจัดส่ง", cancelled.CancellationReason)
}

func TestCancelRequiresReason(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderPending)

	_, err := svc.Cancel(context.Background(), 3, ord.ID, "")
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCancelAfterShipmentRejected(t *testing.T) {
	svc := newService(t)
	ord := seedOrder(t, svc.DB, 3, models.OrderShipped)

	_, err := svc.Cancel(context.Background(), 3, ord.ID, "changed my mind")
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestMarkProblemOnlyFromDelivered(t *testing.T) {
	svc := newService(t)
	delivered := seedOrder(t, svc.DB, 3, models.OrderDelivered)
	pending := seedOrder(t, svc.DB, 3, models.OrderPending)

	require.NoError(t, MarkProblem(svc.DB, delivered.ID))

	var reloaded models.Order
	require.NoError(t, svc.DB.First(&reloaded, delivered.ID).Error)
	require.Equal(t, models.OrderProblem, reloaded.Status)
	require.Equal(t, "มีปัญหา", reloaded.Status.Label())

	err := MarkProblem(svc.DB, pending.ID)
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestSellerStats(t *testing.T) {
	svc := newService(t)
	seedListing(t, svc.DB, 1, 3, 100.00, 1)
	seedListing(t, svc.DB, 2, 3, 100.00, 0)
	seedOrder(t, svc.DB, 3, models.OrderPending)
	delivered := seedOrder(t, svc.DB, 3, models.OrderDelivered)

	stats, err := svc.Stats(context.Background(), 3)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalOrders)
	require.EqualValues(t, 1, stats.PendingOrders)
	require.EqualValues(t, 1, stats.ActiveListings)
	require.Equal(t, delivered.TotalPrice, stats.Revenue)
}
