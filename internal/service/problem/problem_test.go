package problem

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

func newService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return &Service{DB: db, Producer: &mykafka.Producer{}}
}

func seedDeliveredOrder(t *testing.T, db *gorm.DB, buyerID, sellerID, productID uint) *models.Order {
	t.Helper()
	ord := models.Order{
		BuyerID:    buyerID,
		SellerID:   sellerID,
		TotalPrice: 500.00,
		Status:     models.OrderDelivered,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, db.Create(&ord).Error)
	item := models.OrderItem{OrderID: ord.ID, ProductID: productID, Quantity: 1, PriceAtPurchase: 500.00}
	require.NoError(t, db.Create(&item).Error)
	return &ord
}

func TestCreateFlipsOrderStatus(t *testing.T) {
	svc := newService(t)
	ord := seedDeliveredOrder(t, svc.DB, 7, 3, 42)

	prob, err := svc.Create(context.Background(), 7, ord.ID, 42, "damaged", "jacket arrived torn", "/uploads/ev.jpg")
	require.NoError(t, err)
	require.Equal(t, models.ProblemOpen, prob.Status)
	require.Equal(t, uint(3), prob.SellerID)

	var reloaded models.Order
	require.NoError(t, svc.DB.First(&reloaded, ord.ID).Error)
	require.Equal(t, models.OrderProblem, reloaded.Status)
}

func TestCreateRequiresDeliveredOrder(t *testing.T) {
	svc := newService(t)
	ord := seedDeliveredOrder(t, svc.DB, 7, 3, 42)
	require.NoError(t, svc.DB.Model(&models.Order{}).Where("id = ?", ord.ID).Update("status", models.OrderShipped).Error)

	_, err := svc.Create(context.Background(), 7, ord.ID, 42, "damaged", "not here yet", "")
	require.True(t, errors.Is(err, apperr.ErrConflict))

	// and the failed attempt must not leave a problem row behind
	var count int64
	require.NoError(t, svc.DB.Model(&models.Problem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateRejectsForeignProduct(t *testing.T) {
	svc := newService(t)
	ord := seedDeliveredOrder(t, svc.DB, 7, 3, 42)

	_, err := svc.Create(context.Background(), 7, ord.ID, 999, "damaged", "wrong product", "")
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreateRejectsForeignOrder(t *testing.T) {
	svc := newService(t)
	ord := seedDeliveredOrder(t, svc.DB, 7, 3, 42)

	_, err := svc.Create(context.Background(), 8, ord.ID, 42, "damaged", "not my order", "")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func openProblem(t *testing.T, svc *Service) *models.Problem {
	t.Helper()
	ord := seedDeliveredOrder(t, svc.DB, 7, 3, 42)
	prob, err := svc.Create(context.Background(), 7, ord.ID, 42, "damaged", "jacket arrived torn", "")
	require.NoError(t, err)
	return prob
}

func TestSellerReplyFlipsStatus(t *testing.T) {
	svc := newService(t)
	prob := openProblem(t, svc)

	// buyer messages keep the thread open
	_, err := svc.PostMessage(context.Background(), prob.ID, 7, models.RoleBuyer, "any update?")
	require.NoError(t, err)

	var p models.Problem
	require.NoError(t, svc.DB.First(&p, prob.ID).Error)
	require.Equal(t, models.ProblemOpen, p.Status)

	_, err = svc.PostMessage(context.Background(), prob.ID, 3, models.RoleSeller, "sending a replacement")
	require.NoError(t, err)

	require.NoError(t, svc.DB.First(&p, prob.ID).Error)
	require.Equal(t, models.ProblemSellerReplied, p.Status)
}

func TestThreadOrdering(t *testing.T) {
	svc := newService(t)
	prob := openProblem(t, svc)

	_, err := svc.PostMessage(context.Background(), prob.ID, 7, models.RoleBuyer, "first")
	require.NoError(t, err)
	_, err = svc.PostMessage(context.Background(), prob.ID, 3, models.RoleSeller, "second")
	require.NoError(t, err)

	_, msgs, err := svc.Get(context.Background(), prob.ID, 7, models.RoleBuyer)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].MessageText)
	require.Equal(t, "second", msgs[1].MessageText)
}

func TestClosedThreadRejectsMessages(t *testing.T) {
	svc := newService(t)
	prob := openProblem(t, svc)

	closed, err := svc.Close(context.Background(), prob.ID, 3, models.RoleSeller)
	require.NoError(t, err)
	require.Equal(t, models.ProblemClosed, closed.Status)

	_, err = svc.PostMessage(context.Background(), prob.ID, 7, models.RoleBuyer, "hello?")
	require.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = svc.PostMessage(context.Background(), prob.ID, 3, models.RoleSeller, "hello?")
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestCloseIsTerminal(t *testing.T) {
	svc := newService(t)
	prob := openProblem(t, svc)

	_, err := svc.Close(context.Background(), prob.ID, 7, models.RoleBuyer)
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), prob.ID, 3, models.RoleSeller)
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestNonParticipantForbidden(t *testing.T) {
	svc := newService(t)
	prob := openProblem(t, svc)

	_, err := svc.PostMessage(context.Background(), prob.ID, 99, models.RoleBuyer, "let me in")
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	_, _, err = svc.Get(context.Background(), prob.ID, 99, models.RoleSeller)
	require.True(t, errors.Is(err, apperr.ErrForbidden))
}
