package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/apperr"
	"github.com/korawit-s/thriftmarket/internal/logging"
	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/mykafka"
)

// transitions is the forward-only order lifecycle. Cancellation goes through
// Cancel (reason is mandatory) and the problem status is set only by the
// problem service, so neither appears as an UpdateStatus target here.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending: {models.OrderPaid},
	models.OrderPaid:    {models.OrderShipped},
	models.OrderShipped: {models.OrderDelivered},
}

var cancellable = map[models.OrderStatus]bool{
	models.OrderPending: true,
	models.OrderPaid:    true,
}

func canTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Service struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type CheckoutItem struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  uint `json:"quantity"`
}

// Checkout turns the client-held cart into an order. Everything runs in one
// transaction: stock is claimed with a conditional update per listing, so of
// two concurrent buyers exactly one commits and the other sees Conflict.
// A repeated submission with the same idempotency key returns the already
// created order instead of a duplicate.
func (s *Service) Checkout(ctx context.Context, buyerID uint, items []CheckoutItem, slipURL, idemKey string) (*models.Order, []models.OrderItem, error) {
	if len(items) == 0 {
		return nil, nil, apperr.E(apperr.ErrValidation, "no items in cart")
	}
	for _, it := range items {
		if it.Quantity > 1 {
			return nil, nil, apperr.E(apperr.ErrValidation, "listing %d is a single-unit item", it.ProductID)
		}
	}

	if idemKey != "" {
		var existing models.Order
		err := s.DB.WithContext(ctx).Where("idempotency_key = ?", idemKey).First(&existing).Error
		if err == nil {
			items, ierr := s.itemsOf(ctx, existing.ID)
			return &existing, items, ierr
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}

	var (
		order      models.Order
		orderItems []models.OrderItem
	)

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			total    float64
			sellerID uint
			products []models.Product
		)
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.E(apperr.ErrNotFound, "product %d not found", it.ProductID)
				}
				return err
			}
			if sellerID == 0 {
				sellerID = p.SellerID
			} else if sellerID != p.SellerID {
				return apperr.E(apperr.ErrValidation, "all items must belong to one seller")
			}
			total += p.Price
			products = append(products, p)
		}

		for _, p := range products {
			claim := tx.Model(&models.Product{}).
				Where("id = ? AND stock_quantity > 0", p.ID).
				Update("stock_quantity", 0)
			if claim.Error != nil {
				return claim.Error
			}
			if claim.RowsAffected == 0 {
				return apperr.E(apperr.ErrConflict, "insufficient stock for product %d", p.ID)
			}
		}

		order = models.Order{
			BuyerID:        buyerID,
			SellerID:       sellerID,
			TotalPrice:     total,
			Status:         models.OrderPending,
			PaymentSlipURL: slipURL,
			IdempotencyKey: idemKey,
			CreatedAt:      time.Now(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		orderItems = make([]models.OrderItem, 0, len(products))
		for _, p := range products {
			oi := models.OrderItem{
				OrderID:         order.ID,
				ProductID:       p.ID,
				Quantity:        1,
				PriceAtPurchase: p.Price,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			orderItems = append(orderItems, oi)
		}
		return nil
	})
	if txErr != nil {
		return nil, nil, txErr
	}

	s.publish(ctx, map[string]any{
		"type":    "order_created",
		"buyerID": buyerID,
		"orderID": order.ID,
		"total":   order.TotalPrice,
	})

	return &order, orderItems, nil
}

// UpdateStatus moves an order one step forward along the lifecycle. The
// update is conditional on the current status so two racing calls cannot
// both apply.
func (s *Service) UpdateStatus(ctx context.Context, sellerID, orderID uint, newStatus models.OrderStatus) (*models.Order, error) {
	switch newStatus {
	case models.OrderPaid, models.OrderShipped, models.OrderDelivered:
	case models.OrderCancelled:
		return nil, apperr.E(apperr.ErrValidation, "cancellation requires a reason, use the cancel endpoint")
	case models.OrderProblem:
		return nil, apperr.E(apperr.ErrValidation, "problem status is set by opening a dispute")
	default:
		return nil, apperr.E(apperr.ErrValidation, "unknown status %q", newStatus)
	}

	order, err := s.getForSeller(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}

	if !canTransition(order.Status, newStatus) {
		return nil, apperr.E(apperr.ErrConflict, "cannot change status from %s to %s", order.Status, newStatus)
	}

	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Update("status", newStatus)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.E(apperr.ErrConflict, "order %d changed concurrently", orderID)
	}
	order.Status = newStatus

	s.publish(ctx, map[string]any{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"status":  string(newStatus),
	})

	return order, nil
}

// Cancel is the only path into the cancelled status and always stores the
// seller's reason, which is surfaced back to the buyer.
func (s *Service) Cancel(ctx context.Context, sellerID, orderID uint, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, apperr.E(apperr.ErrValidation, "cancellation reason is required")
	}

	order, err := s.getForSeller(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}

	if !cancellable[order.Status] {
		return nil, apperr.E(apperr.ErrConflict, "cannot cancel order in status %s", order.Status)
	}

	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Updates(map[string]any{
			"status":              models.OrderCancelled,
			"cancellation_reason": reason,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.E(apperr.ErrConflict, "order %d changed concurrently", orderID)
	}
	order.Status = models.OrderCancelled
	order.CancellationReason = reason

	s.publish(ctx, map[string]any{
		"type":    "order_cancelled",
		"orderID": order.ID,
		"reason":  reason,
	})

	return order, nil
}

// MarkProblem flips a delivered order into the problem status. It runs on
// the caller's transaction so the problem row and the order status commit
// together.
func MarkProblem(tx *gorm.DB, orderID uint) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderDelivered).
		Update("status", models.OrderProblem)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.E(apperr.ErrConflict, "order %d is not in a delivered state", orderID)
	}
	return nil
}

func (s *Service) GetForBuyer(ctx context.Context, buyerID, orderID uint) (*models.Order, []models.OrderItem, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Where("id = ? AND buyer_id = ?", orderID, buyerID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.E(apperr.ErrNotFound, "order %d not found", orderID)
		}
		return nil, nil, err
	}
	items, err := s.itemsOf(ctx, order.ID)
	return &order, items, err
}

func (s *Service) GetForSeller(ctx context.Context, sellerID, orderID uint) (*models.Order, []models.OrderItem, error) {
	order, err := s.getForSeller(ctx, sellerID, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.itemsOf(ctx, order.ID)
	return order, items, err
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Where("buyer_id = ?", buyerID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *Service) ListBySeller(ctx context.Context, sellerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

type SellerStats struct {
	TotalOrders    int64   `json:"total_orders"`
	PendingOrders  int64   `json:"pending_orders"`
	ProblemOrders  int64   `json:"problem_orders"`
	ActiveListings int64   `json:"active_listings"`
	Revenue        float64 `json:"revenue"`
}

// Stats backs the seller dashboard: order counts plus revenue of delivered
// orders only.
func (s *Service) Stats(ctx context.Context, sellerID uint) (*SellerStats, error) {
	var stats SellerStats
	db := s.DB.WithContext(ctx)

	if err := db.Model(&models.Order{}).Where("seller_id = ?", sellerID).Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("seller_id = ? AND status = ?", sellerID, models.OrderPending).Count(&stats.PendingOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("seller_id = ? AND status = ?", sellerID, models.OrderProblem).Count(&stats.ProblemOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Product{}).Where("seller_id = ? AND stock_quantity > 0", sellerID).Count(&stats.ActiveListings).Error; err != nil {
		return nil, err
	}

	var revenue *float64
	if err := db.Model(&models.Order{}).
		Where("seller_id = ? AND status = ?", sellerID, models.OrderDelivered).
		Select("SUM(total_price)").Scan(&revenue).Error; err != nil {
		return nil, err
	}
	if revenue != nil {
		stats.Revenue = *revenue
	}
	return &stats, nil
}

type ReportRow struct {
	Status models.OrderStatus `json:"status"`
	Label  string             `json:"status_label"`
	Count  int64              `json:"count"`
	Total  float64            `json:"total"`
}

func (s *Service) SalesReport(ctx context.Context, sellerID uint) ([]ReportRow, error) {
	var raw []struct {
		Status models.OrderStatus
		Count  int64
		Total  float64
	}
	err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count, SUM(total_price) AS total").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&raw).Error
	if err != nil {
		return nil, err
	}

	rows := make([]ReportRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, ReportRow{Status: r.Status, Label: r.Status.Label(), Count: r.Count, Total: r.Total})
	}
	return rows, nil
}

func (s *Service) getForSeller(ctx context.Context, sellerID, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Where("id = ? AND seller_id = ?", orderID, sellerID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.E(apperr.ErrNotFound, "order %d not found", orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) itemsOf(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error
	return items, err
}

func (s *Service) publish(ctx context.Context, event map[string]any) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pubCtx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "error", err)
	}
}
