package problem

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
	"github.com/korawit-s/thriftmarket/internal/service/order"
)

type Service struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// Create opens a dispute against a delivered order. The problem row and the
// parent order's switch to the problem status commit in one transaction.
func (s *Service) Create(ctx context.Context, buyerID, orderID, productID uint, problemType, description, evidenceURL string) (*models.Problem, error) {
	if problemType == "" || description == "" {
		return nil, apperr.E(apperr.ErrValidation, "problem type and description are required")
	}

	var prob models.Problem

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		if err := tx.Where("id = ? AND buyer_id = ?", orderID, buyerID).First(&ord).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.E(apperr.ErrNotFound, "order %d not found", orderID)
			}
			return err
		}
		if ord.Status != models.OrderDelivered {
			return apperr.E(apperr.ErrConflict, "order %d is not delivered yet", orderID)
		}

		var item models.OrderItem
		if err := tx.Where("order_id = ? AND product_id = ?", orderID, productID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.E(apperr.ErrValidation, "product %d is not part of order %d", productID, orderID)
			}
			return err
		}

		prob = models.Problem{
			OrderID:     orderID,
			ProductID:   productID,
			BuyerID:     buyerID,
			SellerID:    ord.SellerID,
			ProblemType: problemType,
			Description: description,
			EvidenceURL: evidenceURL,
			Status:      models.ProblemOpen,
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(&prob).Error; err != nil {
			return err
		}

		return order.MarkProblem(tx, orderID)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, map[string]any{
		"type":      "problem_created",
		"problemID": prob.ID,
		"orderID":   orderID,
		"buyerID":   buyerID,
	})

	return &prob, nil
}

// PostMessage appends to the thread. A seller message flips the problem to
// seller_replied; a closed thread rejects writes from either side.
func (s *Service) PostMessage(ctx context.Context, problemID, userID uint, role models.Role, text string) (*models.ProblemMessage, error) {
	if text == "" {
		return nil, apperr.E(apperr.ErrValidation, "message text is required")
	}

	var msg models.ProblemMessage

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prob, err := s.getParticipant(tx, problemID, userID, role)
		if err != nil {
			return err
		}
		if prob.Status == models.ProblemClosed {
			return apperr.E(apperr.ErrConflict, "problem %d is closed", problemID)
		}

		msg = models.ProblemMessage{
			ProblemID:   problemID,
			SenderRole:  role,
			MessageText: text,
			SentAt:      time.Now(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		if role == models.RoleSeller && prob.Status != models.ProblemSellerReplied {
			if err := tx.Model(&models.Problem{}).
				Where("id = ?", problemID).
				Update("status", models.ProblemSellerReplied).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, map[string]any{
		"type":      "problem_message_posted",
		"problemID": problemID,
		"sender":    string(role),
	})

	return &msg, nil
}

// Close is terminal for both parties; no reopen path exists.
func (s *Service) Close(ctx context.Context, problemID, userID uint, role models.Role) (*models.Problem, error) {
	var prob *models.Problem

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		prob, err = s.getParticipant(tx, problemID, userID, role)
		if err != nil {
			return err
		}
		if prob.Status == models.ProblemClosed {
			return apperr.E(apperr.ErrConflict, "problem %d is already closed", problemID)
		}

		res := tx.Model(&models.Problem{}).
			Where("id = ? AND status <> ?", problemID, models.ProblemClosed).
			Update("status", models.ProblemClosed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.E(apperr.ErrConflict, "problem %d is already closed", problemID)
		}
		prob.Status = models.ProblemClosed
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, map[string]any{
		"type":      "problem_closed",
		"problemID": problemID,
		"closed_by": string(role),
	})

	return prob, nil
}

func (s *Service) Get(ctx context.Context, problemID, userID uint, role models.Role) (*models.Problem, []models.ProblemMessage, error) {
	prob, err := s.getParticipant(s.DB.WithContext(ctx), problemID, userID, role)
	if err != nil {
		return nil, nil, err
	}

	var msgs []models.ProblemMessage
	if err := s.DB.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Order("sent_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, nil, err
	}
	return prob, msgs, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID uint) ([]models.Problem, error) {
	var probs []models.Problem
	err := s.DB.WithContext(ctx).Where("buyer_id = ?", buyerID).Order("created_at DESC").Find(&probs).Error
	return probs, err
}

func (s *Service) ListBySeller(ctx context.Context, sellerID uint) ([]models.Problem, error) {
	var probs []models.Problem
	err := s.DB.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&probs).Error
	return probs, err
}

// getParticipant loads the problem and checks the caller is one of the two
// parties (or an admin reading a complaint).
func (s *Service) getParticipant(db *gorm.DB, problemID, userID uint, role models.Role) (*models.Problem, error) {
	var prob models.Problem
	if err := db.First(&prob, problemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.E(apperr.ErrNotFound, "problem %d not found", problemID)
		}
		return nil, err
	}

	switch role {
	case models.RoleBuyer:
		if prob.BuyerID != userID {
			return nil, apperr.E(apperr.ErrForbidden, "not a participant of problem %d", problemID)
		}
	case models.RoleSeller:
		if prob.SellerID != userID {
			return nil, apperr.E(apperr.ErrForbidden, "not a participant of problem %d", problemID)
		}
	case models.RoleAdmin:
	default:
		return nil, apperr.E(apperr.ErrForbidden, "not a participant of problem %d", problemID)
	}
	return &prob, nil
}

func (s *Service) publish(ctx context.Context, event map[string]any) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pubCtx, "problem_events", fmt.Sprint(event["problemID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "error", err)
	}
}
