package warning

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

// Strikes are counted over a rolling six-month window; warnings whose appeal
// was approved drop out of the count.
const strikeWindow = 6

type Service struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// Issue records an admin strike against a seller and applies the suspension
// policy in the same transaction: first strike suspends selling for 7 days,
// second for one month, third flags the account for a permanent ban. The ban
// itself stays a separate manual admin action.
func (s *Service) Issue(ctx context.Context, sellerID, problemID uint, message string) (*models.Warning, error) {
	if message == "" {
		return nil, apperr.E(apperr.ErrValidation, "warning message is required")
	}

	var w models.Warning

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seller models.User
		if err := tx.Where("id = ? AND role = ?", sellerID, models.RoleSeller).First(&seller).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.E(apperr.ErrNotFound, "seller %d not found", sellerID)
			}
			return err
		}

		recent, err := recentCount(tx, sellerID)
		if err != nil {
			return err
		}
		count := recent + 1
		if count > 3 {
			count = 3
		}

		w = models.Warning{
			SellerID:     sellerID,
			ProblemID:    problemID,
			Message:      message,
			WarningCount: count,
			CreatedAt:    time.Now(),
		}
		if err := tx.Create(&w).Error; err != nil {
			return err
		}

		return applySuspension(tx, &seller, count)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, map[string]any{
		"type":      "warning_issued",
		"warningID": w.ID,
		"sellerID":  sellerID,
		"count":     w.WarningCount,
	})

	return &w, nil
}

func applySuspension(tx *gorm.DB, seller *models.User, count uint) error {
	updates := map[string]any{}
	now := time.Now()

	switch {
	case count >= 3:
		updates["ban_recommended"] = true
	case count == 2:
		until := now.AddDate(0, 1, 0)
		updates["suspended_until"] = &until
	case count == 1:
		until := now.AddDate(0, 0, 7)
		updates["suspended_until"] = &until
	}

	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.User{}).Where("id = ?", seller.ID).Updates(updates).Error
}

// SubmitAppeal is single-shot: once appeal_status is set the warning can
// never be appealed again, regardless of outcome.
func (s *Service) SubmitAppeal(ctx context.Context, warningID, sellerID uint, details string) (*models.Warning, error) {
	if details == "" {
		return nil, apperr.E(apperr.ErrValidation, "appeal details are required")
	}

	var w models.Warning
	if err := s.DB.WithContext(ctx).Where("id = ? AND seller_id = ?", warningID, sellerID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.E(apperr.ErrNotFound, "warning %d not found", warningID)
		}
		return nil, err
	}
	if w.AppealStatus != models.AppealNone {
		return nil, apperr.E(apperr.ErrConflict, "warning %d was already appealed", warningID)
	}

	res := s.DB.WithContext(ctx).Model(&models.Warning{}).
		Where("id = ? AND (appeal_status IS NULL OR appeal_status = '')", warningID).
		Updates(map[string]any{
			"appeal_status":  models.AppealPending,
			"appeal_details": details,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.E(apperr.ErrConflict, "warning %d was already appealed", warningID)
	}
	w.AppealStatus = models.AppealPending
	w.AppealDetails = details

	s.publish(ctx, map[string]any{
		"type":      "appeal_submitted",
		"warningID": warningID,
		"sellerID":  sellerID,
	})

	return &w, nil
}

// ResolveAppeal settles a pending appeal. Rejection requires a reason for
// the seller; approval re-runs the suspension policy without the cleared
// strike so the seller's suspension reflects the remaining warnings.
func (s *Service) ResolveAppeal(ctx context.Context, warningID uint, approve bool, reason string) (*models.Warning, error) {
	if !approve && reason == "" {
		return nil, apperr.E(apperr.ErrValidation, "rejection reason is required")
	}

	var w models.Warning

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&w, warningID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.E(apperr.ErrNotFound, "warning %d not found", warningID)
			}
			return err
		}
		if w.AppealStatus != models.AppealPending {
			return apperr.E(apperr.ErrConflict, "warning %d has no pending appeal", warningID)
		}

		status := models.AppealRejected
		if approve {
			status = models.AppealApproved
		}
		updates := map[string]any{"appeal_status": status}
		if !approve {
			updates["reject_reason"] = reason
		}
		if err := tx.Model(&models.Warning{}).Where("id = ?", warningID).Updates(updates).Error; err != nil {
			return err
		}
		w.AppealStatus = status
		w.RejectReason = reason

		if approve {
			return reevaluate(tx, w.SellerID)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publish(ctx, map[string]any{
		"type":      "appeal_resolved",
		"warningID": warningID,
		"approved":  approve,
	})

	return &w, nil
}

// reevaluate recomputes the seller's suspension after a strike was cleared.
func reevaluate(tx *gorm.DB, sellerID uint) error {
	count, err := recentCount(tx, sellerID)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"suspended_until": nil,
		"ban_recommended": false,
	}
	now := time.Now()
	switch {
	case count >= 3:
		updates["ban_recommended"] = true
	case count == 2:
		until := now.AddDate(0, 1, 0)
		updates["suspended_until"] = &until
	case count == 1:
		until := now.AddDate(0, 0, 7)
		updates["suspended_until"] = &until
	}
	return tx.Model(&models.User{}).Where("id = ?", sellerID).Updates(updates).Error
}

func recentCount(tx *gorm.DB, sellerID uint) (uint, error) {
	cutoff := time.Now().AddDate(0, -strikeWindow, 0)
	var n int64
	err := tx.Model(&models.Warning{}).
		Where("seller_id = ? AND created_at >= ? AND appeal_status <> ?", sellerID, cutoff, models.AppealApproved).
		Count(&n).Error
	return uint(n), err
}

// RecentCount is the rolling-window strike count surfaced to the seller
// dashboard together with its Thai risk label.
func (s *Service) RecentCount(ctx context.Context, sellerID uint) (uint, string, error) {
	n, err := recentCount(s.DB.WithContext(ctx), sellerID)
	if err != nil {
		return 0, "", err
	}
	return n, models.RiskLabel(n), nil
}

func (s *Service) ListForSeller(ctx context.Context, sellerID uint) ([]models.Warning, error) {
	var ws []models.Warning
	err := s.DB.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&ws).Error
	return ws, err
}

func (s *Service) ListAll(ctx context.Context) ([]models.Warning, error) {
	var ws []models.Warning
	err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&ws).Error
	return ws, err
}

func (s *Service) ListPendingAppeals(ctx context.Context) ([]models.Warning, error) {
	var ws []models.Warning
	err := s.DB.WithContext(ctx).Where("appeal_status = ?", models.AppealPending).Order("created_at ASC").Find(&ws).Error
	return ws, err
}

func (s *Service) publish(ctx context.Context, event map[string]any) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pubCtx, "warning_events", fmt.Sprint(event["warningID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "error", err)
	}
}
