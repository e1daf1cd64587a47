package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/service/problem"
	"github.com/korawit-s/thriftmarket/internal/service/warning"
	"github.com/korawit-s/thriftmarket/internal/upload"
)

// AdminHandler covers moderation: seller approval, bans, warnings, appeals
// and the profile-name approval flow.
type AdminHandler struct {
	DB       *gorm.DB
	Warnings *warning.Service
	Problems *problem.Service
	Uploads  *upload.Store
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	query := h.DB.Model(&models.User{})
	if role := c.QueryParam("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) loadSeller(c echo.Context) (*models.User, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var seller models.User
	if err := h.DB.Where("id = ? AND role = ?", id, models.RoleSeller).First(&seller).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "seller not found")
	}
	return &seller, nil
}

func (h *AdminHandler) ApproveSeller(c echo.Context) error {
	seller, err := h.loadSeller(c)
	if err != nil {
		return err
	}
	if seller.Status != models.UserPending {
		return echo.NewHTTPError(http.StatusConflict, "seller is not pending approval")
	}
	if err := h.DB.Model(seller).Update("status", models.UserApproved).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": seller.ID, "status": models.UserApproved})
}

func (h *AdminHandler) RejectSeller(c echo.Context) error {
	seller, err := h.loadSeller(c)
	if err != nil {
		return err
	}
	if seller.Status != models.UserPending {
		return echo.NewHTTPError(http.StatusConflict, "seller is not pending approval")
	}
	if err := h.DB.Model(seller).Update("status", models.UserRejected).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": seller.ID, "status": models.UserRejected})
}

func (h *AdminHandler) BanSeller(c echo.Context) error {
	seller, err := h.loadSeller(c)
	if err != nil {
		return err
	}
	if err := h.DB.Model(seller).Update("status", models.UserBanned).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": seller.ID, "status": models.UserBanned})
}

func (h *AdminHandler) UnbanSeller(c echo.Context) error {
	seller, err := h.loadSeller(c)
	if err != nil {
		return err
	}
	if seller.Status != models.UserBanned {
		return echo.NewHTTPError(http.StatusConflict, "seller is not banned")
	}
	if err := h.DB.Model(seller).Updates(map[string]any{
		"status":          models.UserApproved,
		"ban_recommended": false,
	}).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": seller.ID, "status": models.UserApproved})
}

// ListBannedSellers is a query-level filter, not a client-side one.
func (h *AdminHandler) ListBannedSellers(c echo.Context) error {
	var sellers []models.User
	if err := h.DB.Where("role = ? AND status = ?", models.RoleSeller, models.UserBanned).
		Order("created_at DESC").Find(&sellers).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sellers)
}

// ApproveProfileName completes the two-phase rename: copies the pending name
// into profile_name and clears the request.
func (h *AdminHandler) ApproveProfileName(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if user.PendingProfileName == "" {
		return echo.NewHTTPError(http.StatusConflict, "no pending profile name")
	}

	if err := h.DB.Model(&user).Updates(map[string]any{
		"profile_name":         user.PendingProfileName,
		"pending_profile_name": "",
	}).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": user.ID, "profile_name": user.PendingProfileName})
}

type cancelProfileNameRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *AdminHandler) CancelProfileName(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req cancelProfileNameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if user.PendingProfileName == "" {
		return echo.NewHTTPError(http.StatusConflict, "no pending profile name")
	}

	if err := h.DB.Model(&user).Update("pending_profile_name", "").Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": user.ID, "message": "profile name change cancelled", "reason": req.Reason})
}

type issueWarningRequest struct {
	SellerID  uint   `json:"seller_id" validate:"required"`
	ProblemID uint   `json:"problem_id"`
	Message   string `json:"message" validate:"required"`
}

func (h *AdminHandler) IssueWarning(c echo.Context) error {
	var req issueWarningRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	w, err := h.Warnings.Issue(c.Request().Context(), req.SellerID, req.ProblemID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *AdminHandler) ListWarnings(c echo.Context) error {
	if sellerParam := c.QueryParam("seller_id"); sellerParam != "" {
		id, err := strconv.Atoi(sellerParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid seller_id")
		}
		ws, err := h.Warnings.ListForSeller(c.Request().Context(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ws)
	}

	ws, err := h.Warnings.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

func (h *AdminHandler) ListAppeals(c echo.Context) error {
	ws, err := h.Warnings.ListPendingAppeals(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

type resolveAppealRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *AdminHandler) ResolveAppeal(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req resolveAppealRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	w, err := h.Warnings.ResolveAppeal(c.Request().Context(), uint(id), req.Approve, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

// ListComplaints shows every dispute to the moderation view, newest first.
func (h *AdminHandler) ListComplaints(c echo.Context) error {
	var probs []models.Problem
	if err := h.DB.Order("created_at DESC").Find(&probs).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, problemListResponse(probs))
}

func (h *AdminHandler) Counts(c echo.Context) error {
	var users, products, orders, openProblems int64

	if err := h.DB.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if err := h.DB.Model(&models.Product{}).Count(&products).Error; err != nil {
		return err
	}
	if err := h.DB.Model(&models.Order{}).Count(&orders).Error; err != nil {
		return err
	}
	if err := h.DB.Model(&models.Problem{}).Where("status <> ?", models.ProblemClosed).Count(&openProblems).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users":         users,
		"products":      products,
		"orders":        orders,
		"open_problems": openProblems,
	})
}
