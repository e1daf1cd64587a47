package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/hash"
	"github.com/korawit-s/thriftmarket/internal/middleware/auth"
	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/service/order"
	"github.com/korawit-s/thriftmarket/internal/service/problem"
	"github.com/korawit-s/thriftmarket/internal/upload"
)

// UserHandler covers the buyer-side account, checkout and dispute routes.
type UserHandler struct {
	DB       *gorm.DB
	Orders   *order.Service
	Problems *problem.Service
	Uploads  *upload.Store
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	var user models.User
	if err := h.DB.First(&user, auth.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updates := map[string]any{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
	}
	if req.Address != "" {
		updates["address"] = req.Address
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if len(updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", auth.UserID(c)).Updates(updates).Error; err != nil {
		return err
	}
	return h.GetProfile(c)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, auth.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if !hash.CheckPassword(user.PasswordHash, req.OldPassword) {
		return echo.NewHTTPError(http.StatusForbidden, "wrong password")
	}

	newHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := h.DB.Model(&user).Update("password_hash", newHash).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

func (h *UserHandler) UploadProfileImage(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing image file")
	}

	path, err := h.Uploads.SaveImage(file)
	if err != nil {
		return err
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", auth.UserID(c)).Update("profile_image", path).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"profile_image": path})
}

type profileNameRequest struct {
	ProfileName string `json:"profile_name" validate:"required"`
}

// RequestProfileName stages a new display name into pending_profile_name;
// it only becomes visible after an admin approves it.
func (h *UserHandler) RequestProfileName(c echo.Context) error {
	var req profileNameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.DB.Model(&models.User{}).
		Where("id = ?", auth.UserID(c)).
		Update("pending_profile_name", req.ProfileName).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"pending_profile_name": req.ProfileName})
}

// Checkout accepts the client-held cart as multipart form data: an "items"
// JSON array, the payment slip image and an optional Idempotency-Key header.
func (h *UserHandler) Checkout(c echo.Context) error {
	itemsField := c.FormValue("items")
	if itemsField == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing items")
	}

	var items []order.CheckoutItem
	if err := json.Unmarshal([]byte(itemsField), &items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid items payload")
	}

	slipURL := ""
	if file, err := c.FormFile("slip"); err == nil {
		slipURL, err = h.Uploads.SaveImage(file)
		if err != nil {
			return err
		}
	} else {
		return echo.NewHTTPError(http.StatusBadRequest, "missing payment slip")
	}

	idemKey := c.Request().Header.Get("Idempotency-Key")

	ord, orderItems, err := h.Orders.Checkout(c.Request().Context(), auth.UserID(c), items, slipURL, idemKey)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, orderResponse(ord, orderItems))
}

func (h *UserHandler) ListOrders(c echo.Context) error {
	orders, err := h.Orders.ListByBuyer(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderListResponse(orders))
}

func (h *UserHandler) GetOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ord, items, err := h.Orders.GetForBuyer(c.Request().Context(), auth.UserID(c), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderResponse(ord, items))
}

// CreateProblem opens a dispute thread: multipart with type, description,
// order/product ids and an optional evidence image.
func (h *UserHandler) CreateProblem(c echo.Context) error {
	orderID, err := strconv.Atoi(c.FormValue("order_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	productID, err := strconv.Atoi(c.FormValue("product_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	problemType := c.FormValue("problem_type")
	description := c.FormValue("description")

	evidenceURL := ""
	if file, ferr := c.FormFile("evidence"); ferr == nil {
		evidenceURL, err = h.Uploads.SaveImage(file)
		if err != nil {
			return err
		}
	}

	prob, err := h.Problems.Create(c.Request().Context(), auth.UserID(c), uint(orderID), uint(productID), problemType, description, evidenceURL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, problemResponse(prob))
}

func (h *UserHandler) ListProblems(c echo.Context) error {
	probs, err := h.Problems.ListByBuyer(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, problemListResponse(probs))
}

func (h *UserHandler) GetProblem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	prob, msgs, err := h.Problems.Get(c.Request().Context(), uint(id), auth.UserID(c), auth.UserRole(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"problem":  problemResponse(prob),
		"messages": msgs,
	})
}

type problemMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

func (h *UserHandler) PostProblemMessage(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req problemMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg, err := h.Problems.PostMessage(c.Request().Context(), uint(id), auth.UserID(c), auth.UserRole(c), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *UserHandler) CloseProblem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	prob, err := h.Problems.Close(c.Request().Context(), uint(id), auth.UserID(c), auth.UserRole(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, problemResponse(prob))
}

// Shared response shaping: stored statuses are English keys, the Thai label
// rides along for display.

func orderResponse(o *models.Order, items []models.OrderItem) echo.Map {
	resp := echo.Map{
		"id":               o.ID,
		"buyer_id":         o.BuyerID,
		"seller_id":        o.SellerID,
		"total_price":      o.TotalPrice,
		"status":           o.Status,
		"status_label":     o.Status.Label(),
		"payment_slip_url": o.PaymentSlipURL,
		"created_at":       o.CreatedAt.Format(time.RFC3339),
	}
	if o.CancellationReason != "" {
		resp["cancellation_reason"] = o.CancellationReason
	}
	if items != nil {
		resp["items"] = items
	}
	return resp
}

func orderListResponse(orders []models.Order) []echo.Map {
	out := make([]echo.Map, 0, len(orders))
	for i := range orders {
		out = append(out, orderResponse(&orders[i], nil))
	}
	return out
}

func problemResponse(p *models.Problem) echo.Map {
	return echo.Map{
		"id":           p.ID,
		"order_id":     p.OrderID,
		"product_id":   p.ProductID,
		"buyer_id":     p.BuyerID,
		"seller_id":    p.SellerID,
		"problem_type": p.ProblemType,
		"description":  p.Description,
		"evidence_url": p.EvidenceURL,
		"status":       p.Status,
		"status_label": p.Status.Label(),
		"created_at":   p.CreatedAt.Format(time.RFC3339),
	}
}

func problemListResponse(probs []models.Problem) []echo.Map {
	out := make([]echo.Map, 0, len(probs))
	for i := range probs {
		out = append(out, problemResponse(&probs[i]))
	}
	return out
}
