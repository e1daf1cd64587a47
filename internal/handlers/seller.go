package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/middleware/auth"
	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/mykafka"
	"github.com/korawit-s/thriftmarket/internal/service/order"
	"github.com/korawit-s/thriftmarket/internal/service/problem"
	"github.com/korawit-s/thriftmarket/internal/service/search"
	"github.com/korawit-s/thriftmarket/internal/service/warning"
	"github.com/korawit-s/thriftmarket/internal/upload"
)

const maxProductImages = 5

// SellerHandler serves everything behind the seller role guard: listing
// management, order fulfilment, dispute replies and the warning/appeal view.
type SellerHandler struct {
	DB       *gorm.DB
	Orders   *order.Service
	Problems *problem.Service
	Warnings *warning.Service
	Uploads  *upload.Store
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

// requireActiveSeller blocks pending, suspended and ban-flagged sellers from
// mutating their shop. Reads stay allowed so a suspended seller can still
// see orders and warnings.
func (h *SellerHandler) requireActiveSeller(c echo.Context) (*models.User, error) {
	var seller models.User
	if err := h.DB.First(&seller, auth.UserID(c)).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "seller not found")
	}
	if seller.Status != models.UserApproved {
		return nil, echo.NewHTTPError(http.StatusForbidden, "seller account is not approved")
	}
	if seller.SuspendedUntil != nil && seller.SuspendedUntil.After(time.Now()) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "selling is suspended until "+seller.SuspendedUntil.Format(time.RFC3339))
	}
	return &seller, nil
}

func (h *SellerHandler) ListProducts(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Where("seller_id = ?", auth.UserID(c)).Order("created_at DESC").Find(&products).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

// CreateProduct takes a multipart form: listing fields plus up to 5 images as
// image1..image5. Stock is forced to 1, every listing is a unique item.
func (h *SellerHandler) CreateProduct(c echo.Context) error {
	seller, err := h.requireActiveSeller(c)
	if err != nil {
		return err
	}

	name := c.FormValue("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product name is required")
	}
	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil || price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid price")
	}
	categoryID, _ := strconv.Atoi(c.FormValue("category_id"))

	product := models.Product{
		SellerID:      seller.ID,
		Name:          name,
		Description:   c.FormValue("description"),
		Price:         price,
		CategoryID:    uint(categoryID),
		StockQuantity: 1,
		Size:          c.FormValue("size"),
		Chest:         c.FormValue("chest"),
		Waist:         c.FormValue("waist"),
		Hip:           c.FormValue("hip"),
		Length:        c.FormValue("length"),
		CreatedAt:     time.Now(),
	}

	for pos := 1; pos <= maxProductImages; pos++ {
		file, ferr := c.FormFile(fmt.Sprintf("image%d", pos))
		if ferr != nil {
			continue
		}
		path, serr := h.Uploads.SaveImage(file)
		if serr != nil {
			return serr
		}
		product.SetImage(pos, path)
	}

	if err := h.DB.Create(&product).Error; err != nil {
		return err
	}

	h.indexProduct(c, &product)
	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"sellerID":  seller.ID,
	})

	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct replaces listing fields and swaps only the image positions that
// carry a new file, keeping the rest as-is.
func (h *SellerHandler) UpdateProduct(c echo.Context) error {
	seller, err := h.requireActiveSeller(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND seller_id = ?", id, seller.ID).First(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	if v := c.FormValue("name"); v != "" {
		product.Name = v
	}
	if v := c.FormValue("description"); v != "" {
		product.Description = v
	}
	if v := c.FormValue("price"); v != "" {
		price, perr := strconv.ParseFloat(v, 64)
		if perr != nil || price <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid price")
		}
		product.Price = price
	}
	if v := c.FormValue("category_id"); v != "" {
		cid, cerr := strconv.Atoi(v)
		if cerr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category_id")
		}
		product.CategoryID = uint(cid)
	}
	if v := c.FormValue("size"); v != "" {
		product.Size = v
	}
	if v := c.FormValue("chest"); v != "" {
		product.Chest = v
	}
	if v := c.FormValue("waist"); v != "" {
		product.Waist = v
	}
	if v := c.FormValue("hip"); v != "" {
		product.Hip = v
	}
	if v := c.FormValue("length"); v != "" {
		product.Length = v
	}

	for pos := 1; pos <= maxProductImages; pos++ {
		file, ferr := c.FormFile(fmt.Sprintf("image%d", pos))
		if ferr != nil {
			continue
		}
		path, serr := h.Uploads.SaveImage(file)
		if serr != nil {
			return serr
		}
		product.SetImage(pos, path)
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return err
	}

	h.indexProduct(c, &product)
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"sellerID":  seller.ID,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *SellerHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	res := h.DB.Where("id = ? AND seller_id = ?", id, auth.UserID(c)).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	if err := search.DeleteProduct(c.Request().Context(), h.ES, h.ESIndex, uint(id)); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
		"sellerID":  auth.UserID(c),
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *SellerHandler) ListOrders(c echo.Context) error {
	orders, err := h.Orders.ListBySeller(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderListResponse(orders))
}

func (h *SellerHandler) GetOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ord, items, err := h.Orders.GetForSeller(c.Request().Context(), auth.UserID(c), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderResponse(ord, items))
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *SellerHandler) UpdateOrderStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ord, err := h.Orders.UpdateStatus(c.Request().Context(), auth.UserID(c), uint(id), models.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderResponse(ord, nil))
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *SellerHandler) CancelOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req cancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ord, err := h.Orders.Cancel(c.Request().Context(), auth.UserID(c), uint(id), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderResponse(ord, nil))
}

func (h *SellerHandler) ListProblems(c echo.Context) error {
	probs, err := h.Problems.ListBySeller(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, problemListResponse(probs))
}

func (h *SellerHandler) GetProblem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	prob, msgs, err := h.Problems.Get(c.Request().Context(), uint(id), auth.UserID(c), models.RoleSeller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"problem":  problemResponse(prob),
		"messages": msgs,
	})
}

func (h *SellerHandler) ReplyProblem(c echo.Context) error {
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

	msg, err := h.Problems.PostMessage(c.Request().Context(), uint(id), auth.UserID(c), models.RoleSeller, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *SellerHandler) CloseProblem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	prob, err := h.Problems.Close(c.Request().Context(), uint(id), auth.UserID(c), models.RoleSeller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, problemResponse(prob))
}

// ListWarnings returns the seller's strike history plus the rolling-window
// count and its risk label.
func (h *SellerHandler) ListWarnings(c echo.Context) error {
	ctx := c.Request().Context()
	sellerID := auth.UserID(c)

	warnings, err := h.Warnings.ListForSeller(ctx, sellerID)
	if err != nil {
		return err
	}
	count, label, err := h.Warnings.RecentCount(ctx, sellerID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"warnings":     warnings,
		"recent_count": count,
		"risk_label":   label,
	})
}

type appealRequest struct {
	Details string `json:"details" validate:"required"`
}

func (h *SellerHandler) SubmitAppeal(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req appealRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	w, err := h.Warnings.SubmitAppeal(c.Request().Context(), uint(id), auth.UserID(c), req.Details)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (h *SellerHandler) Dashboard(c echo.Context) error {
	stats, err := h.Orders.Stats(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *SellerHandler) SalesReport(c echo.Context) error {
	rows, err := h.Orders.SalesReport(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *SellerHandler) indexProduct(c echo.Context, p *models.Product) {
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.ESIndex, p); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *SellerHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
