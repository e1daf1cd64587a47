package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/service/search"
	"github.com/korawit-s/thriftmarket/internal/util"
)

// ProductHandler serves the public storefront catalog. Listings with no
// stock left are never returned here.
type ProductHandler struct {
	DB *gorm.DB
}

func (h *ProductHandler) ListProducts(c echo.Context) error {
	q := c.QueryParam("q")
	category := c.QueryParam("category_id")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	query := h.DB.Model(&models.Product{}).Where("stock_quantity > 0")
	if q != "" {
		query = query.Where("name LIKE ?", "%"+q+"%")
	}
	if category != "" {
		id, err := strconv.Atoi(category)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category_id")
		}
		query = query.Where("category_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Product
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": echo.Map{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) ListCategories(c echo.Context) error {
	var cats []models.Category
	if err := h.DB.Order("name ASC").Find(&cats).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// SearchHandler is the Elasticsearch-backed full-text endpoint. It is
// optional: without an ES node the plain catalog listing still covers
// search via SQL LIKE.
type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not available")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, products, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}
