package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/models"
)

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	products := []models.Product{
		{SellerID: 3, Name: "vintage denim jacket", Price: 500, CategoryID: 1, StockQuantity: 1, CreatedAt: time.Now()},
		{SellerID: 3, Name: "denim shorts", Price: 250, CategoryID: 2, StockQuantity: 1, CreatedAt: time.Now()},
		{SellerID: 4, Name: "sold out denim coat", Price: 900, CategoryID: 1, StockQuantity: 0, CreatedAt: time.Now()},
	}
	for i := range products {
		require.NoError(t, db.Create(&products[i]).Error)
	}
}

func listProducts(t *testing.T, h *ProductHandler, target string) []models.Product {
	t.Helper()
	e := newEcho()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.ListProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestListProductsExcludesSoldOut(t *testing.T) {
	db := initTestDB(t)
	seedCatalog(t, db)
	h := &ProductHandler{DB: db}

	items := listProducts(t, h, "/api/products")
	require.Len(t, items, 2)
	for _, p := range items {
		require.Equal(t, uint(1), p.StockQuantity)
	}
}

func TestListProductsFreeTextAndCategory(t *testing.T) {
	db := initTestDB(t)
	seedCatalog(t, db)
	h := &ProductHandler{DB: db}

	items := listProducts(t, h, "/api/products?q=denim&category_id=1")
	require.Len(t, items, 1)
	require.Equal(t, "vintage denim jacket", items[0].Name)
}

func TestGetProduct(t *testing.T) {
	db := initTestDB(t)
	seedCatalog(t, db)
	h := &ProductHandler{DB: db}
	e := newEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/products/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var p models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, "vintage denim jacket", p.Name)

	reqMissing := httptest.NewRequest(http.MethodGet, "/api/products/999", nil)
	recMissing := httptest.NewRecorder()
	cMissing := e.NewContext(reqMissing, recMissing)
	cMissing.SetParamNames("id")
	cMissing.SetParamValues("999")

	err := h.GetProduct(cMissing)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}
