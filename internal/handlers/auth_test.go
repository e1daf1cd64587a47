package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/config"
	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/mykafka"
	"github.com/korawit-s/thriftmarket/internal/validation"
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

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestRegisterBuyer(t *testing.T) {
	db := initTestDB(t)
	h := &AuthHandler{DB: db, JWTSecret: []byte("test_secret"), Producer: &mykafka.Producer{}}
	e := newEcho()

	payload := map[string]string{
		"email":        "somchai@example.com",
		"password":     "password123",
		"full_name":    "Somchai J.",
		"profile_name": "somchai_shop",
		"role":         "buyer",
	}
	rec, c := doJSON(t, e, http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "somchai@example.com").First(&user).Error)
	require.Equal(t, models.RoleBuyer, user.Role)
	require.Equal(t, models.UserApproved, user.Status)
	require.NotEqual(t, "password123", user.PasswordHash)
}

func TestRegisterSellerStartsPending(t *testing.T) {
	db := initTestDB(t)
	h := &AuthHandler{DB: db, JWTSecret: []byte("test_secret"), Producer: &mykafka.Producer{}}
	e := newEcho()

	payload := map[string]string{
		"email":        "malee@example.com",
		"password":     "password123",
		"full_name":    "Malee K.",
		"profile_name": "malee_vintage",
		"role":         "seller",
	}
	rec, c := doJSON(t, e, http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pending", resp["status"])
	require.Equal(t, "รออนุมัติ", resp["status_label"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := initTestDB(t)
	h := &AuthHandler{DB: db, JWTSecret: []byte("test_secret"), Producer: &mykafka.Producer{}}
	e := newEcho()

	payload := map[string]string{
		"email":        "somchai@example.com",
		"password":     "password123",
		"full_name":    "Somchai J.",
		"profile_name": "somchai_shop",
		"role":         "buyer",
	}
	_, c := doJSON(t, e, http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, h.Register(c))

	_, c2 := doJSON(t, e, http.MethodPost, "/api/auth/register", payload)
	err := h.Register(c2)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	db := initTestDB(t)
	h := &AuthHandler{DB: db, JWTSecret: []byte("test_secret"), Producer: &mykafka.Producer{}}
	e := newEcho()

	payload := map[string]string{
		"email":        "boss@example.com",
		"password":     "password123",
		"full_name":    "Boss",
		"profile_name": "boss",
		"role":         "admin",
	}
	_, c := doJSON(t, e, http.MethodPost, "/api/auth/register", payload)
	require.Error(t, h.Register(c))
}

func TestLogin(t *testing.T) {
	db := initTestDB(t)
	h := &AuthHandler{DB: db, JWTSecret: []byte("test_secret"), Producer: &mykafka.Producer{}}
	e := newEcho()

	register := map[string]string{
		"email":        "somchai@example.com",
		"password":     "password123",
		"full_name":    "Somchai J.",
		"profile_name": "somchai_shop",
		"role":         "buyer",
	}
	_, c := doJSON(t, e, http.MethodPost, "/api/auth/register", register)
	require.NoError(t, h.Register(c))

	login := map[string]string{"email": "somchai@example.com", "password": "password123"}
	rec, c2 := doJSON(t, e, http.MethodPost, "/api/auth/login", login)
	require.NoError(t, h.Login(c2))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])
	require.Equal(t, "buyer", resp["role"])

	bad := map[string]string{"email": "somchai@example.com", "password": "wrong_password"}
	_, c3 := doJSON(t, e, http.MethodPost, "/api/auth/login", bad)
	err := h.Login(c3)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLoginBannedUser(t *testing.T) {
	db := initTestDB(t)
	h := &AuthHandler{DB: db, JWTSecret: []byte("test_secret"), Producer: &mykafka.Producer{}}
	e := newEcho()

	register := map[string]string{
		"email":        "banned@example.com",
		"password":     "password123",
		"full_name":    "Banned",
		"profile_name": "banned_shop",
		"role":         "seller",
	}
	_, c := doJSON(t, e, http.MethodPost, "/api/auth/register", register)
	require.NoError(t, h.Register(c))
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "banned@example.com").Update("status", models.UserBanned).Error)

	login := map[string]string{"email": "banned@example.com", "password": "password123"}
	_, c2 := doJSON(t, e, http.MethodPost, "/api/auth/login", login)
	err := h.Login(c2)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)
}
