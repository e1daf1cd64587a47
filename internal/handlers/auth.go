package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/korawit-s/thriftmarket/internal/hash"
	"github.com/korawit-s/thriftmarket/internal/middleware/auth"
	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/mykafka"
)

const accessTokenTTL = 24 * time.Hour

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Producer  *mykafka.Producer
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"full_name" validate:"required"`
	ProfileName string `json:"profile_name" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=buyer seller"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
}

// Register creates a buyer or seller account. Sellers start in the pending
// status and stay locked out of selling until an admin approves them.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return err
	}

	status := models.UserApproved
	if models.Role(req.Role) == models.RoleSeller {
		status = models.UserPending
	}

	user := models.User{
		Role:         models.Role(req.Role),
		Status:       status,
		ProfileName:  req.ProfileName,
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: pwHash,
		Address:      req.Address,
		Phone:        req.Phone,
		CreatedAt:    time.Now(),
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"role":   string(user.Role),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"id":           user.ID,
		"role":         user.Role,
		"status":       user.Status,
		"status_label": user.Status.Label(),
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if user.Status == models.UserBanned || user.Status == models.UserRejected {
		return echo.NewHTTPError(http.StatusForbidden, "account is not active")
	}

	token, err := auth.SignAccessToken(user.ID, user.Role, h.JWTSecret, accessTokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create token")
	}

	h.publish(c, map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"role":         user.Role,
		"status":       user.Status,
		"profile_name": user.ProfileName,
	})
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
