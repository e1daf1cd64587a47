package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/korawit-s/thriftmarket/internal/models"
	"github.com/korawit-s/thriftmarket/internal/upload"
)

const logoKey = "site_logo"

type SettingsHandler struct {
	DB      *gorm.DB
	Uploads *upload.Store
}

func (h *SettingsHandler) GetLogo(c echo.Context) error {
	var setting models.Setting
	err := h.DB.Where("key = ?", logoKey).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"logo": ""})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"logo": setting.Value})
}

func (h *SettingsHandler) UploadLogo(c echo.Context) error {
	file, err := c.FormFile("logo")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing logo file")
	}

	path, err := h.Uploads.SaveImage(file)
	if err != nil {
		return err
	}

	setting := models.Setting{Key: logoKey, Value: path}
	if err := h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&setting).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"logo": path})
}
