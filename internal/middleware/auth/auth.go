package auth

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/korawit-s/thriftmarket/internal/models"
)

const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// RequireAuth validates the Authorization: Bearer token and puts the user id
// and role into the echo context. Missing token is 401, a present but
// invalid or expired one is 403.
func RequireAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header || tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusForbidden, "invalid or expired token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "invalid token claims")
			}
			subRaw, ok := claims["sub"].(float64)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "invalid subject claim")
			}
			role, ok := claims["role"].(string)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "invalid role claim")
			}

			c.Set(CtxUserID, uint(subRaw))
			c.Set(CtxRole, models.Role(role))
			return next(c)
		}
	}
}

// RequireRole guards a group behind RequireAuth with an allowed-role list.
func RequireRole(required ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(models.Role)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing role")
			}
			if !slices.Contains(required, role) {
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
			}
			return next(c)
		}
	}
}

func UserID(c echo.Context) uint {
	id, _ := c.Get(CtxUserID).(uint)
	return id
}

func UserRole(c echo.Context) models.Role {
	role, _ := c.Get(CtxRole).(models.Role)
	return role
}

func SignAccessToken(userID uint, role models.Role, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}
