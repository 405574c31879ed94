package middleware

import (
	"net/http"

	"coffeeshop/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextのroleで操作できるかを判定する。
// 例: RequireCapability(model.CanAccessAdmin, "admin only")
func RequireCapability(can func(model.Role) bool, denied string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(model.Role)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if !can(role) {
				return c.JSON(http.StatusForbidden, errorJSON(denied))
			}

			return next(c)
		}
	}
}
