package handler

import (
	"net/http"

	"coffeeshop/internal/config"
	"coffeeshop/internal/domain/model"
	"coffeeshop/internal/middleware"
	"coffeeshop/internal/repository"
	"coffeeshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	uc *usecase.IdentityUsecase
}

func NewAdminUserHandler(uc *usecase.IdentityUsecase) *AdminUserHandler {
	return &AdminUserHandler{uc: uc}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	// /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.RequireCapability(model.CanAccessAdmin, "admin only"),
	)

	admin.POST("/users/:id/force-logout", h.forceLogout)
}

func (h *AdminUserHandler) forceLogout(c echo.Context) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
	}

	res, err := h.uc.ForceLogout(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}
