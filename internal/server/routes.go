package server

import (
	"coffeeshop/internal/config"
	"coffeeshop/internal/handler"
	"coffeeshop/internal/repository"

	"github.com/labstack/echo/v4"
)

// ルート登録に必要なハンドラ一式
type Handlers struct {
	Auth          *handler.AuthHandler
	Product       *handler.ProductHandler
	Cart          *handler.CartHandler
	Order         *handler.OrderHandler
	Favorite      *handler.FavoriteHandler
	AdminOrder    *handler.AdminOrderHandler
	AdminProduct  *handler.AdminProductHandler
	AdminUser     *handler.AdminUserHandler
	AdminAuditLog *handler.AdminAuditLogHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Product.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.Order.RegisterRoutes(e, cfg, userRepo)
	h.Favorite.RegisterRoutes(e, cfg, userRepo)

	h.AdminOrder.RegisterRoutes(e, cfg, userRepo)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	h.AdminUser.RegisterRoutes(e, cfg, userRepo)
	h.AdminAuditLog.RegisterRoutes(e, cfg, userRepo)
}
