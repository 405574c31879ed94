package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coffeeshop/internal/config"
	"coffeeshop/internal/middleware"
	"coffeeshop/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func New(cfg config.Config, log zerolog.Logger, userRepo repository.UserRepository, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	RegisterRoutes(e, cfg, userRepo, h)
	return e
}

// ctxが終わったら受付を止めて、処理中のリクエストを待つ
func Start(ctx context.Context, e *echo.Echo, addr string, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server started")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("server shutting down")
	return e.Shutdown(shutdownCtx)
}
