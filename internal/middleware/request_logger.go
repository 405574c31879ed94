package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// リクエストを1行ずつ記録する。panicもここで拾って500にする
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			req := c.Request()

			defer func() {
				if r := recover(); r != nil {
					var errMsg string
					if e, ok := r.(error); ok {
						errMsg = e.Error()
					} else {
						errMsg = fmt.Sprintf("%v", r)
					}

					log.Error().
						Str("method", req.Method).
						Str("path", req.URL.Path).
						Int64("user_id", userIDOf(c)).
						Str("error", errMsg).
						Msg("panic recovered")

					if !c.Response().Committed {
						err = c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
					}
					return
				}

				status := c.Response().Status
				if err != nil {
					if he, ok := err.(*echo.HTTPError); ok {
						status = he.Code
					}
				}

				ev := log.Info()
				if status >= http.StatusInternalServerError {
					ev = log.Error()
				}
				ev.Str("method", req.Method).
					Str("path", req.URL.Path).
					Int("status", status).
					Int64("user_id", userIDOf(c)).
					Dur("latency", time.Since(start)).
					Msg("request completed")
			}()

			return next(c)
		}
	}
}

func userIDOf(c echo.Context) int64 {
	id, _ := c.Get(CtxUserIDKey).(int64)
	return id
}
