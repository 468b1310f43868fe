package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/reqctx"
)

// RequestID assigns X-Request-Id and copies it into the request context,
// together with a logger tagged with it for zerolog.Ctx.
func RequestID(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, rid string) {
			req := c.Request()
			ctx := reqctx.WithRID(req.Context(), rid)
			ctx = log.With().Str("rid", rid).Logger().WithContext(ctx)
			c.SetRequest(req.WithContext(ctx))
		},
	})
}

// RequestLogger writes one zerolog line per request.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			} else if v.Status >= 400 {
				ev = log.Warn()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("rid", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Str("uid", UID(c)).
				Msg("request")
			return nil
		},
	})
}
