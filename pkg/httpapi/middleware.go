package httpapi

import (
	"fmt"
	"net/http"

	"github.com/harun/wapair/internal/observability"
	"github.com/harun/wapair/internal/tracing"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// requestID tags each request with a uuid, echoed in X-Request-Id and
// carried in the request context.
func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: tracing.NewRequestID,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(tracing.WithRequestID(req.Context(), id)))
		},
	})
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				evt = logger.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("Request completed")
			return nil
		},
	})
}

// rateLimit rejects callers over the per-IP /connect budget.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.rateLimiter == nil {
			return next(c)
		}

		ip := c.RealIP()
		if !s.rateLimiter.CheckLimit(ip) {
			retryAfter := s.rateLimiter.GetRetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", c.Path()).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			observability.RecordConnectRequest("rate_limited")
			c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "Too Many Requests"})
		}
		return next(c)
	}
}
