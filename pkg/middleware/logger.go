package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Logger logs every completed request and records its duration. Probe and
// metrics endpoints are recorded but not logged, they would drown the output.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(c.Path(), req.Method, res.Status, elapsed.Seconds())

			if quietRoute(c.Path()) {
				return nil
			}

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
				if id == "" {
					id = uuid.New().String()
				}
			}

			fields := map[string]interface{}{
				"request_id":    id,
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"host":          req.Host,
				"user_agent":    req.UserAgent(),
				"response_time": elapsed,
				"response_size": strconv.FormatInt(res.Size, 10),
			}
			if agent := req.Header.Get(HeaderAgent); agent != "" {
				fields["agent"] = agent
			}

			logger.WithContext(req.Context()).WithFields(fields).Info("Request")

			return nil
		}
	}
}

func quietRoute(path string) bool {
	switch path {
	case "/metrics", "/api/v1/health/live", "/api/v1/health/ready":
		return true
	}
	return false
}
