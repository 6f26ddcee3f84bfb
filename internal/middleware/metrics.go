package middleware

import (
	"strconv"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/gofiber/fiber/v2"
)

// HTTPMetrics records request latency labelled by the matched route pattern,
// not the raw path, so ids do not explode label cardinality.
func HTTPMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		m.ObserveHTTP(c.Method(), route, strconv.Itoa(status), time.Since(start).Seconds())
		return err
	}
}
