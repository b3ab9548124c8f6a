package http

import (
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/karloscodes/cartridge"

	"topicmingle/internal/metrics"
)

var metricsHandler = adaptor.HTTPHandler(metrics.Handler())

// MetricsAction exposes the Prometheus collectors.
func MetricsAction(ctx *cartridge.Context) error {
	return metricsHandler(ctx.Ctx)
}
