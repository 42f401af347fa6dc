package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentdesk/internal/metrics"
)

// Observe records request latency per matched route.
func Observe(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		m.ObserveRequest(c.Route().Path, status, time.Since(start))
		return err
	}
}

// MetricsHandler serves the registry in the prometheus text format.
func MetricsHandler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// Mount registers the page and API routes. Callers add NotFound after it.
func Mount(app *fiber.App, d *Deps) {
	app.Get("/", d.DashboardHandler.Page)
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	api := app.Group("/api/v1")
	api.Get("/inventory", d.InventoryHandler.List)
	api.Post("/inventory", d.InventoryHandler.Create)
	api.Put("/inventory/:id", d.InventoryHandler.Update)
	api.Post("/inventory/:id/adjust", d.InventoryHandler.Adjust)
	api.Delete("/inventory/:id", d.InventoryHandler.Delete)
	api.Get("/inventory/:id/schedule", d.InventoryHandler.Schedule)
	api.Get("/categories", d.InventoryHandler.Categories)
	api.Get("/availability", d.DashboardHandler.Availability)

	api.Get("/reservations", d.ReservationHandler.List)
	api.Post("/reservations", d.ReservationHandler.Create)
	api.Get("/reservations/:id", d.ReservationHandler.Get)
	api.Put("/reservations/:id", d.ReservationHandler.Edit)
	api.Post("/reservations/:id/finish", d.ReservationHandler.Finish)
	api.Delete("/reservations/:id", d.ReservationHandler.Delete)

	api.Get("/dashboard", d.DashboardHandler.Summary)
	if d.StreamHandler != nil {
		api.Get("/stream", d.StreamHandler.Stream)
	}
}
