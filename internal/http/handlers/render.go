package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"rentdesk/internal/domain"
	applog "rentdesk/internal/log"
	"rentdesk/internal/services"
	"rentdesk/internal/validate"
)

const friendlyMessage = "Something went wrong. Please try again."

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		data["RequestID"] = rid
	}
	return c.Render(tmpl, data)
}

// bind decodes a JSON body into dst. A malformed body is answered with 400
// and reported as handled=false.
func bind(c *fiber.Ctx, action string, dst any) (bool, error) {
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		applog.Warn(c, action+".bad_body", err, nil)
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "request body must be valid JSON"})
	}
	return true, nil
}

// fail maps a service error onto a response. input is echoed back on store
// failures so the client keeps what was typed.
func fail(c *fiber.Ctx, action string, err error, input any) error {
	var verrs *validate.Errors
	var serr *services.StoreError
	switch {
	case errors.As(err, &verrs):
		applog.Info(c, action+".invalid", map[string]any{"fields": verrs.Fields})
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation failed", "fields": verrs.Fields})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, domain.ErrNegativeQuantity):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": map[string]string{"quantity": domain.ErrNegativeQuantity.Error()},
		})
	case errors.As(err, &serr):
		applog.Error(c, action+".fail", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "could not save changes, please try again",
			"retryable": true,
			"input":     input,
		})
	}
	return err
}

// ErrorHandler logs the error and answers with a friendly message that never
// carries internals: JSON under /api, the notfound page elsewhere.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := friendlyMessage
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code == fiber.StatusNotFound {
			msg = "Page not found"
		}
	}
	if code >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
		msg = friendlyMessage
	}
	if isAPI(c) {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}

// NotFound is the catch-all route.
func NotFound(c *fiber.Ctx) error {
	if isAPI(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Page not found"})
}
