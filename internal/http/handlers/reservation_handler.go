package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "rentdesk/internal/log"
	"rentdesk/internal/services"
	"rentdesk/internal/validate"
)

type ReservationHandler struct {
	Res *services.ReservationService
}

// GET /api/v1/reservations?q=
func (h *ReservationHandler) List(c *fiber.Ctx) error {
	q, ok := validate.Q(c.Query("q"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "search may only contain letters, numbers and basic punctuation"})
	}
	rs, err := h.Res.List(c.UserContext(), q)
	if err != nil {
		return fail(c, "reservation.list", err, nil)
	}
	return c.JSON(fiber.Map{"reservations": rs})
}

// GET /api/v1/reservations/:id
func (h *ReservationHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return NotFound(c)
	}
	r, err := h.Res.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, "reservation.get", err, nil)
	}
	return c.JSON(r)
}

// POST /api/v1/reservations
func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	var in services.ReservationInput
	if ok, err := bind(c, "reservation.create", &in); !ok {
		return err
	}
	r, err := h.Res.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "reservation.create", err, in)
	}
	applog.Audit(c, "reservation.create", map[string]any{
		"reservation_id": r.ID,
		"client":         r.ClientName,
		"from":           r.DateFrom.String(),
		"to":             r.DateTo.String(),
		"claims":         r.Claims(),
	})
	return c.Status(fiber.StatusCreated).JSON(r)
}

// PUT /api/v1/reservations/:id
func (h *ReservationHandler) Edit(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return NotFound(c)
	}
	var in services.ReservationInput
	if ok, err := bind(c, "reservation.edit", &in); !ok {
		return err
	}
	r, err := h.Res.Edit(c.UserContext(), id, in)
	if err != nil {
		return fail(c, "reservation.edit", err, in)
	}
	applog.Audit(c, "reservation.edit", map[string]any{"reservation_id": id, "claims": r.Claims()})
	return c.JSON(r)
}

// POST /api/v1/reservations/:id/finish
func (h *ReservationHandler) Finish(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return NotFound(c)
	}
	r, err := h.Res.Finish(c.UserContext(), id)
	if err != nil {
		return fail(c, "reservation.finish", err, nil)
	}
	applog.Audit(c, "reservation.finish", map[string]any{"reservation_id": id})
	return c.JSON(r)
}

// DELETE /api/v1/reservations/:id
func (h *ReservationHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return NotFound(c)
	}
	if err := h.Res.Delete(c.UserContext(), id); err != nil {
		return fail(c, "reservation.delete", err, nil)
	}
	applog.Audit(c, "reservation.delete", map[string]any{"reservation_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
