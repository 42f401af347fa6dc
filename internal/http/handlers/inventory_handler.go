package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "rentdesk/internal/log"
	"rentdesk/internal/services"
	"rentdesk/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

type adjustInput struct {
	Delta int `json:"delta" validate:"ne=0"`
}

// itemID reads :id; malformed ids cannot exist, so they answer 404.
func itemID(c *fiber.Ctx) (string, bool) {
	return validate.ID(c.Params("id"))
}

// GET /api/v1/inventory?q=&category=
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	q, ok := validate.Q(c.Query("q"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "search may only contain letters, numbers and basic punctuation"})
	}
	list, err := h.Inv.List(c.UserContext(), q, c.Query("category"))
	if err != nil {
		return fail(c, "inventory.list", err, nil)
	}
	return c.JSON(list)
}

// GET /api/v1/categories
func (h *InventoryHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.Inv.Categories(c.UserContext())
	if err != nil {
		return fail(c, "inventory.categories", err, nil)
	}
	return c.JSON(fiber.Map{"categories": cats})
}

// POST /api/v1/inventory
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var in services.InventoryInput
	if ok, err := bind(c, "inventory.create", &in); !ok {
		return err
	}
	it, err := h.Inv.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "inventory.create", err, in)
	}
	applog.Audit(c, "inventory.create", map[string]any{"item_id": it.ID, "name": it.Name, "qty": it.Quantity})
	return c.Status(fiber.StatusCreated).JSON(it)
}

// PUT /api/v1/inventory/:id
func (h *InventoryHandler) Update(c *fiber.Ctx) error {
	id, ok := itemID(c)
	if !ok {
		return NotFound(c)
	}
	var in services.InventoryInput
	if ok, err := bind(c, "inventory.update", &in); !ok {
		return err
	}
	it, err := h.Inv.Update(c.UserContext(), id, in)
	if err != nil {
		return fail(c, "inventory.update", err, in)
	}
	applog.Audit(c, "inventory.update", map[string]any{"item_id": id, "name": it.Name, "qty": it.Quantity})
	return c.JSON(it)
}

// POST /api/v1/inventory/:id/adjust  {"delta": n}
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	id, ok := itemID(c)
	if !ok {
		return NotFound(c)
	}
	var in adjustInput
	if ok, err := bind(c, "inventory.adjust", &in); !ok {
		return err
	}
	if err := validate.Struct(in).Err(); err != nil {
		return fail(c, "inventory.adjust", err, in)
	}
	it, err := h.Inv.Adjust(c.UserContext(), id, in.Delta)
	if err != nil {
		return fail(c, "inventory.adjust", err, in)
	}
	applog.Audit(c, "inventory.adjust", map[string]any{"item_id": id, "delta": in.Delta, "qty": it.Quantity})
	return c.JSON(it)
}

// DELETE /api/v1/inventory/:id
func (h *InventoryHandler) Delete(c *fiber.Ctx) error {
	id, ok := itemID(c)
	if !ok {
		return NotFound(c)
	}
	if err := h.Inv.Delete(c.UserContext(), id); err != nil {
		return fail(c, "inventory.delete", err, nil)
	}
	applog.Audit(c, "inventory.delete", map[string]any{"item_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/inventory/:id/schedule
func (h *InventoryHandler) Schedule(c *fiber.Ctx) error {
	id, ok := itemID(c)
	if !ok {
		return NotFound(c)
	}
	s, err := h.Inv.Schedule(c.UserContext(), id)
	if err != nil {
		return fail(c, "inventory.schedule", err, nil)
	}
	return c.JSON(s)
}
