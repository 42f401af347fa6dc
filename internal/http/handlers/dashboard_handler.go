package handlers

import (
	"github.com/gofiber/fiber/v2"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	applog "rentdesk/internal/log"
	"rentdesk/internal/services"
	"rentdesk/internal/validate"
)

type DashboardHandler struct {
	Board *services.DashboardService
}

func monthParam(c *fiber.Ctx) (domain.Month, *validate.Errors) {
	raw := c.Query("month")
	if raw == "" {
		return domain.Month{}, nil
	}
	m, err := domain.ParseMonth(raw)
	if err != nil {
		errs := &validate.Errors{}
		errs.Add("month", "use YYYY-MM")
		return domain.Month{}, errs
	}
	return m, nil
}

// GET /api/v1/dashboard?month=YYYY-MM
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	m, errs := monthParam(c)
	if errs != nil {
		return fail(c, "dashboard.summary", errs, nil)
	}
	d, err := h.Board.Summary(c.UserContext(), m)
	if err != nil {
		return fail(c, "dashboard.summary", err, nil)
	}
	return c.JSON(d)
}

// GET /api/v1/availability?from=&to=&selected=a,b&current=&editing=
func (h *DashboardHandler) Availability(c *fiber.Ctx) error {
	errs := &validate.Errors{}
	from, err := domain.ParseDate(c.Query("from"))
	if err != nil {
		errs.Add("from", "use YYYY-MM-DD")
	}
	to, err := domain.ParseDate(c.Query("to"))
	if err != nil {
		errs.Add("to", "use YYYY-MM-DD")
	}
	if !errs.Empty() {
		return fail(c, "availability", errs, nil)
	}
	q := booking.AvailabilityQuery{
		Window:   domain.Window{From: from, To: to},
		Selected: validate.IDList(c.Query("selected")),
	}
	q.Current, _ = validate.ID(c.Query("current"))
	q.EditingID, _ = validate.ID(c.Query("editing"))

	items, err := h.Board.Available(c.UserContext(), q)
	if err != nil {
		return fail(c, "availability", err, nil)
	}
	return c.JSON(fiber.Map{"items": items})
}

// GET /
func (h *DashboardHandler) Page(c *fiber.Ctx) error {
	m, errs := monthParam(c)
	if errs != nil {
		return c.Status(fiber.StatusBadRequest).Render("notfound", fiber.Map{"Message": "Unknown month, use YYYY-MM"})
	}
	d, err := h.Board.Summary(c.UserContext(), m)
	if err != nil {
		applog.Error(c, "dashboard.page.fail", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).Render("notfound", fiber.Map{"Message": "Could not load the dashboard"})
	}
	weeks := make([][]booking.CalendarDay, 0, booking.CalendarCells/7)
	for i := 0; i < len(d.Calendar); i += 7 {
		weeks = append(weeks, d.Calendar[i:i+7])
	}
	return render(c, "dashboard", fiber.Map{
		"Board":    d,
		"Weeks":    weeks,
		"Weekdays": []int{0, 1, 2, 3, 4, 5, 6},
	})
}
