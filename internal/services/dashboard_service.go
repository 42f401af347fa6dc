package services

import (
	"context"

	"github.com/shopspring/decimal"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	"rentdesk/internal/validate"
)

// Dashboard is the month overview shown on the start page.
type Dashboard struct {
	Month     string                 `json:"month"`
	Prev      string                 `json:"prev"`
	Next      string                 `json:"next"`
	Today     domain.Date            `json:"today"`
	Count     int                    `json:"monthlyCount"`
	Revenue   decimal.Decimal        `json:"monthlyRevenue"`
	Calendar  []booking.CalendarDay  `json:"calendar"`
	Upcoming  []domain.Reservation   `json:"upcoming"`
	LowStock  []domain.InventoryItem `json:"lowStock"`
	Warehouse booking.WarehouseStats `json:"warehouse"`
}

// DashboardService derives figures from whatever state source it is given,
// the live mirror in production.
type DashboardService struct {
	state StateSource
	today func() domain.Date
}

func NewDashboardService(state StateSource) *DashboardService {
	return &DashboardService{state: state, today: domain.Today}
}

func (s *DashboardService) Summary(ctx context.Context, m domain.Month) (Dashboard, error) {
	st, err := s.state.Snapshot(ctx)
	if err != nil {
		return Dashboard{}, storeErr("load state", err)
	}
	today := s.today()
	if m == (domain.Month{}) {
		m = domain.MonthOf(today)
	}
	return Dashboard{
		Month:     m.String(),
		Prev:      m.Prev().String(),
		Next:      m.Next().String(),
		Today:     today,
		Count:     booking.MonthlyCount(st.Reservations, m),
		Revenue:   booking.MonthlyRevenue(st.Reservations, m),
		Calendar:  booking.CalendarGrid(st.Reservations, m, today),
		Upcoming:  nonNil(booking.Upcoming(st.Reservations, today)),
		LowStock:  nonNil(booking.LowStock(st.Inventory)),
		Warehouse: booking.Stats(st.Inventory),
	}, nil
}

// Available lists the items that can go on a line of the booking described by q.
func (s *DashboardService) Available(ctx context.Context, q booking.AvailabilityQuery) ([]domain.InventoryItem, error) {
	errs := &validate.Errors{}
	if q.Window.From.IsZero() {
		errs.Add("from", "is required")
	}
	if q.Window.To.IsZero() {
		errs.Add("to", "is required")
	}
	if errs.Empty() && !q.Window.Valid() {
		errs.Add("to", "cannot be before the start date")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	st, err := s.state.Snapshot(ctx)
	if err != nil {
		return nil, storeErr("load state", err)
	}
	return booking.AvailableItems(q, st.Reservations, st.Inventory), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
