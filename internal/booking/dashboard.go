package booking

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"rentdesk/internal/domain"
)

// UpcomingDays is the look-ahead of the upcoming list, counted from today.
const UpcomingDays = 7

// CalendarCells is a six-week month grid.
const CalendarCells = 42

// MonthReservations keeps reservations whose window touches month m.
func MonthReservations(reservations []domain.Reservation, m domain.Month) []domain.Reservation {
	mw := m.Window()
	var out []domain.Reservation
	for _, r := range reservations {
		if r.Window().Valid() && Overlaps(r.Window(), mw) {
			out = append(out, r)
		}
	}
	return out
}

func MonthlyCount(reservations []domain.Reservation, m domain.Month) int {
	return len(MonthReservations(reservations, m))
}

// MonthlyRevenue books each reservation's price to the month it starts in,
// whatever its status or length.
func MonthlyRevenue(reservations []domain.Reservation, m domain.Month) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range reservations {
		if m.Contains(r.DateFrom) {
			sum = sum.Add(r.TotalPrice)
		}
	}
	return sum
}

// Upcoming lists reservations touching [today, today+7], earliest start first.
func Upcoming(reservations []domain.Reservation, today domain.Date) []domain.Reservation {
	horizon := domain.Window{From: today, To: today.AddDays(UpcomingDays)}
	var out []domain.Reservation
	for _, r := range reservations {
		if r.Window().Valid() && Overlaps(r.Window(), horizon) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Reservation) int { return a.DateFrom.Compare(b.DateFrom) })
	return out
}

func LowStock(items []domain.InventoryItem) []domain.InventoryItem {
	var out []domain.InventoryItem
	for _, it := range items {
		if it.Quantity < domain.LowStockThreshold {
			out = append(out, it)
		}
	}
	return out
}

type CalendarDay struct {
	Date           domain.Date `json:"date"`
	Day            int         `json:"day"`
	InMonth        bool        `json:"inMonth"`
	IsToday        bool        `json:"isToday"`
	HasReservation bool        `json:"hasReservation"`
}

// CalendarGrid builds the 42 cells of m's view, starting on the Sunday on or
// before the 1st. A cell is marked when a reservation touching m covers it.
func CalendarGrid(reservations []domain.Reservation, m domain.Month, today domain.Date) []CalendarDay {
	inMonth := MonthReservations(reservations, m)
	first := m.First()
	start := first.AddDays(-int(first.Weekday()))

	days := make([]CalendarDay, 0, CalendarCells)
	for i := 0; i < CalendarCells; i++ {
		d := start.AddDays(i)
		cell := CalendarDay{
			Date:    d,
			Day:     d.Day(),
			InMonth: m.Contains(d),
			IsToday: d.Equal(today),
		}
		for _, r := range inMonth {
			if r.Window().Contains(d) {
				cell.HasReservation = true
				break
			}
		}
		days = append(days, cell)
	}
	return days
}

type WarehouseStats struct {
	Items      int      `json:"items"`
	TotalUnits int      `json:"totalUnits"`
	LowStock   int      `json:"lowStock"`
	Categories []string `json:"categories"`
}

func Stats(items []domain.InventoryItem) WarehouseStats {
	s := WarehouseStats{Items: len(items), Categories: Categories(items, nil)}
	for _, it := range items {
		s.TotalUnits += it.Quantity
		if it.Quantity < domain.LowStockThreshold {
			s.LowStock++
		}
	}
	return s
}

// Categories merges the suggested list with categories in use, first occurrence wins.
func Categories(items []domain.InventoryItem, suggested []string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range suggested {
		add(c)
	}
	for _, it := range items {
		add(it.Category)
	}
	return out
}

// SearchReservations matches client name or location case-insensitively,
// newest start date first.
func SearchReservations(reservations []domain.Reservation, q string) []domain.Reservation {
	needle := strings.ToLower(strings.TrimSpace(q))
	out := make([]domain.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.ClientName), needle) ||
			strings.Contains(strings.ToLower(r.Location), needle) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Reservation) int { return b.DateFrom.Compare(a.DateFrom) })
	return out
}
