// Package booking holds the pure availability and dashboard logic over
// in-memory snapshots of the inventory and reservation collections.
package booking

import (
	"slices"

	"rentdesk/internal/domain"
)

// Overlaps reports whether two closed day windows share at least one day.
func Overlaps(a, b domain.Window) bool {
	return !a.From.After(b.To) && !b.From.After(a.To)
}

// IsReserved reports whether a non-finished reservation holds itemID on any
// day of w.
func IsReserved(itemID string, w domain.Window, reservations []domain.Reservation) bool {
	return holder(itemID, w, reservations, "") != nil
}

// IsReservedOn is IsReserved for a single day.
func IsReservedOn(itemID string, day domain.Date, reservations []domain.Reservation) bool {
	return IsReserved(itemID, domain.Day(day), reservations)
}

// holder returns the first blocking reservation, ignoring the one named skipID.
func holder(itemID string, w domain.Window, reservations []domain.Reservation, skipID string) *domain.Reservation {
	for i := range reservations {
		r := &reservations[i]
		if r.Finished() || (skipID != "" && r.ID == skipID) {
			continue
		}
		if r.HasItem(itemID) && Overlaps(w, r.Window()) {
			return r
		}
	}
	return nil
}

// ItemSchedule lists the windows of non-finished reservations holding itemID,
// earliest first.
func ItemSchedule(itemID string, reservations []domain.Reservation) []domain.Window {
	var out []domain.Window
	for _, r := range reservations {
		if !r.Finished() && r.HasItem(itemID) {
			out = append(out, r.Window())
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Window) int { return a.From.Compare(b.From) })
	return out
}

// CurrentReservationEnd returns the earliest end date among reservations of
// itemID that cover today, or the zero Date.
func CurrentReservationEnd(itemID string, today domain.Date, reservations []domain.Reservation) domain.Date {
	var end domain.Date
	for _, r := range reservations {
		if r.Finished() || !r.HasItem(itemID) || !r.Window().Contains(today) {
			continue
		}
		if end.IsZero() || r.DateTo.Before(end) {
			end = r.DateTo
		}
	}
	return end
}
