package booking

import (
	"strings"

	"rentdesk/internal/domain"
)

// AvailabilityQuery describes the booking being filled in.
type AvailabilityQuery struct {
	Window domain.Window
	// Selected are item ids already picked on other lines of the same booking.
	Selected []string
	// Current is the item on the line being edited; it stays selectable.
	Current string
	// EditingID is the reservation being edited. Its own claims never block it.
	EditingID string
}

// AvailableItems returns the items in stock that are free over q.Window and
// not already picked elsewhere in the booking. Units held by the reservation
// being edited count as stock.
func AvailableItems(q AvailabilityQuery, reservations []domain.Reservation, inventory []domain.InventoryItem) []domain.InventoryItem {
	taken := make(map[string]struct{}, len(q.Selected))
	for _, id := range q.Selected {
		if id != "" && id != q.Current {
			taken[id] = struct{}{}
		}
	}
	own := map[string]int{}
	if q.EditingID != "" {
		for _, r := range reservations {
			if r.ID == q.EditingID {
				own = r.Claims()
				break
			}
		}
	}
	out := make([]domain.InventoryItem, 0, len(inventory))
	for _, it := range inventory {
		if it.Quantity+own[it.ID] <= 0 {
			continue
		}
		if _, ok := taken[it.ID]; ok {
			continue
		}
		if holder(it.ID, q.Window, reservations, q.EditingID) != nil {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Blocker returns the reservation that keeps itemID from being booked over w,
// ignoring skipID, or nil when the item is free.
func Blocker(itemID string, w domain.Window, reservations []domain.Reservation, skipID string) *domain.Reservation {
	return holder(itemID, w, reservations, skipID)
}

// FilterInventory matches a case-insensitive name fragment and an exact category.
// Empty arguments match everything.
func FilterInventory(items []domain.InventoryItem, search, category string) []domain.InventoryItem {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.InventoryItem, 0, len(items))
	for _, it := range items {
		if needle != "" && !strings.Contains(strings.ToLower(it.Name), needle) {
			continue
		}
		if category != "" && it.Category != category {
			continue
		}
		out = append(out, it)
	}
	return out
}

// FindItem looks an item up by id.
func FindItem(items []domain.InventoryItem, id string) (domain.InventoryItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.InventoryItem{}, false
}

// NameTaken reports whether another item (not exceptID) already uses name,
// ignoring case and surrounding space.
func NameTaken(items []domain.InventoryItem, name, exceptID string) bool {
	name = strings.TrimSpace(name)
	for _, it := range items {
		if it.ID != exceptID && strings.EqualFold(strings.TrimSpace(it.Name), name) {
			return true
		}
	}
	return false
}
