package booking

import "rentdesk/internal/domain"

// State is one consistent view of both collections as last delivered by the
// store. It is replaced, never patched.
type State struct {
	Inventory    []domain.InventoryItem
	Reservations []domain.Reservation
}

// ApplyInventory returns s with the inventory replaced by records. Applying
// the same records twice yields the same state.
func (s State) ApplyInventory(records []domain.InventoryItem) State {
	s.Inventory = append([]domain.InventoryItem(nil), records...)
	return s
}

// ApplyReservations returns s with the reservations replaced by records.
func (s State) ApplyReservations(records []domain.Reservation) State {
	s.Reservations = append([]domain.Reservation(nil), records...)
	return s
}
