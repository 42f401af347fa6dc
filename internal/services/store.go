package services

import (
	"context"

	"rentdesk/internal/booking"
	"rentdesk/internal/repos"
)

// Store is the document store plus its transaction primitive.
type Store interface {
	repos.Docs
	RunInTx(ctx context.Context, fn func(tx repos.Docs) error) error
}

// StateSource hands out the current inventory and reservations.
type StateSource interface {
	Snapshot(ctx context.Context) (booking.State, error)
}

// StoreState reads the state straight from the store on every call.
// The live mirror is the other StateSource.
type StoreState struct{ Docs repos.Docs }

func (s StoreState) Snapshot(ctx context.Context) (booking.State, error) {
	return loadState(ctx, s.Docs)
}

func loadState(ctx context.Context, docs repos.Docs) (booking.State, error) {
	items, err := repos.NewInventoryRepo(docs).List(ctx)
	if err != nil {
		return booking.State{}, err
	}
	rs, err := repos.NewReservationRepo(docs).List(ctx)
	if err != nil {
		return booking.State{}, err
	}
	return booking.State{}.ApplyInventory(items).ApplyReservations(rs), nil
}
