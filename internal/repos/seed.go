package repos

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"rentdesk/internal/domain"
)

// SeedDemo inserts a small warehouse and one booking when the inventory is empty.
// Safe to run on every startup.
func SeedDemo(ctx context.Context, store *DocStore) error {
	existing, err := store.List(ctx, domain.CollectionInventory)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	log.Println("[seed] inserting demo inventory/reservations")

	return store.RunInTx(ctx, func(tx Docs) error {
		inv := NewInventoryRepo(tx)
		items := []domain.InventoryItem{
			{Name: "Folding chair", Category: "Chairs", Quantity: 120},
			{Name: "Banquet table", Category: "Tables", Quantity: 30},
			{Name: "Party tent 6x12", Category: "Tents", Quantity: 4},
			{Name: "Pagoda 5x5", Category: "Pagodas", Quantity: 6},
			{Name: "Patio heater", Category: "Other", Quantity: 8},
		}
		ids := make([]string, len(items))
		for i, it := range items {
			id, err := inv.Create(ctx, it)
			if err != nil {
				return err
			}
			ids[i] = id
		}

		start := domain.Today().AddDays(2)
		booked := domain.Reservation{
			ClientName: "Demo Client",
			Location:   "City park, north lawn",
			DateFrom:   start,
			DateTo:     start.AddDays(1),
			Time:       "09:00",
			Items: []domain.LineItem{
				{ItemID: ids[0], ItemName: items[0].Name, Quantity: 40},
				{ItemID: ids[3], ItemName: items[3].Name, Quantity: 2},
			},
			TotalPrice: decimal.NewFromInt(18000),
			Status:     domain.StatusActive,
		}
		if _, err := NewReservationRepo(tx).Create(ctx, booked); err != nil {
			return err
		}
		if err := inv.SetQuantity(ctx, ids[0], items[0].Quantity-40); err != nil {
			return err
		}
		return inv.SetQuantity(ctx, ids[3], items[3].Quantity-2)
	})
}
