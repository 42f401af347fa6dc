package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	"rentdesk/internal/repos"
	"rentdesk/internal/services"
)

type flakyStore struct {
	*repos.DocStore
	fail bool
}

func (f *flakyStore) RunInTx(ctx context.Context, fn func(tx repos.Docs) error) error {
	if f.fail {
		return errors.New("database is locked")
	}
	return f.DocStore.RunInTx(ctx, fn)
}

type fixture struct {
	store *repos.DocStore
	inv   *services.InventoryService
	res   *services.ReservationService
}

func newFixture(t *testing.T) fixture {
	store := memstore(t)
	return fixture{
		store: store,
		inv:   services.NewInventoryService(store, nil),
		res:   services.NewReservationService(store, nil),
	}
}

func (f fixture) item(t *testing.T, name string, qty int) string {
	t.Helper()
	it, err := f.inv.Create(context.Background(), services.InventoryInput{Name: name, Category: "Chairs", Quantity: qty})
	require.NoError(t, err)
	return it.ID
}

func (f fixture) qty(t *testing.T, id string) int {
	t.Helper()
	it, err := f.inv.Get(context.Background(), id)
	require.NoError(t, err)
	return it.Quantity
}

func (f fixture) reservations(t *testing.T) []domain.Reservation {
	t.Helper()
	rs, err := f.res.List(context.Background(), "")
	require.NoError(t, err)
	return rs
}

func bookingInput(from, to string, lines ...services.LineInput) services.ReservationInput {
	return services.ReservationInput{
		ClientName: "Ana",
		Location:   "City park",
		DateFrom:   from,
		DateTo:     to,
		Time:       "10:00",
		Items:      lines,
		TotalPrice: decimal.NewFromInt(1000),
	}
}

func TestReservationFlow_CreateFinishDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chair := f.item(t, "Chair", 5)

	r, err := f.res.Create(ctx, bookingInput("2025-06-01", "2025-06-03", services.LineInput{ItemID: chair, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, r.Status)
	assert.Equal(t, "Chair", r.Items[0].ItemName)
	assert.Equal(t, 3, f.qty(t, chair))

	rs := f.reservations(t)
	assert.True(t, booking.IsReservedOn(chair, domain.MustDate("2025-06-02"), rs))
	assert.False(t, booking.IsReservedOn(chair, domain.MustDate("2025-06-04"), rs))

	fin, err := f.res.Finish(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, fin.Finished())
	assert.Equal(t, 3, f.qty(t, chair), "finish leaves stock alone")
	assert.False(t, booking.IsReservedOn(chair, domain.MustDate("2025-06-02"), f.reservations(t)))

	_, err = f.res.Finish(ctx, r.ID)
	require.NoError(t, err, "finishing twice is a no-op")

	require.NoError(t, f.res.Delete(ctx, r.ID))
	assert.Equal(t, 5, f.qty(t, chair))
	assert.Empty(t, f.reservations(t))

	require.NoError(t, f.res.Delete(ctx, r.ID), "unknown id is a no-op")
	_, err = f.res.Finish(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReservationFlow_CreateThenDeleteRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.item(t, "Chair", 40)
	b := f.item(t, "Table", 8)

	r, err := f.res.Create(ctx, bookingInput("2025-07-10", "2025-07-12",
		services.LineInput{ItemID: a, Quantity: 25},
		services.LineInput{ItemID: b, Quantity: 8},
	))
	require.NoError(t, err)
	assert.Equal(t, 15, f.qty(t, a))
	assert.Equal(t, 0, f.qty(t, b))

	require.NoError(t, f.res.Delete(ctx, r.ID))
	assert.Equal(t, 40, f.qty(t, a))
	assert.Equal(t, 8, f.qty(t, b))
}

func TestReservationFlow_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chair := f.item(t, "Chair", 5)
	tent := f.item(t, "Tent", 2)

	_, err := f.res.Create(ctx, services.ReservationInput{})
	fields := fieldErrors(t, err)
	for _, k := range []string{"clientName", "location", "dateFrom", "dateTo", "time", "items", "totalPrice"} {
		assert.Contains(t, fields, k)
	}
	assert.Equal(t, "select at least one item", fields["items"])

	in := bookingInput("2025-06-05", "2025-06-01",
		services.LineInput{ItemID: "", Quantity: 0},
		services.LineInput{ItemID: chair, Quantity: 9},
		services.LineInput{ItemID: chair, Quantity: 1},
		services.LineInput{ItemID: "gone", Quantity: 1},
	)
	_, err = f.res.Create(ctx, in)
	fields = fieldErrors(t, err)
	assert.Equal(t, "cannot be before the start date", fields["dateTo"])
	assert.Equal(t, "is required", fields["item_0_id"])
	assert.Equal(t, "must be greater than 0", fields["item_0_quantity"])
	assert.Equal(t, "only 5 available", fields["item_1_quantity"])
	assert.Equal(t, "already on line 2", fields["item_2_id"])
	assert.Equal(t, "item no longer exists", fields["item_3_id"])

	_, err = f.res.Create(ctx, bookingInput("2025-13-40", "06/03/2025", services.LineInput{ItemID: chair, Quantity: 1}))
	fields = fieldErrors(t, err)
	assert.Equal(t, "use YYYY-MM-DD", fields["dateFrom"])
	assert.Equal(t, "use YYYY-MM-DD", fields["dateTo"])

	assert.Equal(t, 5, f.qty(t, chair), "rejected bookings change nothing")
	assert.Empty(t, f.reservations(t))

	// overlapping booking of a held item is refused, a disjoint one is not
	_, err = f.res.Create(ctx, bookingInput("2025-06-01", "2025-06-03", services.LineInput{ItemID: tent, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.res.Create(ctx, bookingInput("2025-06-03", "2025-06-04", services.LineInput{ItemID: tent, Quantity: 1}))
	assert.Contains(t, fieldErrors(t, err)["item_0_id"], "reserved by Ana")
	_, err = f.res.Create(ctx, bookingInput("2025-06-04", "2025-06-05", services.LineInput{ItemID: tent, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 0, f.qty(t, tent))
}

func TestReservationFlow_EditNetsDeltas(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chair := f.item(t, "Chair", 10)
	table := f.item(t, "Table", 4)
	tent := f.item(t, "Tent", 3)

	r, err := f.res.Create(ctx, bookingInput("2025-06-01", "2025-06-03",
		services.LineInput{ItemID: chair, Quantity: 6},
		services.LineInput{ItemID: table, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 4, f.qty(t, chair))

	var changes []string
	f.store.OnChange(func(c string) { changes = append(changes, c) })

	// stock is 4 but the reservation's own 6 count, so 10 is allowed
	edited, err := f.res.Edit(ctx, r.ID, bookingInput("2025-06-01", "2025-06-04",
		services.LineInput{ItemID: chair, Quantity: 10},
		services.LineInput{ItemID: tent, Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, r.ID, edited.ID)
	assert.Equal(t, 0, f.qty(t, chair))
	assert.Equal(t, 4, f.qty(t, table), "dropped line goes back to stock")
	assert.Equal(t, 2, f.qty(t, tent))
	assert.ElementsMatch(t, []string{domain.CollectionInventory, domain.CollectionReservations}, changes)

	_, err = f.res.Edit(ctx, r.ID, bookingInput("2025-06-01", "2025-06-04",
		services.LineInput{ItemID: chair, Quantity: 11},
	))
	assert.Equal(t, "only 10 available", fieldErrors(t, err)["item_0_quantity"])

	_, err = f.res.Edit(ctx, "missing", bookingInput("2025-06-01", "2025-06-02", services.LineInput{ItemID: chair, Quantity: 1}))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// unchanged lines write nothing to inventory
	changes = nil
	_, err = f.res.Edit(ctx, r.ID, bookingInput("2025-06-01", "2025-06-04",
		services.LineInput{ItemID: chair, Quantity: 10},
		services.LineInput{ItemID: tent, Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{domain.CollectionReservations}, changes)
}

func TestReservationFlow_DeletedItemIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chair := f.item(t, "Chair", 5)
	r, err := f.res.Create(ctx, bookingInput("2025-06-01", "2025-06-01", services.LineInput{ItemID: chair, Quantity: 1}))
	require.NoError(t, err)

	require.NoError(t, f.inv.Delete(ctx, chair))
	require.NoError(t, f.res.Delete(ctx, r.ID))
	assert.Empty(t, f.reservations(t))
}

func TestReservationFlow_LegacyRecordDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chair := f.item(t, "Chair", 3)
	id, err := f.store.Create(ctx, domain.CollectionReservations, map[string]any{
		"clientName": "Old", "location": "Hall", "date": "2024-05-10", "time": "09:00",
		"items": []map[string]any{{"itemId": chair, "itemName": "Chair", "quantity": 2}}, "totalPrice": 300,
	})
	require.NoError(t, err)

	r, err := f.res.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, r.DateFrom, r.DateTo)

	require.NoError(t, f.res.Delete(ctx, id))
	assert.Equal(t, 5, f.qty(t, chair))
}

func TestReservationFlow_StoreFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chair := f.item(t, "Chair", 5)

	flaky := &flakyStore{DocStore: f.store, fail: true}
	svc := services.NewReservationService(flaky, nil)
	_, err := svc.Create(ctx, bookingInput("2025-06-01", "2025-06-02", services.LineInput{ItemID: chair, Quantity: 1}))
	var serr *services.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "create reservation", serr.Op)
	assert.Equal(t, 5, f.qty(t, chair))

	flaky.fail = false
	_, err = svc.Create(ctx, bookingInput("2025-06-01", "2025-06-02", services.LineInput{ItemID: chair, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 4, f.qty(t, chair))
}
