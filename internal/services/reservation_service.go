package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	"rentdesk/internal/metrics"
	"rentdesk/internal/repos"
	"rentdesk/internal/validate"
)

type LineInput struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// ReservationInput is what the booking form submits for create and edit.
type ReservationInput struct {
	ClientName string          `json:"clientName" validate:"required,max=100"`
	Location   string          `json:"location" validate:"required,max=200"`
	DateFrom   string          `json:"dateFrom"`
	DateTo     string          `json:"dateTo"`
	Time       string          `json:"time" validate:"required,max=20"`
	Items      []LineInput     `json:"items" validate:"required,min=1,dive"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Notes      string          `json:"notes" validate:"max=1000"`
}

func (in ReservationInput) normalized() ReservationInput {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.Location = strings.TrimSpace(in.Location)
	in.DateFrom = strings.TrimSpace(in.DateFrom)
	in.DateTo = strings.TrimSpace(in.DateTo)
	in.Time = strings.TrimSpace(in.Time)
	in.Notes = strings.TrimSpace(in.Notes)
	for i := range in.Items {
		in.Items[i].ItemID = strings.TrimSpace(in.Items[i].ItemID)
	}
	return in
}

// window parses the day fields, recording problems in errs. ok is false
// when there is no usable window to check availability against.
func (in ReservationInput) window(errs *validate.Errors) (w domain.Window, ok bool) {
	from, okFrom := parseDay(errs, "dateFrom", in.DateFrom)
	to, okTo := parseDay(errs, "dateTo", in.DateTo)
	w = domain.Window{From: from, To: to}
	if okFrom && okTo && !w.Valid() {
		errs.Add("dateTo", "cannot be before the start date")
		return w, false
	}
	return w, okFrom && okTo
}

func parseDay(errs *validate.Errors, key, s string) (domain.Date, bool) {
	d, err := domain.ParseDate(s)
	switch {
	case err != nil:
		errs.Add(key, "use YYYY-MM-DD")
		return domain.Date{}, false
	case d.IsZero():
		errs.Add(key, "is required")
		return d, false
	}
	return d, true
}

type ReservationService struct {
	store   Store
	metrics *metrics.Metrics
}

func NewReservationService(store Store, m *metrics.Metrics) *ReservationService {
	return &ReservationService{store: store, metrics: m}
}

func (s *ReservationService) Get(ctx context.Context, id string) (domain.Reservation, error) {
	r, err := repos.NewReservationRepo(s.store).Get(ctx, id)
	return r, storeErr("get reservation", err)
}

// List returns reservations matching q on client name or location, newest first.
func (s *ReservationService) List(ctx context.Context, q string) ([]domain.Reservation, error) {
	rs, err := repos.NewReservationRepo(s.store).List(ctx)
	if err != nil {
		return nil, storeErr("list reservations", err)
	}
	return booking.SearchReservations(rs, q), nil
}

// check validates in against the current state. editing is the stored
// version of the reservation being edited, nil on create. Its own claims
// count as available stock and never block its items.
func check(in ReservationInput, st booking.State, editing *domain.Reservation) ([]domain.LineItem, domain.Window, error) {
	errs := validate.Struct(in)
	w, datesOK := in.window(errs)
	if !in.TotalPrice.IsPositive() {
		errs.Add("totalPrice", "must be greater than 0")
	}

	skipID := ""
	own := map[string]int{}
	if editing != nil {
		skipID = editing.ID
		own = editing.Claims()
	}

	lines := make([]domain.LineItem, 0, len(in.Items))
	seen := map[string]int{}
	for i, l := range in.Items {
		if l.ItemID == "" {
			continue
		}
		if first, dup := seen[l.ItemID]; dup {
			errs.Add(validate.LineKey(i, "id"), fmt.Sprintf("already on line %d", first+1))
			continue
		}
		seen[l.ItemID] = i

		it, ok := booking.FindItem(st.Inventory, l.ItemID)
		if !ok {
			errs.Add(validate.LineKey(i, "id"), "item no longer exists")
			continue
		}
		if datesOK {
			if b := booking.Blocker(it.ID, w, st.Reservations, skipID); b != nil {
				errs.Add(validate.LineKey(i, "id"), fmt.Sprintf("reserved by %s from %s to %s", b.ClientName, b.DateFrom, b.DateTo))
			}
		}
		if stock := it.Quantity + own[it.ID]; l.Quantity > stock {
			errs.Add(validate.LineKey(i, "quantity"), fmt.Sprintf("only %d available", stock))
		}
		lines = append(lines, domain.LineItem{ItemID: it.ID, ItemName: it.Name, Quantity: l.Quantity})
	}
	if err := errs.Err(); err != nil {
		return nil, w, err
	}
	return lines, w, nil
}

// adjust applies per-item quantity deltas. Items that no longer exist are
// skipped. Zero deltas cause no write.
func adjust(ctx context.Context, inv *repos.InventoryRepo, items []domain.InventoryItem, deltas map[string]int) error {
	ids := make([]string, 0, len(deltas))
	for id, d := range deltas {
		if d != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		it, ok := booking.FindItem(items, id)
		if !ok {
			continue
		}
		q := it.Quantity + deltas[id]
		if q < 0 {
			return fmt.Errorf("%s: %w", it.Name, domain.ErrNegativeQuantity)
		}
		if err := inv.SetQuantity(ctx, id, q); err != nil {
			return err
		}
	}
	return nil
}

func negate(claims map[string]int) map[string]int {
	out := make(map[string]int, len(claims))
	for id, q := range claims {
		out[id] = -q
	}
	return out
}

// Create stores an active reservation and takes its quantities out of stock.
func (s *ReservationService) Create(ctx context.Context, in ReservationInput) (domain.Reservation, error) {
	in = in.normalized()
	var out domain.Reservation
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		lines, w, err := check(in, st, nil)
		if err != nil {
			return err
		}
		out = domain.Reservation{
			ClientName: in.ClientName,
			Location:   in.Location,
			DateFrom:   w.From,
			DateTo:     w.To,
			Time:       in.Time,
			Items:      lines,
			TotalPrice: in.TotalPrice,
			Notes:      in.Notes,
			Status:     domain.StatusActive,
		}
		if out.ID, err = repos.NewReservationRepo(tx).Create(ctx, out); err != nil {
			return err
		}
		return adjust(ctx, repos.NewInventoryRepo(tx), st.Inventory, negate(out.Claims()))
	})
	err = storeErr("create reservation", err)
	s.metrics.Mutation("reservation.create", err)
	return out, err
}

// Delete puts the reserved quantities back and removes the reservation.
// Unknown ids are a no-op.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		rr := repos.NewReservationRepo(tx)
		r, err := rr.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		inv := repos.NewInventoryRepo(tx)
		items, err := inv.List(ctx)
		if err != nil {
			return err
		}
		if err := adjust(ctx, inv, items, r.Claims()); err != nil {
			return err
		}
		return rr.Delete(ctx, id)
	})
	err = storeErr("delete reservation", err)
	s.metrics.Mutation("reservation.delete", err)
	return err
}

// Finish marks the reservation finished. Stock is not touched, so items stay
// out until the reservation is deleted. Finishing twice is a no-op.
func (s *ReservationService) Finish(ctx context.Context, id string) (domain.Reservation, error) {
	rr := repos.NewReservationRepo(s.store)
	r, err := rr.Get(ctx, id)
	if err != nil {
		return domain.Reservation{}, storeErr("get reservation", err)
	}
	if r.Finished() {
		return r, nil
	}
	err = storeErr("finish reservation", rr.SetStatus(ctx, id, domain.StatusFinished))
	s.metrics.Mutation("reservation.finish", err)
	if err != nil {
		return domain.Reservation{}, err
	}
	r.Status = domain.StatusFinished
	return r, nil
}

// Edit returns the old claims to stock, takes the new ones, and overwrites the
// document. Deltas are netted per item, so unchanged lines cause no write.
func (s *ReservationService) Edit(ctx context.Context, id string, in ReservationInput) (domain.Reservation, error) {
	in = in.normalized()
	var out domain.Reservation
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		rr := repos.NewReservationRepo(tx)
		old, err := rr.Get(ctx, id)
		if err != nil {
			return err
		}
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		lines, w, err := check(in, st, &old)
		if err != nil {
			return err
		}
		out = domain.Reservation{
			ID:         id,
			ClientName: in.ClientName,
			Location:   in.Location,
			DateFrom:   w.From,
			DateTo:     w.To,
			Time:       in.Time,
			Items:      lines,
			TotalPrice: in.TotalPrice,
			Notes:      in.Notes,
			Status:     old.Status,
		}
		deltas := old.Claims()
		for itemID, q := range out.Claims() {
			deltas[itemID] -= q
		}
		if err := adjust(ctx, repos.NewInventoryRepo(tx), st.Inventory, deltas); err != nil {
			return err
		}
		return rr.Replace(ctx, id, out)
	})
	err = storeErr("edit reservation", err)
	s.metrics.Mutation("reservation.edit", err)
	return out, err
}
