package services

import (
	"context"
	"fmt"
	"strings"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	"rentdesk/internal/metrics"
	"rentdesk/internal/repos"
	"rentdesk/internal/validate"
)

type InventoryInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Category string `json:"category" validate:"required,max=50"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (in InventoryInput) normalized() InventoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

// InventoryList is a filtered listing plus figures over the whole warehouse.
type InventoryList struct {
	Items []domain.InventoryItem `json:"items"`
	Stats booking.WarehouseStats `json:"stats"`
}

// ItemSchedule lists when an item is booked.
type ItemSchedule struct {
	Item       domain.InventoryItem `json:"item"`
	Windows    []domain.Window      `json:"windows"`
	Reserved   bool                 `json:"reservedToday"`
	CurrentEnd *domain.Date         `json:"currentEnd,omitempty"`
}

type InventoryService struct {
	store   Store
	metrics *metrics.Metrics
	today   func() domain.Date
}

func NewInventoryService(store Store, m *metrics.Metrics) *InventoryService {
	return &InventoryService{store: store, metrics: m, today: domain.Today}
}

func (s *InventoryService) List(ctx context.Context, search, category string) (InventoryList, error) {
	items, err := repos.NewInventoryRepo(s.store).List(ctx)
	if err != nil {
		return InventoryList{}, storeErr("list inventory", err)
	}
	return InventoryList{
		Items: booking.FilterInventory(items, search, category),
		Stats: booking.Stats(items),
	}, nil
}

func (s *InventoryService) Get(ctx context.Context, id string) (domain.InventoryItem, error) {
	it, err := repos.NewInventoryRepo(s.store).Get(ctx, id)
	return it, storeErr("get inventory", err)
}

func (s *InventoryService) Categories(ctx context.Context) ([]string, error) {
	items, err := repos.NewInventoryRepo(s.store).List(ctx)
	if err != nil {
		return nil, storeErr("list inventory", err)
	}
	return booking.Categories(items, domain.SuggestedCategories), nil
}

func checkItem(in InventoryInput, items []domain.InventoryItem, exceptID string) error {
	errs := validate.Struct(in)
	if in.Name != "" && booking.NameTaken(items, in.Name, exceptID) {
		errs.Add("name", "an item with this name already exists")
	}
	return errs.Err()
}

func (s *InventoryService) Create(ctx context.Context, in InventoryInput) (domain.InventoryItem, error) {
	in = in.normalized()
	var out domain.InventoryItem
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		inv := repos.NewInventoryRepo(tx)
		items, err := inv.List(ctx)
		if err != nil {
			return err
		}
		if err := checkItem(in, items, ""); err != nil {
			return err
		}
		out = domain.InventoryItem{Name: in.Name, Category: in.Category, Quantity: in.Quantity}
		out.ID, err = inv.Create(ctx, out)
		return err
	})
	err = storeErr("create inventory", err)
	s.metrics.Mutation("inventory.create", err)
	return out, err
}

func (s *InventoryService) Update(ctx context.Context, id string, in InventoryInput) (domain.InventoryItem, error) {
	in = in.normalized()
	var out domain.InventoryItem
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		inv := repos.NewInventoryRepo(tx)
		if _, err := inv.Get(ctx, id); err != nil {
			return err
		}
		items, err := inv.List(ctx)
		if err != nil {
			return err
		}
		if err := checkItem(in, items, id); err != nil {
			return err
		}
		out = domain.InventoryItem{ID: id, Name: in.Name, Category: in.Category, Quantity: in.Quantity}
		return inv.Update(ctx, id, out)
	})
	err = storeErr("update inventory", err)
	s.metrics.Mutation("inventory.update", err)
	return out, err
}

// Adjust moves the quantity on hand by delta. Results below zero are refused.
func (s *InventoryService) Adjust(ctx context.Context, id string, delta int) (domain.InventoryItem, error) {
	var out domain.InventoryItem
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		inv := repos.NewInventoryRepo(tx)
		it, err := inv.Get(ctx, id)
		if err != nil {
			return err
		}
		if it.Quantity+delta < 0 {
			return fmt.Errorf("%s has %d: %w", it.Name, it.Quantity, domain.ErrNegativeQuantity)
		}
		it.Quantity += delta
		out = it
		if delta == 0 {
			return nil
		}
		return inv.SetQuantity(ctx, id, it.Quantity)
	})
	err = storeErr("adjust inventory", err)
	s.metrics.Mutation("inventory.adjust", err)
	return out, err
}

// Delete removes the item. Reservations that reference it keep their lines.
func (s *InventoryService) Delete(ctx context.Context, id string) error {
	err := s.store.RunInTx(ctx, func(tx repos.Docs) error {
		inv := repos.NewInventoryRepo(tx)
		if _, err := inv.Get(ctx, id); err != nil {
			return err
		}
		return inv.Delete(ctx, id)
	})
	err = storeErr("delete inventory", err)
	s.metrics.Mutation("inventory.delete", err)
	return err
}

func (s *InventoryService) Schedule(ctx context.Context, id string) (ItemSchedule, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return ItemSchedule{}, err
	}
	rs, err := repos.NewReservationRepo(s.store).List(ctx)
	if err != nil {
		return ItemSchedule{}, storeErr("list reservations", err)
	}
	today := s.today()
	out := ItemSchedule{
		Item:     it,
		Windows:  booking.ItemSchedule(id, rs),
		Reserved: booking.IsReservedOn(id, today, rs),
	}
	if out.Windows == nil {
		out.Windows = []domain.Window{}
	}
	if end := booking.CurrentReservationEnd(id, today, rs); !end.IsZero() {
		out.CurrentEnd = &end
	}
	return out, nil
}
