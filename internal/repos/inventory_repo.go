package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"rentdesk/internal/domain"
	applog "rentdesk/internal/log"
)

type InventoryRepo struct{ docs Docs }

// NewInventoryRepo works on the store or on a running transaction.
func NewInventoryRepo(docs Docs) *InventoryRepo { return &InventoryRepo{docs: docs} }

// DecodeInventory maps a stored document onto an InventoryItem.
func DecodeInventory(doc Document) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	if err := json.Unmarshal(doc.Data, &it); err != nil {
		return domain.InventoryItem{}, fmt.Errorf("inventory %s: %w", doc.ID, err)
	}
	it.ID = doc.ID
	return it, nil
}

// DecodeInventoryList decodes what it can; broken records are logged and skipped.
func DecodeInventoryList(docs []Document) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(docs))
	for _, d := range docs {
		it, err := DecodeInventory(d)
		if err != nil {
			applog.Warn(nil, "inventory.decode.skip", err, map[string]any{"id": d.ID})
			continue
		}
		out = append(out, it)
	}
	return out
}

func (r *InventoryRepo) List(ctx context.Context) ([]domain.InventoryItem, error) {
	docs, err := r.docs.List(ctx, domain.CollectionInventory)
	if err != nil {
		return nil, err
	}
	return DecodeInventoryList(docs), nil
}

// Get returns domain.ErrNotFound (wrapped) for unknown ids.
func (r *InventoryRepo) Get(ctx context.Context, id string) (domain.InventoryItem, error) {
	doc, err := r.docs.Get(ctx, domain.CollectionInventory, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return DecodeInventory(doc)
}

func (r *InventoryRepo) Create(ctx context.Context, it domain.InventoryItem) (string, error) {
	return r.docs.Create(ctx, domain.CollectionInventory, map[string]any{
		"name":     it.Name,
		"category": it.Category,
		"quantity": it.Quantity,
	})
}

func (r *InventoryRepo) Update(ctx context.Context, id string, it domain.InventoryItem) error {
	return r.docs.Update(ctx, domain.CollectionInventory, id, map[string]any{
		"name":     it.Name,
		"category": it.Category,
		"quantity": it.Quantity,
	})
}

func (r *InventoryRepo) SetQuantity(ctx context.Context, id string, qty int) error {
	return r.docs.Update(ctx, domain.CollectionInventory, id, map[string]any{"quantity": qty})
}

func (r *InventoryRepo) Delete(ctx context.Context, id string) error {
	return r.docs.Delete(ctx, domain.CollectionInventory, id)
}
