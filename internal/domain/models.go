package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Collection names in the document store.
const (
	CollectionInventory    = "inventory"
	CollectionReservations = "reservations"
)

// LowStockThreshold: items with fewer units than this are flagged.
const LowStockThreshold = 10

var (
	ErrNotFound         = errors.New("not found")
	ErrNegativeQuantity = errors.New("quantity cannot go below zero")
)

// Prices go over the wire as JSON numbers, the way stored records hold them.
func init() { decimal.MarshalJSONWithoutQuotes = true }

// SuggestedCategories are offered alongside the categories already in use.
var SuggestedCategories = []string{"Chairs", "Tables", "Tents", "Pagodas", "Other"}

type InventoryItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// LineItem is one piece of equipment on a reservation. ItemName is copied
// from the inventory when the line is booked and is never re-synced.
type LineItem struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

type Reservation struct {
	ID         string          `json:"id"`
	ClientName string          `json:"clientName"`
	Location   string          `json:"location"`
	DateFrom   Date            `json:"dateFrom"`
	DateTo     Date            `json:"dateTo"`
	Time       string          `json:"time"`
	Items      []LineItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Notes      string          `json:"notes,omitempty"`
	Status     Status          `json:"status"`
}

func (r Reservation) Window() Window { return Window{From: r.DateFrom, To: r.DateTo} }

func (r Reservation) Finished() bool { return r.Status == StatusFinished }

// Claims sums line quantities per item id.
func (r Reservation) Claims() map[string]int {
	out := make(map[string]int, len(r.Items))
	for _, it := range r.Items {
		out[it.ItemID] += it.Quantity
	}
	return out
}

func (r Reservation) HasItem(itemID string) bool {
	for _, it := range r.Items {
		if it.ItemID == itemID {
			return true
		}
	}
	return false
}
