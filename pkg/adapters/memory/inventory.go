package memory

import (
	"context"
	"sync"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
)

// Inventory implements ports.Inventory in memory, preserving insertion order.
// Safe for concurrent use.
type Inventory struct {
	mu    sync.Mutex
	items []domain.Item
}

// NewInventory creates an inventory holding a copy of items.
func NewInventory(items ...domain.Item) *Inventory {
	return &Inventory{items: append([]domain.Item(nil), items...)}
}

// ListAvailable returns the unoccupied items.
func (inv *Inventory) ListAvailable(ctx context.Context) ([]domain.Item, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]domain.Item, 0, len(inv.items))
	for _, it := range inv.items {
		if !it.Occupied {
			out = append(out, it)
		}
	}
	return out, nil
}

// Reserve marks the item as occupied.
func (inv *Inventory) Reserve(ctx context.Context, id string) (domain.Reservation, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	for i := range inv.items {
		if inv.items[i].ID != id {
			continue
		}
		if inv.items[i].Occupied {
			return domain.Reservation{ItemID: id, Status: ports.StatusAlreadyReserved}, nil
		}
		inv.items[i].Occupied = true
		return domain.Reservation{ItemID: id, Status: ports.StatusReserved}, nil
	}
	return domain.Reservation{}, domain.ErrItemNotFound
}
