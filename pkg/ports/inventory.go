package ports

import (
	"context"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Inventory is the reservation backend.
type Inventory interface {
	// ListAvailable returns the unoccupied items in a stable order.
	ListAvailable(ctx context.Context) ([]domain.Item, error)

	// Reserve marks the item as occupied.
	// It must be safe to call more than once for the same id: reserving an
	// already occupied item succeeds without further effect.
	// Returns domain.ErrItemNotFound for unknown ids.
	Reserve(ctx context.Context, id string) (domain.Reservation, error)
}

// Reservation statuses.
const (
	StatusReserved        = "reserved"
	StatusAlreadyReserved = "already_reserved"
)
