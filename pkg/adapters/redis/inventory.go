package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// reserveScript flips the occupied flag of an item hash atomically.
// Returns -1 for an unknown item, 0 if it was already occupied, 1 on success.
var reserveScript = backend.NewScript(`
if redis.call("exists", KEYS[1]) == 0 then
	return -1
end
if redis.call("hget", KEYS[1], "occupied") == "1" then
	return 0
end
redis.call("hset", KEYS[1], "occupied", "1")
return 1
`)

// Inventory implements ports.Inventory with one hash per item and a list for ordering.
type Inventory struct {
	client *backend.Client
	prefix string
}

// NewInventory creates a Redis-backed inventory.
func NewInventory(client *backend.Client, opts ...Option) *Inventory {
	o := apply(opts)
	return &Inventory{
		client: client,
		prefix: o.prefix + "item:",
	}
}

func (inv *Inventory) itemKey(id string) string {
	return inv.prefix + id
}

func (inv *Inventory) orderKey() string {
	return inv.prefix + "order"
}

// Seed replaces the inventory with items.
func (inv *Inventory) Seed(ctx context.Context, items []domain.Item) error {
	ids, err := inv.client.LRange(ctx, inv.orderKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read inventory: %w", err)
	}

	_, err = inv.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, inv.itemKey(id))
		}
		pipe.Del(ctx, inv.orderKey())
		for _, it := range items {
			occupied := "0"
			if it.Occupied {
				occupied = "1"
			}
			pipe.HSet(ctx, inv.itemKey(it.ID), "description", it.Description, "occupied", occupied)
			pipe.RPush(ctx, inv.orderKey(), it.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed inventory: %w", err)
	}
	return nil
}

// ListAvailable returns the unoccupied items in seed order.
func (inv *Inventory) ListAvailable(ctx context.Context) ([]domain.Item, error) {
	ids, err := inv.client.LRange(ctx, inv.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	pipe := inv.client.Pipeline()
	cmds := make([]*backend.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, inv.itemKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	items := make([]domain.Item, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 || fields["occupied"] == "1" {
			continue
		}
		items = append(items, domain.Item{ID: ids[i], Description: fields["description"]})
	}
	return items, nil
}

// Reserve marks the item as occupied.
func (inv *Inventory) Reserve(ctx context.Context, id string) (domain.Reservation, error) {
	res, err := reserveScript.Run(ctx, inv.client, []string{inv.itemKey(id)}).Int()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to reserve item: %w", err)
	}
	switch res {
	case -1:
		return domain.Reservation{}, domain.ErrItemNotFound
	case 0:
		return domain.Reservation{ItemID: id, Status: ports.StatusAlreadyReserved}, nil
	}
	return domain.Reservation{ItemID: id, Status: ports.StatusReserved}, nil
}
