package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a session
		s := domain.NewSession(sessionID)
		s.CurrentNodeID = "catch"
		s.Phase = domain.PhaseAwaitingInput
		s.ExpectedChoices = []string{"1", "2"}
		s.History = []string{"start", "catch"}
		s.Context[domain.KeyItems] = []domain.Item{{ID: "1", Description: "Suite"}}
		s.Context["count"] = 42

		// 2. Save
		err := store.Save(ctx, s)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, s.Phase, loaded.Phase)
		assert.Equal(t, s.ExpectedChoices, loaded.ExpectedChoices)
		assert.Equal(t, s.History, loaded.History)
		// JSON persistence turns structs into maps and ints into floats;
		// item lists must still decode.
		items, err := domain.DecodeItems(loaded.Context[domain.KeyItems])
		require.NoError(t, err)
		assert.Equal(t, "Suite", items[0].Description)
		assert.NotNil(t, loaded.Context["count"])
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Context["mutated"] = true

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.Context, "mutated")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1))
		_ = store.Save(ctx, domain.NewSession(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// ContractItems is the inventory every RunInventoryContract factory must be seeded with.
var ContractItems = []domain.Item{
	{ID: "1", Description: "Habitación individual con vista al jardín"},
	{ID: "2", Description: "Habitación doble con balcón"},
	{ID: "3", Description: "Suite ejecutiva", Occupied: true},
	{ID: "4", Description: "Habitación familiar"},
}

// RunInventoryContract verifies an Inventory implementation.
// newInventory must return a fresh inventory holding exactly the given items.
func RunInventoryContract(t *testing.T, newInventory func(t *testing.T, items []domain.Item) Inventory) {
	ctx := context.Background()

	t.Run("List Available", func(t *testing.T) {
		inv := newInventory(t, ContractItems)
		items, err := inv.ListAvailable(ctx)
		require.NoError(t, err)

		var ids []string
		for _, it := range items {
			ids = append(ids, it.ID)
			assert.False(t, it.Occupied)
		}
		assert.Equal(t, []string{"1", "2", "4"}, ids, "occupied items are hidden, order is stable")
		assert.Equal(t, "Habitación doble con balcón", items[1].Description)
	})

	t.Run("Reserve", func(t *testing.T) {
		inv := newInventory(t, ContractItems)
		ack, err := inv.Reserve(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, "2", ack.ItemID)
		assert.Equal(t, StatusReserved, ack.Status)

		items, err := inv.ListAvailable(ctx)
		require.NoError(t, err)
		for _, it := range items {
			assert.NotEqual(t, "2", it.ID, "reserved item must not be listed")
		}
	})

	t.Run("Reserve Is Idempotent", func(t *testing.T) {
		inv := newInventory(t, ContractItems)
		_, err := inv.Reserve(ctx, "4")
		require.NoError(t, err)

		ack, err := inv.Reserve(ctx, "4")
		require.NoError(t, err, "second reserve must succeed")
		assert.Equal(t, StatusAlreadyReserved, ack.Status)

		items, err := inv.ListAvailable(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("Concurrent Reserve", func(t *testing.T) {
		inv := newInventory(t, ContractItems)
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			reserved int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ack, err := inv.Reserve(ctx, "1")
				if err == nil && ack.Status == StatusReserved {
					mu.Lock()
					reserved++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, reserved, "exactly one caller commits the reservation")
	})

	t.Run("Reserve Unknown", func(t *testing.T) {
		inv := newInventory(t, ContractItems)
		_, err := inv.Reserve(ctx, "99")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})
}
