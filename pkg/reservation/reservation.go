// Package reservation provides the room booking hooks bound to the Inventory port.
//
// The hooks cooperate through the session context: fetch_available stores the
// available items under domain.KeyItems, the catch event stores the pick under
// domain.KeySelected, and reserve records the acknowledgement under
// domain.KeyReservation.
package reservation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/hooks"
	"github.com/aretw0/bpmnchat/pkg/ports"
)

// Hook names.
const (
	HookFetchAvailable   = "fetch_available"
	HookAnnounce         = "announce_available"
	HookConfirmSelection = "confirm_selection"
	HookReserve          = "reserve"
)

// DefaultBindings maps the task names of the hotel booking diagram to the hooks.
func DefaultBindings() map[string]string {
	return map[string]string{
		"Busqueda de disponibilidad":    HookFetchAvailable,
		"Enviar información al cliente": HookAnnounce,
		"Confirmar reserva":             HookConfirmSelection,
		"Creacion de la reserva":        HookReserve,
	}
}

// DemoItems is the seed inventory used by the demo and the seed command.
func DemoItems() []domain.Item {
	return []domain.Item{
		{ID: "1", Description: "Habitación individual con vista al jardín"},
		{ID: "2", Description: "Habitación doble con balcón"},
		{ID: "3", Description: "Suite ejecutiva", Occupied: true},
		{ID: "4", Description: "Habitación familiar"},
	}
}

// DefaultMemoSize is how many recent reservation acks are kept for retried visits.
const DefaultMemoSize = 1024

// Option configures the booking hooks.
type Option func(*Hooks)

// WithMemoSize bounds the number of remembered acks. Values below one keep one.
func WithMemoSize(n int) Option {
	return func(h *Hooks) {
		h.memoSize = max(n, 1)
	}
}

// Hooks implements the booking handlers.
type Hooks struct {
	inventory ports.Inventory
	memoSize  int

	mu    sync.Mutex
	done  map[string]domain.Reservation // by idempotency key
	order []string                      // insertion order of done, oldest first
}

// New creates the booking hooks backed by inv.
func New(inv ports.Inventory, opts ...Option) *Hooks {
	h := &Hooks{
		inventory: inv,
		memoSize:  DefaultMemoSize,
		done:      make(map[string]domain.Reservation),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// remember records ack under key and evicts the oldest entries past memoSize.
func (h *Hooks) remember(key string, ack domain.Reservation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.done[key]; !ok {
		h.order = append(h.order, key)
	}
	h.done[key] = ack
	for len(h.order) > h.memoSize {
		delete(h.done, h.order[0])
		h.order = h.order[1:]
	}
}

// Remembered reports how many acks are currently kept.
func (h *Hooks) Remembered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.done)
}

// Register adds the handlers to reg and applies DefaultBindings.
// Bindings from a dialogue file can be applied afterwards to override them.
func (h *Hooks) Register(reg *hooks.Registry) {
	reg.Register(HookFetchAvailable, h.FetchAvailable)
	reg.Register(HookAnnounce, h.Announce)
	reg.Register(HookConfirmSelection, h.ConfirmSelection)
	reg.Register(HookReserve, h.Reserve)
	reg.BindAll(DefaultBindings())
}

// FetchAvailable stores the available items in the context.
func (h *Hooks) FetchAvailable(ctx context.Context, call hooks.Call) (hooks.Result, error) {
	items, err := h.inventory.ListAvailable(ctx)
	if err != nil {
		return hooks.Result{}, fmt.Errorf("failed to list available items: %w", err)
	}
	logging.FromContext(ctx).Debug("fetched available items", "count", len(items))

	call.Context[domain.KeyItems] = items
	return hooks.Result{
		Context:  call.Context,
		Messages: []string{"Estamos buscando las habitaciones disponibles..."},
	}, nil
}

// Announce lists the fetched items.
func (h *Hooks) Announce(_ context.Context, call hooks.Call) (hooks.Result, error) {
	items, err := itemsFrom(call)
	if err != nil {
		return hooks.Result{}, err
	}
	if len(items) == 0 {
		return hooks.Result{Messages: []string{"No hay habitaciones disponibles."}}, nil
	}

	lines := make([]string, 0, len(items))
	for i, it := range items {
		lines = append(lines, fmt.Sprintf("%d. Habitación %s: %s", i+1, it.ID, it.Description))
	}
	return hooks.Result{Messages: []string{"Habitaciones disponibles:\n" + strings.Join(lines, "\n")}}, nil
}

// ConfirmSelection describes the selected item.
func (h *Hooks) ConfirmSelection(_ context.Context, call hooks.Call) (hooks.Result, error) {
	item, err := selectedFrom(call)
	if err != nil {
		return hooks.Result{}, err
	}
	msg := fmt.Sprintf("La habitación seleccionada fue la nro %s y es una %s.", item.ID, item.Description)
	return hooks.Result{Messages: []string{msg}}, nil
}

// Reserve commits the selected item.
// A repeated call for the same visit, or for an item this session already
// reserved, does not reach the inventory again.
func (h *Hooks) Reserve(ctx context.Context, call hooks.Call) (hooks.Result, error) {
	item, err := selectedFrom(call)
	if err != nil {
		return hooks.Result{}, err
	}
	logger := logging.FromContext(ctx)

	if raw, ok := call.Context[domain.KeyReservation]; ok {
		if prev, err := domain.DecodeReservation(raw); err == nil && prev.ItemID == item.ID {
			logger.Debug("reservation already recorded in session", "item_id", item.ID)
			return hooks.Result{Messages: []string{"La reserva ya estaba registrada."}}, nil
		}
	}

	h.mu.Lock()
	ack, seen := h.done[call.IdempotencyKey]
	h.mu.Unlock()

	if !seen {
		ack, err = h.inventory.Reserve(ctx, item.ID)
		if err != nil {
			return hooks.Result{}, fmt.Errorf("failed to reserve item %s: %w", item.ID, err)
		}
		if call.IdempotencyKey != "" {
			h.remember(call.IdempotencyKey, ack)
		}
		logger.Info("reservation committed", "item_id", item.ID, "status", ack.Status)
	}

	call.Context[domain.KeyReservation] = ack
	msg := "Creando la reserva en la base de datos..."
	if ack.Status == ports.StatusAlreadyReserved {
		logger.Warn("item already reserved by another session", "item_id", item.ID)
		msg = fmt.Sprintf("La habitación nro %s ya fue reservada por otro cliente.", item.ID)
	}
	return hooks.Result{
		Context:  call.Context,
		Messages: []string{msg},
	}, nil
}

func itemsFrom(call hooks.Call) ([]domain.Item, error) {
	raw, ok := call.Context[domain.KeyItems]
	if !ok {
		return nil, &domain.ContextMissingError{NodeID: call.NodeID, Key: domain.KeyItems}
	}
	items, err := domain.DecodeItems(raw)
	if err != nil {
		return nil, &domain.ContextMissingError{NodeID: call.NodeID, Key: domain.KeyItems, Err: err}
	}
	return items, nil
}

func selectedFrom(call hooks.Call) (domain.Item, error) {
	raw, ok := call.Context[domain.KeySelected]
	if !ok {
		return domain.Item{}, domain.ErrNoSelection
	}
	item, err := domain.DecodeItem(raw)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: %v", domain.ErrNoSelection, err)
	}
	return item, nil
}
