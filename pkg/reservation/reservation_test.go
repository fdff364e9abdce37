package reservation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/hooks"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) ListAvailable(ctx context.Context) ([]domain.Item, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]domain.Item)
	return items, args.Error(1)
}

func (m *mockInventory) Reserve(ctx context.Context, id string) (domain.Reservation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Reservation), args.Error(1)
}

var _ ports.Inventory = (*mockInventory)(nil)

func call(sc domain.Context) hooks.Call {
	return hooks.Call{SessionID: "s", NodeID: "n", IdempotencyKey: "s:n:1", Context: sc}
}

func TestFetchAvailable(t *testing.T) {
	inv := new(mockInventory)
	items := reservation.DemoItems()[:2]
	inv.On("ListAvailable", mock.Anything).Return(items, nil).Once()

	res, err := reservation.New(inv).FetchAvailable(context.Background(), call(domain.Context{}))
	require.NoError(t, err)
	assert.Equal(t, items, res.Context[domain.KeyItems])
	assert.Equal(t, []string{"Estamos buscando las habitaciones disponibles..."}, res.Messages)
	inv.AssertExpectations(t)
}

func TestFetchAvailable_Error(t *testing.T) {
	inv := new(mockInventory)
	inv.On("ListAvailable", mock.Anything).Return(nil, errors.New("db down"))

	_, err := reservation.New(inv).FetchAvailable(context.Background(), call(domain.Context{}))
	assert.ErrorContains(t, err, "db down")
}

func TestAnnounce(t *testing.T) {
	h := reservation.New(new(mockInventory))

	res, err := h.Announce(context.Background(), call(domain.Context{domain.KeyItems: []domain.Item{
		{ID: "1", Description: "Habitación individual con vista al jardín"},
		{ID: "4", Description: "Habitación familiar"},
	}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Habitaciones disponibles:\n1. Habitación 1: Habitación individual con vista al jardín\n2. Habitación 4: Habitación familiar"}, res.Messages)
	assert.Nil(t, res.Context, "announce does not touch the context")

	res, err = h.Announce(context.Background(), call(domain.Context{domain.KeyItems: []domain.Item{}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"No hay habitaciones disponibles."}, res.Messages)

	_, err = h.Announce(context.Background(), call(domain.Context{}))
	assert.ErrorIs(t, err, domain.ErrContextMissing)
}

func TestConfirmSelection(t *testing.T) {
	h := reservation.New(new(mockInventory))

	res, err := h.ConfirmSelection(context.Background(), call(domain.Context{
		domain.KeySelected: map[string]any{"id": "2", "description": "Habitación doble con balcón"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"La habitación seleccionada fue la nro 2 y es una Habitación doble con balcón."}, res.Messages)

	_, err = h.ConfirmSelection(context.Background(), call(domain.Context{}))
	assert.ErrorIs(t, err, domain.ErrNoSelection)
}

func TestReserve_GuardsRepeatedCalls(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Reserve", mock.Anything, "2").
		Return(domain.Reservation{ItemID: "2", Status: ports.StatusReserved}, nil).
		Once()
	h := reservation.New(inv)
	selected := domain.Item{ID: "2", Description: "Habitación doble con balcón"}

	res, err := h.Reserve(context.Background(), call(domain.Context{domain.KeySelected: selected}))
	require.NoError(t, err)
	assert.Equal(t, domain.Reservation{ItemID: "2", Status: ports.StatusReserved}, res.Context[domain.KeyReservation])

	// Retry of the same visit, e.g. after a crash before the session was saved.
	_, err = h.Reserve(context.Background(), call(domain.Context{domain.KeySelected: selected}))
	require.NoError(t, err)

	// A later visit in a session that already holds the reservation.
	again := call(res.Context)
	again.IdempotencyKey = "s:n:2"
	res, err = h.Reserve(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, []string{"La reserva ya estaba registrada."}, res.Messages)

	inv.AssertNumberOfCalls(t, "Reserve", 1)
}

func TestReserve_AlreadyReservedElsewhere(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Reserve", mock.Anything, "2").
		Return(domain.Reservation{ItemID: "2", Status: ports.StatusAlreadyReserved}, nil).
		Once()
	h := reservation.New(inv)

	res, err := h.Reserve(context.Background(), call(domain.Context{domain.KeySelected: domain.Item{ID: "2"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"La habitación nro 2 ya fue reservada por otro cliente."}, res.Messages)
	assert.Equal(t, domain.Reservation{ItemID: "2", Status: ports.StatusAlreadyReserved}, res.Context[domain.KeyReservation])
	assert.NotContains(t, res.Messages, "Creando la reserva en la base de datos...")
	inv.AssertExpectations(t)
}

func TestReserve_MemoIsBounded(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Reserve", mock.Anything, "2").
		Return(domain.Reservation{ItemID: "2", Status: ports.StatusReserved}, nil)
	h := reservation.New(inv, reservation.WithMemoSize(2))
	ctx := context.Background()

	for _, key := range []string{"a:n:1", "b:n:1", "c:n:1"} {
		c := call(domain.Context{domain.KeySelected: domain.Item{ID: "2"}})
		c.IdempotencyKey = key
		_, err := h.Reserve(ctx, c)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.Remembered())
	inv.AssertNumberOfCalls(t, "Reserve", 3)

	// The newest key is still remembered; the oldest one reaches the inventory again.
	c := call(domain.Context{domain.KeySelected: domain.Item{ID: "2"}})
	c.IdempotencyKey = "c:n:1"
	_, err := h.Reserve(ctx, c)
	require.NoError(t, err)
	inv.AssertNumberOfCalls(t, "Reserve", 3)

	c.IdempotencyKey = "a:n:1"
	_, err = h.Reserve(ctx, c)
	require.NoError(t, err)
	inv.AssertNumberOfCalls(t, "Reserve", 4)
	assert.Equal(t, 2, h.Remembered())
}

func TestReserve_Errors(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Reserve", mock.Anything, "9").Return(domain.Reservation{}, domain.ErrItemNotFound)
	h := reservation.New(inv)

	_, err := h.Reserve(context.Background(), call(domain.Context{}))
	assert.ErrorIs(t, err, domain.ErrNoSelection)

	_, err = h.Reserve(context.Background(), call(domain.Context{domain.KeySelected: domain.Item{ID: "9"}}))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestRegister(t *testing.T) {
	reg := hooks.NewRegistry()
	reservation.New(new(mockInventory)).Register(reg)

	require.NoError(t, reg.Check())
	name, _, ok := reg.Resolve(&domain.Node{ID: "t", Name: "Creacion de la reserva"})
	require.True(t, ok)
	assert.Equal(t, reservation.HookReserve, name)
}
