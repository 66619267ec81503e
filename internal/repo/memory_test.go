package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventTickets/internal/model"
)

func seedEvent(t *testing.T, r Repository, id string, capacity int) {
	t.Helper()
	require.NoError(t, r.CreateEvent(context.Background(), &model.Event{
		ID:               id,
		Title:            "Go Meetup",
		Capacity:         capacity,
		AvailableTickets: capacity,
		CreatedAt:        fixedTime,
	}))
}

func issueTickets(ctx context.Context, r Repository, eventID string, codes ...string) error {
	return r.WithinTx(ctx, func(tx Tx) error {
		e, err := tx.ReserveTickets(ctx, eventID, len(codes))
		if err != nil {
			return err
		}
		orderID := "order-" + codes[0]
		if err := tx.InsertOrder(ctx, &model.Order{
			ID: orderID, User: model.UserRef{ID: "u1"}, Event: e.Ref(),
			Quantity: len(codes), Status: model.OrderCompleted, CreatedAt: fixedTime,
		}); err != nil {
			return err
		}
		tickets := make([]model.Ticket, 0, len(codes))
		for _, c := range codes {
			tickets = append(tickets, model.Ticket{
				ID: "t-" + c, OrderID: orderID, Event: e.Ref(), User: model.UserRef{ID: "u1"},
				Code: c, Status: model.TicketValid, PurchaseDate: fixedTime,
			})
		}
		return tx.InsertTickets(ctx, tickets)
	})
}

func TestMemory_WithinTxUndoesOnError(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seedEvent(t, r, "e1", 5)
	require.NoError(t, issueTickets(ctx, r, "e1", "a"))

	err := issueTickets(ctx, r, "e1", "b", "a")
	assert.ErrorIs(t, err, model.ErrDuplicateCode)

	e, err := r.GetEventByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 4, e.AvailableTickets, "failed issuance must not consume seats")

	_, err = r.GetOrderByID(ctx, "order-b")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
	_, err = r.GetTicketByCode(ctx, "b")
	assert.ErrorIs(t, err, model.ErrCodeNotFound)

	sentinel := errors.New("boom")
	err = r.WithinTx(ctx, func(tx Tx) error {
		if _, _, err := tx.TransitionTicket(ctx, "t-a", model.TicketValid, model.TicketCancelled, fixedTime); err != nil {
			return err
		}
		if err := tx.ReleaseTickets(ctx, "e1", 1); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	tk, err := r.GetTicketByCode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.TicketValid, tk.Status)
	e, _ = r.GetEventByID(ctx, "e1")
	assert.Equal(t, 4, e.AvailableTickets)
}

func TestMemory_ReserveRejects(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seedEvent(t, r, "e1", 2)

	assert.ErrorIs(t, issueTickets(ctx, r, "e1", "a", "b", "c"), model.ErrInsufficientCapacity)
	assert.ErrorIs(t, issueTickets(ctx, r, "missing", "a"), model.ErrEventNotFound)
	assert.NoError(t, issueTickets(ctx, r, "e1", "a", "b"))
	assert.ErrorIs(t, issueTickets(ctx, r, "e1", "c"), model.ErrInsufficientCapacity)
}

func TestMemory_ConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seedEvent(t, r, "e1", 10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := string(rune('A'+i%26)) + string(rune('a'+i/26))
			if issueTickets(ctx, r, "e1", code) == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, success)
	e, _ := r.GetEventByID(ctx, "e1")
	assert.Equal(t, 0, e.AvailableTickets)
}

func TestMemory_TransitionTicketByCode(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seedEvent(t, r, "e1", 1)
	require.NoError(t, issueTickets(ctx, r, "e1", "code"))
	at := fixedTime.Add(time.Hour)

	tk, applied, err := r.TransitionTicketByCode(ctx, "code", model.TicketValid, model.TicketUsed, at)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NotNil(t, tk.CheckInDate)
	assert.True(t, tk.CheckInDate.Equal(at))

	tk, applied, err = r.TransitionTicketByCode(ctx, "code", model.TicketValid, model.TicketUsed, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, tk.CheckInDate.Equal(at), "check-in time is set once")

	_, _, err = r.TransitionTicketByCode(ctx, "nope", model.TicketValid, model.TicketUsed, at)
	assert.ErrorIs(t, err, model.ErrCodeNotFound)
}

func TestMemory_UpdateEventCapacity(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seedEvent(t, r, "e1", 4)
	require.NoError(t, issueTickets(ctx, r, "e1", "a", "b", "c"))

	e, err := r.UpdateEvent(ctx, &model.Event{ID: "e1", Title: "Go Meetup", Capacity: 10})
	require.NoError(t, err)
	assert.Equal(t, 7, e.AvailableTickets)

	_, err = r.UpdateEvent(ctx, &model.Event{ID: "e1", Capacity: 2})
	assert.ErrorIs(t, err, model.ErrInvalidCapacity)
	_, err = r.UpdateEvent(ctx, &model.Event{ID: "missing", Capacity: 2})
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestMemory_OrdersAndReconcile(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seedEvent(t, r, "e1", 5)
	require.NoError(t, issueTickets(ctx, r, "e1", "a", "b"))

	orders, err := r.ListOrdersByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Tickets, 2)

	drifts, err := r.ReconcileInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	mem := r.(*memoryRepository)
	e := mem.events["e1"]
	e.AvailableTickets = 5
	mem.events["e1"] = e

	drifts, err = r.ReconcileInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.InventoryDrift{{EventID: "e1", Available: 5, Expected: 3}}, drifts)
	e2, _ := r.GetEventByID(ctx, "e1")
	assert.Equal(t, 3, e2.AvailableTickets)
}
