package issuer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventTickets/internal/inventory"
	"eventTickets/internal/model"
	"eventTickets/internal/repo"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func seed(t *testing.T, r repo.Repository, available int, price string) (*model.User, *model.Event) {
	t.Helper()
	ctx := context.Background()

	user := &model.User{ID: "user-1", Email: "ann@example.com", Name: "Ann", Role: model.RoleAttendee}
	require.NoError(t, r.CreateUser(ctx, user))

	event := &model.Event{
		ID:               "event-1",
		Title:            "Go Meetup",
		Date:             "2026-11-20",
		Time:             "18:30",
		Location:         "Hub",
		Price:            decimal.RequireFromString(price),
		Capacity:         available,
		AvailableTickets: available,
		Organizer:        model.UserRef{ID: "org-1", Name: "Org", Email: "org@example.com"},
	}
	require.NoError(t, r.CreateEvent(ctx, event))
	return user, event
}

func newIssuer(r repo.Repository, opts Options) *Issuer {
	log := nopLogger()
	return New(r, inventory.New(log), log, opts)
}

func TestIssuer_Issue_Success(t *testing.T) {
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, 10, "50")
	is := newIssuer(r, Options{})

	o, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, model.OrderCompleted, o.Status)
	assert.Equal(t, "100.00", o.TotalAmount.StringFixed(2))
	require.Len(t, o.Tickets, 2)
	assert.NotEqual(t, o.Tickets[0].Code, o.Tickets[1].Code)
	for _, tk := range o.Tickets {
		assert.Equal(t, model.TicketValid, tk.Status)
		assert.Equal(t, o.ID, tk.OrderID)
		assert.Equal(t, "Go Meetup", tk.Event.Title)
		assert.Equal(t, "ann@example.com", tk.User.Email)
		assert.Nil(t, tk.CheckInDate)
		assert.False(t, tk.PurchaseDate.IsZero())
	}

	stored, err := r.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.AvailableTickets)

	persisted, err := r.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, persisted.Tickets, 2)
}

func TestIssuer_Issue_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"unknown event", Request{EventID: "missing", UserID: "user-1", Quantity: 1}, model.ErrEventNotFound},
		{"unknown user", Request{EventID: "event-1", UserID: "ghost", Quantity: 1}, model.ErrUserNotFound},
		{"not enough tickets", Request{EventID: "event-1", UserID: "user-1", Quantity: 4}, model.ErrInsufficientCapacity},
		{"zero quantity", Request{EventID: "event-1", UserID: "user-1", Quantity: 0}, model.ErrInvalidQuantity},
		{"above order cap", Request{EventID: "event-1", UserID: "user-1", Quantity: 3}, model.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := repo.NewMemoryRepository()
			_, event := seed(t, r, 3, "10")
			is := newIssuer(r, Options{MaxQuantity: 2})
			if tt.name == "not enough tickets" {
				is.maxQuantity = 0
			}

			o, err := is.Issue(context.Background(), tt.req)
			assert.Nil(t, o)
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := r.GetEventByID(context.Background(), event.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, stored.AvailableTickets)
		})
	}
}

func TestIssuer_Issue_HugeQuantityWithoutCap(t *testing.T) {
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, 3, "10")
	is := newIssuer(r, Options{})
	calls := 0
	is.newCode = func() (string, error) {
		calls++
		return fmt.Sprintf("code-%d", calls), nil
	}

	for _, quantity := range []int{1 << 50, 2_000_000, 4} {
		o, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: quantity})
		assert.Nil(t, o)
		assert.ErrorIs(t, err, model.ErrInsufficientCapacity, "quantity %d", quantity)
	}
	assert.Zero(t, calls, "no codes are generated for a rejected reservation")

	stored, err := r.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AvailableTickets)
}

// Two registrations race for the last seat: exactly one wins.
func TestIssuer_Issue_LastTicketRace(t *testing.T) {
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, 1, "20")
	is := newIssuer(r, Options{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	start := make(chan struct{})
	for n := 0; n < 2; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, model.ErrInsufficientCapacity):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, rejected)
}

func TestIssuer_Issue_NeverOversells(t *testing.T) {
	const (
		capacity = 25
		workers  = 60
	)
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, capacity, "5")
	is := newIssuer(r, Options{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func(quantity int) {
			defer wg.Done()
			o, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: quantity})
			if err != nil {
				assert.ErrorIs(t, err, model.ErrInsufficientCapacity)
				return
			}
			mu.Lock()
			sold += len(o.Tickets)
			mu.Unlock()
		}(n%3 + 1)
	}
	wg.Wait()

	stored, err := r.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, sold, capacity)
	assert.Equal(t, capacity-sold, stored.AvailableTickets)

	tickets, err := r.ListTicketsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, sold)
}

type faultyRepo struct {
	repo.Repository
	insertTicketsErr error
}

func (f *faultyRepo) WithinTx(ctx context.Context, fn func(tx repo.Tx) error) error {
	return f.Repository.WithinTx(ctx, func(tx repo.Tx) error {
		return fn(&faultyTx{Tx: tx, insertTicketsErr: f.insertTicketsErr})
	})
}

type faultyTx struct {
	repo.Tx
	insertTicketsErr error
}

func (t *faultyTx) InsertTickets(ctx context.Context, tickets []model.Ticket) error {
	if t.insertTicketsErr != nil {
		return t.insertTicketsErr
	}
	return t.Tx.InsertTickets(ctx, tickets)
}

func TestIssuer_Issue_RollsBackReservationWhenPersistenceFails(t *testing.T) {
	mem := repo.NewMemoryRepository()
	user, event := seed(t, mem, 5, "10")
	storageErr := errors.New("disk full")
	is := newIssuer(&faultyRepo{Repository: mem, insertTicketsErr: storageErr}, Options{})

	o, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 3})
	assert.Nil(t, o)
	assert.ErrorIs(t, err, storageErr)

	stored, err := mem.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.AvailableTickets)

	orders, err := mem.ListOrdersByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	tickets, err := mem.ListTicketsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestIssuer_Issue_RetriesAfterCodeCollision(t *testing.T) {
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, 5, "10")
	is := newIssuer(r, Options{})

	is.newCode = func() (string, error) { return "taken-code", nil }
	first, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, "taken-code", first.Tickets[0].Code)

	calls := 0
	is.newCode = func() (string, error) {
		calls++
		if calls == 1 {
			return "taken-code", nil
		}
		return fmt.Sprintf("fresh-%d", calls), nil
	}
	second, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "fresh-2", second.Tickets[0].Code)

	stored, err := r.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AvailableTickets)
}

func TestIssuer_Issue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, 5, "10")
	is := newIssuer(r, Options{MaxAttempts: 2})
	calls := 0
	is.newCode = func() (string, error) {
		calls++
		return "same", nil
	}

	_, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 2})
	assert.ErrorIs(t, err, model.ErrDuplicateCode)
	assert.Equal(t, 4, calls)

	stored, err := r.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.AvailableTickets)
}

func TestIssuer_Issue_TicketsKeepPurchaseSnapshot(t *testing.T) {
	r := repo.NewMemoryRepository()
	user, event := seed(t, r, 5, "10")
	is := newIssuer(r, Options{})
	is.now = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }

	o, err := is.Issue(context.Background(), Request{EventID: event.ID, UserID: user.ID, Quantity: 1})
	require.NoError(t, err)

	renamed := *event
	renamed.Title = "Renamed"
	renamed.Capacity = 5
	_, err = r.UpdateEvent(context.Background(), &renamed)
	require.NoError(t, err)

	tickets, err := r.ListTicketsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Go Meetup", tickets[0].Event.Title)
	assert.Equal(t, o.Tickets[0].Code, tickets[0].Code)
	assert.True(t, tickets[0].PurchaseDate.Equal(is.now()))
}

func TestNewRedemptionCode(t *testing.T) {
	seen := make(map[string]struct{})
	for n := 0; n < 1000; n++ {
		code, err := NewRedemptionCode()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(code), 16)
		_, dup := seen[code]
		require.False(t, dup)
		seen[code] = struct{}{}
	}
}
