package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventTickets/internal/model"
)

// memoryRepository keeps everything in maps behind one mutex. WithinTx holds
// the mutex for the whole callback and undoes its writes on error, which gives
// the same all-or-nothing behaviour as the postgres transaction.
type memoryRepository struct {
	mu sync.Mutex

	users        map[string]model.User
	userByEmail  map[string]string
	events       map[string]model.Event
	orders       map[string]model.Order
	tickets      map[string]model.Ticket
	ticketByCode map[string]string
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:        make(map[string]model.User),
		userByEmail:  make(map[string]string),
		events:       make(map[string]model.Event),
		orders:       make(map[string]model.Order),
		tickets:      make(map[string]model.Ticket),
		ticketByCode: make(map[string]string),
	}
}

func (m *memoryRepository) Ping(context.Context) error { return nil }

func (m *memoryRepository) MigrateUp(string) error { return nil }

func (m *memoryRepository) MigrateDown(string) error { return nil }

func (m *memoryRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memoryTx struct {
	m    *memoryRepository
	undo []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return t.m.userByID(id)
}

func (t *memoryTx) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	return t.m.eventByID(id)
}

func (t *memoryTx) ReserveTickets(_ context.Context, eventID string, quantity int) (*model.Event, error) {
	e, ok := t.m.events[eventID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	if e.AvailableTickets < quantity {
		return nil, model.ErrInsufficientCapacity
	}

	prev := e
	t.undo = append(t.undo, func() { t.m.events[eventID] = prev })

	e.AvailableTickets -= quantity
	e.UpdatedAt = time.Now()
	t.m.events[eventID] = e
	return &e, nil
}

func (t *memoryTx) ReleaseTickets(_ context.Context, eventID string, quantity int) error {
	e, ok := t.m.events[eventID]
	if !ok {
		return model.ErrEventNotFound
	}

	prev := e
	t.undo = append(t.undo, func() { t.m.events[eventID] = prev })

	e.AvailableTickets = min(e.Capacity, e.AvailableTickets+quantity)
	e.UpdatedAt = time.Now()
	t.m.events[eventID] = e
	return nil
}

func (t *memoryTx) InsertOrder(_ context.Context, o *model.Order) error {
	stored := *o
	stored.Tickets = nil
	t.m.orders[o.ID] = stored
	t.undo = append(t.undo, func() { delete(t.m.orders, o.ID) })
	return nil
}

func (t *memoryTx) InsertTickets(_ context.Context, tickets []model.Ticket) error {
	for _, tk := range tickets {
		if _, taken := t.m.ticketByCode[tk.Code]; taken {
			return model.ErrDuplicateCode
		}
		tk := cloneTicket(tk)
		t.m.tickets[tk.ID] = tk
		t.m.ticketByCode[tk.Code] = tk.ID
		t.undo = append(t.undo, func() {
			delete(t.m.tickets, tk.ID)
			delete(t.m.ticketByCode, tk.Code)
		})
	}
	return nil
}

func (t *memoryTx) GetTicketByID(_ context.Context, id string) (*model.Ticket, error) {
	tk, ok := t.m.tickets[id]
	if !ok {
		return nil, model.ErrTicketNotFound
	}
	out := cloneTicket(tk)
	return &out, nil
}

func (t *memoryTx) TransitionTicket(_ context.Context, id string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool, error) {
	prev, ok := t.m.tickets[id]
	if !ok {
		return nil, false, model.ErrTicketNotFound
	}
	tk, applied := t.m.transition(id, from, to, at)
	if applied {
		t.undo = append(t.undo, func() { t.m.tickets[id] = prev })
	}
	return tk, applied, nil
}

// transition expects m.mu to be held.
func (m *memoryRepository) transition(id string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool) {
	tk := m.tickets[id]
	if tk.Status != from {
		out := cloneTicket(tk)
		return &out, false
	}
	tk.Status = to
	if to == model.TicketUsed {
		checkIn := at
		tk.CheckInDate = &checkIn
	}
	m.tickets[id] = tk
	out := cloneTicket(tk)
	return &out, true
}

func (m *memoryRepository) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.userByEmail[u.Email]; taken {
		return model.ErrEmailTaken
	}
	m.users[u.ID] = *u
	m.userByEmail[u.Email] = u.ID
	return nil
}

func (m *memoryRepository) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userByID(id)
}

func (m *memoryRepository) userByID(id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.userByEmail[email]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return m.userByID(id)
}

func (m *memoryRepository) CreateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[e.ID] = *e
	return nil
}

func (m *memoryRepository) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventByID(id)
}

func (m *memoryRepository) eventByID(id string) (*model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return &e, nil
}

func (m *memoryRepository) GetAllEvents(context.Context) ([]model.Event, error) {
	return m.filterEvents(func(model.Event) bool { return true }), nil
}

func (m *memoryRepository) GetEventsByOrganizer(_ context.Context, organizerID string) ([]model.Event, error) {
	return m.filterEvents(func(e model.Event) bool { return e.Organizer.ID == organizerID }), nil
}

func (m *memoryRepository) filterEvents(keep func(model.Event) bool) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		if keep(e) {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events
}

func (m *memoryRepository) UpdateEvent(_ context.Context, e *model.Event) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[e.ID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	available := cur.AvailableTickets + (e.Capacity - cur.Capacity)
	if available < 0 {
		return nil, model.ErrInvalidCapacity
	}

	cur.Title = e.Title
	cur.Description = e.Description
	cur.Date = e.Date
	cur.Time = e.Time
	cur.Location = e.Location
	cur.Address = e.Address
	cur.Category = e.Category
	cur.Image = e.Image
	cur.Price = e.Price
	cur.Capacity = e.Capacity
	cur.AvailableTickets = available
	cur.UpdatedAt = e.UpdatedAt
	m.events[e.ID] = cur
	return &cur, nil
}

func (m *memoryRepository) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return model.ErrEventNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memoryRepository) TransitionTicketByCode(_ context.Context, code string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.ticketByCode[code]
	if !ok {
		return nil, false, model.ErrCodeNotFound
	}
	tk, applied := m.transition(id, from, to, at)
	return tk, applied, nil
}

func (m *memoryRepository) GetTicketByCode(_ context.Context, code string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.ticketByCode[code]
	if !ok {
		return nil, model.ErrCodeNotFound
	}
	tk := cloneTicket(m.tickets[id])
	return &tk, nil
}

func (m *memoryRepository) ListTicketsByUser(_ context.Context, userID string) ([]model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ticketsWhere(func(tk model.Ticket) bool { return tk.User.ID == userID }, true), nil
}

// ticketsWhere expects m.mu to be held.
func (m *memoryRepository) ticketsWhere(keep func(model.Ticket) bool, newestFirst bool) []model.Ticket {
	tickets := make([]model.Ticket, 0)
	for _, tk := range m.tickets {
		if keep(tk) {
			tickets = append(tickets, cloneTicket(tk))
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if !a.PurchaseDate.Equal(b.PurchaseDate) {
			if newestFirst {
				return a.PurchaseDate.After(b.PurchaseDate)
			}
			return a.PurchaseDate.Before(b.PurchaseDate)
		}
		return a.ID < b.ID
	})
	return tickets
}

func (m *memoryRepository) GetOrderByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	o.Tickets = m.ticketsWhere(func(tk model.Ticket) bool { return tk.OrderID == id }, false)
	return &o, nil
}

func (m *memoryRepository) ListOrdersByUser(_ context.Context, userID string) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]model.Order, 0)
	for _, o := range m.orders {
		if o.User.ID != userID {
			continue
		}
		id := o.ID
		o.Tickets = m.ticketsWhere(func(tk model.Ticket) bool { return tk.OrderID == id }, false)
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *memoryRepository) ReconcileInventory(context.Context) ([]model.InventoryDrift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[string]int)
	for _, tk := range m.tickets {
		if tk.Status != model.TicketCancelled {
			live[tk.Event.ID]++
		}
	}

	var drifts []model.InventoryDrift
	for id, e := range m.events {
		expected := max(e.Capacity-live[id], 0)
		if e.AvailableTickets == expected {
			continue
		}
		drifts = append(drifts, model.InventoryDrift{EventID: id, Available: e.AvailableTickets, Expected: expected})
		e.AvailableTickets = expected
		e.UpdatedAt = time.Now()
		m.events[id] = e
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].EventID < drifts[j].EventID })
	return drifts, nil
}

func cloneTicket(tk model.Ticket) model.Ticket {
	if tk.CheckInDate != nil {
		at := *tk.CheckInDate
		tk.CheckInDate = &at
	}
	return tk
}
