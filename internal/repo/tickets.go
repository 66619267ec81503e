package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventTickets/internal/model"
)

type pgTx struct {
	q querier
}

func (t *pgTx) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return getUserByID(ctx, t.q, id)
}

func (t *pgTx) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	return getEventByID(ctx, t.q, id)
}

// ReserveTickets is the only place available_tickets goes down. The guard in
// the WHERE clause makes check and decrement one statement.
func (t *pgTx) ReserveTickets(ctx context.Context, eventID string, quantity int) (*model.Event, error) {
	query := `
		UPDATE events
		SET available_tickets = available_tickets - $2, updated_at = NOW()
		WHERE id = $1 AND available_tickets >= $2
		RETURNING ` + eventColumns

	e, err := scanEvent(t.q.QueryRowContext(ctx, query, eventID, quantity))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve tickets: %w", err)
	}

	var exists bool
	if err := t.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return nil, model.ErrEventNotFound
	}
	return nil, model.ErrInsufficientCapacity
}

func (t *pgTx) ReleaseTickets(ctx context.Context, eventID string, quantity int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE events
		SET available_tickets = LEAST(capacity, available_tickets + $2), updated_at = NOW()
		WHERE id = $1
	`, eventID, quantity)
	if err != nil {
		return fmt.Errorf("failed to release tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to release tickets: %w", err)
	}
	if n == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *model.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, user_name, user_email,
			event_id, event_title, event_date, event_time, event_location,
			quantity, total_amount, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if _, err := t.q.ExecContext(ctx, query,
		o.ID, o.User.ID, o.User.Name, o.User.Email,
		o.Event.ID, o.Event.Title, o.Event.Date, o.Event.Time, o.Event.Location,
		o.Quantity, o.TotalAmount, o.Status, o.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) InsertTickets(ctx context.Context, tickets []model.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for _, tk := range tickets {
		if _, err := t.q.ExecContext(ctx, query,
			tk.ID, tk.OrderID,
			tk.Event.ID, tk.Event.Title, tk.Event.Date, tk.Event.Time, tk.Event.Location,
			tk.User.ID, tk.User.Name, tk.User.Email,
			tk.Code, tk.Status, tk.PurchaseDate, nullTime(tk.CheckInDate),
		); err != nil {
			if isUniqueViolation(err) {
				return model.ErrDuplicateCode
			}
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
	}
	return nil
}

func (t *pgTx) GetTicketByID(ctx context.Context, id string) (*model.Ticket, error) {
	tk, err := scanTicket(t.q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return tk, nil
}

func (t *pgTx) TransitionTicket(ctx context.Context, id string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool, error) {
	return transitionTicket(ctx, t.q, "id", id, from, to, at, model.ErrTicketNotFound)
}

const ticketColumns = `
	id, order_id, event_id, event_title, event_date, event_time, event_location,
	user_id, user_name, user_email, redemption_code, status, purchase_date, check_in_date`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var (
		tk      model.Ticket
		checkIn sql.NullTime
	)
	if err := row.Scan(
		&tk.ID, &tk.OrderID,
		&tk.Event.ID, &tk.Event.Title, &tk.Event.Date, &tk.Event.Time, &tk.Event.Location,
		&tk.User.ID, &tk.User.Name, &tk.User.Email,
		&tk.Code, &tk.Status, &tk.PurchaseDate, &checkIn,
	); err != nil {
		return nil, err
	}
	if checkIn.Valid {
		at := checkIn.Time
		tk.CheckInDate = &at
	}
	return &tk, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// transitionTicket is the conditional status update shared by redemption and
// cancellation. key is a trusted column name, never user input.
func transitionTicket(
	ctx context.Context, q querier, key, value string,
	from, to model.TicketStatus, at time.Time, notFound error,
) (*model.Ticket, bool, error) {
	var checkIn sql.NullTime
	if to == model.TicketUsed {
		checkIn = sql.NullTime{Time: at, Valid: true}
	}

	query := `
		UPDATE tickets
		SET status = $3, check_in_date = COALESCE($4, check_in_date)
		WHERE ` + key + ` = $1 AND status = $2
		RETURNING ` + ticketColumns

	tk, err := scanTicket(q.QueryRowContext(ctx, query, value, from, to, checkIn))
	if err == nil {
		return tk, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to update ticket status: %w", err)
	}

	current, err := scanTicket(q.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+key+` = $1`, value,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, notFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get ticket: %w", err)
	}
	return current, false, nil
}

func (r *repository) TransitionTicketByCode(ctx context.Context, code string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool, error) {
	return transitionTicket(ctx, r.db.Master, "redemption_code", code, from, to, at, model.ErrCodeNotFound)
}

func (r *repository) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	tk, err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE redemption_code = $1`, code,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket by code: %w", err)
	}
	return tk, nil
}

func (r *repository) ListTicketsByUser(ctx context.Context, userID string) ([]model.Ticket, error) {
	return queryTickets(ctx, r.db,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY purchase_date DESC, id`,
		userID,
	)
}

func queryTickets(ctx context.Context, q querier, query string, args ...any) ([]model.Ticket, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, *tk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

const orderColumns = `
	id, user_id, user_name, user_email,
	event_id, event_title, event_date, event_time, event_location,
	quantity, total_amount, status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	if err := row.Scan(
		&o.ID, &o.User.ID, &o.User.Name, &o.User.Email,
		&o.Event.ID, &o.Event.Title, &o.Event.Date, &o.Event.Time, &o.Event.Location,
		&o.Quantity, &o.TotalAmount, &o.Status, &o.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	o.Tickets, err = queryTickets(ctx, r.db,
		`SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY purchase_date, id`, o.ID,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for i := range orders {
		orders[i].Tickets, err = queryTickets(ctx, r.db,
			`SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY purchase_date, id`, orders[i].ID,
		)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// ReconcileInventory recomputes every event's counter from its live tickets
// under the event row lock, so it serializes with reservations.
func (r *repository) ReconcileInventory(ctx context.Context) ([]model.InventoryDrift, error) {
	rows, err := r.db.Master.QueryContext(ctx, `SELECT id FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	var drifts []model.InventoryDrift
	for _, id := range ids {
		drift, err := r.reconcileEvent(ctx, id)
		if err != nil {
			return drifts, err
		}
		if drift != nil {
			drifts = append(drifts, *drift)
		}
	}
	return drifts, nil
}

func (r *repository) reconcileEvent(ctx context.Context, eventID string) (*model.InventoryDrift, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var capacity, available int
	err = tx.QueryRowContext(ctx, `
		SELECT capacity, available_tickets
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&capacity, &available)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	var live int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM tickets
		WHERE event_id = $1 AND status <> 'cancelled'
	`, eventID).Scan(&live); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	expected := max(capacity-live, 0)
	if expected == available {
		_ = tx.Rollback()
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET available_tickets = $2, updated_at = NOW() WHERE id = $1
	`, eventID, expected); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to restore available tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	return &model.InventoryDrift{EventID: eventID, Available: available, Expected: expected}, nil
}
