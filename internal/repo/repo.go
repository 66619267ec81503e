package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventTickets/internal/model"
)

// Tx is the view of storage available inside WithinTx. Everything done
// through it commits or rolls back together.
type Tx interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	ReserveTickets(ctx context.Context, eventID string, quantity int) (*model.Event, error)
	ReleaseTickets(ctx context.Context, eventID string, quantity int) error
	InsertOrder(ctx context.Context, o *model.Order) error
	InsertTickets(ctx context.Context, tickets []model.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*model.Ticket, error)
	TransitionTicket(ctx context.Context, id string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool, error)
}

type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	GetEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	// TransitionTicketByCode moves the ticket holding code from one status to
	// another only if it is still in from. The current ticket is returned
	// either way; the bool reports whether this call changed it.
	TransitionTicketByCode(ctx context.Context, code string, from, to model.TicketStatus, at time.Time) (*model.Ticket, bool, error)
	GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]model.Ticket, error)
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)

	ReconcileInventory(ctx context.Context) ([]model.InventoryDrift, error)

	Ping(ctx context.Context) error
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

// repository sends plain reads through dbpg, which spreads them over the
// replicas. Writes, conditional updates and anything that must see its own
// write use the master.
type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil || db.Master == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.Master.PingContext(ctx)
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&pgTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, role, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return getUserByID(ctx, r.db, id)
}

func getUserByID(ctx context.Context, q querier, id string) (*model.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

const eventColumns = `
	id, title, description, event_date, event_time, location, address, category, image,
	price, capacity, available_tickets, organizer_id, organizer_name, organizer_email,
	created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location, &e.Address, &e.Category, &e.Image,
		&e.Price, &e.Capacity, &e.AvailableTickets, &e.Organizer.ID, &e.Organizer.Name, &e.Organizer.Email,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Description, e.Date, e.Time, e.Location, e.Address, e.Category, e.Image,
		e.Price, e.Capacity, e.AvailableTickets, e.Organizer.ID, e.Organizer.Name, e.Organizer.Email,
		e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *repository) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	return getEventByID(ctx, r.db, id)
}

func getEventByID(ctx context.Context, q querier, id string) (*model.Event, error) {
	row := q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
}

func (r *repository) GetEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY created_at DESC`,
		organizerID,
	)
}

func (r *repository) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// UpdateEvent rewrites the descriptive fields and the capacity. A capacity
// change shifts available_tickets by the same delta and is refused when that
// would leave fewer seats than are already sold.
func (r *repository) UpdateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	query := `
		UPDATE events
		SET title = $2, description = $3, event_date = $4, event_time = $5, location = $6,
		    address = $7, category = $8, image = $9, price = $10,
		    available_tickets = available_tickets + ($11 - capacity),
		    capacity = $11, updated_at = $12
		WHERE id = $1 AND available_tickets + ($11 - capacity) >= 0
		RETURNING ` + eventColumns

	row := r.db.Master.QueryRowContext(ctx, query,
		e.ID, e.Title, e.Description, e.Date, e.Time, e.Location,
		e.Address, e.Category, e.Image, e.Price, e.Capacity, e.UpdatedAt,
	)
	updated, err := scanEvent(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if _, err := getEventByID(ctx, r.db.Master, e.ID); err != nil {
		return nil, err
	}
	return nil, model.ErrInvalidCapacity
}

func (r *repository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
