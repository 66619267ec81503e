package issuer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventTickets/internal/inventory"
	"eventTickets/internal/metrics"
	"eventTickets/internal/model"
	"eventTickets/internal/order"
	"eventTickets/internal/repo"
)

const defaultMaxAttempts = 3

type Request struct {
	EventID  string
	UserID   string
	Quantity int
}

type Options struct {
	// MaxQuantity caps tickets per order; zero means no cap.
	MaxQuantity int
	// MaxAttempts bounds retries after a redemption code collision.
	MaxAttempts int
}

// Issuer turns a registration into an order with its tickets. User lookup,
// reservation and persistence share one transaction, so a failure anywhere
// leaves the inventory untouched.
type Issuer struct {
	repo        repo.Repository
	inventory   *inventory.Inventory
	log         *zerolog.Logger
	maxQuantity int
	maxAttempts int

	now     func() time.Time
	newCode func() (string, error)
}

func New(r repo.Repository, inv *inventory.Inventory, log *zerolog.Logger, opts Options) *Issuer {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &Issuer{
		repo:        r,
		inventory:   inv,
		log:         log,
		maxQuantity: opts.MaxQuantity,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
		newCode:     NewRedemptionCode,
	}
}

func (i *Issuer) Issue(ctx context.Context, req Request) (*model.Order, error) {
	o, err := i.issue(ctx, req)
	metrics.ObserveRegistration(err, req.Quantity)
	return o, err
}

func (i *Issuer) issue(ctx context.Context, req Request) (*model.Order, error) {
	if req.Quantity < 1 || (i.maxQuantity > 0 && req.Quantity > i.maxQuantity) {
		return nil, model.ErrInvalidQuantity
	}

	var err error
	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		var o *model.Order
		o, err = i.issueOnce(ctx, req)
		if err == nil {
			i.log.Info().
				Str("order_id", o.ID).
				Str("event_id", req.EventID).
				Str("user_id", req.UserID).
				Int("quantity", req.Quantity).
				Msg("order issued")
			return o, nil
		}
		if !errors.Is(err, model.ErrDuplicateCode) {
			return nil, err
		}
		i.log.Warn().
			Str("event_id", req.EventID).
			Int("attempt", attempt).
			Msg("redemption code collision, retrying issuance")
	}
	return nil, err
}

func (i *Issuer) issueOnce(ctx context.Context, req Request) (*model.Order, error) {
	now := i.now()

	var issued *model.Order
	err := i.repo.WithinTx(ctx, func(tx repo.Tx) error {
		user, err := tx.GetUserByID(ctx, req.UserID)
		if err != nil {
			return err
		}

		event, err := i.inventory.TryReserve(ctx, tx, req.EventID, req.Quantity)
		if err != nil {
			return err
		}

		// Codes are minted only once the seats are held, so quantity is
		// already bounded by availability.
		codes, err := i.mintCodes(req.Quantity)
		if err != nil {
			return err
		}

		o := order.Aggregate(event, user, req.Quantity, mint(event, user, codes, now), now)
		if err := order.Validate(o); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.InsertTickets(ctx, o.Tickets); err != nil {
			return err
		}
		issued = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

func (i *Issuer) mintCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for k := range codes {
		code, err := i.newCode()
		if err != nil {
			return nil, err
		}
		codes[k] = code
	}
	return codes, nil
}

func mint(event *model.Event, user *model.User, codes []string, now time.Time) []model.Ticket {
	tickets := make([]model.Ticket, len(codes))
	for n, code := range codes {
		tickets[n] = model.Ticket{
			ID:           uuid.NewString(),
			Event:        event.Ref(),
			User:         user.Ref(),
			Code:         code,
			Status:       model.TicketValid,
			PurchaseDate: now,
		}
	}
	return tickets
}
