package redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventTickets/internal/inventory"
	"eventTickets/internal/metrics"
	"eventTickets/internal/model"
	"eventTickets/internal/repo"
)

var errTicketChanged = fmt.Errorf("%w: ticket changed concurrently", model.ErrConflict)

// Principal is the verified caller as seen by ticket operations.
type Principal struct {
	UserID string
	Role   model.Role
}

// Scanner drives the ticket state machine: redemption at the gate and
// cancellation by the holder or the organizer.
type Scanner struct {
	repo      repo.Repository
	inventory *inventory.Inventory
	log       *zerolog.Logger
	now       func() time.Time
}

func NewScanner(r repo.Repository, inv *inventory.Inventory, log *zerolog.Logger) *Scanner {
	return &Scanner{repo: r, inventory: inv, log: log, now: time.Now}
}

// Redeem marks the ticket behind code as used. Of any number of concurrent
// calls with the same code exactly one succeeds; the others get
// model.ErrTicketAlreadyUsed.
func (s *Scanner) Redeem(ctx context.Context, code string) (*model.Ticket, error) {
	tk, err := s.redeem(ctx, code)
	metrics.ObserveRedemption(err)
	return tk, err
}

func (s *Scanner) redeem(ctx context.Context, code string) (*model.Ticket, error) {
	if code == "" {
		return nil, model.ErrCodeNotFound
	}

	tk, applied, err := s.repo.TransitionTicketByCode(ctx, code, model.TicketValid, model.TicketUsed, s.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		if _, terr := tk.Status.Transition(model.TicketUsed); terr != nil {
			s.log.Info().
				Str("ticket_id", tk.ID).
				Str("status", string(tk.Status)).
				Msg("redemption rejected")
			return nil, terr
		}
		return nil, errTicketChanged
	}

	s.log.Info().
		Str("ticket_id", tk.ID).
		Str("event_id", tk.Event.ID).
		Msg("ticket redeemed")
	return tk, nil
}

// Cancel moves a valid ticket to cancelled and returns its seat to the event.
// Only the ticket holder or the event organizer may cancel.
func (s *Scanner) Cancel(ctx context.Context, ticketID string, by Principal) (*model.Ticket, error) {
	tk, err := s.cancel(ctx, ticketID, by)
	metrics.ObserveCancellation(err)
	return tk, err
}

func (s *Scanner) cancel(ctx context.Context, ticketID string, by Principal) (*model.Ticket, error) {
	var cancelled *model.Ticket
	err := s.repo.WithinTx(ctx, func(tx repo.Tx) error {
		tk, err := tx.GetTicketByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := s.authorizeCancel(ctx, tx, tk, by); err != nil {
			return err
		}
		if _, err := tk.Status.Transition(model.TicketCancelled); err != nil {
			return err
		}

		updated, applied, err := tx.TransitionTicket(ctx, tk.ID, model.TicketValid, model.TicketCancelled, s.now())
		if err != nil {
			return err
		}
		if !applied {
			if _, err := updated.Status.Transition(model.TicketCancelled); err != nil {
				return err
			}
			return errTicketChanged
		}

		err = s.inventory.Release(ctx, tx, tk.Event.ID, 1)
		if err != nil && !errors.Is(err, model.ErrEventNotFound) {
			return err
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("ticket_id", cancelled.ID).
		Str("by", by.UserID).
		Msg("ticket cancelled")
	return cancelled, nil
}

func (s *Scanner) authorizeCancel(ctx context.Context, tx repo.Tx, tk *model.Ticket, by Principal) error {
	if tk.User.ID == by.UserID {
		return nil
	}
	if by.Role != model.RoleOrganizer {
		return model.ErrNotOwner
	}
	event, err := tx.GetEventByID(ctx, tk.Event.ID)
	if errors.Is(err, model.ErrEventNotFound) {
		return model.ErrNotOwner
	}
	if err != nil {
		return err
	}
	if event.Organizer.ID != by.UserID {
		return model.ErrNotOwner
	}
	return nil
}
