package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"eventTickets/internal/metrics"
	"eventTickets/internal/model"
	"eventTickets/internal/repo"
)

// Inventory guards the per-event available_tickets counter. All changes go
// through a repo.Tx so they commit together with the records they pay for.
type Inventory struct {
	log *zerolog.Logger
}

func New(log *zerolog.Logger) *Inventory {
	return &Inventory{log: log}
}

// TryReserve takes quantity seats from the event or fails with
// model.ErrEventNotFound / model.ErrInsufficientCapacity. The returned event
// reflects the counter after the decrement.
func (i *Inventory) TryReserve(ctx context.Context, tx repo.Tx, eventID string, quantity int) (*model.Event, error) {
	if quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}
	event, err := tx.ReserveTickets(ctx, eventID, quantity)
	if err != nil {
		return nil, err
	}
	i.log.Debug().
		Str("event_id", eventID).
		Int("quantity", quantity).
		Int("available", event.AvailableTickets).
		Msg("tickets reserved")
	return event, nil
}

// Release gives seats back, capped at the event capacity.
func (i *Inventory) Release(ctx context.Context, tx repo.Tx, eventID string, quantity int) error {
	if quantity < 1 {
		return model.ErrInvalidQuantity
	}
	return tx.ReleaseTickets(ctx, eventID, quantity)
}

// Reconciler periodically recomputes counters from live tickets and restores
// any that drifted.
type Reconciler struct {
	repo     repo.Repository
	log      *zerolog.Logger
	interval time.Duration
}

func NewReconciler(r repo.Repository, log *zerolog.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{repo: r, log: log, interval: interval}
}

func (r *Reconciler) Once(ctx context.Context) ([]model.InventoryDrift, error) {
	drifts, err := r.repo.ReconcileInventory(ctx)
	for _, d := range drifts {
		metrics.InventoryDriftCorrected()
		r.log.Warn().
			Str("event_id", d.EventID).
			Int("available", d.Available).
			Int("expected", d.Expected).
			Msg("inventory drift corrected")
	}
	return drifts, err
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.log.Info().Msg("inventory reconciliation disabled")
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("inventory reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("inventory reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Once(ctx); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("inventory reconciliation failed")
			}
		}
	}
}
