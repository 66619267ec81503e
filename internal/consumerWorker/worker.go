package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"eventTickets/internal/dto"
	"eventTickets/internal/mailer"
	"eventTickets/internal/rabbit"
)

// Reader turns ticket notifications from the bus into emails.
type Reader struct {
	RMQ    rabbit.Consumer
	mail   mailer.Sender
	log    *zerolog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq rabbit.Consumer, mail mailer.Sender, log *zerolog.Logger) *Reader {
	return &Reader{
		RMQ:  rmq,
		mail: mail,
		log:  log,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) error {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if err := r.RMQ.Consume(r.handle); err != nil {
		cancel()
		close(r.done)
		r.log.Error().Err(err).Msg("Failed to start consuming")
		return err
	}
	r.log.Info().Msg("RabbitMQ Reader started")

	go func() {
		defer close(r.done)
		<-cctx.Done()
		r.log.Info().Msg("RabbitMQ Reader stopped by context")
	}()
	return nil
}

func (r *Reader) handle(routingKey string, body []byte) error {
	var msg dto.TicketNotification
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().Err(err).Str("routing_key", routingKey).Msg("dropping malformed message")
		return nil
	}
	if msg.Kind == "" {
		msg.Kind = routingKey
	}

	subject, text, err := mailer.Compose(msg)
	if err != nil {
		r.log.Error().Err(err).Str("routing_key", routingKey).Msg("dropping message")
		return nil
	}
	if msg.Email == "" {
		r.log.Warn().Str("routing_key", routingKey).Msg("notification without recipient")
		return nil
	}

	if err := r.mail.Send(msg.Email, subject, text); err != nil {
		return err
	}
	r.log.Info().
		Str("kind", msg.Kind).
		Str("event_id", msg.EventID).
		Msg("notification delivered")
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
