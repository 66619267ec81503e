package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"eventTickets/internal/dto"
)

type Sender interface {
	Send(to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

type SMTP struct {
	cfg  Config
	log  *zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg Config, log *zerolog.Logger) *SMTP {
	return &SMTP{cfg: cfg, log: log, send: smtp.SendMail}
}

func (s *SMTP) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.cfg.From, to, subject, body,
	)

	var auth smtp.Auth
	if s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		s.log.Warn().Err(err).Str("to", to).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	s.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// LogOnly records what would have been sent. Used when SMTP is disabled.
type LogOnly struct {
	Log *zerolog.Logger
}

func (l LogOnly) Send(to, subject, _ string) error {
	l.Log.Info().Str("to", to).Str("subject", subject).Msg("email delivery disabled, skipping")
	return nil
}

// Compose renders the email for a ticket notification.
func Compose(n dto.TicketNotification) (subject, body string, err error) {
	switch n.Kind {
	case dto.KeyOrderCompleted:
		subject = fmt.Sprintf("Your tickets for %s", n.EventTitle)
		var b strings.Builder
		fmt.Fprintf(&b, "Hello %s,\n\nYour order %s for %q on %s is confirmed.\n", n.Name, n.OrderID, n.EventTitle, n.EventDate)
		fmt.Fprintf(&b, "Tickets: %d, total: %s\n\nRedemption codes:\n", n.Quantity, n.Total)
		for _, code := range n.Codes {
			fmt.Fprintf(&b, "  %s\n", code)
		}
		b.WriteString("\nShow a code at the entrance to check in.\n")
		body = b.String()
	case dto.KeyTicketRedeemed:
		subject = fmt.Sprintf("Checked in to %s", n.EventTitle)
		body = fmt.Sprintf("Hello %s,\n\nTicket %s was checked in to %q at %s.\n",
			n.Name, n.TicketID, n.EventTitle, n.At.UTC().Format("2006-01-02 15:04 MST"))
	case dto.KeyTicketCancelled:
		subject = fmt.Sprintf("Ticket cancelled for %s", n.EventTitle)
		body = fmt.Sprintf("Hello %s,\n\nTicket %s for %q on %s has been cancelled and can no longer be used.\n",
			n.Name, n.TicketID, n.EventTitle, n.EventDate)
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return subject, body, nil
}
