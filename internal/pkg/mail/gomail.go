package mail

import (
	"context"
	"errors"
	"io"

	"gopkg.in/gomail.v2"
)

var (
	// ErrSMTPHostPortRequired is returned when Host/Port are missing.
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	// ErrSMTPNoRecipients is returned when To is empty.
	ErrSMTPNoRecipients = errors.New("no recipients provided")
	// ErrSMTPNoSender is returned when both Message.From and the configured default From are empty.
	ErrSMTPNoSender = errors.New("no sender provided")
)

// SMTPConfig configures the SMTP implementation.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the default sender when Message.From is empty.
	From string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP is a Mail implementation backed by gomail.
type SMTP struct {
	dialer      sender
	defaultFrom string
}

// NewSMTP constructs an SMTP mail sender.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	return &SMTP{
		dialer:      gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		defaultFrom: cfg.From,
	}, nil
}

// Send builds the MIME message and delivers it. The SMTP exchange itself does
// not observe ctx; Send returns early with ctx.Err() when ctx ends first.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTP) build(msg Message) (*gomail.Message, error) {
	if len(msg.To) == 0 {
		return nil, ErrSMTPNoRecipients
	}

	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		return nil, ErrSMTPNoSender
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}

	for _, in := range msg.Inlines {
		data := in.Data
		m.Embed(in.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	return m, nil
}

// Close implements io.Closer; every send dials its own connection.
func (s *SMTP) Close() error {
	return nil
}
