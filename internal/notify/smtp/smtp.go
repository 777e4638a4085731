// Package smtp delivers notify messages through an SMTP server using go-mail.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/JakeFAU/edital-monitor/internal/notify"
)

// DefaultTimeout bounds dialing and each SMTP exchange.
const DefaultTimeout = 10 * time.Second

// Config describes the SMTP server.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

// Transport implements notify.Transport. Each message is sent over its own
// connection.
type Transport struct {
	cfg Config
}

// New validates cfg and returns a Transport.
func New(cfg Config) (*Transport, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid smtp port %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Transport{cfg: cfg}, nil
}

func (t *Transport) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.cfg.Timeout),
	}
	if t.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if t.cfg.Username != "" && t.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}
	c, err := mail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("build smtp client: %w", err)
	}
	return c, nil
}

// BuildMessage converts a rendered notification into a multipart message
// with a plain text body and an HTML alternative. An unusable recipient is
// reported as *notify.AddressError.
func BuildMessage(msg notify.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("set from %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, &notify.AddressError{Address: msg.To, Err: err}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// Send delivers one message.
func (t *Transport) Send(ctx context.Context, msg notify.Message) error {
	m, err := BuildMessage(msg)
	if err != nil {
		return err
	}
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}

// Ping dials the server, negotiates TLS and authenticates, then disconnects.
func (t *Transport) Ping(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("dial %s:%d: %w", t.cfg.Host, t.cfg.Port, err)
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("close smtp session: %w", err)
	}
	return nil
}
