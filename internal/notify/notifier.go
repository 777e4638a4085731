// Package notify renders change alerts and delivers them by email.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// DefaultTimezone is used for timestamps in alert messages.
const DefaultTimezone = "America/Sao_Paulo"

// Message is one rendered email addressed to a single recipient.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// AddressError reports a recipient address the transport cannot use.
// Notify skips such recipients instead of aborting the batch.
type AddressError struct {
	Address string
	Err     error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid recipient address %q: %v", e.Address, e.Err)
}

func (e *AddressError) Unwrap() error { return e.Err }

// Transport delivers messages and can verify connectivity. Send returns an
// *AddressError when msg.To is unusable.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
}

// Notifier implements monitor.Notifier on top of a Transport.
type Notifier struct {
	transport Transport
	from      string
	loc       *time.Location
	logger    *zap.Logger
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithLocation sets the timezone used in subjects and bodies.
func WithLocation(loc *time.Location) Option {
	return func(n *Notifier) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithLogger sets the logger used for skipped recipients.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New builds a Notifier sending from the given address.
func New(transport Transport, from string, opts ...Option) *Notifier {
	n := &Notifier{
		transport: transport,
		from:      from,
		loc:       time.UTC,
		logger:    zap.NewNop(),
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		n.loc = loc
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Rendered holds the subject and both body variants of an alert.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	Timestamp time.Time
	URL       string
	Keywords  []string
	Changed   bool
}

// Render builds the subject and bodies for alert.
func (n *Notifier) Render(alert monitor.Alert) (Rendered, error) {
	at := alert.DetectedAt
	if at.IsZero() {
		at = time.Now()
	}
	data := templateData{
		Timestamp: at.In(n.loc),
		URL:       alert.URL,
		Keywords:  alert.Keywords,
		Changed:   alert.Changed,
	}
	var text, html bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("render html body: %w", err)
	}
	return Rendered{
		Subject: "[Monitor de Editais] Alerta Detectado - " + data.Timestamp.Format(subjectLayout),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Notify sends alert to each recipient in order. Blank addresses and
// addresses without "@" are skipped. The first transport failure aborts the
// batch. An error is returned unless at least one recipient was sent.
func (n *Notifier) Notify(ctx context.Context, alert monitor.Alert, recipients []string) (int, error) {
	if n.transport == nil {
		return 0, &monitor.DeliveryError{Err: errors.New("mail transport is not configured")}
	}
	rendered, err := n.Render(alert)
	if err != nil {
		return 0, &monitor.DeliveryError{Err: err}
	}
	delivered := 0
	for _, rcpt := range recipients {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" || !strings.Contains(rcpt, "@") {
			n.logger.Warn("skipping malformed recipient", zap.String("recipient", rcpt))
			continue
		}
		msg := Message{
			From:    n.from,
			To:      rcpt,
			Subject: rendered.Subject,
			Text:    rendered.Text,
			HTML:    rendered.HTML,
		}
		if err := n.transport.Send(ctx, msg); err != nil {
			var addrErr *AddressError
			if errors.As(err, &addrErr) {
				n.logger.Warn("skipping malformed recipient", zap.String("recipient", rcpt), zap.Error(err))
				continue
			}
			return delivered, &monitor.DeliveryError{Recipient: rcpt, Delivered: delivered, Err: err}
		}
		delivered++
	}
	if delivered == 0 {
		return 0, &monitor.DeliveryError{Err: errors.New("no valid recipients")}
	}
	return delivered, nil
}

// TestConnection dials and authenticates against the mail server without
// sending anything.
func (n *Notifier) TestConnection(ctx context.Context) error {
	if n.transport == nil {
		return errors.New("mail transport is not configured")
	}
	if err := n.transport.Ping(ctx); err != nil {
		return fmt.Errorf("mail server connection: %w", err)
	}
	return nil
}
