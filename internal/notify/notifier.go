package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	statement "cota-capital/internal/statement/domain"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "Extratos de Cota Capital disponíveis"

var (
	// ErrNoRecipients is returned when the records carry no email address.
	ErrNoRecipients = errors.New("notify: no recipients")
	// ErrNoSender is returned when the sender address is missing.
	ErrNoSender = errors.New("notify: empty sender address")
)

// Message is a single HTML email addressed to every recipient.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Sender delivers a message through one transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the fixed parts of the notification.
type Config struct {
	From      string
	Subject   string
	Contact   string
	Signature string
}

// Notifier sends the "statements available" email for a run.
type Notifier struct {
	sender   Sender
	template *Template
	cfg      Config
	logger   zerolog.Logger
}

// NewNotifier constructs a Notifier. A nil template uses DefaultTemplate.
func NewNotifier(sender Sender, template *Template, cfg Config, logger zerolog.Logger) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("notifier: nil sender")
	}
	if cfg.From == "" {
		return nil, ErrNoSender
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	return &Notifier{sender: sender, template: template, cfg: cfg, logger: logger}, nil
}

// Notify sends one email to the recipients found in records and returns them.
func (n *Notifier) Notify(ctx context.Context, records []statement.AccountRecord) ([]string, error) {
	to := Recipients(records)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	body, err := n.template.Render(TemplateData{
		Contact:   n.cfg.Contact,
		Signature: n.cfg.Signature,
		Period:    period(records),
	})
	if err != nil {
		return to, fmt.Errorf("notifier: render body: %w", err)
	}
	n.logger.Info().Int("recipients", len(to)).Str("subject", n.cfg.Subject).Msg("sending notification")
	if err := n.sender.Send(ctx, Message{From: n.cfg.From, To: to, Subject: n.cfg.Subject, HTML: body}); err != nil {
		return to, fmt.Errorf("notifier: send: %w", err)
	}
	return to, nil
}

func period(records []statement.AccountRecord) string {
	if len(records) == 0 || records[0].StatementDate.IsZero() {
		return ""
	}
	start, end := records[0].Period()
	return start.Format("02/01/2006") + " a " + end.Format("02/01/2006")
}
