// Package notify tells coordinators that a date's report has been finalized.
package notify

import (
	"context"
	"fmt"
	"net/mail"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
)

// SenderName is the display name on outgoing report e-mails.
const SenderName = "Celebrate Recovery Friday Night Numbers"

// Notifier is called once per successfully finalized report.
type Notifier interface {
	NotifyFinalized(ctx context.Context, r core.Report) error
}

// Message is a rendered HTML e-mail.
type Message struct {
	From    mail.Address
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailNotifier renders the report and hands it to a Mailer. Every failure wraps core.ErrEmailFailed.
type EmailNotifier struct {
	mailer Mailer
	from   mail.Address
	to     []string
	logger *applog.Logger
}

func NewEmailNotifier(mailer Mailer, from mail.Address, to []string, logger *applog.Logger) *EmailNotifier {
	return &EmailNotifier{
		mailer: mailer,
		from:   from,
		to:     append([]string(nil), to...),
		logger: logger.WithComponent(applog.ComponentNotify),
	}
}

func (n *EmailNotifier) NotifyFinalized(ctx context.Context, r core.Report) error {
	subject, body, err := RenderReport(r)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrEmailFailed, err)
	}
	if len(n.to) == 0 {
		return fmt.Errorf("%w: no recipients configured", core.ErrEmailFailed)
	}

	msg := Message{From: n.from, To: n.to, Subject: subject, HTML: body}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.ErrorContext(ctx, "Failed to send report email",
			applog.FieldDate, r.Date.String(),
			applog.FieldError, err)
		return fmt.Errorf("%w: %v", core.ErrEmailFailed, err)
	}

	n.logger.InfoContext(ctx, "Report email sent",
		applog.FieldDate, r.Date.String(),
		"recipients", len(n.to))
	return nil
}

// Disabled is used when e-mail is not configured. It logs and reports success.
type Disabled struct {
	Logger *applog.Logger
}

func (d Disabled) NotifyFinalized(ctx context.Context, r core.Report) error {
	if d.Logger != nil {
		d.Logger.WarnContext(ctx, "E-mail not configured, skipping report notification",
			applog.FieldDate, r.Date.String())
	}
	return nil
}
