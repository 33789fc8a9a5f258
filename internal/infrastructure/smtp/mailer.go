package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coursehub/integration-api/internal/config"
	"github.com/coursehub/integration-api/internal/domain"
	"github.com/coursehub/integration-api/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, msg domain.MailMessage) error
}

type deliverer interface {
	Deliver(ctx context.Context, env Envelope) error
}

type mailer struct {
	transport deliverer
	from      string
	fromName  string
	now       func() time.Time
}

// NewMailer builds a Mailer over a fresh-connection-per-message Transport.
// The envelope sender falls back to the SMTP username when SMTP_FROM is unset.
func NewMailer(cfg config.SMTP, fromName string) Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return newMailer(&Transport{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  cfg.Password,
		LocalName: cfg.LocalName,
		Timeout:   cfg.Timeout,
	}, from, fromName)
}

func newMailer(d deliverer, from, fromName string) *mailer {
	return &mailer{transport: d, from: from, fromName: fromName, now: time.Now}
}

// SendEmail composes msg and hands it to the relay. Every failure is returned
// as a *domain.MailDeliveryError.
func (m *mailer) SendEmail(ctx context.Context, msg domain.MailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail recipient required: %w", domain.ErrBadRequest)
	}
	data, err := Compose(m.from, m.fromName, msg, m.now())
	if err != nil {
		return &domain.MailDeliveryError{Step: "compose", Err: err}
	}

	err = m.transport.Deliver(ctx, Envelope{From: m.from, To: msg.To, Data: data})
	if err == nil {
		metrics.SMTPDeliveries.WithLabelValues("sent").Inc()
		zap.L().Info("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	}

	var mde *domain.MailDeliveryError
	if !errors.As(err, &mde) {
		mde = &domain.MailDeliveryError{Step: "deliver", Err: err}
	}
	if errors.Is(mde, domain.ErrAuthenticationFailed) {
		metrics.SMTPDeliveries.WithLabelValues("auth_failed").Inc()
	} else {
		metrics.SMTPDeliveries.WithLabelValues("failed").Inc()
	}
	zap.L().Error("email delivery failed",
		zap.String("to", msg.To),
		zap.String("step", mde.Step),
		zap.String("reply", mde.Reply),
		zap.Error(mde.Err),
	)
	return mde
}
