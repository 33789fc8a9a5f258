package otp

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"html/template"
	"math/big"
	"strings"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	"github.com/coursehub/integration-api/internal/infrastructure/smtp"
	"github.com/coursehub/integration-api/internal/pkg/metrics"
	"go.uber.org/zap"
)

const (
	codeMin = 100000
	codeMax = 999999
	// retention keeps expired records readable so verify can report ErrExpired.
	retention = 24 * time.Hour
)

var mailTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Hi {{.Name}},</p>
  <p>Your {{.AppName}} verification code is:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
</body>
</html>`))

type SendRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=100"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Store persists the single active code per email.
type Store interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string) (*domain.OTPRecord, error)
	DeleteByEmail(ctx context.Context, email string) error
	// Consume atomically removes the record if its code equals code and
	// returns it. A missing record or another code yields ErrInvalidCode.
	Consume(ctx context.Context, email, code string) (*domain.OTPRecord, error)
}

type Service interface {
	Issue(ctx context.Context, req SendRequest) error
	Verify(ctx context.Context, req VerifyRequest) error
}

type service struct {
	store   Store
	mailer  smtp.Mailer
	ttl     time.Duration
	appName string
	now     func() time.Time
}

func NewService(store Store, mailer smtp.Mailer, ttl time.Duration, appName string) Service {
	return newService(store, mailer, ttl, appName)
}

func newService(store Store, mailer smtp.Mailer, ttl time.Duration, appName string) *service {
	return &service{store: store, mailer: mailer, ttl: ttl, appName: appName, now: time.Now}
}

// Issue replaces any active code for the address and mails the new one.
// A delivery failure is returned but the stored code stays valid.
func (s *service) Issue(ctx context.Context, req SendRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" {
		return fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	if err := s.store.DeleteByEmail(ctx, email); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete previous code: %w", err)
	}
	now := s.now().UTC()
	rec := &domain.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		PurgeAt:   now.Add(s.ttl + retention).Unix(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	metrics.OTPEvents.WithLabelValues("issued").Inc()

	body, err := s.render(req.Name, code)
	if err != nil {
		return fmt.Errorf("render code email: %w", err)
	}
	err = s.mailer.SendEmail(ctx, domain.MailMessage{
		To:       email,
		Subject:  "Your " + s.appName + " verification code",
		HTMLBody: body,
	})
	if err != nil {
		metrics.OTPEvents.WithLabelValues("delivery_failed").Inc()
		zap.L().Warn("otp issued but not delivered", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("send code email: %w", err)
	}
	return nil
}

// Verify consumes the code on success. No record and a wrong code are
// indistinguishable to the caller.
func (s *service) Verify(ctx context.Context, req VerifyRequest) error {
	email := normalizeEmail(req.Email)
	rec, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.OTPEvents.WithLabelValues("invalid").Inc()
		return domain.ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	code := strings.TrimSpace(req.Code)
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		metrics.OTPEvents.WithLabelValues("invalid").Inc()
		return domain.ErrInvalidCode
	}
	// Expired records stay in place until purge so a retry keeps reporting ErrExpired.
	if rec.Expired(s.now()) {
		metrics.OTPEvents.WithLabelValues("expired").Inc()
		return domain.ErrExpired
	}
	// Only one concurrent caller wins the consume; the rest see the code as spent.
	consumed, err := s.store.Consume(ctx, email, code)
	if errors.Is(err, domain.ErrInvalidCode) {
		metrics.OTPEvents.WithLabelValues("invalid").Inc()
		return domain.ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if consumed.Expired(s.now()) {
		metrics.OTPEvents.WithLabelValues("expired").Inc()
		return domain.ErrExpired
	}
	metrics.OTPEvents.WithLabelValues("verified").Inc()
	zap.L().Info("otp verified", zap.String("email", email))
	return nil
}

func (s *service) render(name, code string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	var buf bytes.Buffer
	err := mailTemplate.Execute(&buf, struct {
		Name, AppName, Code string
		Minutes             int
	}{name, s.appName, code, int(s.ttl / time.Minute)})
	return buf.String(), err
}

// generateCode draws uniformly from [100000, 999999]; a leading zero cannot occur.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
