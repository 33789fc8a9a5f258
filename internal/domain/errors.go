package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// OTP verification. No-record and wrong-code both map to ErrInvalidCode.
	ErrInvalidCode = errors.New("invalid verification code")
	ErrExpired     = errors.New("verification code expired")

	// Mail delivery.
	ErrAuthenticationFailed = errors.New("smtp authentication failed")
	ErrMailDelivery         = errors.New("mail delivery failed")

	// Payment initiation.
	ErrBatch                    = errors.New("order batch not placed")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrMalformedGatewayResponse = errors.New("malformed gateway response")
)

// MailDeliveryError reports the SMTP step that failed and the raw server reply, if any.
// Err is ErrAuthenticationFailed for a rejected AUTH exchange and ErrMailDelivery otherwise,
// unless a lower-level network error is more specific.
type MailDeliveryError struct {
	Step  string
	Reply string
	Err   error
}

func (e *MailDeliveryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "smtp %s", e.Step)
	if e.Reply != "" {
		fmt.Fprintf(&b, ": server replied %q", e.Reply)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MailDeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMailDelivery}
	}
	return []error{e.Err, ErrMailDelivery}
}

// BatchError is returned when at least one order insert of a batch failed.
// Orphaned lists the ids of sibling orders that were written before the failure was observed.
type BatchError struct {
	BatchID  string
	Failed   int
	Total    int
	Orphaned []string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("order batch %s: %d of %d inserts failed: %v", e.BatchID, e.Failed, e.Total, e.Err)
}

func (e *BatchError) Unwrap() []error { return []error{ErrBatch, e.Err} }

// GatewayError carries the gateway's own error detail when it supplied one.
type GatewayError struct {
	Gateway    PaymentMethod
	StatusCode int
	Detail     string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s gateway: %v", e.Gateway, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }
