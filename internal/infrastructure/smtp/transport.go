package smtp

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
)

// Protocol steps, in the order they run. They name the failing step in a MailDeliveryError.
const (
	StepConnect  = "connect"
	StepGreeting = "greeting"
	StepEHLO     = "EHLO"
	StepAuth     = "AUTH LOGIN"
	StepAuthUser = "AUTH identity"
	StepAuthPass = "AUTH secret"
	StepMailFrom = "MAIL FROM"
	StepRcptTo   = "RCPT TO"
	StepData     = "DATA"
	StepMessage  = "message"
	StepQuit     = "QUIT"
)

const codeAuthSucceeded = 235

// Envelope is one message on the wire. Data holds the composed headers and body.
type Envelope struct {
	From string
	To   string
	Data []byte
}

// DialFunc opens the encrypted connection to the relay.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Transport speaks SMTP with AUTH LOGIN to an implicit-TLS relay (port 465).
// Every Deliver call opens its own connection and makes exactly one attempt.
type Transport struct {
	Host      string
	Port      int
	Username  string
	Password  string
	LocalName string
	// Timeout bounds the whole exchange, dial included. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
	// Dial overrides the TLS dialer; used by tests.
	Dial DialFunc
}

// step is one transition of the exchange: send a command (if any), then read
// one reply and check it.
type step struct {
	name   string
	send   func(w *textproto.Writer) error
	accept func(code int) bool // nil accepts any well-formed reply
	reject error
}

// Deliver runs greeting, EHLO, AUTH LOGIN, MAIL FROM, RCPT TO, DATA, QUIT in order.
// The connection is closed on every return path.
func (t *Transport) Deliver(ctx context.Context, env Envelope) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return &domain.MailDeliveryError{Step: StepConnect, Err: err}
	}
	defer conn.Close()
	// Cancellation or timeout unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r := textproto.NewReader(bufio.NewReader(conn))
	w := textproto.NewWriter(bufio.NewWriter(conn))

	for _, s := range t.steps(env) {
		if err := run(ctx, r, w, s); err != nil {
			return err
		}
	}

	// The relay has accepted the message; a failed QUIT does not undo that.
	_ = w.PrintfLine("QUIT")
	return nil
}

func (t *Transport) steps(env Envelope) []step {
	line := func(format string, args ...any) func(w *textproto.Writer) error {
		return func(w *textproto.Writer) error { return w.PrintfLine(format, args...) }
	}
	class := func(c int) func(int) bool {
		return func(code int) bool { return code/100 == c }
	}
	localName := t.LocalName
	if localName == "" {
		localName = "localhost"
	}
	return []step{
		{name: StepGreeting},
		{name: StepEHLO, send: line("EHLO %s", localName)},
		{name: StepAuth, send: line("AUTH LOGIN")},
		{name: StepAuthUser, send: line("%s", base64.StdEncoding.EncodeToString([]byte(t.Username)))},
		{
			name:   StepAuthPass,
			send:   line("%s", base64.StdEncoding.EncodeToString([]byte(t.Password))),
			accept: func(code int) bool { return code == codeAuthSucceeded },
			reject: domain.ErrAuthenticationFailed,
		},
		{name: StepMailFrom, send: line("MAIL FROM:<%s>", env.From), accept: class(2), reject: domain.ErrMailDelivery},
		{name: StepRcptTo, send: line("RCPT TO:<%s>", env.To), accept: class(2), reject: domain.ErrMailDelivery},
		{name: StepData, send: line("DATA"), accept: class(3), reject: domain.ErrMailDelivery},
		{name: StepMessage, send: writeData(env.Data), accept: class(2), reject: domain.ErrMailDelivery},
	}
}

// writeData dot-stuffs the message and terminates it with a lone ".".
func writeData(data []byte) func(w *textproto.Writer) error {
	return func(w *textproto.Writer) error {
		dw := w.DotWriter()
		if _, err := dw.Write(data); err != nil {
			_ = dw.Close()
			return err
		}
		return dw.Close()
	}
}

func run(ctx context.Context, r *textproto.Reader, w *textproto.Writer, s step) error {
	fail := func(reply string, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &domain.MailDeliveryError{Step: s.name, Reply: reply, Err: err}
	}

	if s.send != nil {
		if err := s.send(w); err != nil {
			return fail("", err)
		}
	}
	code, msg, err := r.ReadResponse(0)
	if err != nil {
		var perr textproto.ProtocolError
		if errors.As(err, &perr) {
			return fail(string(perr), domain.ErrMailDelivery)
		}
		return fail("", err)
	}
	if s.accept != nil && !s.accept(code) {
		return fail(fmt.Sprintf("%d %s", code, msg), s.reject)
	}
	return nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	if t.Dial != nil {
		return t.Dial(ctx, "tcp", addr)
	}
	d := &tls.Dialer{Config: &tls.Config{ServerName: t.Host, MinVersion: tls.VersionTLS12}}
	return d.DialContext(ctx, "tcp", addr)
}
