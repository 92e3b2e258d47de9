package notification

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 10 * time.Second

type SMTPTransport struct {
	host     string
	port     int
	user     string
	password string
	timeout  time.Duration
}

func NewSMTPTransport(host string, port int, user, password string, timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	return &SMTPTransport{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		timeout:  timeout,
	}
}

// Deliver returns once ctx is done even when the server stalls mid-dialogue.
func (t *SMTPTransport) Deliver(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(email)
	if err != nil {
		return err
	}

	connCtx, closeConn := context.WithCancel(ctx)
	defer closeConn()

	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(t.port),
		mail.WithTimeout(t.timeout),
		mail.WithDialContextFunc(t.dialer(connCtx)),
	}
	if t.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.user),
			mail.WithPassword(t.password),
		)
	}

	client, err := mail.NewClient(t.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client for %s: %w", t.host, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := client.DialAndSendWithContext(sendCtx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send to %s: %w", t.host, ctxErr)
		}
		return fmt.Errorf("smtp send to %s: %w", t.host, err)
	}
	return nil
}

// dialer bounds every read and write on the connection by the caller's
// deadline and closes it as soon as the caller's context is done.
func (t *SMTPTransport) dialer(parent context.Context) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		d := net.Dialer{Timeout: t.timeout}
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}

		deadline := time.Now().Add(t.timeout)
		if parentDeadline, ok := parent.Deadline(); ok && parentDeadline.Before(deadline) {
			deadline = parentDeadline
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}

		context.AfterFunc(parent, func() { _ = conn.Close() })
		return conn, nil
	}
}

func buildMessage(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", email.From, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	return msg, nil
}
