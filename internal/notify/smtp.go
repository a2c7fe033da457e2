package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/config"
	"github.com/erazemk/assetdesk/internal/model"
)

// implicitTLSPort is the submissions port, where TLS starts before the
// SMTP greeting.
const implicitTLSPort = 465

// SMTPNotifier sends notifications as email.
type SMTPNotifier struct {
	cfg  config.SMTPConfig
	from mail.Address
	log  *zap.Logger
	now  func() time.Time
}

func NewSMTPNotifier(cfg config.SMTPConfig, log *zap.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is not set")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", cfg.From, err)
	}
	if cfg.FromName != "" {
		from.Name = cfg.FromName
	}
	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout.Duration = 10 * time.Second
	}
	return &SMTPNotifier{cfg: cfg, from: *from, log: log.Named("smtp"), now: time.Now}, nil
}

func (n *SMTPNotifier) Name() string { return "smtp" }

// Verify connects, authenticates and disconnects without sending.
func (n *SMTPNotifier) Verify(ctx context.Context) error {
	c, err := n.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Quit()
}

func (n *SMTPNotifier) NotifyAssignment(ctx context.Context, notice model.AssignmentNotice) error {
	msg, err := AssignmentMessage(n.from, notice)
	if err != nil {
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		return err
	}
	n.log.Info("assignment email sent",
		zap.String("assignment_id", notice.AssignmentID),
		zap.String("to", notice.Employee.Email),
	)
	return nil
}

func (n *SMTPNotifier) SendTest(ctx context.Context, to string) error {
	if to == "" {
		to = n.from.Address
	}
	return n.send(ctx, DiagnosticMessage(n.from, to, n.now()))
}

func (n *SMTPNotifier) send(ctx context.Context, msg *Message) error {
	if msg.To.Address == "" {
		return errors.New("message has no recipient")
	}
	body, err := msg.Bytes(n.now())
	if err != nil {
		return err
	}

	c, err := n.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(msg.From.Address); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(msg.To.Address); err != nil {
		return fmt.Errorf("smtp RCPT TO %s: %w", msg.To.Address, err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}
	return c.Quit()
}

// dial opens an authenticated session. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS when the server offers it.
func (n *SMTPNotifier) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         n.cfg.Host,
		InsecureSkipVerify: n.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	dialer := &net.Dialer{Timeout: n.cfg.Timeout.Duration}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	deadline := time.Now().Add(n.cfg.Timeout.Duration)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	if n.cfg.Port == implicitTLSPort {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp greeting from %s: %w", addr, err)
	}

	if n.cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				c.Close()
				return nil, fmt.Errorf("starttls with %s: %w", addr, err)
			}
		}
	}

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return c, nil
}
