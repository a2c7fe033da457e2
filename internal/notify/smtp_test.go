package notify

import (
	"bufio"
	"context"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/config"
	"github.com/erazemk/assetdesk/internal/model"
)

// smtpSink is a minimal plaintext SMTP server that records what it
// receives.
type smtpSink struct {
	ln net.Listener

	mu       sync.Mutex
	from     string
	rcpt     []string
	messages []string
}

func newSMTPSink(t *testing.T) *smtpSink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &smtpSink{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *smtpSink) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *smtpSink) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *smtpSink) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { conn.Write([]byte(line + "\r\n")) }

	reply("220 sink ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 sink")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.TrimSpace(line[len("MAIL FROM:"):])
			s.mu.Unlock()
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.TrimSpace(line[len("RCPT TO:"):]))
			s.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			s.mu.Lock()
			s.messages = append(s.messages, body.String())
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func (s *smtpSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func newTestSMTPNotifier(t *testing.T, port int) *SMTPNotifier {
	t.Helper()
	n, err := NewSMTPNotifier(config.SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		From:     "assets@example.com",
		FromName: "Asset Management System",
		Timeout:  config.Duration{Duration: 2 * time.Second},
	}, zap.NewNop())
	require.NoError(t, err)
	return n
}

func testNotice() model.AssignmentNotice {
	return model.AssignmentNotice{
		AssignmentID: "a-1",
		Employee:     model.NoticeParty{Name: "Jane Doe", Email: "jane@example.com"},
		Asset:        model.NoticeAsset{Name: "Lenovo X1", Type: "Laptop", SerialNumber: "SN-1"},
		AssignedDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSMTPNotifierSendsAssignment(t *testing.T) {
	sink := newSMTPSink(t)
	n := newTestSMTPNotifier(t, sink.port())

	require.NoError(t, n.NotifyAssignment(context.Background(), testNotice()))

	msgs := sink.received()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Subject: Asset Assignment: Lenovo X1")
	assert.Contains(t, msgs[0], "Serial Number: SN-1")
	assert.Contains(t, msgs[0], "Assignment Date: 2024-03-01")
	assert.Contains(t, msgs[0], "multipart/alternative")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Contains(t, sink.from, "assets@example.com")
	require.Len(t, sink.rcpt, 1)
	assert.Contains(t, sink.rcpt[0], "jane@example.com")
}

func TestSMTPNotifierVerifyAndTest(t *testing.T) {
	sink := newSMTPSink(t)
	n := newTestSMTPNotifier(t, sink.port())

	require.NoError(t, n.Verify(context.Background()))
	assert.Empty(t, sink.received())

	require.NoError(t, n.SendTest(context.Background(), ""))
	msgs := sink.received()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Test Email from Asset Management System")
}

func TestSMTPNotifierUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	n := newTestSMTPNotifier(t, port)
	err = n.Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
}

func TestNewSMTPNotifierRejectsBadSender(t *testing.T) {
	_, err := NewSMTPNotifier(config.SMTPConfig{Host: "mail", From: "not an address"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSMTPNotifier(config.SMTPConfig{From: "a@example.com"}, zap.NewNop())
	assert.Error(t, err)
}

func TestAssignmentMessageEscapesHTML(t *testing.T) {
	notice := testNotice()
	notice.Asset.Name = "<b>Laptop</b>"

	msg, err := AssignmentMessage(mail.Address{Address: "assets@example.com"}, notice)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "&lt;b&gt;Laptop&lt;/b&gt;")
	assert.Contains(t, msg.Text, "Asset Name: <b>Laptop</b>")
	assert.Equal(t, "Jane Doe", msg.To.Name)

	raw, err := msg.Bytes(time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "MIME-Version: 1.0\r\n")
	assert.Contains(t, string(raw), "text/plain; charset=utf-8")
	assert.Contains(t, string(raw), "text/html; charset=utf-8")
}
