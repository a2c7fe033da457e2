package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/erazemk/assetdesk/internal/model"
)

// Message is a rendered email with plain text and HTML bodies.
type Message struct {
	From    mail.Address
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

const assignmentText = `Asset Assignment Notification

Dear {{.Employee.Name}},

You have been assigned the following asset:

Asset Name: {{.Asset.Name}}
Asset Type: {{.Asset.Type}}
Serial Number: {{.Asset.SerialNumber}}
Assignment Date: {{.AssignedDate.Format "2006-01-02"}}

Please take good care of this asset and report any issues immediately.

Best regards,
Asset Management Team
`

const assignmentHTML = `<h1>Asset Assignment Notification</h1>
<p>Dear {{.Employee.Name}},</p>
<p>You have been assigned the following asset:</p>
<div style="background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin: 15px 0;">
  <h2>Asset Details:</h2>
  <ul style="list-style: none; padding: 0;">
    <li><strong>Asset Name:</strong> {{.Asset.Name}}</li>
    <li><strong>Asset Type:</strong> {{.Asset.Type}}</li>
    <li><strong>Serial Number:</strong> {{.Asset.SerialNumber}}</li>
    <li><strong>Assignment Date:</strong> {{.AssignedDate.Format "2006-01-02"}}</li>
  </ul>
</div>
<p>Please take good care of this asset and report any issues immediately.</p>
<p>Best regards,<br>Asset Management Team</p>
`

var (
	assignmentTextTmpl = texttemplate.Must(texttemplate.New("assignment").Parse(assignmentText))
	assignmentHTMLTmpl = htmltemplate.Must(htmltemplate.New("assignment").Parse(assignmentHTML))
)

// AssignmentMessage renders the email sent for a new assignment.
func AssignmentMessage(from mail.Address, notice model.AssignmentNotice) (*Message, error) {
	var text, html bytes.Buffer
	if err := assignmentTextTmpl.Execute(&text, notice); err != nil {
		return nil, fmt.Errorf("rendering text body: %w", err)
	}
	if err := assignmentHTMLTmpl.Execute(&html, notice); err != nil {
		return nil, fmt.Errorf("rendering html body: %w", err)
	}
	return &Message{
		From:    from,
		To:      mail.Address{Name: notice.Employee.Name, Address: notice.Employee.Email},
		Subject: "Asset Assignment: " + notice.Asset.Name,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// DiagnosticMessage renders the connectivity test email.
func DiagnosticMessage(from mail.Address, to string, at time.Time) *Message {
	stamp := at.UTC().Format(time.RFC1123)
	return &Message{
		From:    from,
		To:      mail.Address{Address: to},
		Subject: "Test Email from Asset Management System",
		Text:    "This is a test email to verify the email configuration.\nTime sent: " + stamp + "\n",
		HTML: "<h1>Test Email</h1>\n<p>This is a test email to verify the email configuration.</p>\n" +
			"<p>If you received this email, your email configuration is working correctly.</p>\n" +
			"<p>Time sent: " + htmltemplate.HTMLEscapeString(stamp) + "</p>\n",
	}
}

// Bytes encodes the message as a multipart/alternative MIME document.
func (m *Message) Bytes(date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", m.From.String())
	header("To", m.To.String())
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", m.Text},
		{"text/html; charset=utf-8", m.HTML},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s part: %w", p.contentType, err)
		}
		if _, err := w.Write([]byte(normalizeNewlines(p.body))); err != nil {
			return nil, fmt.Errorf("writing %s part: %w", p.contentType, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}
