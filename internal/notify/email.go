package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const acknowledgmentSubject = "Thank you for reaching out!"

// SMTPSettings 邮件服务器设置
type SMTPSettings struct {
	Host     string
	Port     int
	User     string
	Password string
}

// EmailChannel sends the visitor an acknowledgment of their request.
type EmailChannel struct {
	settings  SMTPSettings
	signature string
	timeout   time.Duration
	send      func(ctx context.Context, to string, msg []byte) error
}

// NewEmailChannel 创建邮件渠道; signature is the persona name used to sign.
func NewEmailChannel(settings SMTPSettings, signature string, timeout time.Duration) *EmailChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &EmailChannel{settings: settings, signature: signature, timeout: timeout}
	c.send = c.sendSMTP
	return c
}

func (c *EmailChannel) Name() string { return "email" }

// Send only handles contact events that carry a visitor address.
func (c *EmailChannel) Send(ctx context.Context, ev Event) error {
	if ev.Trigger != TriggerContactShared || ev.Email == "" {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(ev.Email), c.settings.User) {
		return nil
	}
	return c.send(ctx, ev.Email, c.buildMessage(ev))
}

func (c *EmailChannel) buildMessage(ev Event) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", c.settings.User)
	fmt.Fprintf(&buf, "To: %s\r\n", ev.Email)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", acknowledgmentSubject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")

	body := fmt.Sprintf(`Dear %s,

Thank you for getting in touch!
We've received your message and the question below:

"%s"

I'll reply to you soon.

Kind regards,
%s
`, ev.Name, ev.Question, c.signature)
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

// sendSMTP delivers over a STARTTLS session.
func (c *EmailChannel) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(c.settings.Host, strconv.Itoa(c.settings.Port))

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, c.settings.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: c.settings.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", c.settings.User, c.settings.Password, c.settings.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(c.settings.User); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}
