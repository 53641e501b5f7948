// Package notify sends the approval and state alert emails.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

const dialTimeout = 30 * time.Second

// ErrNotConfigured is returned when no SMTP username is set.
var ErrNotConfigured = errors.New("email not configured")

// Message is one outgoing email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Bytes renders m as an RFC 5322 message with a UTF-8 plain text body.
func (m Message) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return b.Bytes()
}

// SendFunc delivers one message.
type SendFunc func(ctx context.Context, m Message) error

// Notifier emails the configured alert address.
type Notifier struct {
	from string
	to   string
	send SendFunc
}

// New builds a notifier that sends through the configured SMTP server with
// STARTTLS.
func New(cfg *config.Config) *Notifier {
	cr := cfg.Credentials
	n := &Notifier{from: cr.SMTPUsername, to: cr.AlertEmail}
	if n.to == "" {
		n.to = cr.SMTPUsername
	}
	addr := net.JoinHostPort(cr.SMTPServer, strconv.Itoa(cr.SMTPPort))
	n.send = func(ctx context.Context, m Message) error {
		return sendSTARTTLS(ctx, addr, cr.SMTPServer, cr.SMTPUsername, cr.SMTPPassword, m)
	}
	return n
}

// WithSender replaces the delivery function.
func (n *Notifier) WithSender(send SendFunc) *Notifier {
	n.send = send
	return n
}

// Enabled reports whether mail can be sent.
func (n *Notifier) Enabled() bool {
	return n.from != ""
}

// ApprovalNeeded tells the reviewer that a report is waiting for approval.
func (n *Notifier) ApprovalNeeded(ctx context.Context, r *models.Report) error {
	state := "No"
	if st, ok := r.PrimaryState(); ok {
		state = st.Name
	}
	body := fmt.Sprintf(`New NDTA news content is ready for approval:

HEADLINE: %s

SUMMARY: %s

SOCIAL POST: %s

STATE-SPECIFIC: %s

Please review and approve via the pipeline:
pipeline approve

---
NDTA News Pipeline
`, r.Headline, r.ExecutiveSummary, r.SocialPost, state)

	return n.deliver(ctx, "NDTA News: Approval Needed - "+r.Headline, body, "approval notification")
}

// StateAlert announces approved state-specific content with its suggested
// Facebook groups.
func (n *Notifier) StateAlert(ctx context.Context, c *models.ApprovedContent) error {
	groups := make([]string, 0, len(c.SuggestedGroups))
	for _, g := range c.SuggestedGroups {
		groups = append(groups, "  • "+g)
	}
	body := fmt.Sprintf(`STATE-SPECIFIC NEWS DETECTED!

STATE: %s

HEADLINE: %s

SUMMARY: %s

SUGGESTED FACEBOOK GROUPS:
%s

This content should be posted to state-specific Facebook groups.

Review via: pipeline state-alerts

---
NDTA News Pipeline
`, c.State, c.Headline, c.Summary, strings.Join(groups, "\n"))

	return n.deliver(ctx, fmt.Sprintf("🚨 STATE ALERT: %s - %s", c.State, c.Headline), body, "state alert")
}

func (n *Notifier) deliver(ctx context.Context, subject, body, what string) error {
	if !n.Enabled() {
		log.Warn().Msgf("Email not configured, skipping %s", what)
		return ErrNotConfigured
	}
	err := n.send(ctx, Message{From: n.from, To: []string{n.to}, Subject: subject, Body: body})
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msgf("Error sending %s", what)
		return fmt.Errorf("send %s: %w", what, err)
	}
	log.Info().Str("to", n.to).Str("subject", subject).Msgf("Sent %s", what)
	return nil
}

func sendSTARTTLS(ctx context.Context, addr, host, username, password string, m Message) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(dialTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", username, password, host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.From); err != nil {
		return err
	}
	for _, to := range m.To {
		if err := c.Rcpt(to); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(m.Bytes()); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
