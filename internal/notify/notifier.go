// Package notify sends templated account emails. The services depend only on
// the Notifier interface; mail transport stays behind Sender.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/shopfront/accounts/pkg/logger"
)

// Notifier delivers account lifecycle emails.
type Notifier interface {
	ActivateUser(ctx context.Context, email, token string) error
	ForgotPassword(ctx context.Context, email, token string) error
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, subject, htmlBody string) error
}

var activateTemplate = template.Must(template.New("activate-user").Parse(`
<p>Welcome! Complete your registration by following the link below.</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
`))

var forgotPasswordTemplate = template.Must(template.New("forget-password").Parse(`
<p>A password reset was requested for your account.</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
<p>The link expires in 48 hours. If you did not request this, ignore this mail.</p>
`))

// Mailer renders the account mail templates and hands them to a Sender.
type Mailer struct {
	sender     Sender
	from       string
	assetsHost string
	log        *logger.Logger
}

var _ Notifier = (*Mailer)(nil)

// NewMailer builds a mailer. assetsHost is the public web frontend base URL
// the links point at.
func NewMailer(sender Sender, from, assetsHost string, log *logger.Logger) *Mailer {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &Mailer{sender: sender, from: from, assetsHost: assetsHost, log: log}
}

// ActivateUser sends the complete-registration mail for an invited account.
func (m *Mailer) ActivateUser(ctx context.Context, email, token string) error {
	url := fmt.Sprintf("%s/user-registration/%s", m.assetsHost, token)
	body, err := render(activateTemplate, url)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, m.from, []string{email}, "🎉 Welcome to Shopfront!", body); err != nil {
		return fmt.Errorf("send activation mail: %w", err)
	}
	m.log.WithField("email", email).Info("activation mail sent")
	return nil
}

// ForgotPassword sends the password reset mail.
func (m *Mailer) ForgotPassword(ctx context.Context, email, token string) error {
	url := fmt.Sprintf("%s/reset-password/%s/", m.assetsHost, token)
	body, err := render(forgotPasswordTemplate, url)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, m.from, []string{email}, "🔒 Forgotten Password - Shopfront", body); err != nil {
		return fmt.Errorf("send password reset mail: %w", err)
	}
	m.log.WithField("email", email).Info("password reset mail sent")
	return nil
}

func render(t *template.Template, url string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ URL string }{URL: url}); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// SMTPSender sends mail over plain SMTP.
type SMTPSender struct {
	addr string
	auth smtp.Auth
}

// NewSMTPSender configures a sender for host:port. Username may be empty for
// unauthenticated relays.
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	s := &SMTPSender{addr: fmt.Sprintf("%s:%d", host, port)}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSender) Send(_ context.Context, from string, to []string, subject, htmlBody string) error {
	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	for _, rcpt := range to {
		fmt.Fprintf(&msg, "To: %s\r\n", rcpt)
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(htmlBody)
	return smtp.SendMail(s.addr, s.auth, from, to, msg.Bytes())
}

// LogNotifier logs instead of sending; the development and test default.
type LogNotifier struct {
	log *logger.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier returns a notifier that only logs.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ActivateUser(_ context.Context, email, token string) error {
	n.log.WithField("email", email).WithField("token", token).Info("activation mail suppressed (log notifier)")
	return nil
}

func (n *LogNotifier) ForgotPassword(_ context.Context, email, token string) error {
	n.log.WithField("email", email).WithField("token", token).Info("password reset mail suppressed (log notifier)")
	return nil
}
