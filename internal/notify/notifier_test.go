package notify

import (
	"context"
	"strings"
	"testing"
)

type fakeSender struct {
	from    string
	to      []string
	subject string
	body    string
	err     error
}

func (f *fakeSender) Send(_ context.Context, from string, to []string, subject, htmlBody string) error {
	f.from, f.to, f.subject, f.body = from, to, subject, htmlBody
	return f.err
}

func TestActivateUserMail(t *testing.T) {
	sender := &fakeSender{}
	m := NewMailer(sender, "no-reply@shopfront.local", "https://shop.example.com", nil)

	if err := m.ActivateUser(context.Background(), "invitee@example.com", "uuid-token"); err != nil {
		t.Fatalf("ActivateUser failed: %v", err)
	}
	if sender.to[0] != "invitee@example.com" {
		t.Errorf("to = %v", sender.to)
	}
	if !strings.Contains(sender.body, "https://shop.example.com/user-registration/uuid-token") {
		t.Errorf("body missing activation link: %s", sender.body)
	}
	if !strings.Contains(sender.subject, "Welcome") {
		t.Errorf("unexpected subject %q", sender.subject)
	}
}

func TestForgotPasswordMail(t *testing.T) {
	sender := &fakeSender{}
	m := NewMailer(sender, "no-reply@shopfront.local", "https://shop.example.com", nil)

	if err := m.ForgotPassword(context.Background(), "user@example.com", "reset-token"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if !strings.Contains(sender.body, "https://shop.example.com/reset-password/reset-token/") {
		t.Errorf("body missing reset link: %s", sender.body)
	}
}

func TestMailerWrapsSendError(t *testing.T) {
	sender := &fakeSender{err: context.DeadlineExceeded}
	m := NewMailer(sender, "no-reply@shopfront.local", "https://shop.example.com", nil)

	if err := m.ActivateUser(context.Background(), "x@example.com", "tok"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(nil)
	if err := n.ActivateUser(context.Background(), "a@example.com", "t"); err != nil {
		t.Errorf("ActivateUser = %v", err)
	}
	if err := n.ForgotPassword(context.Background(), "a@example.com", "t"); err != nil {
		t.Errorf("ForgotPassword = %v", err)
	}
}
