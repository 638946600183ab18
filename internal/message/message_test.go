package message

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
)

func TestWebhookPostsJSON(t *testing.T) {
	var method, ctype, auth, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, ctype, auth = r.Method, r.Header.Get("Content-Type"), r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := &WebhookClient{HTTP: srv.Client()}
	err := c.Post(context.Background(), Webhook{
		URL:     srv.URL,
		Method:  http.MethodPut,
		Headers: map[string]string{"Authorization": "Bearer t"},
	}, map[string]string{"email": "jane@example.com"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if method != http.MethodPut || ctype != "application/json" || auth != "Bearer t" {
		t.Fatalf("request = %s %s %s", method, ctype, auth)
	}
	if body != `{"email":"jane@example.com"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusBadRequest, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", code)
		}))
		err := (&WebhookClient{HTTP: srv.Client()}).Post(context.Background(), Webhook{URL: srv.URL}, struct{}{})
		srv.Close()

		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != code {
			t.Fatalf("code %d: got %v", code, err)
		}
		if !strings.Contains(se.Body, "nope") {
			t.Fatalf("code %d: body snippet %q", code, se.Body)
		}
	}
}

func TestWebhookTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := (&WebhookClient{}).Post(context.Background(), Webhook{URL: url}, 1); err == nil {
		t.Fatal("want error from closed server")
	}
}

func TestWebhookErrorsHideURLSecrets(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	for _, hook := range []string{
		base + "/services/T000/B000/s3cr3tT0ken?key=s3cr3tK3y",
		"http://user:s3cr3tPass@[::1/hook",
	} {
		err := (&WebhookClient{}).Post(context.Background(), Webhook{URL: hook}, 1)
		if err == nil {
			t.Fatalf("%s: want error", hook)
		}
		for _, secret := range []string{"s3cr3tT0ken", "s3cr3tK3y", "s3cr3tPass"} {
			if strings.Contains(err.Error(), secret) {
				t.Fatalf("error leaks %q: %v", secret, err)
			}
		}
	}

	err := (&WebhookClient{}).Post(context.Background(), Webhook{URL: base + "/x?token=abc"}, 1)
	if err == nil || !strings.Contains(err.Error(), base) {
		t.Fatalf("error should name scheme and host: %v", err)
	}
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", Username: "u", Password: "p", From: "site@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPMailer: %v", err)
	}

	var addr, from string
	var to []string
	var raw []byte
	var gotAuth smtp.Auth
	m.send = func(a string, auth smtp.Auth, f string, rcpt []string, msg []byte) error {
		addr, gotAuth, from, to, raw = a, auth, f, rcpt, msg
		return nil
	}

	err = m.SendEmail(context.Background(), Email{
		To:      []string{"sales@example.com"},
		ReplyTo: "jane@example.com\r\nBcc: evil@example.com",
		Subject: "New inquiry",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if addr != "mail.example.com:587" || from != "site@example.com" || len(to) != 1 || gotAuth == nil {
		t.Fatalf("envelope = %s %s %v %v", addr, from, to, gotAuth)
	}
	msg := string(raw)
	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("header injection not stripped:\n%s", msg)
	}
	for _, want := range []string{"Subject: New inquiry\r\n", "Content-Type: text/html; charset=UTF-8\r\n", "\r\n\r\n<p>hi</p>"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPMailerGuards(t *testing.T) {
	if _, err := NewSMTPMailer(SMTPConfig{Host: "h"}); err == nil {
		t.Fatal("missing From: want error")
	}

	m, _ := NewSMTPMailer(SMTPConfig{Host: "h", From: "a@b.co"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("554 rejected") }

	if err := m.SendEmail(context.Background(), Email{}); err == nil {
		t.Fatal("no recipients: want error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.SendEmail(ctx, Email{To: []string{"x@y.co"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled ctx: got %v", err)
	}
	if err := m.SendEmail(context.Background(), Email{To: []string{"x@y.co"}}); err == nil {
		t.Fatal("relay error: want error")
	}
}
