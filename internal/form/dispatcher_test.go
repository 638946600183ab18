package form

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/adept-leads/internal/message"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []message.Email
	err  error
}

func (f *fakeMailer) SendEmail(_ context.Context, e message.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return f.err
}

func registerDispatchDef(t *testing.T, id string, actions ...ActionDef) {
	t.Helper()
	fd := ContactDef(ContactOptions{Actions: actions})
	fd.ID = id
	if err := Register(fd); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func testLead(formID string) Lead {
	return Lead{
		ID:          "7d444840-9dc0-11d1-b245-5ffdce74fad2",
		FormID:      formID,
		Values:      map[string]string(validDraft()),
		SubmittedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Meta:        Meta{IP: "198.51.100.2"},
	}
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func TestDispatcherRunsAllActions(t *testing.T) {
	var got Lead
	var hdr string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr = r.Header.Get("X-Token")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead (id, form_id, submitted_at, data, meta) VALUES (?, ?, ?, ?, ?)")).
		WithArgs("7d444840-9dc0-11d1-b245-5ffdce74fad2", "test/all", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	registerDispatchDef(t, "test/all",
		ActionDef{Type: "store"},
		ActionDef{Type: "webhook", Params: map[string]any{"url": srv.URL, "header.X-Token": "s3cret"}},
		ActionDef{Type: "email", Params: map[string]any{"to": []any{"sales@example.com"}}},
	)
	mailer := &fakeMailer{}
	d := &Dispatcher{DB: db, Mailer: mailer, Webhooks: &message.WebhookClient{HTTP: srv.Client()}}

	if err := d.Send(context.Background(), testLead("test/all")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
	if got.Values["email"] != "john@example.com" || hdr != "s3cret" {
		t.Fatalf("webhook payload/header wrong: %+v %q", got, hdr)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("want one email, got %d", len(mailer.sent))
	}
	e := mailer.sent[0]
	if e.ReplyTo != "john@example.com" || e.Subject != "New inquiry: Send us a message" {
		t.Fatalf("email headers wrong: %+v", e)
	}
	if !regexp.MustCompile(`First Name</strong></td><td>John`).MatchString(e.HTML) {
		t.Fatalf("email body missing field rows:\n%s", e.HTML)
	}
}

func TestDispatcherWebhookFailureRollsBack(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO leads_archive").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		registerDispatchDef(t, "test/rollback",
			ActionDef{Type: "store", Params: map[string]any{"table": "leads_archive"}},
			ActionDef{Type: "webhook", Params: map[string]any{"url": srv.URL}},
		)
		d := &Dispatcher{DB: db, Webhooks: &message.WebhookClient{HTTP: srv.Client()}}

		err := d.Send(context.Background(), testLead("test/rollback"))
		var se *message.StatusError
		if !errors.As(err, &se) || se.StatusCode != status {
			t.Fatalf("status %d: want StatusError, got %v", status, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("status %d: sql expectations: %v", status, err)
		}
		srv.Close()
	}
}

func TestDispatcherStoreErrorStopsBeforeNotifications(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lead").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	registerDispatchDef(t, "test/storefail",
		ActionDef{Type: "email", Params: map[string]any{"to": "sales@example.com"}},
		ActionDef{Type: "store"},
	)
	mailer := &fakeMailer{}
	d := &Dispatcher{DB: db, Mailer: mailer}

	if err := d.Send(context.Background(), testLead("test/storefail")); err == nil {
		t.Fatal("want error")
	}
	if len(mailer.sent) != 0 {
		t.Fatal("email sent despite store failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestDispatcherConfigurationErrors(t *testing.T) {
	registerDispatchDef(t, "test/nodb", ActionDef{Type: "store"})
	registerDispatchDef(t, "test/nomailer", ActionDef{Type: "email", Params: map[string]any{"to": "a@b.co"}})
	registerDispatchDef(t, "test/badtable", ActionDef{Type: "store", Params: map[string]any{"table": "lead; DROP TABLE x"}})

	d := &Dispatcher{}
	for _, id := range []string{"test/nodb", "test/nomailer", "test/unknown"} {
		if err := d.Send(context.Background(), testLead(id)); err == nil {
			t.Errorf("%s: want error", id)
		}
	}

	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	d = &Dispatcher{DB: db}
	if err := d.Send(context.Background(), testLead("test/badtable")); err == nil {
		t.Fatal("bad table: want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestSimulatedSenderHonoursContext(t *testing.T) {
	if err := (Simulated{}).Send(context.Background(), testLead("x")); err != nil {
		t.Fatalf("zero delay: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Simulated{Delay: time.Hour}).Send(ctx, testLead("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestDispatcherUsesSessionDefinitionAfterReload(t *testing.T) {
	var hitsOld, hitsNew atomic.Int32
	oldSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hitsOld.Add(1) }))
	defer oldSrv.Close()
	newSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hitsNew.Add(1) }))
	defer newSrv.Close()

	registerDispatchDef(t, "test/reload",
		ActionDef{Type: "webhook", Params: map[string]any{"url": oldSrv.URL}})
	fd, _ := GetFormDef("test/reload")

	d := &Dispatcher{Webhooks: &message.WebhookClient{}}
	sess := NewSession(fd, d)
	if err := sess.Fill(validDraft()); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	// A hot reload swaps the registered definition while the session lives.
	registerDispatchDef(t, "test/reload",
		ActionDef{Type: "webhook", Params: map[string]any{"url": newSrv.URL}})

	if err := sess.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if hitsOld.Load() != 1 || hitsNew.Load() != 0 {
		t.Fatalf("delivered with the reloaded definition: old=%d new=%d", hitsOld.Load(), hitsNew.Load())
	}
}
