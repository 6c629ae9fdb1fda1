package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/event"
)

var reg = Registration{
	EventKey: "bootcamp",
	Rule:     event.Rule{Title: "Tuesday Bootcamp Run", Weekdays: []string{"mar.", "Tue"}},
	EventID:  "abc123",
	EventURL: "https://www.heylo.com/events/85c6b042/-abc123",
	Attempts: 2,
	At:       time.Date(2026, 10, 20, 12, 0, 1, 0, time.UTC),
}

func TestFormatMessage(t *testing.T) {
	msg := formatMessage(reg)

	for _, want := range []string{
		"<b>Registered: Tuesday Bootcamp Run</b>",
		"Event: bootcamp",
		"Attempts: 2",
		"Tue 20 Oct 12:00:01",
		"https://www.heylo.com/events/85c6b042/-abc123",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatMessage_EscapesHTML(t *testing.T) {
	r := reg
	r.Rule.Title = "Run <fast> & far"
	msg := formatMessage(r)
	if !strings.Contains(msg, "Run &lt;fast&gt; &amp; far") {
		t.Errorf("title not escaped:\n%s", msg)
	}
}

func TestDryRunNotifier(t *testing.T) {
	var buf bytes.Buffer
	if err := NewDryRunNotifier(&buf).Notify(context.Background(), reg); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !strings.Contains(buf.String(), "--- Notification ---") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	n, err := NewTelegramNotifier("test-token", "12345")
	if err != nil {
		t.Fatalf("NewTelegramNotifier() error = %v", err)
	}
	n.baseURL = server.URL + "/bot"
	return n
}

func TestTelegramNotifier_Success(t *testing.T) {
	var got map[string]interface{}
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`)) // nolint:errcheck
	})

	if err := n.Notify(context.Background(), reg); err != nil {
		t.Fatalf("Notify() unexpected error: %v", err)
	}
	if got["chat_id"] != "12345" {
		t.Errorf("chat_id = %v, want 12345", got["chat_id"])
	}
	if got["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v, want HTML", got["parse_mode"])
	}
}

func TestTelegramNotifier_APIError(t *testing.T) {
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`)) // nolint:errcheck
	})

	err := n.Notify(context.Background(), reg)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Notify() error = %v, want chat not found", err)
	}
}

func TestTelegramNotifier_HTTPError(t *testing.T) {
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	err := n.Notify(context.Background(), reg)
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("Notify() error = %v, want status 401", err)
	}
}

func TestNewTelegramNotifier_Validation(t *testing.T) {
	if _, err := NewTelegramNotifier("", "1"); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := NewTelegramNotifier("t", ""); err == nil {
		t.Error("expected error for empty chat ID")
	}
}

type failing struct{ err error }

func (f failing) Notify(context.Context, Registration) error { return f.err }

type counting struct{ n *int }

func (c counting) Notify(context.Context, Registration) error { *c.n++; return nil }

func TestMulti(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	m := Multi{failing{boom}, counting{&calls}, failing{errors.New("second")}}

	err := m.Notify(context.Background(), reg)
	if !errors.Is(err, boom) {
		t.Errorf("Multi.Notify() error = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("later notifiers should still run, calls = %d", calls)
	}
}
