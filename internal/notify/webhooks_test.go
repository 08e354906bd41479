package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clubrun/internal/config"
	"clubrun/internal/db"
	"clubrun/internal/migrate"
	"clubrun/internal/repo"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func insertEvent(t *testing.T, conn *sql.DB, evtType string) {
	t.Helper()
	_, err := conn.Exec(
		`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		"2024-01-01T00:00:00Z", evtType, "mission", "m1", "system", `{"k":"v"}`)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func TestEventNotifierRecordsAudience(t *testing.T) {
	conn := newTestDB(t)
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	n := NewEventNotifier(conn, now)

	n.Notify(context.Background(), AudienceRunner, "r1", "mission.failed", map[string]any{"reason": "x"})

	var payload string
	err := conn.QueryRow(`SELECT payload_json FROM events WHERE type='notify.mission.failed' AND entity_id='r1'`).Scan(&payload)
	if err != nil {
		t.Fatalf("notification event missing: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded["audience"] != AudienceRunner || decoded["reason"] != "x" {
		t.Fatalf("payload = %v, want audience and reason", decoded)
	}
}

func TestForwarderFiltersAndDelivers(t *testing.T) {
	conn := newTestDB(t)
	insertEvent(t, conn, "mission.completed")
	insertEvent(t, conn, "payment.completed")
	insertEvent(t, conn, "mission.completed")

	var mu sync.Mutex
	var delivered []webhookEvent
	var gotSecret, gotEventHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		delivered = append(delivered, evt)
		gotSecret = r.Header.Get("X-Clubrun-Secret")
		gotEventHeader = r.Header.Get("X-Clubrun-Event")
		mu.Unlock()
	}))
	defer srv.Close()

	f := &WebhookForwarder{
		repo: repo.Repo{DB: conn},
		webhooks: []config.WebhookConfig{{
			URL:    srv.URL,
			Secret: "hook-secret",
			Events: []string{"mission.completed"},
		}},
		client:  srv.Client(),
		cursors: map[int]int64{0: 0},
	}
	f.forwardAll()

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 {
		t.Fatalf("delivered %d events, want the 2 matching ones", len(delivered))
	}
	for _, evt := range delivered {
		if evt.Type != "mission.completed" {
			t.Fatalf("delivered %s, want mission.completed only", evt.Type)
		}
	}
	if gotSecret != "hook-secret" {
		t.Fatalf("secret header = %q, want hook-secret", gotSecret)
	}
	if gotEventHeader != "mission.completed" {
		t.Fatalf("event header = %q, want mission.completed", gotEventHeader)
	}
}

func TestForwarderHoldsCursorOnFailure(t *testing.T) {
	conn := newTestDB(t)
	insertEvent(t, conn, "mission.completed")

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := &WebhookForwarder{
		repo:     repo.Repo{DB: conn},
		webhooks: []config.WebhookConfig{{URL: srv.URL}},
		client:   srv.Client(),
		cursors:  map[int]int64{0: 0},
	}
	f.forwardAll()
	if f.cursorFor(0) != 0 {
		t.Fatalf("cursor advanced past an undelivered event")
	}
	// The next pass retries the same event.
	f.forwardAll()
	if calls != 2 {
		t.Fatalf("delivery attempts = %d, want 2", calls)
	}
}

func TestDisabledHookSkipped(t *testing.T) {
	conn := newTestDB(t)
	insertEvent(t, conn, "mission.completed")

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	disabled := false
	f := &WebhookForwarder{
		repo:     repo.Repo{DB: conn},
		webhooks: []config.WebhookConfig{{URL: srv.URL, Enabled: &disabled}},
		client:   srv.Client(),
		cursors:  map[int]int64{0: 0},
	}
	f.forwardAll()
	if calls != 0 {
		t.Fatalf("disabled hook received %d deliveries, want 0", calls)
	}
}
