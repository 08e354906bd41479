package repo_test

import (
	"context"
	"errors"
	"testing"

	"clubrun/internal/db"
	"clubrun/internal/domain"
	"clubrun/internal/migrate"
	"clubrun/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
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
	return repo.Repo{DB: conn}
}

const testNow = "2024-01-01T00:00:00Z"

func insertMission(t *testing.T, r repo.Repo, id, status string) {
	t.Helper()
	m := domain.Mission{
		ID:            id,
		CuratorID:     "curator-1",
		Title:         "Play the anthem",
		Budget:        100,
		PaymentMethod: "paypal",
		Status:        status,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	if err := r.InsertMission(context.Background(), nil, m); err != nil {
		t.Fatalf("insert mission: %v", err)
	}
}

func TestMissionTerminalStatesAreOneWay(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertMission(t, r, "m1", domain.MissionInProgress)

	if err := r.CompleteMission(ctx, nil, "m1", "QmProof", testNow); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := r.FailMission(ctx, nil, "m1", "too late", testNow); !errors.Is(err, repo.ErrTerminalStatus) {
		t.Fatalf("fail after complete err = %v, want ErrTerminalStatus", err)
	}
	if err := r.CompleteMission(ctx, nil, "m1", "QmOther", testNow); !errors.Is(err, repo.ErrTerminalStatus) {
		t.Fatalf("double complete err = %v, want ErrTerminalStatus", err)
	}

	m, err := r.GetMission(ctx, "m1")
	if err != nil {
		t.Fatalf("get mission: %v", err)
	}
	if m.Status != domain.MissionCompleted {
		t.Fatalf("status = %s, want completed", m.Status)
	}
	if m.ProofHash == nil || *m.ProofHash != "QmProof" {
		t.Fatalf("proof hash = %v, want the first one to stick", m.ProofHash)
	}
	if m.FailureReason != nil {
		t.Fatalf("failure reason = %v, want nil", m.FailureReason)
	}
}

func TestTerminalGuardInsideTransaction(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertMission(t, r, "m1", domain.MissionFailed)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := r.CompleteMission(ctx, tx, "m1", "QmProof", testNow); !errors.Is(err, repo.ErrTerminalStatus) {
		t.Fatalf("complete failed mission err = %v, want ErrTerminalStatus", err)
	}
}

func TestCompleteUnknownMission(t *testing.T) {
	r := newTestRepo(t)
	err := r.CompleteMission(context.Background(), nil, "nope", "QmProof", testNow)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAssignRunnerOnlyWhilePending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertMission(t, r, "m1", domain.MissionPending)
	if err := r.InsertRunner(ctx, domain.Runner{ID: "r1", CreatedAt: testNow}); err != nil {
		t.Fatalf("insert runner: %v", err)
	}

	if err := r.AssignRunner(ctx, "m1", "r1", testNow); err != nil {
		t.Fatalf("assign: %v", err)
	}
	m, err := r.GetMission(ctx, "m1")
	if err != nil {
		t.Fatalf("get mission: %v", err)
	}
	if m.Status != domain.MissionInProgress {
		t.Fatalf("status = %s, want in_progress", m.Status)
	}
	if m.RunnerID == nil || *m.RunnerID != "r1" {
		t.Fatalf("runner = %v, want r1", m.RunnerID)
	}

	if err := r.AssignRunner(ctx, "m1", "r2", testNow); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("reassign err = %v, want ErrNotFound", err)
	}
	if err := r.AssignRunner(ctx, "nope", "r1", testNow); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown mission err = %v, want ErrNotFound", err)
	}
}

func TestMarkScheduleEnqueuedClaimsOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertMission(t, r, "m1", domain.MissionInProgress)
	s := domain.ScheduledVerification{
		ID:        "s1",
		MissionID: "m1",
		RunnerID:  "r1",
		Window: domain.VerificationWindow{
			StartTime: "2024-01-01T01:00:00Z",
			EndTime:   "2024-01-01T02:00:00Z",
		},
		EnqueueAt: "2024-01-01T02:00:00Z",
		Status:    repo.ScheduleArmed,
		CreatedAt: testNow,
	}
	if err := r.InsertScheduledVerification(ctx, s); err != nil {
		t.Fatalf("insert schedule: %v", err)
	}

	due, err := r.DueScheduledVerifications(ctx, "2024-01-01T02:00:00Z")
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "s1" {
		t.Fatalf("due = %+v, want s1", due)
	}
	early, err := r.DueScheduledVerifications(ctx, "2024-01-01T01:59:59Z")
	if err != nil {
		t.Fatalf("due early: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("due before enqueue_at = %+v, want none", early)
	}

	if err := r.MarkScheduleEnqueued(ctx, "s1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := r.MarkScheduleEnqueued(ctx, "s1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second claim err = %v, want ErrNotFound", err)
	}
	if got, _ := r.GetScheduledVerification(ctx, "s1"); got.Status != repo.ScheduleEnqueued {
		t.Fatalf("status = %s, want enqueued", got.Status)
	}
}

func TestCompletePaymentInstructionOnlyWhilePending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	in := domain.PaymentInstruction{
		ID:        "p1",
		MissionID: "m1",
		CuratorID: "curator-1",
		Method:    "zelle",
		Amount:    100,
		Recipient: "r1",
		Status:    domain.InstructionPending,
		CreatedAt: testNow,
		ExpiresAt: "2024-01-02T00:00:00Z",
	}
	if err := r.InsertPaymentInstruction(ctx, in); err != nil {
		t.Fatalf("insert instruction: %v", err)
	}

	if err := r.CompletePaymentInstruction(ctx, "p1", "zelle-conf-9", testNow); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := r.CompletePaymentInstruction(ctx, "p1", "again", testNow); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("double complete err = %v, want ErrNotFound", err)
	}

	got, err := r.GetPaymentInstruction(ctx, "p1")
	if err != nil {
		t.Fatalf("get instruction: %v", err)
	}
	if got.Status != domain.InstructionCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.TransactionDetails == nil || *got.TransactionDetails != "zelle-conf-9" {
		t.Fatalf("details = %v, want zelle-conf-9", got.TransactionDetails)
	}
}

func TestExpirePaymentInstructions(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	rows := []domain.PaymentInstruction{
		{ID: "p1", MissionID: "m1", CuratorID: "c", Method: "zelle", Amount: 10, Recipient: "r1",
			Status: domain.InstructionPending, CreatedAt: testNow, ExpiresAt: "2024-01-02T00:00:00Z"},
		{ID: "p2", MissionID: "m2", CuratorID: "c", Method: "zelle", Amount: 10, Recipient: "r1",
			Status: domain.InstructionPending, CreatedAt: testNow, ExpiresAt: "2024-01-03T00:00:00Z"},
	}
	for _, in := range rows {
		if err := r.InsertPaymentInstruction(ctx, in); err != nil {
			t.Fatalf("insert %s: %v", in.ID, err)
		}
	}
	n, err := r.ExpirePaymentInstructions(ctx, "2024-01-02T00:00:00Z")
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
}

func TestGetMissionNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.GetMission(context.Background(), "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListEventsFilters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	stmts := []struct {
		kind, id, typ string
	}{
		{"mission", "m1", "mission.created"},
		{"mission", "m1", "mission.assigned"},
		{"payment", "p1", "payment.completed"},
	}
	for _, s := range stmts {
		_, err := r.DB.ExecContext(ctx,
			`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
			testNow, s.typ, s.kind, s.id, "tester", "{}")
		if err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	all, err := r.ListEvents(ctx, 10, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all events = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].Type != "payment.completed" {
		t.Fatalf("first event = %s, want payment.completed", all[0].Type)
	}

	missions, err := r.ListEvents(ctx, 10, "mission", "m1")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(missions) != 2 {
		t.Fatalf("mission events = %d, want 2", len(missions))
	}

	limited, err := r.ListEvents(ctx, 1, "", "")
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited events = %d, want 1", len(limited))
	}
}

func TestEventsAfterCursor(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for _, typ := range []string{"a", "b", "c"} {
		_, err := r.DB.ExecContext(ctx,
			`INSERT INTO events(ts,type,entity_kind,actor_id,payload_json) VALUES (?,?,?,?,?)`,
			testNow, typ, "mission", "tester", "{}")
		if err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}
	latest, err := r.LatestEventID(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == 0 {
		t.Fatalf("latest id = 0, want > 0")
	}
	after, err := r.EventsAfter(ctx, 10, latest-2)
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("events after cursor = %d, want 2", len(after))
	}
	if after[0].ID >= after[1].ID {
		t.Fatalf("events not oldest first: %d then %d", after[0].ID, after[1].ID)
	}
}
