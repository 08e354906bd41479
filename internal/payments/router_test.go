package payments_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"clubrun/internal/config"
	"clubrun/internal/db"
	"clubrun/internal/domain"
	"clubrun/internal/migrate"
	"clubrun/internal/notify"
	"clubrun/internal/payments"
	"clubrun/internal/repo"
)

type routerEnv struct {
	t      *testing.T
	db     *sql.DB
	router *payments.Router
	now    time.Time
}

func newRouterEnv(t *testing.T) *routerEnv {
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
	env := &routerEnv{
		t:   t,
		db:  conn,
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	env.router = payments.NewRouter(conn, config.Default().Payments, notify.NewEventNotifier(conn, clock))
	env.router.Now = clock
	return env
}

func (e *routerEnv) eventCount(evtType string) int {
	e.t.Helper()
	var n int
	if err := e.db.QueryRow(`SELECT count(*) FROM events WHERE type=?`, evtType).Scan(&n); err != nil {
		e.t.Fatalf("count events %s: %v", evtType, err)
	}
	return n
}

func TestFees(t *testing.T) {
	env := newRouterEnv(t)
	cases := []struct {
		method string
		amount float64
		want   float64
	}{
		{payments.MethodPayPal, 100, 3.20},
		{payments.MethodPayPal, 50, 1.75},
		{payments.MethodCashApp, 100, 0},
		{payments.MethodZelle, 100, 0},
		{payments.MethodVenmo, 100, 0},
		{payments.MethodMatic, 100, 0.01},
		{payments.MethodUSDC, 5000, 0.01},
	}
	for _, c := range cases {
		got, err := env.router.Fees(c.method, c.amount)
		if err != nil {
			t.Fatalf("Fees(%s, %v): %v", c.method, c.amount, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("Fees(%s, %v) = %v, want %v", c.method, c.amount, got, c.want)
		}
	}
	if _, err := env.router.Fees("wire", 100); !errors.Is(err, payments.ErrUnsupportedMethod) {
		t.Fatalf("Fees(wire) err = %v, want ErrUnsupportedMethod", err)
	}
}

func TestSupported(t *testing.T) {
	env := newRouterEnv(t)
	for _, method := range []string{
		payments.MethodMatic, payments.MethodUSDC, payments.MethodPayPal,
		payments.MethodCashApp, payments.MethodZelle, payments.MethodVenmo,
	} {
		if !env.router.Supported(method) {
			t.Fatalf("Supported(%s) = false, want true", method)
		}
	}
	if env.router.Supported("wire") {
		t.Fatalf("Supported(wire) = true, want false")
	}
}

func TestOnChainSettlesImmediately(t *testing.T) {
	env := newRouterEnv(t)
	result, err := env.router.ProcessPayment(context.Background(), payments.MethodMatic, 250, "r1", "m1", "curator-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if result.Status != domain.InstructionCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.TransactionID == "" {
		t.Fatalf("transaction id empty")
	}
	if result.Instruction != nil {
		t.Fatalf("on-chain payout carries an instruction, want none")
	}
	if math.Abs(result.Fee-0.01) > 1e-9 {
		t.Fatalf("fee = %v, want 0.01", result.Fee)
	}
	if n := env.eventCount("payment.settled"); n != 1 {
		t.Fatalf("payment.settled events = %d, want 1", n)
	}
}

func TestManualChannelCreatesInstruction(t *testing.T) {
	env := newRouterEnv(t)
	result, err := env.router.ProcessPayment(context.Background(), payments.MethodPayPal, 100, "dj-handle", "m1", "curator-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if result.Status != domain.InstructionPending {
		t.Fatalf("status = %s, want pending", result.Status)
	}
	in := result.Instruction
	if in == nil {
		t.Fatalf("manual payout missing instruction")
	}
	if in.ExpiresAt != "2024-01-02T00:00:00Z" {
		t.Fatalf("expires at = %s, want created + 24h", in.ExpiresAt)
	}
	if math.Abs(in.Fee-3.20) > 1e-9 {
		t.Fatalf("fee = %v, want 3.20", in.Fee)
	}
	if !strings.Contains(in.Steps, "dj-handle") || !strings.Contains(in.Steps, "PayPal") {
		t.Fatalf("steps missing recipient or channel walkthrough: %q", in.Steps)
	}
	if n := env.eventCount("payment.instruction.created"); n != 1 {
		t.Fatalf("payment.instruction.created events = %d, want 1", n)
	}
	if n := env.eventCount("notify.payment.due"); n != 1 {
		t.Fatalf("notify.payment.due events = %d, want 1", n)
	}
}

func TestUnsupportedMethodRejected(t *testing.T) {
	env := newRouterEnv(t)
	_, err := env.router.ProcessPayment(context.Background(), "wire", 100, "r1", "m1", "curator-1")
	if !errors.Is(err, payments.ErrUnsupportedMethod) {
		t.Fatalf("err = %v, want ErrUnsupportedMethod", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	result, err := env.router.ProcessPayment(ctx, payments.MethodVenmo, 75, "r1", "m1", "curator-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	in, err := env.router.MarkCompleted(ctx, result.TransactionID, "venmo-tx-123")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if in.Status != domain.InstructionCompleted {
		t.Fatalf("status = %s, want completed", in.Status)
	}
	if in.TransactionDetails == nil || *in.TransactionDetails != "venmo-tx-123" {
		t.Fatalf("transaction details = %v, want venmo-tx-123", in.TransactionDetails)
	}
	if n := env.eventCount("payment.completed"); n != 1 {
		t.Fatalf("payment.completed events = %d, want 1", n)
	}
	if n := env.eventCount("notify.payment.received"); n != 1 {
		t.Fatalf("notify.payment.received events = %d, want 1", n)
	}

	// Settling twice or settling an unknown id both refuse.
	if _, err := env.router.MarkCompleted(ctx, result.TransactionID, "again"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second completion err = %v, want ErrNotFound", err)
	}
	if _, err := env.router.MarkCompleted(ctx, "nope", "tx"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestSweepExpired(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	stale, err := env.router.ProcessPayment(ctx, payments.MethodCashApp, 40, "r1", "m1", "curator-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	env.now = env.now.Add(12 * time.Hour)
	fresh, err := env.router.ProcessPayment(ctx, payments.MethodCashApp, 60, "r2", "m2", "curator-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	env.now = env.now.Add(13 * time.Hour)
	n, err := env.router.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d instructions, want 1", n)
	}
	if status, _ := env.router.Status(ctx, stale.TransactionID); status != domain.InstructionExpired {
		t.Fatalf("stale status = %s, want expired", status)
	}
	if status, _ := env.router.Status(ctx, fresh.TransactionID); status != domain.InstructionPending {
		t.Fatalf("fresh status = %s, want pending", status)
	}

	// A swept instruction can no longer be settled.
	if _, err := env.router.MarkCompleted(ctx, stale.TransactionID, "late"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("settle after expiry err = %v, want ErrNotFound", err)
	}
}
