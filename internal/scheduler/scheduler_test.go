package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/scheduler"
	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/storage/memory"
	"github.com/saleswire/agentsync/internal/types"
)

func writeSnapshot(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	return path
}

func customerLine(profile, company string) string {
	return fmt.Sprintf(`{"customerProfile":%q,"companyName":%q}`, profile, company)
}

func productLine(id, name string) string {
	return fmt.Sprintf(`{"id":%q,"code":"COD-%s","name":%q,"unit":"PZ","price":"1.00","available":true}`, id, id, name)
}

// staticDeps serves the same snapshot file for every kind and user.
func staticDeps(store storage.Store, path string) scheduler.DepsFunc {
	return func(kind types.SyncKind, userID string) engine.Deps {
		return engine.Deps{
			Store: store,
			Download: func(ctx context.Context, k types.SyncKind, u string) (string, error) {
				return path, nil
			},
			Source: "test",
		}
	}
}

func seedUser(t *testing.T, store storage.Store, id string) {
	t.Helper()
	u := &types.User{ID: id, Username: "agent-" + id, Role: types.RoleAgent, Whitelisted: true}
	if err := store.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func TestManualSyncRunsAndRecords(t *testing.T) {
	store := memory.New()
	path := writeSnapshot(t, customerLine("C001", "Rossi SRL"))
	sched := scheduler.New(store, staticDeps(store, path), nil, scheduler.Options{})

	res, err := sched.RunManualSync(context.Background(), types.SyncCustomers, "U1")
	if err != nil {
		t.Fatalf("RunManualSync failed: %v", err)
	}
	if !res.Success || res.Inserted != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	lr, ok := sched.LastResult(types.SyncCustomers, "U1")
	if !ok {
		t.Fatal("LastResult missing after a manual run")
	}
	if lr.Result.Inserted != 1 || lr.At.IsZero() {
		t.Errorf("unexpected LastRun: %+v", lr)
	}
	if _, ok := sched.LastResult(types.SyncCustomers, "U2"); ok {
		t.Error("LastResult must be scoped per slot")
	}
}

func TestManualSyncRejectedWhileInFlight(t *testing.T) {
	store := memory.New()
	path := writeSnapshot(t, customerLine("C001", "Rossi SRL"))

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	deps := func(kind types.SyncKind, userID string) engine.Deps {
		return engine.Deps{
			Store: store,
			Download: func(ctx context.Context, k types.SyncKind, u string) (string, error) {
				// The runs after close(release) reuse this stub with nobody
				// draining started; a blocking send would deadlock them.
				select {
				case started <- struct{}{}:
				default:
				}
				<-release
				return path, nil
			},
		}
	}
	sched := scheduler.New(store, deps, nil, scheduler.Options{})

	done := make(chan engine.Result, 1)
	go func() {
		res, err := sched.RunManualSync(context.Background(), types.SyncCustomers, "U1")
		if err != nil {
			t.Errorf("first run failed: %v", err)
		}
		done <- res
	}()

	<-started
	if _, err := sched.RunManualSync(context.Background(), types.SyncCustomers, "U1"); !errors.Is(err, scheduler.ErrSyncInFlight) {
		t.Fatalf("expected ErrSyncInFlight, got %v", err)
	}

	close(release)
	res := <-done
	if !res.Success {
		t.Fatalf("first run should complete: %+v", res.Failure)
	}

	// Token released: the slot accepts again.
	if _, err := sched.RunManualSync(context.Background(), types.SyncCustomers, "U1"); err != nil {
		t.Fatalf("slot should be free after release: %v", err)
	}
	// Another user's slot was never busy.
	if _, err := sched.RunManualSync(context.Background(), types.SyncCustomers, "U2"); err != nil {
		t.Fatalf("tokens must be scoped per user: %v", err)
	}
}

func TestStopInterruptsInFlightRun(t *testing.T) {
	store := memory.New()
	path := writeSnapshot(t, customerLine("C001", "Rossi SRL"))

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	deps := func(kind types.SyncKind, userID string) engine.Deps {
		return engine.Deps{
			Store: store,
			Download: func(ctx context.Context, k types.SyncKind, u string) (string, error) {
				entered <- struct{}{}
				<-release
				return path, nil
			},
		}
	}
	sched := scheduler.New(store, deps, nil, scheduler.Options{})

	done := make(chan engine.Result, 1)
	go func() {
		res, _ := sched.RunManualSync(context.Background(), types.SyncCustomers, "U1")
		done <- res
	}()

	<-entered
	sched.Stop()
	close(release)

	res := <-done
	if res.Success {
		t.Fatal("interrupted run must not succeed")
	}
	if res.Failure == nil || res.Failure.Kind != engine.FailureStopped {
		t.Fatalf("expected a stopped failure, got %+v", res.Failure)
	}
	if res.Failure.Stage != "download" {
		t.Errorf("expected the post-download checkpoint to fire, got %s", res.Failure.Stage)
	}
}

func TestForcedSyncSharedKindsOnly(t *testing.T) {
	store := memory.New()
	path := writeSnapshot(t, productLine("P1", "Vite 4x40"))
	sched := scheduler.New(store, staticDeps(store, path), nil, scheduler.Options{})
	ctx := context.Background()

	if _, err := sched.RunForcedSync(ctx, types.SyncCustomers); !errors.Is(err, scheduler.ErrForcedKind) {
		t.Fatalf("expected ErrForcedKind, got %v", err)
	}

	// Seed, then force: the catalog is rebuilt from scratch.
	if _, err := sched.RunManualSync(ctx, types.SyncProducts, ""); err != nil {
		t.Fatalf("seed run failed: %v", err)
	}
	res, err := sched.RunForcedSync(ctx, types.SyncProducts)
	if err != nil {
		t.Fatalf("RunForcedSync failed: %v", err)
	}
	if !res.Success || res.Inserted != 1 || res.Skipped != 0 {
		t.Errorf("forced run must rewrite rows: %+v", res)
	}
}

func TestEventsStream(t *testing.T) {
	store := memory.New()
	path := writeSnapshot(t, customerLine("C001", "Rossi SRL"))
	var hooked atomic.Int32
	sched := scheduler.New(store, staticDeps(store, path), nil, scheduler.Options{
		OnResult: func(engine.Result) { hooked.Add(1) },
	})

	if _, err := sched.RunManualSync(context.Background(), types.SyncCustomers, "U1"); err != nil {
		t.Fatalf("RunManualSync failed: %v", err)
	}

	var events []scheduler.Event
drain:
	for {
		select {
		case ev := <-sched.Events():
			events = append(events, ev)
		default:
			break drain
		}
	}

	if len(events) < 3 {
		t.Fatalf("expected start, progress and complete events, got %d", len(events))
	}
	if events[0].Type != scheduler.EventSyncStart {
		t.Errorf("first event should be syncStart, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != scheduler.EventSyncComplete {
		t.Fatalf("last event should be syncComplete, got %s", last.Type)
	}
	if last.Result == nil || last.Result.Inserted != 1 {
		t.Errorf("completion event should carry the result: %+v", last.Result)
	}
	var sawFinal bool
	for _, ev := range events {
		if ev.Type == scheduler.EventSyncProgress && ev.Percent == 100 {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Error("progress stream should reach 100")
	}
	if hooked.Load() != 1 {
		t.Errorf("OnResult should fire once, got %d", hooked.Load())
	}
}

func TestScheduledLoopsRunWhitelistedUsers(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedUser(t, store, "U1")
	path := writeSnapshot(t, customerLine("C001", "Rossi SRL"))

	// Compress time: one configured minute becomes one millisecond.
	sched := scheduler.New(store, staticDeps(store, path), nil, scheduler.Options{
		IntervalUnit:        time.Millisecond,
		UserRefreshInterval: 5 * time.Millisecond,
	})
	if err := sched.UpdateInterval(ctx, types.SyncCustomers, 10); err != nil {
		t.Fatalf("UpdateInterval failed: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if lr, ok := sched.LastResult(types.SyncCustomers, "U1"); ok && lr.Result.Success {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduled customer sync never ran for the whitelisted user")
		}
		time.Sleep(10 * time.Millisecond)
	}

	c, err := store.GetCustomer(ctx, "C001", "U1")
	if err != nil {
		t.Fatalf("scheduled run wrote nothing: %v", err)
	}
	if c.CompanyName != "Rossi SRL" {
		t.Errorf("unexpected row: %+v", c)
	}
}

func TestDisabledKindDoesNotRun(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	path := writeSnapshot(t, productLine("P1", "Vite 4x40"))

	var downloads atomic.Int32
	deps := func(kind types.SyncKind, userID string) engine.Deps {
		return engine.Deps{
			Store: store,
			Download: func(dctx context.Context, k types.SyncKind, u string) (string, error) {
				downloads.Add(1)
				return path, nil
			},
		}
	}
	sched := scheduler.New(store, deps, nil, scheduler.Options{
		IntervalUnit:        time.Millisecond,
		UserRefreshInterval: time.Hour,
	})
	if err := sched.UpdateInterval(ctx, types.SyncProducts, 5); err != nil {
		t.Fatalf("UpdateInterval failed: %v", err)
	}
	if err := sched.SetEnabled(ctx, types.SyncProducts, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	sched.Stop()

	if n := downloads.Load(); n != 0 {
		t.Errorf("disabled kind must not sync, saw %d downloads", n)
	}
	if _, ok := sched.LastResult(types.SyncProducts, ""); ok {
		t.Error("disabled kind must not record results")
	}
}

func TestStopReturnsPromptly(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "U1")
	path := writeSnapshot(t, customerLine("C001", "Rossi SRL"))
	sched := scheduler.New(store, staticDeps(store, path), nil, scheduler.Options{
		IntervalUnit:        time.Millisecond,
		UserRefreshInterval: 5 * time.Millisecond,
	})
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Idempotent.
	sched.Stop()
}
