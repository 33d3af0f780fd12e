package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/saleswire/agentsync/internal/types"
)

func TestSpoolSourceExistingFile(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "customers-U1-001.jsonl")
	if err := os.WriteFile(want, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to seed spool: %v", err)
	}
	// A different tenant's file must not match.
	other := filepath.Join(dir, "customers-U2-001.jsonl")
	if err := os.WriteFile(other, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to seed spool: %v", err)
	}

	src := NewSpoolSource(dir, 5*time.Second, nil)
	got, err := src.Download(context.Background(), types.SyncCustomers, "U1")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got != want {
		t.Errorf("picked %q, want %q", got, want)
	}
}

func TestSpoolSourceNewestWins(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "products-001.jsonl")
	if err := os.WriteFile(old, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to seed spool: %v", err)
	}
	stale := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("failed to age file: %v", err)
	}
	fresh := filepath.Join(dir, "products-002.jsonl")
	if err := os.WriteFile(fresh, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to seed spool: %v", err)
	}

	src := NewSpoolSource(dir, 5*time.Second, nil)
	got, err := src.Download(context.Background(), types.SyncProducts, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got != fresh {
		t.Errorf("picked %q, want newest %q", got, fresh)
	}
}

func TestSpoolSourceWaitsForDrop(t *testing.T) {
	dir := t.TempDir()
	src := NewSpoolSource(dir, 10*time.Second, nil)

	done := make(chan struct{})
	var got string
	var gotErr error
	go func() {
		defer close(done)
		got, gotErr = src.Download(context.Background(), types.SyncOrders, "U1")
	}()

	time.Sleep(200 * time.Millisecond)
	want := filepath.Join(dir, "orders-U1-001.jsonl")
	if err := os.WriteFile(want, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to drop file: %v", err)
	}

	select {
	case <-done:
	case <-time.After(8 * time.Second):
		t.Fatalf("Download did not notice the dropped file")
	}
	if gotErr != nil {
		t.Fatalf("Download failed: %v", gotErr)
	}
	if got != want {
		t.Errorf("picked %q, want %q", got, want)
	}
}

func TestSpoolSourceTimesOut(t *testing.T) {
	src := NewSpoolSource(t.TempDir(), 300*time.Millisecond, nil)
	_, err := src.Download(context.Background(), types.SyncDDT, "U1")
	if err == nil {
		t.Fatalf("empty spool reported success")
	}
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NetworkError, got %T", err)
	}
}

func TestSpoolSourceHonorsContext(t *testing.T) {
	src := NewSpoolSource(t.TempDir(), time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := src.Download(ctx, types.SyncInvoices, "U1")
	if err == nil {
		t.Fatalf("cancelled download reported success")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}
}
