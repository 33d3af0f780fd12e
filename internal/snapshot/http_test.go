package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saleswire/agentsync/internal/types"
)

func TestHTTPSourceDownload(t *testing.T) {
	var gotPath, gotUser, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("user")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"customerProfile":"CP-001"}` + "\n"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "tok-123", 5*time.Second, nil)
	path, err := src.Download(context.Background(), types.SyncCustomers, "U1")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer func() { _ = os.Remove(path) }()

	if gotPath != "/export/customers" {
		t.Errorf("path = %q, want /export/customers", gotPath)
	}
	if gotUser != "U1" {
		t.Errorf("user = %q, want U1", gotUser)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("auth = %q", gotAuth)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != `{"customerProfile":"CP-001"}`+"\n" {
		t.Errorf("body mismatch: %q", data)
	}
}

func TestHTTPSourceSharedKindOmitsUser(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("{}\n"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, nil)
	path, err := src.Download(context.Background(), types.SyncProducts, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	_ = os.Remove(path)
	if gotQuery != "" {
		t.Errorf("shared kind sent query %q", gotQuery)
	}
}

func TestHTTPSourceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("{}\n"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, nil)
	path, err := src.Download(context.Background(), types.SyncOrders, "U1")
	if err != nil {
		t.Fatalf("Download did not recover from transient failures: %v", err)
	}
	_ = os.Remove(path)
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPSourceClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, nil)
	_, err := src.Download(context.Background(), types.SyncOrders, "U1")
	if err == nil {
		t.Fatalf("404 reported as success")
	}
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NetworkError, got %T", err)
	}
	if nerr.Kind != types.SyncOrders {
		t.Errorf("error kind = %s", nerr.Kind)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("client error retried: %d attempts", got)
	}
}

func TestHTTPSourceExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, nil)
	_, err := src.Download(context.Background(), types.SyncOrders, "U1")
	if err == nil {
		t.Fatalf("persistent failure reported as success")
	}
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NetworkError, got %T", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts before giving up, got %d", got)
	}
}
