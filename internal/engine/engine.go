// Package engine implements the six reconciliation pipelines that keep the
// shared store synchronized with upstream snapshots.
//
// Every pipeline follows the same shape: download the snapshot, parse it,
// walk the records applying hash-based insert/update/skip decisions, prune
// rows that vanished from the snapshot, and clean the snapshot file up. The
// pipelines are pure orchestration over the injected Deps; all state lives
// in the store.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saleswire/agentsync/internal/snapshot"
	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// ProgressFunc receives percent milestones with a localized label. Percent
// values are monotonically non-decreasing; exactly one call reports 100 on
// success.
type ProgressFunc func(percent int, label string)

// Observer is notified of every created/updated/deleted reconciliation
// decision as it is applied. Change-log tables are written by the pipelines
// themselves; the observer is an additional in-process tap.
type Observer interface {
	Notify(ev types.ChangeEvent)
}

// Deps carries everything a pipeline needs. Store and Download are
// required; the rest default to sensible no-ops.
type Deps struct {
	Store      storage.Store
	Download   snapshot.DownloadFunc
	Parse      snapshot.ParseFunc
	Cleanup    snapshot.CleanupFunc
	Progress   ProgressFunc
	Observer   Observer
	ShouldStop func() bool
	SessionID  string
	Source     string
	Now        func() time.Time
	Log        *slog.Logger
}

func (d *Deps) normalize() {
	if d.Parse == nil {
		d.Parse = snapshot.Parse
	}
	if d.Cleanup == nil {
		d.Cleanup = func(string) {}
	}
	if d.Progress == nil {
		d.Progress = func(int, string) {}
	}
	if d.ShouldStop == nil {
		d.ShouldStop = func() bool { return false }
	}
	if d.SessionID == "" {
		d.SessionID = uuid.NewString()
	}
	if d.Source == "" {
		d.Source = "sync"
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// FailureKind is the error taxonomy surfaced to the scheduler.
type FailureKind string

// Failure kind constants
const (
	FailureStopped   FailureKind = "stopped"
	FailureNetwork   FailureKind = "network"
	FailureParse     FailureKind = "parse"
	FailureStore     FailureKind = "store"
	FailureInvariant FailureKind = "invariant"
)

// Failure describes why a run did not complete. Stopped is cooperative
// cancellation and is never treated as an error by the scheduler.
type Failure struct {
	Kind  FailureKind
	Stage string
	Err   error
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

func failure(kind FailureKind, stage string, err error) *Failure {
	return &Failure{Kind: kind, Stage: stage, Err: err}
}

// OrderNumberChange reports an order whose number was renamed upstream
// without any content change.
type OrderNumberChange struct {
	OrderID string
	From    string
	To      string
}

// Result is the outcome of one pipeline run.
type Result struct {
	Kind               types.SyncKind
	UserID             string
	Success            bool
	Processed          int
	Inserted           int
	Updated            int
	Skipped            int
	Deleted            int
	OrderNumberChanges []OrderNumberChange
	Duration           time.Duration
	Failure            *Failure
}

// Progress milestones shared by all pipelines.
const (
	progressDownload  = 5
	progressParse     = 20
	progressReconcile = 40
	progressPrune     = 80
	progressDone      = 100
)

// Progress labels, localized for the upstream sales application.
const (
	labelDownloading = "download snapshot in corso"
	labelParsing     = "analisi del file"
	labelPruning     = "pulizia record obsoleti"
	labelDone        = "completato"
)

func labelReconciling(n int) string {
	return fmt.Sprintf("sincronizzazione di %d record", n)
}

type run struct {
	deps   Deps
	kind   types.SyncKind
	userID string
	res    Result
}

// Run executes the pipeline for kind. Tenant kinds (customers, orders, ddt,
// invoices) require userID; shared kinds (products, prices) forbid it.
func Run(ctx context.Context, kind types.SyncKind, deps Deps, userID string) Result {
	deps.normalize()
	start := time.Now()

	r := &run{deps: deps, kind: kind, userID: userID}
	r.res.Kind = kind
	r.res.UserID = userID

	deps.Log.Info("sync started", "kind", kind, "user", userID, "session", deps.SessionID)

	fail := r.validate()
	if fail == nil {
		switch kind {
		case types.SyncCustomers:
			fail = r.syncCustomers(ctx)
		case types.SyncOrders:
			fail = r.syncOrders(ctx)
		case types.SyncProducts:
			fail = r.syncProducts(ctx)
		case types.SyncPrices:
			fail = r.syncPrices(ctx)
		case types.SyncDDT, types.SyncInvoices:
			fail = r.syncDocuments(ctx)
		}
	}

	r.res.Failure = fail
	r.res.Success = fail == nil
	r.res.Duration = time.Since(start)

	switch {
	case fail == nil:
		deps.Log.Info("sync completed", "kind", kind, "user", userID,
			"processed", r.res.Processed, "inserted", r.res.Inserted, "updated", r.res.Updated,
			"skipped", r.res.Skipped, "deleted", r.res.Deleted, "duration", r.res.Duration)
	case fail.Kind == FailureStopped:
		deps.Log.Info("sync stopped", "kind", kind, "user", userID, "stage", fail.Stage)
	default:
		deps.Log.Warn("sync failed", "kind", kind, "user", userID,
			"failure", fail.Kind, "stage", fail.Stage, "error", fail.Err)
	}
	return r.res
}

func (r *run) validate() *Failure {
	if !r.kind.IsValid() {
		return failure(FailureInvariant, "start", fmt.Errorf("unknown sync kind %q", r.kind))
	}
	if r.kind.Shared() && r.userID != "" {
		return failure(FailureInvariant, "start", fmt.Errorf("%s sync is shared, got user %q", r.kind, r.userID))
	}
	if !r.kind.Shared() && r.userID == "" {
		return failure(FailureInvariant, "start", fmt.Errorf("%s sync requires a user", r.kind))
	}
	return nil
}

// stop probes the cooperative cancellation hook, returning a stopped
// failure carrying the stage it fired in.
func (r *run) stop(stage string) *Failure {
	if r.deps.ShouldStop() {
		return failure(FailureStopped, stage, fmt.Errorf("stop requested during %s", stage))
	}
	return nil
}

func (r *run) progress(percent int, label string) {
	r.deps.Progress(percent, label)
}

func (r *run) notify(entityID string, action types.ChangeAction) {
	if r.deps.Observer == nil {
		return
	}
	r.deps.Observer.Notify(types.ChangeEvent{
		Kind:     r.kind,
		EntityID: entityID,
		UserID:   r.userID,
		Action:   action,
	})
}

// fetch drives the stages every pipeline shares: the start checkpoint,
// download, the post-download checkpoint, parse, and the post-parse
// checkpoint. The returned path is non-empty as soon as a file was
// acquired, so callers can defer cleanup before inspecting the failure.
func (r *run) fetch(ctx context.Context) (*snapshot.Records, string, *Failure) {
	if f := r.stop("start"); f != nil {
		return nil, "", f
	}
	r.progress(progressDownload, labelDownloading)
	path, err := r.deps.Download(ctx, r.kind, r.userID)
	if err != nil {
		return nil, "", failure(FailureNetwork, "download", err)
	}
	if f := r.stop("download"); f != nil {
		return nil, path, f
	}
	r.progress(progressParse, labelParsing)
	recs, err := r.deps.Parse(r.kind, path)
	if err != nil {
		return nil, path, failure(FailureParse, "parse", err)
	}
	if f := r.stop("parse"); f != nil {
		return nil, path, f
	}
	return recs, path, nil
}

// checkpoint probes the stop hook at every tenth record of the
// reconciliation loop.
func (r *run) checkpoint(i int) *Failure {
	if i > 0 && i%10 == 0 {
		return r.stop("db-loop")
	}
	return nil
}

func (r *run) skipInvalid(err error) {
	r.res.Skipped++
	r.deps.Log.Warn("skipping invalid snapshot record", "kind", r.kind, "user", r.userID, "error", err)
}
