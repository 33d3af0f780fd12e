// Package scheduler drives the sync engine on interval timers. It keeps
// one loop per shared kind and one per (tenant kind, whitelisted user),
// serializes runs through a token table, and exposes manual and forced
// sync entry points that respect the same tokens.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

var (
	// ErrSyncInFlight is returned when a manual or forced sync targets a
	// slot whose token is held. Callers retry later; runs never queue.
	ErrSyncInFlight = errors.New("sync already in flight")

	// ErrForcedKind is returned when a forced sync targets a tenant kind.
	ErrForcedKind = errors.New("forced sync is only available for shared kinds")
)

// DepsFunc builds the engine dependencies for one run. The scheduler owns
// SessionID, ShouldStop and the progress fan-out; anything it finds set on
// Progress is chained, not replaced.
type DepsFunc func(kind types.SyncKind, userID string) engine.Deps

// Options tune the scheduler. Zero values pick the defaults.
type Options struct {
	// UserRefreshInterval controls how often the whitelist is re-read to
	// start and stop per-user loops. The whitelist changes rarely.
	UserRefreshInterval time.Duration

	// EventBuffer caps the event stream; overflow drops events.
	EventBuffer int

	// IntervalUnit is the duration one configured interval minute maps
	// to. Production leaves it at time.Minute; tests compress time.
	IntervalUnit time.Duration

	// OnResult, when set, receives every completed result. Used to hook
	// up telemetry without coupling the pipelines to it.
	OnResult func(engine.Result)
}

// LastRun is the most recent outcome recorded for a slot.
type LastRun struct {
	At     time.Time
	Result engine.Result
}

// Scheduler coordinates periodic, manual and forced runs of the sync
// engine across all kinds and users.
type Scheduler struct {
	store storage.Store
	deps  DepsFunc
	log   *slog.Logger
	opts  Options

	tokens        *tokenTable
	events        chan Event
	droppedEvents atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	slots   map[tokenKey]context.CancelFunc
	last    map[tokenKey]LastRun
}

// New builds a stopped scheduler. Call Start to arm the timers; manual
// and forced syncs work without Start as well.
func New(store storage.Store, deps DepsFunc, log *slog.Logger, opts Options) *Scheduler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.UserRefreshInterval <= 0 {
		opts.UserRefreshInterval = 30 * time.Minute
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if opts.IntervalUnit <= 0 {
		opts.IntervalUnit = time.Minute
	}
	return &Scheduler{
		store:  store,
		deps:   deps,
		log:    log,
		opts:   opts,
		tokens: newTokenTable(),
		events: make(chan Event, opts.EventBuffer),
		slots:  make(map[tokenKey]context.CancelFunc),
		last:   make(map[tokenKey]LastRun),
	}
}

// Start arms one loop per shared kind plus the user-refresh loop and
// returns. Loops fire first after one full interval; use RunManualSync
// for an immediate pass.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	s.running = true
	s.cancel = cancel
	s.group = g
	s.mu.Unlock()

	for _, kind := range types.AllSyncKinds() {
		if kind.Shared() {
			s.startSlot(runCtx, tokenKey{Kind: kind})
		}
	}
	g.Go(func() error {
		s.superviseUsers(runCtx)
		return nil
	})

	s.log.Info("scheduler started", "userRefresh", s.opts.UserRefreshInterval)
	return nil
}

// Stop cancels every in-flight run, tears the loops down and waits for
// them to exit. In-flight runs finish at their next stop checkpoint.
// Tokens are canceled even when the loops were never started, so manual
// runs on a bare scheduler can be interrupted too.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	cancel := s.cancel
	g := s.group
	s.running = false
	s.cancel = nil
	s.group = nil
	s.mu.Unlock()

	s.tokens.cancelAll()
	if !running {
		return
	}
	cancel()
	_ = g.Wait()
	s.log.Info("scheduler stopped")
}

// RunManualSync runs the pipeline for one slot right now, bypassing the
// interval but not the token: a busy slot rejects with ErrSyncInFlight.
func (s *Scheduler) RunManualSync(ctx context.Context, kind types.SyncKind, userID string) (engine.Result, error) {
	if !kind.IsValid() {
		return engine.Result{}, fmt.Errorf("unknown sync kind %q", kind)
	}
	return s.runOnce(ctx, tokenKey{Kind: kind, UserID: userID}, false)
}

// RunForcedSync clears the shared dataset's derived state and runs a full
// sync, rewriting every row. Only products and prices support it.
func (s *Scheduler) RunForcedSync(ctx context.Context, kind types.SyncKind) (engine.Result, error) {
	if !kind.Shared() {
		return engine.Result{}, ErrForcedKind
	}
	return s.runOnce(ctx, tokenKey{Kind: kind}, true)
}

// UpdateInterval persists a new interval. Running loops pick it up on
// their next tick.
func (s *Scheduler) UpdateInterval(ctx context.Context, kind types.SyncKind, minutes int) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown sync kind %q", kind)
	}
	if minutes <= 0 {
		return fmt.Errorf("sync interval must be positive, got %d", minutes)
	}
	return s.store.UpdateSyncInterval(ctx, kind, minutes)
}

// SetEnabled persists the enabled flag. A disabled kind keeps its loop
// ticking but the loop skips the run.
func (s *Scheduler) SetEnabled(ctx context.Context, kind types.SyncKind, enabled bool) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown sync kind %q", kind)
	}
	return s.store.SetSyncEnabled(ctx, kind, enabled)
}

// LastResult reports the most recent run recorded for a slot.
func (s *Scheduler) LastResult(kind types.SyncKind, userID string) (LastRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lr, ok := s.last[tokenKey{Kind: kind, UserID: userID}]
	return lr, ok
}

// runOnce acquires the slot token, runs the pipeline once and records the
// result. The token holds the run's cancel func so Stop can interrupt it.
func (s *Scheduler) runOnce(ctx context.Context, key tokenKey, forced bool) (engine.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !s.tokens.acquire(key, cancel) {
		return engine.Result{}, ErrSyncInFlight
	}
	defer s.tokens.release(key)

	if forced {
		if err := engine.PrepareForced(runCtx, s.store, key.Kind); err != nil {
			return engine.Result{}, err
		}
	}

	deps := s.deps(key.Kind, key.UserID)
	deps.SessionID = uuid.NewString()
	deps.ShouldStop = func() bool { return runCtx.Err() != nil }
	if deps.Log == nil {
		deps.Log = s.log
	}
	chained := deps.Progress
	deps.Progress = func(percent int, label string) {
		s.emit(Event{Type: EventSyncProgress, Kind: key.Kind, UserID: key.UserID, Percent: percent, Label: label})
		if chained != nil {
			chained(percent, label)
		}
	}

	s.emit(Event{Type: EventSyncStart, Kind: key.Kind, UserID: key.UserID})
	res := engine.Run(runCtx, key.Kind, deps, key.UserID)

	s.mu.Lock()
	s.last[key] = LastRun{At: time.Now(), Result: res}
	s.mu.Unlock()

	s.emit(Event{Type: EventSyncComplete, Kind: key.Kind, UserID: key.UserID, Result: &res})
	if s.opts.OnResult != nil {
		s.opts.OnResult(res)
	}
	return res, nil
}

// startSlot spins up the timer loop for a slot unless one exists already.
func (s *Scheduler) startSlot(ctx context.Context, key tokenKey) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	g := s.group
	if g == nil || !s.running {
		s.mu.Unlock()
		return
	}
	if _, exists := s.slots[key]; exists {
		s.mu.Unlock()
		return
	}
	slotCtx, cancel := context.WithCancel(ctx)
	s.slots[key] = cancel
	s.mu.Unlock()

	g.Go(func() error {
		defer s.dropSlot(key)
		s.runSlotLoop(slotCtx, key)
		return nil
	})
}

// stopSlot cancels a slot's loop. The in-flight run, if any, is left to
// its own token; Stop handles those.
func (s *Scheduler) stopSlot(key tokenKey) {
	s.mu.Lock()
	cancel, ok := s.slots[key]
	delete(s.slots, key)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Scheduler) dropSlot(key tokenKey) {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
}

// runSlotLoop ticks at the configured interval, re-reading the setting on
// every tick so interval and enabled changes apply without a restart.
func (s *Scheduler) runSlotLoop(ctx context.Context, key tokenKey) {
	interval := s.currentInterval(ctx, key.Kind)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("sync loop started", "kind", key.Kind, "user", key.UserID, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("sync loop stopped", "kind", key.Kind, "user", key.UserID)
			return
		case <-ticker.C:
			setting, err := s.store.GetSyncSetting(ctx, key.Kind)
			if err != nil {
				s.log.Warn("failed to read sync setting, skipping tick", "kind", key.Kind, "error", err)
				continue
			}
			if next := time.Duration(setting.IntervalMinutes) * s.opts.IntervalUnit; next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
				s.log.Info("sync interval updated", "kind", key.Kind, "user", key.UserID, "interval", interval)
			}
			if !setting.Enabled {
				continue
			}
			if _, err := s.runOnce(ctx, key, false); errors.Is(err, ErrSyncInFlight) {
				s.log.Debug("previous sync still running, tick skipped", "kind", key.Kind, "user", key.UserID)
			}
		}
	}
}

func (s *Scheduler) currentInterval(ctx context.Context, kind types.SyncKind) time.Duration {
	setting, err := s.store.GetSyncSetting(ctx, kind)
	if err != nil || setting.IntervalMinutes <= 0 {
		fallback := time.Duration(types.DefaultIntervalMinutes(kind)) * s.opts.IntervalUnit
		s.log.Warn("failed to read sync setting, using default interval", "kind", kind, "interval", fallback, "error", err)
		return fallback
	}
	return time.Duration(setting.IntervalMinutes) * s.opts.IntervalUnit
}

// superviseUsers keeps the set of per-user loops aligned with the
// whitelist.
func (s *Scheduler) superviseUsers(ctx context.Context) {
	s.refreshUsers(ctx)
	ticker := time.NewTicker(s.opts.UserRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshUsers(ctx)
		}
	}
}

func (s *Scheduler) refreshUsers(ctx context.Context) {
	users, err := s.store.ListWhitelistedUsers(ctx)
	if err != nil {
		s.log.Warn("failed to list users for scheduling", "error", err)
		return
	}

	desired := make(map[tokenKey]bool)
	for _, u := range users {
		for _, kind := range types.AllSyncKinds() {
			if kind.Shared() {
				continue
			}
			desired[tokenKey{Kind: kind, UserID: u.ID}] = true
		}
	}

	for key := range desired {
		s.startSlot(ctx, key)
	}

	s.mu.Lock()
	var stale []tokenKey
	for key := range s.slots {
		if key.UserID != "" && !desired[key] {
			stale = append(stale, key)
		}
	}
	s.mu.Unlock()
	for _, key := range stale {
		s.log.Info("user left the whitelist, stopping sync loops", "kind", key.Kind, "user", key.UserID)
		s.stopSlot(key)
	}
}
