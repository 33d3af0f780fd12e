package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/saleswire/agentsync/internal/types"
)

const (
	spoolDefaultTimeout = 5 * time.Minute
	spoolPollInterval   = 2 * time.Second
	spoolSettleDelay    = 500 * time.Millisecond
)

// SpoolSource picks up snapshot files dropped into a directory by the
// upstream exporter. File names follow <kind>-*.jsonl for shared kinds and
// <kind>-<user>-*.jsonl for tenant kinds; the newest match wins.
type SpoolSource struct {
	dir     string
	timeout time.Duration
	poll    time.Duration
	log     *slog.Logger
}

// NewSpoolSource watches dir for dropped snapshots. timeout bounds how long
// Download waits for a file to appear; zero means the default.
func NewSpoolSource(dir string, timeout time.Duration, log *slog.Logger) *SpoolSource {
	if timeout <= 0 {
		timeout = spoolDefaultTimeout
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SpoolSource{
		dir:     dir,
		timeout: timeout,
		poll:    spoolPollInterval,
		log:     log,
	}
}

// Download returns the newest matching spool file, waiting up to the
// configured timeout for one to appear. A watcher reacts to drops as they
// happen; a polling ticker covers filesystems where watching fails.
func (s *SpoolSource) Download(ctx context.Context, kind types.SyncKind, userID string) (string, error) {
	pattern := string(kind) + "-*.jsonl"
	if userID != "" {
		pattern = fmt.Sprintf("%s-%s-*.jsonl", kind, userID)
	}

	if path, ok := s.newestMatch(pattern); ok {
		return s.settle(ctx, pattern, path)
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn("spool watcher unavailable, polling instead", "dir", s.dir, "error", err)
	} else {
		if err := watcher.Add(s.dir); err != nil {
			s.log.Warn("cannot watch spool dir, polling instead", "dir", s.dir, "error", err)
			_ = watcher.Close()
		} else {
			defer func() { _ = watcher.Close() }()
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", &NetworkError{Kind: kind, URL: s.dir, Err: ctx.Err()}
		case <-deadline.C:
			return "", &NetworkError{Kind: kind, URL: s.dir,
				Err: fmt.Errorf("no snapshot matching %s appeared within %s", pattern, s.timeout)}
		case ev, ok := <-events:
			if !ok {
				// Nil channel blocks forever; polling keeps us alive.
				events = nil
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if matched, _ := filepath.Match(pattern, filepath.Base(ev.Name)); matched {
					return s.settle(ctx, pattern, ev.Name)
				}
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.log.Debug("spool watcher error", "error", err)
		case <-ticker.C:
			if path, ok := s.newestMatch(pattern); ok {
				return s.settle(ctx, pattern, path)
			}
		}
	}
}

// settle gives the exporter a moment to finish writing, then re-picks the
// newest match in case a fresher drop landed meanwhile.
func (s *SpoolSource) settle(ctx context.Context, pattern, candidate string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(spoolSettleDelay):
	}
	if path, ok := s.newestMatch(pattern); ok {
		return path, nil
	}
	return candidate, nil
}

func (s *SpoolSource) newestMatch(pattern string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	var newest string
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	return newest, newest != ""
}
