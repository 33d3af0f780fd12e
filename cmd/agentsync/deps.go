package main

import (
	"fmt"
	"log/slog"

	"github.com/saleswire/agentsync/internal/config"
	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/scheduler"
	"github.com/saleswire/agentsync/internal/snapshot"
	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// newDepsFunc builds the per-run engine dependency factory. The snapshot
// source is resolved once from config: a configured spool directory takes
// precedence over the HTTP endpoint.
func newDepsFunc(st storage.Store, logger *slog.Logger) (scheduler.DepsFunc, error) {
	download, err := newSnapshotSource(logger)
	if err != nil {
		return nil, err
	}
	cleanup := snapshot.Cleaner(logger)
	source := config.GetString("sync.session-source")

	return func(kind types.SyncKind, userID string) engine.Deps {
		return engine.Deps{
			Store:    st,
			Download: download,
			Cleanup:  cleanup,
			Source:   source,
			Log:      logger,
		}
	}, nil
}

func newSnapshotSource(logger *slog.Logger) (snapshot.DownloadFunc, error) {
	timeout := config.GetDuration("upstream.timeout")

	if dir := config.GetString("spool.dir"); dir != "" {
		return snapshot.NewSpoolSource(dir, timeout, logger).Download, nil
	}

	baseURL := config.GetString("upstream.base-url")
	if baseURL == "" {
		return nil, fmt.Errorf("no snapshot source configured (set upstream.base-url or spool.dir)")
	}
	src := snapshot.NewHTTPSource(baseURL, config.GetString("upstream.token"), timeout, logger)
	return src.Download, nil
}
