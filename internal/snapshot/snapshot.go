// Package snapshot acquires and parses the JSONL dumps the upstream
// application exports for each sync kind.
//
// A snapshot is a complete re-export: one JSON object per line, camelCase
// field names as the upstream emits them. Acquisition is pluggable; the
// HTTPSource pulls exports over the wire and the SpoolSource picks up files
// dropped into a directory by the browser-automation exporter.
package snapshot

import (
	"context"
	"log/slog"
	"os"

	"github.com/saleswire/agentsync/internal/types"
)

// DownloadFunc fetches the snapshot for a kind (and user, for tenant kinds)
// and returns the path of a local file holding it.
type DownloadFunc func(ctx context.Context, kind types.SyncKind, userID string) (string, error)

// ParseFunc parses a downloaded snapshot file into records.
type ParseFunc func(kind types.SyncKind, path string) (*Records, error)

// CleanupFunc removes a consumed snapshot file. Implementations swallow
// their own errors.
type CleanupFunc func(path string)

// Parse reads the snapshot file for the given kind. Blank lines are
// skipped; a structurally invalid line aborts with a *ParseError.
func Parse(kind types.SyncKind, path string) (*Records, error) {
	recs := &Records{}
	var err error
	switch kind {
	case types.SyncCustomers:
		recs.Customers, err = ParseCustomers(path)
	case types.SyncOrders:
		recs.Orders, err = ParseOrders(path)
	case types.SyncProducts:
		recs.Products, err = ParseProducts(path)
	case types.SyncPrices:
		recs.Prices, err = ParsePrices(path)
	case types.SyncDDT, types.SyncInvoices:
		recs.Documents, err = ParseDocuments(path)
	default:
		return nil, &ParseError{Path: path, Err: errUnknownKind(kind)}
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Cleaner returns a CleanupFunc that removes files best-effort, logging
// failures at debug level.
func Cleaner(log *slog.Logger) CleanupFunc {
	return func(path string) {
		if path == "" {
			return
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if log != nil {
				log.Debug("failed to remove snapshot file", "path", path, "error", err)
			}
		}
	}
}
