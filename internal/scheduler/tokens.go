package scheduler

import (
	"context"
	"sync"

	"github.com/saleswire/agentsync/internal/types"
)

type tokenKey struct {
	Kind   types.SyncKind
	UserID string
}

// token marks a sync slot as busy and lets the holder be canceled from
// the outside.
type token struct {
	cancel context.CancelFunc
}

// tokenTable serializes runs per (kind, user). Acquisition never blocks:
// a slot that is busy rejects the caller instead of queueing it, so a
// slow sync can never pile up followers behind itself.
type tokenTable struct {
	mu   sync.Mutex
	held map[tokenKey]*token
}

func newTokenTable() *tokenTable {
	return &tokenTable{held: make(map[tokenKey]*token)}
}

func (t *tokenTable) acquire(key tokenKey, cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.held[key]; busy {
		return false
	}
	t.held[key] = &token{cancel: cancel}
	return true
}

func (t *tokenTable) release(key tokenKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
}

// cancelAll fires the cancel func of every in-flight run. The tokens stay
// held until their runs observe the cancellation and release them.
func (t *tokenTable) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tok := range t.held {
		tok.cancel()
	}
}
