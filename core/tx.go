/*
Package core holds the small set of types shared by every domain package:
actors, clocks, identifiers and the atomic-unit contract.

PURPOSE:
  The ledger, the order lifecycle and provisioning must be able to compose
  their writes into ONE atomic unit (finishing an order posts to the ledger
  and re-derives the sales line status in the same unit). Each domain
  package defines its own store interface, but every store embeds
  Transactor so that units nest by joining the outermost one.

NESTING:
  WithTx called with a context that already carries a unit for the same
  store runs fn inside that unit. Only the outermost call commits or rolls
  back. An error returned from any nested fn that reaches the outermost
  call rolls back everything.

AFTER-COMMIT HOOKS:
  Best-effort side effects (notifications) must not observe state that
  later rolls back. AfterCommit registers fn on the current unit; it runs
  once the outermost unit commits and is discarded on rollback. Outside a
  unit, fn runs immediately.

SEE ALSO:
  - store/memory: snapshot/restore implementation
  - store/sqlite: database/sql implementation
*/
package core

import "context"

// Transactor executes fn as one atomic unit (all-or-nothing).
type Transactor interface {
	// WithTx runs fn inside an atomic unit. Nested calls join the outer unit.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// =============================================================================
// AFTER-COMMIT HOOKS
// =============================================================================

type hooksKey struct{}

// CommitHooks collects callbacks to run after the outermost unit commits.
type CommitHooks struct {
	fns []func()
}

// WithCommitHooks returns a context carrying a fresh hook list.
// Store implementations call this when they open an outermost unit.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// Run executes the collected callbacks in registration order.
func (h *CommitHooks) Run() {
	for _, fn := range h.fns {
		fn()
	}
	h.fns = nil
}

// AfterCommit defers fn until the surrounding unit commits.
// Without a surrounding unit fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(hooksKey{}).(*CommitHooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}
