// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/student"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
)

// Repos is the set of repositories a command works against. Inside WithinTx
// every repository is bound to the same database transaction, which is what
// gives the engine and the reset operations their all-or-nothing semantics.
type Repos interface {
	Ledger() xp.Ledger
	Stats() xp.StatsStore
	Progress() progress.Repository
	Students() student.Repository
}

// UnitOfWork runs a function against a transaction-scoped repository set.
// The transaction commits if fn returns nil and rolls back otherwise; no
// partial ledger/aggregate state is ever visible.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error

	// Repos returns repositories bound to the shared pool, for reads and
	// single-statement writes that need no transaction.
	Repos() Repos
}

// StatsCacheInvalidator drops any cached stats view for a student after a
// command changes XP state. Implementations must be best-effort: a failed
// invalidation is logged by the caller, never surfaced.
type StatsCacheInvalidator interface {
	Invalidate(ctx context.Context, studentID string) error
}
