// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/student"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Store implements command.UnitOfWork over a shared Connection. Repositories
// handed out by Repos run on the pool; the set handed to a WithinTx callback
// is bound to a single pgx transaction, so all of a command's writes commit
// or roll back together.
type Store struct {
	conn *Connection
	pool repoSet
}

// NewStore creates a Store over the given connection.
func NewStore(conn *Connection) *Store {
	return &Store{
		conn: conn,
		pool: newRepoSet(conn),
	}
}

// Repos returns the pool-bound repository set.
func (s *Store) Repos() command.Repos {
	return s.pool
}

// WithinTx runs fn against a transaction-bound repository set.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r command.Repos) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, newRepoSet(tx))
	})
}

// LevelLocks returns the pool-bound level lock repository. Lock writes are
// single statements and stay outside the unit of work.
func (s *Store) LevelLocks() *LevelLockRepository {
	return NewLevelLockRepository(s.conn)
}

// repoSet binds all repositories to one Querier.
type repoSet struct {
	ledger   *LedgerRepository
	stats    *StatsRepository
	progress *ProgressRepository
	students *StudentRepository
}

func newRepoSet(q Querier) repoSet {
	return repoSet{
		ledger:   NewLedgerRepository(q),
		stats:    NewStatsRepository(q),
		progress: NewProgressRepository(q),
		students: NewStudentRepository(q),
	}
}

func (r repoSet) Ledger() xp.Ledger             { return r.ledger }
func (r repoSet) Stats() xp.StatsStore          { return r.stats }
func (r repoSet) Progress() progress.Repository { return r.progress }
func (r repoSet) Students() student.Repository  { return r.students }
