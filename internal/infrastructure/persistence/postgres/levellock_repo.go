// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL LOCK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LevelLockRepository implements checklist.LockRepository for PostgreSQL.
type LevelLockRepository struct {
	q Querier
}

// NewLevelLockRepository creates a new LevelLockRepository.
func NewLevelLockRepository(q Querier) *LevelLockRepository {
	return &LevelLockRepository{q: q}
}

// Locks returns the lock map for a robot+course. An empty map means no gating
// is configured for that combination.
func (r *LevelLockRepository) Locks(ctx context.Context, robotKey, course string) (map[string]bool, error) {
	query := `
		SELECT level_key, unlocked
		FROM level_locks
		WHERE robot_key = $1 AND course = $2
	`

	rows, err := r.q.Query(ctx, query, robotKey, course)
	if err != nil {
		return nil, fmt.Errorf("failed to query level locks: %w", err)
	}
	defer rows.Close()

	locks := make(map[string]bool)
	for rows.Next() {
		var (
			levelKey string
			unlocked bool
		)
		if err := rows.Scan(&levelKey, &unlocked); err != nil {
			return nil, fmt.Errorf("failed to scan level lock: %w", err)
		}
		locks[levelKey] = unlocked
	}

	return locks, rows.Err()
}

// SetLock upserts one lock row.
func (r *LevelLockRepository) SetLock(ctx context.Context, lock checklist.LevelLock) error {
	query := `
		INSERT INTO level_locks (robot_key, course, level_key, unlocked, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (robot_key, course, level_key) DO UPDATE SET
			unlocked = EXCLUDED.unlocked,
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, lock.RobotKey, lock.Course, lock.LevelKey, lock.Unlocked); err != nil {
		return fmt.Errorf("failed to set level lock: %w", err)
	}

	return nil
}
