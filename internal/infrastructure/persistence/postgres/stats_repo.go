// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP STATS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements xp.StatsStore for PostgreSQL over the
// student_robot_stats and student_xp_stats tables.
type StatsRepository struct {
	q Querier
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(q Querier) *StatsRepository {
	return &StatsRepository{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-robot aggregates
// ─────────────────────────────────────────────────────────────────────────────

// RobotStats returns the aggregate for a student+robot.
func (r *StatsRepository) RobotStats(ctx context.Context, studentID, robotKey string) (*xp.RobotStats, error) {
	query := `
		SELECT student_id, robot_key, xp_total, items_done, levels_complete, mastery_tier
		FROM student_robot_stats
		WHERE student_id = $1 AND robot_key = $2
	`

	var s xp.RobotStats
	err := r.q.QueryRow(ctx, query, studentID, robotKey).Scan(
		&s.StudentID, &s.RobotKey, &s.XPTotal, &s.ItemsDone, &s.LevelsComplete, &s.MasteryTier,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get robot stats: %w", err)
	}

	return &s, nil
}

// ListRobotStats returns all per-robot aggregates for a student.
func (r *StatsRepository) ListRobotStats(ctx context.Context, studentID string) ([]xp.RobotStats, error) {
	query := `
		SELECT student_id, robot_key, xp_total, items_done, levels_complete, mastery_tier
		FROM student_robot_stats
		WHERE student_id = $1
		ORDER BY robot_key
	`

	rows, err := r.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list robot stats: %w", err)
	}
	defer rows.Close()

	var stats []xp.RobotStats
	for rows.Next() {
		var s xp.RobotStats
		if err := rows.Scan(&s.StudentID, &s.RobotKey, &s.XPTotal, &s.ItemsDone, &s.LevelsComplete, &s.MasteryTier); err != nil {
			return nil, fmt.Errorf("failed to scan robot stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// ApplyRobotDelta upserts the per-robot row. The XP column is additive against
// the stored total while the count columns are overwritten with the recounted
// values; that split keeps the running XP sum exact and lets count drift
// self-heal on the next invocation.
func (r *StatsRepository) ApplyRobotDelta(ctx context.Context, studentID, robotKey string, xpDelta, itemsDone, levelsComplete int) error {
	query := `
		INSERT INTO student_robot_stats (student_id, robot_key, xp_total, items_done, levels_complete)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, robot_key) DO UPDATE SET
			xp_total = student_robot_stats.xp_total + EXCLUDED.xp_total,
			items_done = EXCLUDED.items_done,
			levels_complete = EXCLUDED.levels_complete,
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey, xpDelta, itemsDone, levelsComplete); err != nil {
		return fmt.Errorf("failed to apply robot stats delta: %w", err)
	}

	return nil
}

// GrantMasteryTier records a newly granted tier. GREATEST keeps the tier
// pointer monotone even if grants race.
func (r *StatsRepository) GrantMasteryTier(ctx context.Context, studentID, robotKey string, tier, bonusXP int) error {
	query := `
		INSERT INTO student_robot_stats (student_id, robot_key, xp_total, mastery_tier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, robot_key) DO UPDATE SET
			xp_total = student_robot_stats.xp_total + EXCLUDED.xp_total,
			mastery_tier = GREATEST(student_robot_stats.mastery_tier, EXCLUDED.mastery_tier),
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey, bonusXP, tier); err != nil {
		return fmt.Errorf("failed to grant mastery tier: %w", err)
	}

	return nil
}

// PutRobotStats overwrites the per-robot row with recomputed values.
func (r *StatsRepository) PutRobotStats(ctx context.Context, s xp.RobotStats) error {
	query := `
		INSERT INTO student_robot_stats (student_id, robot_key, xp_total, items_done, levels_complete, mastery_tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, robot_key) DO UPDATE SET
			xp_total = EXCLUDED.xp_total,
			items_done = EXCLUDED.items_done,
			levels_complete = EXCLUDED.levels_complete,
			mastery_tier = EXCLUDED.mastery_tier,
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, s.StudentID, s.RobotKey, s.XPTotal, s.ItemsDone, s.LevelsComplete, s.MasteryTier); err != nil {
		return fmt.Errorf("failed to put robot stats: %w", err)
	}

	return nil
}

// DeleteRobotStatsByStudent removes all per-robot rows for a student.
func (r *StatsRepository) DeleteRobotStatsByStudent(ctx context.Context, studentID string) error {
	query := `DELETE FROM student_robot_stats WHERE student_id = $1`

	if _, err := r.q.Exec(ctx, query, studentID); err != nil {
		return fmt.Errorf("failed to delete robot stats: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Global aggregate
// ─────────────────────────────────────────────────────────────────────────────

// StudentStats returns the global aggregate for a student.
func (r *StatsRepository) StudentStats(ctx context.Context, studentID string) (*xp.StudentStats, error) {
	query := `
		SELECT student_id, total_xp, level, xp_in_level, last_event_at
		FROM student_xp_stats
		WHERE student_id = $1
	`

	var s xp.StudentStats
	err := r.q.QueryRow(ctx, query, studentID).Scan(
		&s.StudentID, &s.TotalXP, &s.Level, &s.XPInLevel, &s.LastEventAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get student stats: %w", err)
	}

	return &s, nil
}

// PutStudentStats upserts the global aggregate.
func (r *StatsRepository) PutStudentStats(ctx context.Context, s xp.StudentStats) error {
	query := `
		INSERT INTO student_xp_stats (student_id, total_xp, level, xp_in_level, last_event_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			total_xp = EXCLUDED.total_xp,
			level = EXCLUDED.level,
			xp_in_level = EXCLUDED.xp_in_level,
			last_event_at = EXCLUDED.last_event_at
	`

	if _, err := r.q.Exec(ctx, query, s.StudentID, s.TotalXP, s.Level, s.XPInLevel, s.LastEventAt); err != nil {
		return fmt.Errorf("failed to put student stats: %w", err)
	}

	return nil
}
