// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements xp.Ledger for PostgreSQL. It takes a Querier so
// the same implementation serves both pool-bound reads and transaction-bound
// writes inside the unit of work.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(q Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// Insert appends one event. Idempotency comes from the partial unique indexes
// on xp_events: ON CONFLICT DO NOTHING turns a duplicate award into a zero-row
// insert, and the returned bool reports which outcome happened.
func (r *LedgerRepository) Insert(ctx context.Context, e *xp.Event) (bool, error) {
	query := `
		INSERT INTO xp_events (
			student_id, robot_key, level_key, item_key, event_type, delta, tier, meta, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`

	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	tag, err := r.q.Exec(ctx, query,
		e.StudentID,
		e.RobotKey,
		e.LevelKey,
		nullIfEmpty(e.ItemKey),
		string(e.Type),
		e.Delta,
		e.Tier,
		e.Meta,
		occurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert xp event: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SumDeltas sums the student's deltas, optionally narrowed to one robot.
func (r *LedgerRepository) SumDeltas(ctx context.Context, studentID, robotKey string) (int, error) {
	var (
		query string
		args  []interface{}
	)

	if robotKey == "" {
		query = `SELECT COALESCE(SUM(delta), 0) FROM xp_events WHERE student_id = $1`
		args = []interface{}{studentID}
	} else {
		query = `SELECT COALESCE(SUM(delta), 0) FROM xp_events WHERE student_id = $1 AND robot_key = $2`
		args = []interface{}{studentID, robotKey}
	}

	var sum int
	if err := r.q.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum xp deltas: %w", err)
	}

	return sum, nil
}

// CountByType counts the student's events of one type for a robot.
func (r *LedgerRepository) CountByType(ctx context.Context, studentID, robotKey string, t xp.EventType) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM xp_events
		WHERE student_id = $1 AND robot_key = $2 AND event_type = $3
	`

	var count int
	if err := r.q.QueryRow(ctx, query, studentID, robotKey, string(t)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count xp events: %w", err)
	}

	return count, nil
}

// DeleteForItems removes rows tied to the given item keys.
func (r *LedgerRepository) DeleteForItems(ctx context.Context, studentID, robotKey string, itemKeys []string) error {
	if len(itemKeys) == 0 {
		return nil
	}

	query := `
		DELETE FROM xp_events
		WHERE student_id = $1 AND robot_key = $2 AND item_key = ANY($3)
	`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey, itemKeys); err != nil {
		return fmt.Errorf("failed to delete item xp events: %w", err)
	}

	return nil
}

// DeleteForLevels removes rows tied to the given level keys.
func (r *LedgerRepository) DeleteForLevels(ctx context.Context, studentID, robotKey string, levelKeys []string) error {
	if len(levelKeys) == 0 {
		return nil
	}

	query := `
		DELETE FROM xp_events
		WHERE student_id = $1 AND robot_key = $2 AND level_key = ANY($3)
			AND event_type = $4
	`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey, levelKeys, string(xp.EventLevelComplete)); err != nil {
		return fmt.Errorf("failed to delete level xp events: %w", err)
	}

	return nil
}

// DeleteByType removes all rows of one type for a student+robot.
func (r *LedgerRepository) DeleteByType(ctx context.Context, studentID, robotKey string, t xp.EventType) error {
	query := `
		DELETE FROM xp_events
		WHERE student_id = $1 AND robot_key = $2 AND event_type = $3
	`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey, string(t)); err != nil {
		return fmt.Errorf("failed to delete xp events by type: %w", err)
	}

	return nil
}

// DeleteByRobot removes all rows for a student+robot.
func (r *LedgerRepository) DeleteByRobot(ctx context.Context, studentID, robotKey string) error {
	query := `DELETE FROM xp_events WHERE student_id = $1 AND robot_key = $2`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey); err != nil {
		return fmt.Errorf("failed to delete robot xp events: %w", err)
	}

	return nil
}

// DeleteByStudent removes all rows for a student.
func (r *LedgerRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	query := `DELETE FROM xp_events WHERE student_id = $1`

	if _, err := r.q.Exec(ctx, query, studentID); err != nil {
		return fmt.Errorf("failed to delete student xp events: %w", err)
	}

	return nil
}

// nullIfEmpty maps an empty string to SQL NULL. The item uniqueness index is
// partial on item_key IS NOT NULL, so non-item events must store NULL, not "".
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
