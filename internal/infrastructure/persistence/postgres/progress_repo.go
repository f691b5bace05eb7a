// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(q Querier) *ProgressRepository {
	return &ProgressRepository{q: q}
}

// Upsert writes one status row, overwriting status and payload.
func (r *ProgressRepository) Upsert(ctx context.Context, e progress.Entry) error {
	query := `
		INSERT INTO progress (student_id, robot_key, item_key, status, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, robot_key, item_key) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if _, err := r.q.Exec(ctx, query, e.StudentID, e.RobotKey, e.ItemKey, string(e.Status), e.Payload, updatedAt); err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	return nil
}

// Statuses returns the current status for exactly the given item keys.
func (r *ProgressRepository) Statuses(ctx context.Context, studentID, robotKey string, itemKeys []string) (map[string]progress.Status, error) {
	result := make(map[string]progress.Status, len(itemKeys))
	if len(itemKeys) == 0 {
		return result, nil
	}

	query := `
		SELECT item_key, status
		FROM progress
		WHERE student_id = $1 AND robot_key = $2 AND item_key = ANY($3)
	`

	rows, err := r.q.Query(ctx, query, studentID, robotKey, itemKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to query item statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key    string
			status string
		)
		if err := rows.Scan(&key, &status); err != nil {
			return nil, fmt.Errorf("failed to scan item status: %w", err)
		}
		result[key] = progress.Status(status)
	}

	return result, rows.Err()
}

// ListByRobot returns all status rows for a student+robot.
func (r *ProgressRepository) ListByRobot(ctx context.Context, studentID, robotKey string) (map[string]progress.Status, error) {
	query := `
		SELECT item_key, status
		FROM progress
		WHERE student_id = $1 AND robot_key = $2
	`

	rows, err := r.q.Query(ctx, query, studentID, robotKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	result := make(map[string]progress.Status)
	for rows.Next() {
		var (
			key    string
			status string
		)
		if err := rows.Scan(&key, &status); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		result[key] = progress.Status(status)
	}

	return result, rows.Err()
}

// CountDone counts the student's done rows for a robot.
func (r *ProgressRepository) CountDone(ctx context.Context, studentID, robotKey string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM progress
		WHERE student_id = $1 AND robot_key = $2 AND status = 'done'
	`

	var count int
	if err := r.q.QueryRow(ctx, query, studentID, robotKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count done items: %w", err)
	}

	return count, nil
}

// DeleteItems removes rows for the given item keys.
func (r *ProgressRepository) DeleteItems(ctx context.Context, studentID, robotKey string, itemKeys []string) error {
	if len(itemKeys) == 0 {
		return nil
	}

	query := `
		DELETE FROM progress
		WHERE student_id = $1 AND robot_key = $2 AND item_key = ANY($3)
	`

	if _, err := r.q.Exec(ctx, query, studentID, robotKey, itemKeys); err != nil {
		return fmt.Errorf("failed to delete progress items: %w", err)
	}

	return nil
}

// DeleteByStudent removes every progress row for a student.
func (r *ProgressRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	query := `DELETE FROM progress WHERE student_id = $1`

	if _, err := r.q.Exec(ctx, query, studentID); err != nil {
		return fmt.Errorf("failed to delete student progress: %w", err)
	}

	return nil
}
