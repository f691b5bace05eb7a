// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	q Querier
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(q Querier) *StudentRepository {
	return &StudentRepository{q: q}
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (id, display_name, created_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.q.Exec(ctx, query, s.ID, s.DisplayName, s.CreatedAt); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `
		SELECT id, display_name, created_at
		FROM students
		WHERE id = $1
	`

	var s student.Student
	err := r.q.QueryRow(ctx, query, id).Scan(&s.ID, &s.DisplayName, &s.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return &s, nil
}

// List returns all students, newest first.
func (r *StudentRepository) List(ctx context.Context) ([]student.Student, error) {
	query := `
		SELECT id, display_name, created_at
		FROM students
		ORDER BY created_at DESC, id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []student.Student
	for rows.Next() {
		var s student.Student
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// Rename updates the display name.
func (r *StudentRepository) Rename(ctx context.Context, id, displayName string) error {
	query := `UPDATE students SET display_name = $2 WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, id, displayName)
	if err != nil {
		return fmt.Errorf("failed to rename student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

// Delete removes the roster row.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM students WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}
