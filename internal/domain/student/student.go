// Package student models the classroom roster. A student is a thin record,
// identity plus a display name. Everything a student does lives in the
// progress and xp domains.
package student

import (
	"context"
	"strings"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
)

// Student is one member of the classroom roster.
type Student struct {
	// ID is a UUID assigned at creation.
	ID string

	// DisplayName is the name shown in the UI. Not required to be unique;
	// small classrooms disambiguate on their own.
	DisplayName string

	CreatedAt time.Time
}

// Validate checks the roster invariants.
func (s Student) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return shared.WrapError("student", "Validate", shared.ErrInvalidID, "id is required", nil)
	}
	if strings.TrimSpace(s.DisplayName) == "" {
		return shared.ErrInvalidDisplayName
	}
	return nil
}

// Repository is the durable roster store.
type Repository interface {
	// Create inserts a new student. Returns shared.ErrStudentAlreadyExists
	// when the ID is taken.
	Create(ctx context.Context, s *Student) error

	// GetByID returns a student or shared.ErrStudentNotFound.
	GetByID(ctx context.Context, id string) (*Student, error)

	// List returns all students, newest first.
	List(ctx context.Context) ([]Student, error)

	// Rename updates the display name.
	Rename(ctx context.Context, id, displayName string) error

	// Delete removes the roster row. Progress and XP rows are removed by
	// the delete-student command, not by cascading here.
	Delete(ctx context.Context, id string) error
}
